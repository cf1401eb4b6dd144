package mapeval

// PRPoint is one point of a precision/recall curve: the state after
// accepting every detection scoring at least Score.
type PRPoint struct {
	Recall    float64
	Precision float64
	Score     float64
}

// buildCurve turns rank-ordered TP labels into a PR curve. It returns nil
// when there is no ground truth, since recall is undefined then.
func buildCurve(tp []bool, scores []float64, numGT int) []PRPoint {
	if numGT == 0 || len(tp) == 0 {
		return nil
	}

	curve := make([]PRPoint, len(tp))
	hits := 0
	for k, ok := range tp {
		if ok {
			hits++
		}
		curve[k] = PRPoint{
			Recall:    float64(hits) / float64(numGT),
			Precision: float64(hits) / float64(k+1),
			Score:     scores[k],
		}
	}
	return curve
}
