// Package bench compares prediction runs and picks operating points from
// precision/recall curves.
package bench

import mapeval "github.com/jamesainslie/go-mapeval"

// Metrics describes one operating point: every detection scoring at least
// ScoreCutoff is accepted.
type Metrics struct {
	ScoreCutoff    float64
	TruePositives  int
	FalsePositives int
	FalseNegatives int
	Precision      float64
	Recall         float64
	F1             float64
}

// OperatingPoint returns the metrics after accepting the first k ranked
// detections of curve (k >= 1).
func OperatingPoint(curve []mapeval.PRPoint, numGT, k int) Metrics {
	p := curve[k-1]
	// recall * G recovers the hit count; round to undo float error
	tp := int(p.Recall*float64(numGT) + 0.5)

	m := Metrics{
		ScoreCutoff:    p.Score,
		TruePositives:  tp,
		FalsePositives: k - tp,
		FalseNegatives: numGT - tp,
		Precision:      p.Precision,
		Recall:         p.Recall,
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

// BestF1 scans a PR curve for the score cutoff with the highest F1. Only the
// last point of a run of equal scores is a real cutoff, since a threshold
// cannot split tied detections. The second return is false for an empty
// curve.
func BestF1(curve []mapeval.PRPoint, numGT int) (Metrics, bool) {
	var best Metrics
	found := false
	for k := 1; k <= len(curve); k++ {
		if k < len(curve) && curve[k].Score == curve[k-1].Score {
			continue
		}
		m := OperatingPoint(curve, numGT, k)
		if !found || m.F1 > best.F1 {
			best = m
			found = true
		}
	}
	return best, found
}
