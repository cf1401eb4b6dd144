package mapeval

import "fmt"

// Interpolation selects how a PR curve is reduced to Average Precision.
type Interpolation int

const (
	// InterpolationAllPoints integrates the precision envelope at every
	// recall step: AP = Σ (r_i - r_{i-1}) * max_{j>=i} p_j.
	InterpolationAllPoints Interpolation = iota

	// InterpolationElevenPoint averages the envelope at recall 0, 0.1, ..., 1
	// (PASCAL VOC 2007).
	InterpolationElevenPoint

	// InterpolationCOCO101 averages the envelope at recall 0, 0.01, ..., 1.
	InterpolationCOCO101
)

func (i Interpolation) String() string {
	switch i {
	case InterpolationAllPoints:
		return "all-points"
	case InterpolationElevenPoint:
		return "11-point"
	case InterpolationCOCO101:
		return "coco-101"
	default:
		return fmt.Sprintf("Interpolation(%d)", int(i))
	}
}

// ParseInterpolation maps the names returned by String back to values.
func ParseInterpolation(s string) (Interpolation, error) {
	switch s {
	case "", "all-points":
		return InterpolationAllPoints, nil
	case "11-point":
		return InterpolationElevenPoint, nil
	case "coco-101":
		return InterpolationCOCO101, nil
	default:
		return 0, fmt.Errorf("unknown interpolation %q", s)
	}
}

// AveragePrecision integrates a PR curve with the given scheme. The curve
// must be ordered by rank, so recall is non-decreasing.
func AveragePrecision(curve []PRPoint, interp Interpolation) float64 {
	if len(curve) == 0 {
		return 0
	}

	envelope := precisionEnvelope(curve)

	var ap float64
	switch interp {
	case InterpolationElevenPoint:
		ap = sampledAP(curve, envelope, 11)
	case InterpolationCOCO101:
		ap = sampledAP(curve, envelope, 101)
	default:
		prev := 0.0
		for i, p := range curve {
			ap += (p.Recall - prev) * envelope[i]
			prev = p.Recall
		}
	}
	return clamp01(ap)
}

// precisionEnvelope returns max precision at each point or any later point.
func precisionEnvelope(curve []PRPoint) []float64 {
	env := make([]float64, len(curve))
	running := 0.0
	for i := len(curve) - 1; i >= 0; i-- {
		if curve[i].Precision > running {
			running = curve[i].Precision
		}
		env[i] = running
	}
	return env
}

// sampledAP averages the envelope at n evenly spaced recall levels. Levels
// beyond the highest reached recall contribute 0.
func sampledAP(curve []PRPoint, env []float64, n int) float64 {
	var sum float64
	i := 0
	for s := 0; s < n; s++ {
		level := float64(s) / float64(n-1)
		for i < len(curve) && curve[i].Recall < level {
			i++
		}
		if i == len(curve) {
			break
		}
		sum += env[i]
	}
	return sum / float64(n)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
