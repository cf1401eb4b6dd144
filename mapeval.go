package mapeval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"
)

// DefaultThresholds returns the canonical IoU sweep 0.50, 0.55, ..., 0.95.
func DefaultThresholds() []float64 {
	ts := make([]float64, 10)
	for i := range ts {
		// integer percent avoids drift from repeated addition of 0.05
		ts[i] = float64(50+5*i) / 100
	}
	return ts
}

// ThresholdResult holds the outcome at one IoU threshold.
type ThresholdResult struct {
	Threshold      float64
	AP             float64
	TruePositives  int
	FalsePositives int
	FalseNegatives int

	// Curve is only populated when the Evaluator was built WithCurves(true).
	Curve []PRPoint
}

// Result is the output of one evaluation.
type Result struct {
	// MAP is the arithmetic mean of AP.
	MAP float64
	// AP is aligned with Thresholds.
	AP           []float64
	Thresholds   []float64
	PerThreshold []ThresholdResult

	// NoGroundTruth is set when there was no ground-truth box at all. MAP and
	// every AP are then 0 by definition rather than because of poor detections.
	NoGroundTruth bool

	Detections   int
	GroundTruths int
	Frames       int
}

// Evaluator computes mAP with a fixed configuration. It is safe for
// concurrent use.
type Evaluator struct {
	thresholds    []float64
	workers       int
	interpolation Interpolation
	curves        bool
	logger        *slog.Logger
}

// New creates an Evaluator. It fails when the threshold sweep is empty,
// unordered or outside (0, 1].
func New(opts ...Option) (*Evaluator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := validateThresholds(cfg.thresholds); err != nil {
		return nil, err
	}
	switch cfg.interpolation {
	case InterpolationAllPoints, InterpolationElevenPoint, InterpolationCOCO101:
	default:
		return nil, fmt.Errorf("unsupported interpolation %v", cfg.interpolation)
	}

	return &Evaluator{
		thresholds:    slices.Clone(cfg.thresholds),
		workers:       cfg.workers,
		interpolation: cfg.interpolation,
		curves:        cfg.curves,
		logger:        cfg.logger,
	}, nil
}

func validateThresholds(ts []float64) error {
	if len(ts) == 0 {
		return fmt.Errorf("%w: empty sweep", ErrInvalidThreshold)
	}
	for i, t := range ts {
		if math.IsNaN(t) || t <= 0 || t > 1 {
			return fmt.Errorf("%w: %v out of (0, 1]", ErrInvalidThreshold, t)
		}
		if i > 0 && t <= ts[i-1] {
			return fmt.Errorf("%w: %v does not follow %v", ErrInvalidThreshold, t, ts[i-1])
		}
	}
	return nil
}

// Thresholds returns the IoU sweep this Evaluator uses.
func (e *Evaluator) Thresholds() []float64 {
	return slices.Clone(e.thresholds)
}

// Evaluate is shorthand for New(opts...) followed by Evaluator.Evaluate.
func Evaluate(ctx context.Context, dets []Detection, gts []GroundTruth, opts ...Option) (*Result, error) {
	e, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(ctx, dets, gts)
}

// Evaluate scores dets against gts at every threshold of the sweep. The input
// slices are only read. A malformed box or score fails the whole call with a
// *ValidationError; cancelling ctx abandons it.
func (e *Evaluator) Evaluate(ctx context.Context, dets []Detection, gts []GroundTruth) (*Result, error) {
	idx, err := NewFrameIndex(dets, gts)
	if err != nil {
		return nil, err
	}
	return e.EvaluateIndex(ctx, idx)
}

// EvaluateIndex scores an already built FrameIndex.
func (e *Evaluator) EvaluateIndex(ctx context.Context, idx *FrameIndex) (*Result, error) {
	ranked := newRankedSet(idx)
	numGT := idx.NumGroundTruths()

	per := make([]ThresholdResult, len(e.thresholds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, t := range e.thresholds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			per[i] = e.evaluateThreshold(ranked, numGT, t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Thresholds:    slices.Clone(e.thresholds),
		AP:            make([]float64, len(per)),
		PerThreshold:  per,
		NoGroundTruth: numGT == 0,
		Detections:    idx.NumDetections(),
		GroundTruths:  numGT,
		Frames:        idx.Len(),
	}
	var sum float64
	for i, r := range per {
		res.AP[i] = r.AP
		sum += r.AP
	}
	res.MAP = clamp01(sum / float64(len(per)))

	e.logger.Debug("evaluation complete",
		"frames", res.Frames,
		"detections", res.Detections,
		"ground_truths", res.GroundTruths,
		"map", res.MAP,
		"no_ground_truth", res.NoGroundTruth)

	return res, nil
}

func (e *Evaluator) evaluateThreshold(ranked *rankedSet, numGT int, t float64) ThresholdResult {
	tp := ranked.match(t)

	hits := 0
	for _, ok := range tp {
		if ok {
			hits++
		}
	}

	curve := buildCurve(tp, ranked.scores, numGT)
	r := ThresholdResult{
		Threshold:      t,
		AP:             AveragePrecision(curve, e.interpolation),
		TruePositives:  hits,
		FalsePositives: len(tp) - hits,
		FalseNegatives: numGT - hits,
	}
	if e.curves {
		r.Curve = curve
	}

	e.logger.Debug("threshold evaluated",
		"iou", t,
		"ap", r.AP,
		"tp", r.TruePositives,
		"fp", r.FalsePositives,
		"fn", r.FalseNegatives)

	return r
}
