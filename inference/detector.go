package inference

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"slices"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	mapeval "github.com/jamesainslie/go-mapeval"
	"github.com/jamesainslie/go-mapeval/internal/annotations"
)

// DetectorConfig controls pre- and post-processing around the model.
type DetectorConfig struct {
	// Width and Height resize every image before inference; zero keeps the
	// source size.
	Width  int
	Height int
	// ScoreThreshold drops raw detections scoring below it.
	ScoreThreshold float64
	// NMSThreshold is the IoU above which a lower scoring box is suppressed.
	NMSThreshold float64
	// Workers bounds concurrent images in DetectImages; it should match the
	// pool size.
	Workers int
	Logger  *slog.Logger
}

// Detector turns images into mapeval detections.
type Detector struct {
	runner Runner
	cfg    DetectorConfig
}

// NewDetector wraps runner, usually a *Pool.
func NewDetector(runner Runner, cfg DetectorConfig) *Detector {
	if cfg.NMSThreshold <= 0 {
		cfg.NMSThreshold = 0.1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Detector{runner: runner, cfg: cfg}
}

// Detect runs the model on img and returns its detections keyed by key, in
// source image coordinates, after score filtering and NMS.
func (d *Detector) Detect(ctx context.Context, key mapeval.FrameKey, img image.Image) ([]mapeval.Detection, error) {
	pre, err := Preprocess(img, d.cfg.Width, d.cfg.Height)
	if err != nil {
		return nil, fmt.Errorf("preprocess %s: %w", key, err)
	}

	out, err := d.runner.Run(ctx, pre.Input)
	if err != nil {
		return nil, fmt.Errorf("infer %s: %w", key, err)
	}

	raw := make([]mapeval.Detection, 0, len(out.Scores))
	dropped := 0
	for i, s := range out.Scores {
		score := float64(s)
		if math.IsNaN(score) || score < d.cfg.ScoreThreshold {
			continue
		}
		b := out.Boxes[i]
		box := mapeval.Box{
			XMin: float64(b[0]) * pre.ScaleX,
			YMin: float64(b[1]) * pre.ScaleY,
			XMax: float64(b[2]) * pre.ScaleX,
			YMax: float64(b[3]) * pre.ScaleY,
		}
		// degenerate boxes would fail evaluation
		if !box.Valid() {
			dropped++
			continue
		}
		raw = append(raw, mapeval.Detection{Key: key, Box: box, Score: score})
	}

	kept := NMS(raw, d.cfg.NMSThreshold)
	d.cfg.Logger.Debug("frame detected",
		"frame", key.String(),
		"raw", len(out.Scores),
		"degenerate", dropped,
		"kept", len(kept))
	return kept, nil
}

// DetectFile loads the image at path and runs Detect on it.
func (d *Detector) DetectFile(ctx context.Context, key mapeval.FrameKey, path string) ([]mapeval.Detection, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	return d.Detect(ctx, key, img)
}

// DetectImages runs DetectFile over refs concurrently. The result lists
// detections frame by frame in refs order.
func (d *Detector) DetectImages(ctx context.Context, refs []annotations.ImageRef) ([]mapeval.Detection, error) {
	perFrame := make([][]mapeval.Detection, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for i, ref := range refs {
		g.Go(func() error {
			dets, err := d.DetectFile(gctx, ref.Key, ref.Path)
			if err != nil {
				return err
			}
			perFrame[i] = dets
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return slices.Concat(perFrame...), nil
}
