package mapeval

import (
	"log/slog"
	"runtime"
)

// Option configures an Evaluator.
type Option func(*config)

type config struct {
	thresholds    []float64
	workers       int
	interpolation Interpolation
	curves        bool
	logger        *slog.Logger
}

func defaultConfig() config {
	return config{
		thresholds:    DefaultThresholds(),
		workers:       runtime.NumCPU(),
		interpolation: InterpolationAllPoints,
		logger:        slog.Default(),
	}
}

// WithThresholds replaces the IoU sweep (default: DefaultThresholds()).
// The values must be ascending and lie in (0, 1].
func WithThresholds(ts ...float64) Option {
	return func(c *config) {
		c.thresholds = append([]float64(nil), ts...)
	}
}

// WithWorkers bounds how many thresholds are evaluated concurrently
// (default: runtime.NumCPU()).
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithInterpolation selects how a PR curve is integrated
// (default: InterpolationAllPoints).
func WithInterpolation(i Interpolation) Option {
	return func(c *config) {
		c.interpolation = i
	}
}

// WithCurves keeps the full precision/recall curve of every threshold in the
// result. Off by default since a curve holds one point per detection.
func WithCurves(keep bool) Option {
	return func(c *config) {
		c.curves = keep
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
