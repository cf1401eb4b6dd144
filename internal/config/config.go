// Package config loads the mapeval command configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	mapeval "github.com/jamesainslie/go-mapeval"
)

// Config represents the command configuration.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	History    HistoryConfig    `yaml:"history"`
	Inference  InferenceConfig  `yaml:"inference"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// EvaluationConfig controls the engine.
type EvaluationConfig struct {
	// Thresholds overrides the IoU sweep; empty means 0.50..0.95.
	Thresholds    []float64 `yaml:"thresholds,omitempty"`
	Workers       int       `yaml:"workers"`
	Interpolation string    `yaml:"interpolation"` // all-points, 11-point, coco-101
	Curves        bool      `yaml:"curves"`
}

// HistoryConfig contains the run history database settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// InferenceConfig contains detector settings for the predict command.
type InferenceConfig struct {
	Model          string  `yaml:"model"`
	Library        string  `yaml:"library"` // onnxruntime shared library; empty uses the platform default
	InputName      string  `yaml:"input_name"`
	BoxesOutput    string  `yaml:"boxes_output"`
	ScoresOutput   string  `yaml:"scores_output"`
	Width          int     `yaml:"width"`  // 0 keeps the source size
	Height         int     `yaml:"height"` // 0 keeps the source size
	ScoreThreshold float64 `yaml:"score_threshold"`
	NMSThreshold   float64 `yaml:"nms_threshold"`
	PoolSize       int     `yaml:"pool_size"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Load reads configuration from a YAML file. Unset fields take defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}

	if cfg.Evaluation.Workers == 0 {
		cfg.Evaluation.Workers = runtime.NumCPU()
	}
	if cfg.Evaluation.Interpolation == "" {
		cfg.Evaluation.Interpolation = mapeval.InterpolationAllPoints.String()
	}

	if cfg.History.Path == "" {
		cfg.History.Path = "mapeval-history.db"
	}

	if cfg.Inference.InputName == "" {
		cfg.Inference.InputName = "images"
	}
	if cfg.Inference.BoxesOutput == "" {
		cfg.Inference.BoxesOutput = "boxes"
	}
	if cfg.Inference.ScoresOutput == "" {
		cfg.Inference.ScoresOutput = "scores"
	}
	if cfg.Inference.NMSThreshold == 0 {
		cfg.Inference.NMSThreshold = 0.1
	}
	if cfg.Inference.PoolSize == 0 {
		cfg.Inference.PoolSize = runtime.NumCPU()
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	if len(c.Evaluation.Thresholds) > 0 {
		if _, err := mapeval.New(mapeval.WithThresholds(c.Evaluation.Thresholds...)); err != nil {
			errs = append(errs, fmt.Errorf("evaluation.thresholds: %w", err))
		}
	}
	if c.Evaluation.Workers < 0 {
		errs = append(errs, fmt.Errorf("evaluation.workers: must not be negative"))
	}
	if _, err := mapeval.ParseInterpolation(c.Evaluation.Interpolation); err != nil {
		errs = append(errs, fmt.Errorf("evaluation.interpolation: %w", err))
	}

	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, fmt.Errorf("history.path: required when history is enabled"))
	}

	in := c.Inference
	if in.Width < 0 || in.Height < 0 {
		errs = append(errs, fmt.Errorf("inference: width and height must not be negative"))
	}
	if (in.Width == 0) != (in.Height == 0) {
		errs = append(errs, fmt.Errorf("inference: width and height must be set together"))
	}
	if in.ScoreThreshold < 0 || in.ScoreThreshold > 1 {
		errs = append(errs, fmt.Errorf("inference.score_threshold: %v out of [0, 1]", in.ScoreThreshold))
	}
	if in.NMSThreshold <= 0 || in.NMSThreshold > 1 {
		errs = append(errs, fmt.Errorf("inference.nms_threshold: %v out of (0, 1]", in.NMSThreshold))
	}
	if in.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("inference.pool_size: must not be negative"))
	}

	return errors.Join(errs...)
}

// EvaluatorOptions translates the evaluation section into engine options.
func (c *Config) EvaluatorOptions() ([]mapeval.Option, error) {
	interp, err := mapeval.ParseInterpolation(c.Evaluation.Interpolation)
	if err != nil {
		return nil, err
	}
	opts := []mapeval.Option{
		mapeval.WithWorkers(c.Evaluation.Workers),
		mapeval.WithInterpolation(interp),
		mapeval.WithCurves(c.Evaluation.Curves),
	}
	if len(c.Evaluation.Thresholds) > 0 {
		opts = append(opts, mapeval.WithThresholds(c.Evaluation.Thresholds...))
	}
	return opts, nil
}
