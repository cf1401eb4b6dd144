// Command mapeval scores box detections against ground truth and keeps a
// history of past evaluations.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/go-mapeval/internal/config"
	"github.com/jamesainslie/go-mapeval/internal/history"
	"github.com/jamesainslie/go-mapeval/internal/logging"
)

// Set by the build via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries state shared by every subcommand once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	dbPath     string

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "mapeval",
		Short:         "Evaluate box detections with mAP over IoU 0.50-0.95",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.logCloser != nil {
				return a.logCloser.Close()
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to YAML config file")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&a.dbPath, "db", "", "history database (overrides history.path)")

	root.AddCommand(
		newEvalCmd(a),
		newCompareCmd(a),
		newPredictCmd(a),
		newHistoryCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup() error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.Load(a.configPath)
		if err != nil {
			return err
		}
	} else {
		a.cfg = config.Default()
	}

	if a.logLevel != "" {
		a.cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		a.cfg.Log.Format = a.logFormat
	}
	if a.dbPath != "" {
		a.cfg.History.Path = a.dbPath
	}

	a.logger, a.logCloser, err = logging.New(a.cfg.Log)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	return nil
}

func (a *app) openHistory(ctx context.Context) (*history.Store, error) {
	store, err := history.Open(ctx, a.cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("opening history %s: %w", a.cfg.History.Path, err)
	}
	return store, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "mapeval %s (commit %s, built %s)\n", version, commit, date)
			return err
		},
	}
}
