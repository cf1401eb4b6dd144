package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	mapeval "github.com/jamesainslie/go-mapeval"
	"github.com/jamesainslie/go-mapeval/internal/annotations"
	"github.com/jamesainslie/go-mapeval/internal/bench"
	"github.com/jamesainslie/go-mapeval/internal/report"
)

func newCompareCmd(a *app) *cobra.Command {
	var (
		labelsPath string
		record     bool
	)

	cmd := &cobra.Command{
		Use:   "compare [name=]predictions.csv...",
		Short: "Rank several prediction files by mAP",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gts, err := loadGroundTruths(labelsPath)
			if err != nil {
				return err
			}

			runs := make(map[string][]mapeval.Detection, len(args))
			for _, arg := range args {
				name, path := runName(arg)
				if _, dup := runs[name]; dup {
					return fmt.Errorf("duplicate run name %q", name)
				}
				dets, err := annotations.LoadPredictions(path)
				if err != nil {
					return err
				}
				runs[name] = dets
			}

			opts, err := a.cfg.EvaluatorOptions()
			if err != nil {
				return err
			}
			opts = append(opts, mapeval.WithLogger(a.logger))

			results, err := bench.Compare(cmd.Context(), gts, runs, opts...)
			if err != nil {
				return err
			}

			rows := lo.Map(results, func(r bench.RunResult, _ int) report.Summary {
				return report.Summarize(r.Name, r.Result)
			})
			if err := report.WriteComparison(cmd.OutOrStdout(), rows); err != nil {
				return err
			}

			if record || a.cfg.History.Enabled {
				store, err := a.openHistory(cmd.Context())
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()

				for _, r := range results {
					if _, err := store.Record(cmd.Context(), r.Name, r.Result); err != nil {
						return err
					}
				}
				a.logger.Info("comparison recorded", "runs", len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&labelsPath, "labels", "", "ground-truth labels file (required)")
	cmd.Flags().BoolVar(&record, "record", false, "store every result in the history database")
	_ = cmd.MarkFlagRequired("labels")

	return cmd
}

// runName splits "name=path"; a bare path is named after its file.
func runName(arg string) (name, path string) {
	if name, path, ok := strings.Cut(arg, "="); ok && name != "" {
		return name, path
	}
	base := filepath.Base(arg)
	return strings.TrimSuffix(base, filepath.Ext(base)), arg
}
