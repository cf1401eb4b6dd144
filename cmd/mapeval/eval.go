package main

import (
	"github.com/spf13/cobra"

	mapeval "github.com/jamesainslie/go-mapeval"
	"github.com/jamesainslie/go-mapeval/internal/annotations"
	"github.com/jamesainslie/go-mapeval/internal/bench"
	"github.com/jamesainslie/go-mapeval/internal/report"
)

func newEvalCmd(a *app) *cobra.Command {
	var (
		labelsPath string
		predsPath  string
		format     string
		label      string
		record     bool
		bestF1     bool
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score one prediction file against the labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}

			gts, err := loadGroundTruths(labelsPath)
			if err != nil {
				return err
			}
			dets, err := annotations.LoadPredictions(predsPath)
			if err != nil {
				return err
			}

			opts, err := a.cfg.EvaluatorOptions()
			if err != nil {
				return err
			}
			opts = append(opts, mapeval.WithLogger(a.logger))
			if bestF1 {
				opts = append(opts, mapeval.WithCurves(true))
			}

			res, err := mapeval.Evaluate(cmd.Context(), dets, gts, opts...)
			if err != nil {
				return err
			}
			if res.NoGroundTruth {
				a.logger.Warn("labels contain no boxes; mAP is 0 by definition", "labels", labelsPath)
			}

			if label == "" {
				label = predsPath
			}
			summary := report.Summarize(label, res)
			if bestF1 {
				attachBestF1(&summary, res)
			}
			if err := report.Write(cmd.OutOrStdout(), f, summary); err != nil {
				return err
			}

			if record || a.cfg.History.Enabled {
				store, err := a.openHistory(cmd.Context())
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()

				run, err := store.Record(cmd.Context(), label, res)
				if err != nil {
					return err
				}
				a.logger.Info("evaluation recorded", "id", run.ID, "label", label)
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&labelsPath, "labels", "", "ground-truth labels file (required)")
	fl.StringVar(&predsPath, "predictions", "", "predictions file (required)")
	fl.StringVarP(&format, "format", "f", string(report.FormatText), "output format: text, json, yaml, pb")
	fl.StringVar(&label, "label", "", "name stored with the result (defaults to the predictions path)")
	fl.BoolVar(&record, "record", false, "store the result in the history database")
	fl.BoolVar(&bestF1, "best-f1", false, "also print the F1-optimal score cutoff per IoU threshold")
	_ = cmd.MarkFlagRequired("labels")
	_ = cmd.MarkFlagRequired("predictions")

	return cmd
}

func loadGroundTruths(path string) ([]mapeval.GroundTruth, error) {
	records, err := annotations.LoadLabels(path)
	if err != nil {
		return nil, err
	}
	return annotations.GroundTruths(records), nil
}

// attachBestF1 adds the F1-optimal operating point to every level whose curve
// has one. Levels are aligned with res.PerThreshold.
func attachBestF1(s *report.Summary, res *mapeval.Result) {
	for i, r := range res.PerThreshold {
		m, ok := bench.BestF1(r.Curve, res.GroundTruths)
		if !ok {
			continue
		}
		s.Levels[i].BestF1 = &report.OperatingPoint{
			ScoreCutoff: m.ScoreCutoff,
			Precision:   m.Precision,
			Recall:      m.Recall,
			F1:          m.F1,
		}
	}
}
