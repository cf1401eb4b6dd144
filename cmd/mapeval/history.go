package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	mapeval "github.com/jamesainslie/go-mapeval"
	"github.com/jamesainslie/go-mapeval/internal/history"
	"github.com/jamesainslie/go-mapeval/internal/report"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded evaluations",
	}
	cmd.AddCommand(newHistoryListCmd(a), newHistoryShowCmd(a), newHistoryDeleteCmd(a))
	return cmd
}

func newHistoryListCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tLABEL\tmAP\tFRAMES")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.3f\t%d\n",
					r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Label, r.MAP, r.Frames)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list, 0 for all")
	return cmd
}

func newHistoryShowCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Print one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}

			store, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			run, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return report.Write(cmd.OutOrStdout(), f, report.Summarize(run.Label, runResult(run)))
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(report.FormatText), "output format: text, json, yaml, pb")
	return cmd
}

func newHistoryDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.logger.Info("run deleted", "id", args[0])
			return nil
		},
	}
}

// runResult rebuilds the engine result a run was recorded from, minus curves.
func runResult(run *history.Run) *mapeval.Result {
	res := &mapeval.Result{
		MAP:           run.MAP,
		NoGroundTruth: run.NoGroundTruth,
		Frames:        run.Frames,
		Detections:    run.Detections,
		GroundTruths:  run.GroundTruths,
	}
	for _, l := range run.Levels {
		res.Thresholds = append(res.Thresholds, l.IoU)
		res.AP = append(res.AP, l.AP)
		res.PerThreshold = append(res.PerThreshold, mapeval.ThresholdResult{
			Threshold:      l.IoU,
			AP:             l.AP,
			TruePositives:  l.TruePositives,
			FalsePositives: l.FalsePositives,
			FalseNegatives: l.FalseNegatives,
		})
	}
	return res
}
