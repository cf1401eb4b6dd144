package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	mapeval "github.com/jamesainslie/go-mapeval"
	"github.com/jamesainslie/go-mapeval/inference"
	"github.com/jamesainslie/go-mapeval/internal/annotations"
)

func newPredictCmd(a *app) *cobra.Command {
	var (
		imagesDir string
		model     string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Run an ONNX detector over seq*/img*.jpg and write predictions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := a.cfg.Inference
			if model != "" {
				in.Model = model
			}
			if in.Model == "" {
				return fmt.Errorf("no model: set --model or inference.model")
			}

			refs, err := annotations.ScanImages(imagesDir)
			if err != nil {
				return err
			}
			if len(refs) == 0 {
				return fmt.Errorf("no images under %s", imagesDir)
			}

			pool, err := inference.NewPool(inference.SessionConfig{
				ModelPath:    in.Model,
				Library:      in.Library,
				InputName:    in.InputName,
				BoxesOutput:  in.BoxesOutput,
				ScoresOutput: in.ScoresOutput,
			}, in.PoolSize)
			if err != nil {
				return err
			}
			defer func() { _ = pool.Close() }()

			det := inference.NewDetector(pool, inference.DetectorConfig{
				Width:          in.Width,
				Height:         in.Height,
				ScoreThreshold: in.ScoreThreshold,
				NMSThreshold:   in.NMSThreshold,
				Workers:        pool.Size(),
				Logger:         a.logger,
			})

			a.logger.Info("running detector", "model", in.Model, "images", len(refs), "sessions", pool.Size())
			dets, err := det.DetectImages(cmd.Context(), refs)
			if err != nil {
				return err
			}

			var w io.WriteCloser = nopWriteCloser{cmd.OutOrStdout()}
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				w = f
			}
			if err := writePredictions(w, dets); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}

			a.logger.Info("predictions written", "detections", len(dets), "output", output)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&imagesDir, "images", "", "dataset root holding seq*/img*.jpg (required)")
	fl.StringVar(&model, "model", "", "ONNX model file (overrides inference.model)")
	fl.StringVarP(&output, "output", "o", "predictions.csv", "predictions file, - for stdout")
	_ = cmd.MarkFlagRequired("images")

	return cmd
}

// writePredictions writes dets to w and closes it. A failed close is reported
// unless writing already failed.
func writePredictions(w io.WriteCloser, dets []mapeval.Detection) error {
	if err := annotations.WritePredictions(w, dets); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
