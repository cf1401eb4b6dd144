//go:build ignore

// Generate a synthetic labels/predictions pair for benchmarking the evaluator.
// Predictions are jittered copies of the labels plus misses and false alarms,
// so mAP falls as the IoU threshold rises.
// Usage: go run ./scripts/synth-dataset.go [-seqs 20] [-frames 200] [-out testdata/synth]
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	mapeval "github.com/jamesainslie/go-mapeval"
	"github.com/jamesainslie/go-mapeval/internal/annotations"
)

const (
	imageW = 1280
	imageH = 720
)

func main() {
	var (
		seqs     = flag.Int("seqs", 20, "number of sequences")
		frames   = flag.Int("frames", 200, "frames per sequence")
		maxBoxes = flag.Int("boxes", 6, "maximum ground-truth boxes per frame")
		jitter   = flag.Float64("jitter", 0.08, "box jitter as a fraction of box size")
		missRate = flag.Float64("miss", 0.1, "probability a ground-truth box gets no prediction")
		fpRate   = flag.Float64("fp", 0.5, "expected false alarms per frame")
		seed     = flag.Uint64("seed", 1, "random seed")
		outDir   = flag.String("out", "testdata/synth", "output directory")
	)
	flag.Parse()

	rng := rand.New(rand.NewPCG(*seed, *seed))

	var (
		labels []annotations.LabelRecord
		preds  []mapeval.Detection
	)
	for s := 0; s < *seqs; s++ {
		seq := fmt.Sprintf("%03d", s)
		for f := 0; f < *frames; f++ {
			key := mapeval.FrameKey{Sequence: seq, Frame: strconv.Itoa(f)}
			rec := annotations.LabelRecord{Key: key}

			for n := rng.IntN(*maxBoxes + 1); n > 0; n-- {
				gt := randomBox(rng)
				rec.Boxes = append(rec.Boxes, gt)
				if rng.Float64() < *missRate {
					continue
				}
				preds = append(preds, mapeval.Detection{
					Key:   key,
					Box:   jitterBox(rng, gt, *jitter),
					Score: 0.5 + 0.5*rng.Float64(),
				})
			}
			for rng.Float64() < *fpRate/(1+*fpRate) {
				preds = append(preds, mapeval.Detection{
					Key:   key,
					Box:   randomBox(rng),
					Score: 0.7 * rng.Float64(),
				})
			}
			labels = append(labels, rec)
		}
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", *outDir, err)
		os.Exit(1)
	}
	if err := writeFile(filepath.Join(*outDir, "labels.csv"), func(f *os.File) error {
		return annotations.WriteLabels(f, labels)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := writeFile(filepath.Join(*outDir, "predictions.csv"), func(f *os.File) error {
		return annotations.WritePredictions(f, preds)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d frames, %d predictions to %s\n", len(labels), len(preds), *outDir)
}

func randomBox(rng *rand.Rand) mapeval.Box {
	w := 20 + rng.Float64()*200
	h := 20 + rng.Float64()*200
	x := rng.Float64() * (imageW - w)
	y := rng.Float64() * (imageH - h)
	return mapeval.Box{XMin: round(x), YMin: round(y), XMax: round(x + w), YMax: round(y + h)}
}

// jitterBox moves each edge by up to frac of the box size, keeping it valid.
func jitterBox(rng *rand.Rand, b mapeval.Box, frac float64) mapeval.Box {
	w, h := b.XMax-b.XMin, b.YMax-b.YMin
	d := func(size float64) float64 { return (2*rng.Float64() - 1) * frac * size }
	out := mapeval.Box{
		XMin: round(b.XMin + d(w)),
		YMin: round(b.YMin + d(h)),
		XMax: round(b.XMax + d(w)),
		YMax: round(b.YMax + d(h)),
	}
	if !out.Valid() {
		return b
	}
	return out
}

func round(v float64) float64 {
	return float64(int(v*10)) / 10
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
