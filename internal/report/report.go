// Package report renders evaluation results for people and for other tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"

	mapeval "github.com/jamesainslie/go-mapeval"
)

// Format names an output encoding.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatProto Format = "pb"
)

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatYAML, FormatProto}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	if !lo.Contains(Formats(), f) {
		return "", fmt.Errorf("unknown report format %q (want one of %s)", s, strings.Join(lo.Map(Formats(), func(f Format, _ int) string { return string(f) }), ", "))
	}
	return f, nil
}

// Summary is the serialisable view of a result.
type Summary struct {
	Label         string      `json:"label,omitempty" yaml:"label,omitempty"`
	MAP           float64     `json:"map" yaml:"map"`
	NoGroundTruth bool        `json:"no_ground_truth" yaml:"no_ground_truth"`
	Frames        int         `json:"frames" yaml:"frames"`
	Detections    int         `json:"detections" yaml:"detections"`
	GroundTruths  int         `json:"ground_truths" yaml:"ground_truths"`
	Levels        []LevelStat `json:"levels" yaml:"levels"`
}

// LevelStat is the outcome at one IoU threshold.
type LevelStat struct {
	IoU            float64 `json:"iou" yaml:"iou"`
	AP             float64 `json:"ap" yaml:"ap"`
	TruePositives  int     `json:"tp" yaml:"tp"`
	FalsePositives int     `json:"fp" yaml:"fp"`
	FalseNegatives int     `json:"fn" yaml:"fn"`

	// BestF1 is the F1-optimal score cutoff at this level, when requested.
	BestF1 *OperatingPoint `json:"best_f1,omitempty" yaml:"best_f1,omitempty"`
}

// OperatingPoint is a score cutoff and what accepting detections above it
// yields.
type OperatingPoint struct {
	ScoreCutoff float64 `json:"score_cutoff" yaml:"score_cutoff"`
	Precision   float64 `json:"precision" yaml:"precision"`
	Recall      float64 `json:"recall" yaml:"recall"`
	F1          float64 `json:"f1" yaml:"f1"`
}

// Summarize flattens a result. label is free text such as a run name.
func Summarize(label string, res *mapeval.Result) Summary {
	return Summary{
		Label:         label,
		MAP:           res.MAP,
		NoGroundTruth: res.NoGroundTruth,
		Frames:        res.Frames,
		Detections:    res.Detections,
		GroundTruths:  res.GroundTruths,
		Levels: lo.Map(res.PerThreshold, func(r mapeval.ThresholdResult, _ int) LevelStat {
			return LevelStat{
				IoU:            r.Threshold,
				AP:             r.AP,
				TruePositives:  r.TruePositives,
				FalsePositives: r.FalsePositives,
				FalseNegatives: r.FalseNegatives,
			}
		}),
	}
}

// Write encodes s to w.
func Write(w io.Writer, f Format, s Summary) error {
	switch f {
	case FormatText:
		return writeText(w, s)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatProto:
		st, err := ToStruct(s)
		if err != nil {
			return err
		}
		data, err := proto.Marshal(st)
		if err != nil {
			return fmt.Errorf("marshal proto: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
}

func writeText(w io.Writer, s Summary) error {
	var b strings.Builder
	if s.Label != "" {
		fmt.Fprintf(&b, "%s\n", s.Label)
	}
	if s.NoGroundTruth {
		b.WriteString("no ground truth: mAP undefined, reported as 0\n")
	}
	fmt.Fprintf(&b, "mAP:%.3f\n", s.MAP)
	for _, l := range s.Levels {
		fmt.Fprintf(&b, "\tAP at IoU level [%.2f]: %.3f\n", l.IoU, l.AP)
	}
	for _, l := range s.Levels {
		if op := l.BestF1; op != nil {
			fmt.Fprintf(&b, "Best F1 at IoU [%.2f]: %.3f (score >= %.3f, precision %.3f, recall %.3f)\n",
				l.IoU, op.F1, op.ScoreCutoff, op.Precision, op.Recall)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// ToStruct converts s into a protobuf Struct. Counts become numbers, as
// google.protobuf.Value has no integer kind.
func ToStruct(s Summary) (*structpb.Struct, error) {
	levels := lo.Map(s.Levels, func(l LevelStat, _ int) any {
		m := map[string]any{
			"iou": l.IoU,
			"ap":  l.AP,
			"tp":  l.TruePositives,
			"fp":  l.FalsePositives,
			"fn":  l.FalseNegatives,
		}
		if op := l.BestF1; op != nil {
			m["best_f1"] = map[string]any{
				"score_cutoff": op.ScoreCutoff,
				"precision":    op.Precision,
				"recall":       op.Recall,
				"f1":           op.F1,
			}
		}
		return m
	})
	st, err := structpb.NewStruct(map[string]any{
		"label":           s.Label,
		"map":             s.MAP,
		"no_ground_truth": s.NoGroundTruth,
		"frames":          s.Frames,
		"detections":      s.Detections,
		"ground_truths":   s.GroundTruths,
		"levels":          levels,
	})
	if err != nil {
		return nil, fmt.Errorf("build proto struct: %w", err)
	}
	return st, nil
}

// WriteComparison prints a ranking table of several runs.
func WriteComparison(w io.Writer, rows []Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%-30s %-8s %-8s %-8s\n", "Run", "mAP", "AP@.50", "AP@.75")
	b.WriteString(strings.Repeat("-", 56) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-30s %-8.3f %-8s %-8s\n", r.Label, r.MAP, levelAP(r, 0.5), levelAP(r, 0.75))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func levelAP(s Summary, iou float64) string {
	l, ok := lo.Find(s.Levels, func(l LevelStat) bool {
		d := l.IoU - iou
		return d > -1e-9 && d < 1e-9
	})
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.3f", l.AP)
}
