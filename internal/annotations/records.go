// Package annotations reads and writes the delimited label and prediction
// records exchanged with the dataset loader and the inference stage.
//
// Labels:      seq;frame;label         label = [(xmin, ymin, xmax, ymax), ...] or empty
// Predictions: seq;frame;label;score   label = [xmin, ymin, xmax, ymax]
package annotations

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	mapeval "github.com/jamesainslie/go-mapeval"
)

// ErrMalformedRecord indicates a row that does not follow the record layout.
var ErrMalformedRecord = errors.New("annotations: malformed record")

const delimiter = ';'

var numberPattern = regexp.MustCompile(`[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`)

// LabelRecord is one annotated frame. Boxes may be empty.
type LabelRecord struct {
	Key   mapeval.FrameKey
	Boxes []mapeval.Box
}

// LoadLabels reads a ground-truth file.
func LoadLabels(path string) ([]LabelRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ReadLabels(f)
}

// ReadLabels parses ground-truth records. The first row is a header.
func ReadLabels(r io.Reader) ([]LabelRecord, error) {
	var records []LabelRecord
	err := readRows(r, func(line int, row []string) error {
		if len(row) < 2 || len(row) > 3 {
			return fmt.Errorf("line %d: %w: want 2 or 3 fields, got %d", line, ErrMalformedRecord, len(row))
		}
		rec := LabelRecord{Key: mapeval.FrameKey{Sequence: row[0], Frame: row[1]}}
		if len(row) == 3 {
			boxes, err := parseBoxes(row[2])
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			rec.Boxes = boxes
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GroundTruths flattens label records into engine input.
func GroundTruths(records []LabelRecord) []mapeval.GroundTruth {
	var gts []mapeval.GroundTruth
	for _, rec := range records {
		for _, b := range rec.Boxes {
			gts = append(gts, mapeval.GroundTruth{Key: rec.Key, Box: b})
		}
	}
	return gts
}

// LoadPredictions reads a prediction file.
func LoadPredictions(path string) ([]mapeval.Detection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open predictions: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ReadPredictions(f)
}

// ReadPredictions parses prediction records. The first row is a header.
func ReadPredictions(r io.Reader) ([]mapeval.Detection, error) {
	var dets []mapeval.Detection
	err := readRows(r, func(line int, row []string) error {
		if len(row) != 4 {
			return fmt.Errorf("line %d: %w: want 4 fields, got %d", line, ErrMalformedRecord, len(row))
		}
		boxes, err := parseBoxes(row[2])
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if len(boxes) != 1 {
			return fmt.Errorf("line %d: %w: want one box, got %d", line, ErrMalformedRecord, len(boxes))
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		if err != nil {
			return fmt.Errorf("line %d: %w: score: %v", line, ErrMalformedRecord, err)
		}
		dets = append(dets, mapeval.Detection{
			Key:   mapeval.FrameKey{Sequence: row[0], Frame: row[1]},
			Box:   boxes[0],
			Score: score,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dets, nil
}

// WritePredictions writes detections in prediction record layout, header
// included.
func WritePredictions(w io.Writer, dets []mapeval.Detection) error {
	cw := csv.NewWriter(w)
	cw.Comma = delimiter

	if err := cw.Write([]string{"seq", "frame", "label", "score"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, d := range dets {
		c := d.Box.Coords()
		label := fmt.Sprintf("[%s, %s, %s, %s]", formatFloat(c[0]), formatFloat(c[1]), formatFloat(c[2]), formatFloat(c[3]))
		if err := cw.Write([]string{d.Key.Sequence, d.Key.Frame, label, formatFloat(d.Score)}); err != nil {
			return fmt.Errorf("write %s: %w", d.Key, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLabels writes records in label layout, header included. A record
// without boxes gets an empty label field.
func WriteLabels(w io.Writer, records []LabelRecord) error {
	cw := csv.NewWriter(w)
	cw.Comma = delimiter

	if err := cw.Write([]string{"seq", "frame", "label"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		tuples := make([]string, len(rec.Boxes))
		for i, b := range rec.Boxes {
			c := b.Coords()
			tuples[i] = fmt.Sprintf("(%s, %s, %s, %s)", formatFloat(c[0]), formatFloat(c[1]), formatFloat(c[2]), formatFloat(c[3]))
		}
		label := ""
		if len(tuples) > 0 {
			label = "[" + strings.Join(tuples, ", ") + "]"
		}
		if err := cw.Write([]string{rec.Key.Sequence, rec.Key.Frame, label}); err != nil {
			return fmt.Errorf("write %s: %w", rec.Key, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func readRows(r io.Reader, fn func(line int, row []string) error) error {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read records: %w", err)
		}
		if header {
			header = false
			continue
		}
		line, _ := cr.FieldPos(0)
		if err := fn(line, row); err != nil {
			return err
		}
	}
}

// parseBoxes extracts consecutive groups of four numbers. Box validity is
// left to the engine so the error names the frame.
func parseBoxes(label string) ([]mapeval.Box, error) {
	label = strings.TrimSpace(label)
	if label == "" || label == "[]" {
		return nil, nil
	}

	nums := numberPattern.FindAllString(label, -1)
	if len(nums)%4 != 0 {
		return nil, fmt.Errorf("%w: %d coordinates in %q", ErrMalformedRecord, len(nums), label)
	}

	boxes := make([]mapeval.Box, 0, len(nums)/4)
	for i := 0; i < len(nums); i += 4 {
		var c [4]float64
		for j := range c {
			v, err := strconv.ParseFloat(nums[i+j], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
			}
			c[j] = v
		}
		boxes = append(boxes, mapeval.NewBox(c))
	}
	return boxes, nil
}
