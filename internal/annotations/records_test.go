package annotations

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mapeval "github.com/jamesainslie/go-mapeval"
)

const labelsCSV = `seq;frame;label
000;6;[(10, 20, 30, 40), (50, 60, 70, 80)]
000;7
001;1;[(1, 2, 3, 4)]
001;2;[]
`

func TestReadLabels(t *testing.T) {
	records, err := ReadLabels(strings.NewReader(labelsCSV))
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, mapeval.FrameKey{Sequence: "000", Frame: "6"}, records[0].Key)
	assert.Equal(t, []mapeval.Box{{XMin: 10, YMin: 20, XMax: 30, YMax: 40}, {XMin: 50, YMin: 60, XMax: 70, YMax: 80}}, records[0].Boxes)
	assert.Empty(t, records[1].Boxes)
	assert.Len(t, records[2].Boxes, 1)
	assert.Empty(t, records[3].Boxes)

	gts := GroundTruths(records)
	assert.Len(t, gts, 3)
	assert.Equal(t, "001", gts[2].Key.Sequence)
}

func TestReadLabels_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"three coordinates", "seq;frame;label\n000;1;[(1, 2, 3)]\n"},
		{"too many fields", "seq;frame;label\n000;1;[(1, 2, 3, 4)];x;y\n"},
		{"single field", "seq;frame;label\n000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadLabels(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedRecord), "got %v", err)
			assert.Contains(t, err.Error(), "line 2")
		})
	}
}

func TestReadPredictions(t *testing.T) {
	input := `seq;frame;label;score
000;6;[10.5, 20.0, 30.25, 40.0];0.93
000;6;[1e1, 2, 3e1, 4e1];0.5
`
	dets, err := ReadPredictions(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, dets, 2)

	assert.Equal(t, mapeval.Box{XMin: 10.5, YMin: 20, XMax: 30.25, YMax: 40}, dets[0].Box)
	assert.InDelta(t, 0.93, dets[0].Score, 1e-12)
	assert.Equal(t, mapeval.Box{XMin: 10, YMin: 2, XMax: 30, YMax: 40}, dets[1].Box)
}

func TestReadPredictions_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"two boxes", "seq;frame;label;score\n000;1;[1, 2, 3, 4, 5, 6, 7, 8];0.5\n"},
		{"bad score", "seq;frame;label;score\n000;1;[1, 2, 3, 4];high\n"},
		{"missing score", "seq;frame;label;score\n000;1;[1, 2, 3, 4]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPredictions(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrMalformedRecord)
		})
	}
}

func TestWritePredictions_ReadBack(t *testing.T) {
	dets := []mapeval.Detection{
		{Key: mapeval.FrameKey{Sequence: "002", Frame: "15"}, Box: mapeval.Box{XMin: 1.5, YMin: 2, XMax: 30, YMax: 44.125}, Score: 0.875},
		{Key: mapeval.FrameKey{Sequence: "002", Frame: "16"}, Box: mapeval.Box{XMin: 0, YMin: 0, XMax: 1, YMax: 1}, Score: 0.1},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePredictions(&buf, dets))
	assert.True(t, strings.HasPrefix(buf.String(), "seq;frame;label;score\n"))

	got, err := ReadPredictions(&buf)
	require.NoError(t, err)
	assert.Equal(t, dets, got)
}

func TestWriteLabels_ReadBack(t *testing.T) {
	records := []LabelRecord{
		{Key: mapeval.FrameKey{Sequence: "000", Frame: "6"}, Boxes: []mapeval.Box{
			{XMin: 10, YMin: 20, XMax: 30, YMax: 40},
			{XMin: 50.5, YMin: 60, XMax: 70, YMax: 80},
		}},
		{Key: mapeval.FrameKey{Sequence: "000", Frame: "7"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteLabels(&buf, records))
	assert.Contains(t, buf.String(), "000;6;[(10, 20, 30, 40), (50.5, 60, 70, 80)]\n")
	assert.Contains(t, buf.String(), "000;7;\n")

	got, err := ReadLabels(&buf)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestLoadLabels_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.csv")
	require.NoError(t, os.WriteFile(path, []byte(labelsCSV), 0644))

	records, err := LoadLabels(path)
	require.NoError(t, err)
	assert.Len(t, records, 4)

	_, err = LoadLabels(filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestScanImages(t *testing.T) {
	root := t.TempDir()
	files := []string{
		"seq001/img12.jpg",
		"seq001/img3.jpg",
		"seq000/img6.jpg",
		"seq000/notes.txt",
	}
	for _, f := range files {
		path := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, nil, 0644))
	}

	refs, err := ScanImages(root)
	require.NoError(t, err)
	require.Len(t, refs, 3)

	assert.Equal(t, mapeval.FrameKey{Sequence: "000", Frame: "6"}, refs[0].Key)
	assert.Equal(t, mapeval.FrameKey{Sequence: "001", Frame: "12"}, refs[1].Key)
	assert.Equal(t, mapeval.FrameKey{Sequence: "001", Frame: "3"}, refs[2].Key)
	assert.Equal(t, ImagePath(root, refs[0].Key), refs[0].Path)
}
