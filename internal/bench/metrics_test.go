package bench

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mapeval "github.com/jamesainslie/go-mapeval"
)

var frame = mapeval.FrameKey{Sequence: "000", Frame: "1"}

func curveFor(t *testing.T, dets []mapeval.Detection, gts []mapeval.GroundTruth) []mapeval.PRPoint {
	t.Helper()
	res, err := mapeval.Evaluate(context.Background(), dets, gts,
		mapeval.WithThresholds(0.5), mapeval.WithCurves(true))
	require.NoError(t, err)
	return res.PerThreshold[0].Curve
}

func TestBestF1(t *testing.T) {
	gts := []mapeval.GroundTruth{
		{Key: frame, Box: mapeval.Box{XMin: 0, YMin: 0, XMax: 10, YMax: 10}},
		{Key: frame, Box: mapeval.Box{XMin: 20, YMin: 0, XMax: 30, YMax: 10}},
	}

	tests := []struct {
		name       string
		dets       []mapeval.Detection
		wantCutoff float64
		wantTP     int
		wantFP     int
		wantFN     int
		wantF1     float64
	}{
		{
			name: "all hits",
			dets: []mapeval.Detection{
				{Key: frame, Box: gts[0].Box, Score: 0.9},
				{Key: frame, Box: gts[1].Box, Score: 0.8},
			},
			wantCutoff: 0.8,
			wantTP:     2,
			wantF1:     1,
		},
		{
			name: "trailing false positive is cut",
			dets: []mapeval.Detection{
				{Key: frame, Box: gts[0].Box, Score: 0.9},
				{Key: frame, Box: gts[1].Box, Score: 0.8},
				{Key: frame, Box: mapeval.Box{XMin: 50, YMin: 50, XMax: 60, YMax: 60}, Score: 0.3},
			},
			wantCutoff: 0.8,
			wantTP:     2,
			wantF1:     1,
		},
		{
			name: "leading false positive is kept",
			dets: []mapeval.Detection{
				{Key: frame, Box: mapeval.Box{XMin: 50, YMin: 50, XMax: 60, YMax: 60}, Score: 0.95},
				{Key: frame, Box: gts[0].Box, Score: 0.9},
			},
			wantCutoff: 0.9,
			wantTP:     1,
			wantFP:     1,
			wantFN:     1,
			wantF1:     0.5,
		},
		{
			name: "tied scores move together",
			dets: []mapeval.Detection{
				{Key: frame, Box: gts[0].Box, Score: 0.9},
				{Key: frame, Box: mapeval.Box{XMin: 50, YMin: 50, XMax: 60, YMax: 60}, Score: 0.9},
			},
			wantCutoff: 0.9,
			wantTP:     1,
			wantFP:     1,
			wantFN:     1,
			wantF1:     0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			curve := curveFor(t, tt.dets, gts)
			got, ok := BestF1(curve, len(gts))
			require.True(t, ok)

			assert.Equal(t, tt.wantCutoff, got.ScoreCutoff)
			assert.Equal(t, tt.wantTP, got.TruePositives)
			assert.Equal(t, tt.wantFP, got.FalsePositives)
			assert.Equal(t, tt.wantFN, got.FalseNegatives)
			assert.InDelta(t, tt.wantF1, got.F1, 1e-12)
		})
	}
}

func TestBestF1_Empty(t *testing.T) {
	_, ok := BestF1(nil, 3)
	assert.False(t, ok)
}

func TestCompare(t *testing.T) {
	gts := []mapeval.GroundTruth{{Key: frame, Box: mapeval.Box{XMin: 0, YMin: 0, XMax: 10, YMax: 10}}}
	runs := map[string][]mapeval.Detection{
		"miss":    {{Key: frame, Box: mapeval.Box{XMin: 40, YMin: 40, XMax: 50, YMax: 50}, Score: 0.9}},
		"perfect": {{Key: frame, Box: gts[0].Box, Score: 0.9}},
		"late": {
			{Key: frame, Box: mapeval.Box{XMin: 40, YMin: 40, XMax: 50, YMax: 50}, Score: 0.9},
			{Key: frame, Box: gts[0].Box, Score: 0.5},
		},
		"empty": nil,
	}

	results, err := Compare(context.Background(), gts, runs)
	require.NoError(t, err)
	require.Len(t, results, 4)

	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"perfect", "late", "empty", "miss"}, names)
	assert.InDelta(t, 1.0, results[0].Result.MAP, 1e-12)
	assert.InDelta(t, 0.5, results[1].Result.MAP, 1e-12)
}

func TestCompare_InvalidRun(t *testing.T) {
	runs := map[string][]mapeval.Detection{
		"broken": {{Key: frame, Box: mapeval.Box{XMin: 5, YMin: 0, XMax: 1, YMax: 1}, Score: 0.5}},
	}
	_, err := Compare(context.Background(), nil, runs)
	assert.ErrorIs(t, err, mapeval.ErrInvalidBox)
	assert.Contains(t, err.Error(), "broken")
}
