package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mapeval "github.com/jamesainslie/go-mapeval"
	"github.com/jamesainslie/go-mapeval/internal/annotations"
)

type closeRecorder struct {
	bytes.Buffer
	closeErr error
	closed   int
}

func (c *closeRecorder) Close() error {
	c.closed++
	return c.closeErr
}

var sampleDetections = []mapeval.Detection{
	{Key: mapeval.FrameKey{Sequence: "001", Frame: "4"}, Box: mapeval.Box{XMin: 1, YMin: 2, XMax: 3, YMax: 4}, Score: 0.5},
}

func TestWritePredictions_ClosesOutput(t *testing.T) {
	w := &closeRecorder{}
	require.NoError(t, writePredictions(w, sampleDetections))
	assert.Equal(t, 1, w.closed)

	got, err := annotations.ReadPredictions(&w.Buffer)
	require.NoError(t, err)
	assert.Equal(t, sampleDetections, got)
}

func TestWritePredictions_CloseError(t *testing.T) {
	diskFull := errors.New("no space left on device")
	w := &closeRecorder{closeErr: diskFull}

	err := writePredictions(w, sampleDetections)
	assert.ErrorIs(t, err, diskFull)
	assert.Equal(t, 1, w.closed)
}
