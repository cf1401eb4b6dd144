package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/go-mapeval/internal/report"
)

const testLabels = `seq;frame;label
001;1;[(10, 10, 50, 50), (60, 60, 90, 90)]
001;2;[(0, 0, 20, 20)]
002;1;
`

const perfectPredictions = `seq;frame;label;score
001;1;[10, 10, 50, 50];0.9
001;1;[60, 60, 90, 90];0.8
001;2;[0, 0, 20, 20];0.7
`

const missPredictions = `seq;frame;label;score
002;1;[10, 10, 50, 50];0.9
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestEval_Text(t *testing.T) {
	dir := t.TempDir()
	labels := writeFile(t, dir, "labels.csv", testLabels)
	preds := writeFile(t, dir, "predictions.csv", perfectPredictions)

	out, err := run(t, "eval", "--labels", labels, "--predictions", preds)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Contains(t, lines, "mAP:1.000")
	assert.Contains(t, lines, "\tAP at IoU level [0.95]: 1.000")
}

func TestEval_JSONAndBestF1(t *testing.T) {
	dir := t.TempDir()
	labels := writeFile(t, dir, "labels.csv", testLabels)
	preds := writeFile(t, dir, "predictions.csv", perfectPredictions)

	out, err := run(t, "eval", "--labels", labels, "--predictions", preds, "-f", "json", "--label", "epoch-3")
	require.NoError(t, err)

	var s report.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, "epoch-3", s.Label)
	assert.Equal(t, 1.0, s.MAP)
	assert.Equal(t, 3, s.Frames)
	assert.Len(t, s.Levels, 10)

	out, err = run(t, "eval", "--labels", labels, "--predictions", preds, "--best-f1")
	require.NoError(t, err)
	assert.Contains(t, out, "Best F1 at IoU [0.50]: 1.000")
}

func TestEval_BestF1StructuredFormats(t *testing.T) {
	dir := t.TempDir()
	labels := writeFile(t, dir, "labels.csv", testLabels)
	preds := writeFile(t, dir, "predictions.csv", perfectPredictions)

	out, err := run(t, "eval", "--labels", labels, "--predictions", preds, "-f", "json", "--best-f1")
	require.NoError(t, err)

	var s report.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	require.Len(t, s.Levels, 10)
	for _, l := range s.Levels {
		require.NotNil(t, l.BestF1, "level %.2f", l.IoU)
		assert.Equal(t, 1.0, l.BestF1.F1)
		assert.Equal(t, 0.7, l.BestF1.ScoreCutoff)
	}

	out, err = run(t, "eval", "--labels", labels, "--predictions", preds, "-f", "yaml", "--best-f1")
	require.NoError(t, err)
	assert.NotContains(t, out, "Best F1 at")
	var fromYAML report.Summary
	require.NoError(t, yaml.Unmarshal([]byte(out), &fromYAML))
	require.NotNil(t, fromYAML.Levels[0].BestF1)
}

func TestEval_MissingFlags(t *testing.T) {
	_, err := run(t, "eval")
	assert.Error(t, err)
}

func TestEval_BadFormat(t *testing.T) {
	dir := t.TempDir()
	labels := writeFile(t, dir, "labels.csv", testLabels)
	preds := writeFile(t, dir, "predictions.csv", perfectPredictions)

	_, err := run(t, "eval", "--labels", labels, "--predictions", preds, "-f", "xml")
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	dir := t.TempDir()
	labels := writeFile(t, dir, "labels.csv", testLabels)
	good := writeFile(t, dir, "good.csv", perfectPredictions)
	bad := writeFile(t, dir, "bad.csv", missPredictions)

	out, err := run(t, "compare", "--labels", labels, "weak="+bad, good)
	require.NoError(t, err)

	goodAt := strings.Index(out, "good")
	weakAt := strings.Index(out, "weak")
	require.NotEqual(t, -1, goodAt)
	require.NotEqual(t, -1, weakAt)
	assert.Less(t, goodAt, weakAt, "higher mAP must be listed first")
}

func TestRunName(t *testing.T) {
	tests := []struct {
		arg, name, path string
	}{
		{"a=x/preds.csv", "a", "x/preds.csv"},
		{"x/epoch-7.csv", "epoch-7", "x/epoch-7.csv"},
		{"=x.csv", "=x", "=x.csv"},
	}
	for _, tt := range tests {
		name, path := runName(tt.arg)
		assert.Equal(t, tt.name, name, tt.arg)
		assert.Equal(t, tt.path, path, tt.arg)
	}
}

func TestHistory_RecordListShowDelete(t *testing.T) {
	dir := t.TempDir()
	labels := writeFile(t, dir, "labels.csv", testLabels)
	preds := writeFile(t, dir, "predictions.csv", perfectPredictions)
	db := filepath.Join(dir, "runs.db")

	_, err := run(t, "--db", db, "eval", "--labels", labels, "--predictions", preds, "--label", "ckpt-1", "--record")
	require.NoError(t, err)

	out, err := run(t, "--db", db, "history", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "ckpt-1")
	assert.Contains(t, lines[1], "1.000")

	id := strings.Fields(lines[1])[0]
	out, err = run(t, "--db", db, "history", "show", id, "-f", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "label: ckpt-1")
	assert.Contains(t, out, "map: 1")

	_, err = run(t, "--db", db, "history", "delete", id)
	require.NoError(t, err)
	_, err = run(t, "--db", db, "history", "show", id)
	assert.Error(t, err)
}

func TestPredict_NoModel(t *testing.T) {
	_, err := run(t, "predict", "--images", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no model")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "mapeval dev"))
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	labels := writeFile(t, dir, "labels.csv", testLabels)
	preds := writeFile(t, dir, "predictions.csv", perfectPredictions)
	cfg := writeFile(t, dir, "config.yaml", "evaluation:\n  thresholds: [0.5, 0.75]\n")

	out, err := run(t, "--config", cfg, "eval", "--labels", labels, "--predictions", preds)
	require.NoError(t, err)
	assert.Contains(t, out, "[0.75]")
	assert.NotContains(t, out, "[0.95]")
}
