package bench

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/samber/lo"

	mapeval "github.com/jamesainslie/go-mapeval"
)

// RunResult is the evaluation of one named prediction run.
type RunResult struct {
	Name   string
	Result *mapeval.Result
}

// Compare evaluates every run against the same ground truth and returns the
// results sorted by mAP, best first. Runs with equal mAP are ordered by name.
func Compare(ctx context.Context, gts []mapeval.GroundTruth, runs map[string][]mapeval.Detection, opts ...mapeval.Option) ([]RunResult, error) {
	e, err := mapeval.New(opts...)
	if err != nil {
		return nil, err
	}

	names := lo.Keys(runs)
	slices.Sort(names)

	results := make([]RunResult, 0, len(names))
	for _, name := range names {
		res, err := e.Evaluate(ctx, runs[name], gts)
		if err != nil {
			return nil, fmt.Errorf("evaluating %s: %w", name, err)
		}
		results = append(results, RunResult{Name: name, Result: res})
	}

	slices.SortStableFunc(results, func(a, b RunResult) int {
		return cmp.Compare(b.Result.MAP, a.Result.MAP)
	})
	return results, nil
}
