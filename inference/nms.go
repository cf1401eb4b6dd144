package inference

import (
	"cmp"
	"slices"

	mapeval "github.com/jamesainslie/go-mapeval"
)

// NMS performs greedy non-maximum suppression over one frame's detections.
// A detection is dropped when its IoU with a higher scoring kept detection
// exceeds threshold. Survivors are returned by descending score.
func NMS(dets []mapeval.Detection, threshold float64) []mapeval.Detection {
	sorted := slices.Clone(dets)
	slices.SortStableFunc(sorted, func(a, b mapeval.Detection) int {
		return cmp.Compare(b.Score, a.Score)
	})

	kept := make([]mapeval.Detection, 0, len(sorted))
	suppressed := make([]bool, len(sorted))
	for i, d := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, d)
		for j := i + 1; j < len(sorted); j++ {
			if !suppressed[j] && mapeval.IoU(d.Box, sorted[j].Box) > threshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}
