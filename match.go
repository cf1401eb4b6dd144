package mapeval

import (
	"cmp"
	"slices"
)

// rankedSet is the threshold-independent part of matching: detections in
// global rank order with their IoU against every ground truth of their frame.
// It is read-only once built and shared by all threshold evaluations.
type rankedSet struct {
	scores []float64 // per rank
	frame  []int     // frame ordinal per rank

	// ious[iouStart[r]:iouStart[r+1]] are rank r's IoUs against its frame's
	// ground truths, in ground-truth order.
	iouStart []int
	ious     []float64

	// ground truths of frame f occupy claim slots gtStart[f]:gtStart[f+1]
	gtStart []int
}

type rankEntry struct {
	input int // position in the caller's detection slice
	frame int
	pos   int // position inside the frame
	score float64
}

func newRankedSet(idx *FrameIndex) *rankedSet {
	frames := make([]*Frame, len(idx.keys))
	gtStart := make([]int, len(idx.keys)+1)
	entries := make([]rankEntry, 0, idx.numDetections)

	for fi, key := range idx.keys {
		f := idx.frames[key]
		frames[fi] = f
		gtStart[fi+1] = gtStart[fi] + len(f.GroundTruths)
		for p, in := range f.detIndex {
			entries = append(entries, rankEntry{input: in, frame: fi, pos: p, score: f.Detections[p].Score})
		}
	}

	// Descending score; equal scores keep caller order.
	slices.SortFunc(entries, func(a, b rankEntry) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.input, b.input)
	})

	s := &rankedSet{
		scores:   make([]float64, len(entries)),
		frame:    make([]int, len(entries)),
		iouStart: make([]int, len(entries)+1),
		gtStart:  gtStart,
	}
	for r, e := range entries {
		f := frames[e.frame]
		s.scores[r] = e.score
		s.frame[r] = e.frame
		box := f.Detections[e.pos].Box
		for _, g := range f.GroundTruths {
			s.ious = append(s.ious, IoU(box, g.Box))
		}
		s.iouStart[r+1] = len(s.ious)
	}
	return s
}

func (s *rankedSet) numGroundTruths() int {
	return s.gtStart[len(s.gtStart)-1]
}

// match labels every ranked detection as a true positive (true) or false
// positive (false) at IoU threshold t. The claim arena is allocated here and
// dropped on return so no state survives between thresholds.
func (s *rankedSet) match(t float64) []bool {
	claimed := make([]bool, s.numGroundTruths())
	tp := make([]bool, len(s.scores))

	for r := range tp {
		base := s.gtStart[s.frame[r]]
		ious := s.ious[s.iouStart[r]:s.iouStart[r+1]]

		best, bestIoU := -1, 0.0
		for j, v := range ious {
			if claimed[base+j] {
				continue
			}
			// strict > keeps the lowest index on exact ties
			if best < 0 || v > bestIoU {
				best, bestIoU = j, v
			}
		}
		if best >= 0 && bestIoU >= t {
			claimed[base+best] = true
			tp[r] = true
		}
	}
	return tp
}
