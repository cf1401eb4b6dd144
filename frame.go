package mapeval

import (
	"cmp"
	"math"
	"slices"
)

// FrameKey identifies one image of one sequence.
type FrameKey struct {
	Sequence string
	Frame    string
}

func (k FrameKey) String() string {
	return k.Sequence + "/" + k.Frame
}

// Compare orders keys by sequence, then frame, both compared as strings. It
// returns -1, 0 or +1 like cmp.Compare.
func (k FrameKey) Compare(other FrameKey) int {
	if c := cmp.Compare(k.Sequence, other.Sequence); c != 0 {
		return c
	}
	return cmp.Compare(k.Frame, other.Frame)
}

// GroundTruth is an annotated object box.
type GroundTruth struct {
	Key FrameKey
	Box Box
}

// Detection is a predicted object box with its confidence.
type Detection struct {
	Key   FrameKey
	Box   Box
	Score float64
}

// Frame holds everything known about one frame. Either side may be empty.
type Frame struct {
	Key          FrameKey
	Detections   []Detection
	GroundTruths []GroundTruth

	// positions of Detections in the caller's input slice
	detIndex []int
}

// FrameIndex groups detections and ground truth by frame. It is built once
// per evaluation and never modified afterwards.
type FrameIndex struct {
	keys   []FrameKey
	frames map[FrameKey]*Frame

	numDetections   int
	numGroundTruths int
}

// NewFrameIndex validates the inputs and groups them by frame key. Input order
// is preserved inside each frame. The first invalid box or score aborts with
// a *ValidationError.
func NewFrameIndex(dets []Detection, gts []GroundTruth) (*FrameIndex, error) {
	idx := &FrameIndex{
		frames:          make(map[FrameKey]*Frame),
		numDetections:   len(dets),
		numGroundTruths: len(gts),
	}

	for i, g := range gts {
		if !g.Box.Valid() {
			return nil, &ValidationError{Kind: "ground truth", Index: i, Key: g.Key, Err: ErrInvalidBox}
		}
		f := idx.frame(g.Key)
		f.GroundTruths = append(f.GroundTruths, g)
	}

	for i, d := range dets {
		if !d.Box.Valid() {
			return nil, &ValidationError{Kind: "detection", Index: i, Key: d.Key, Err: ErrInvalidBox}
		}
		if math.IsNaN(d.Score) || math.IsInf(d.Score, 0) {
			return nil, &ValidationError{Kind: "detection", Index: i, Key: d.Key, Err: ErrInvalidScore}
		}
		f := idx.frame(d.Key)
		f.Detections = append(f.Detections, d)
		f.detIndex = append(f.detIndex, i)
	}

	slices.SortFunc(idx.keys, FrameKey.Compare)
	return idx, nil
}

func (idx *FrameIndex) frame(key FrameKey) *Frame {
	f, ok := idx.frames[key]
	if !ok {
		f = &Frame{Key: key}
		idx.frames[key] = f
		idx.keys = append(idx.keys, key)
	}
	return f
}

// Keys returns every frame key, sorted by sequence then frame.
func (idx *FrameIndex) Keys() []FrameKey {
	return slices.Clone(idx.keys)
}

// Frame returns the frame stored under key. The returned value shares its
// slices with the index and must not be modified.
func (idx *FrameIndex) Frame(key FrameKey) (Frame, bool) {
	f, ok := idx.frames[key]
	if !ok {
		return Frame{}, false
	}
	return *f, true
}

// Len returns the number of distinct frames.
func (idx *FrameIndex) Len() int { return len(idx.keys) }

// NumDetections returns the total detection count.
func (idx *FrameIndex) NumDetections() int { return idx.numDetections }

// NumGroundTruths returns the total ground-truth count.
func (idx *FrameIndex) NumGroundTruths() int { return idx.numGroundTruths }
