package mapeval

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions callers may need to handle differently.
var (
	// ErrInvalidBox indicates a box with non-finite coordinates or
	// xmin >= xmax or ymin >= ymax.
	ErrInvalidBox = errors.New("mapeval: invalid box")

	// ErrInvalidScore indicates a detection score that is NaN or infinite.
	ErrInvalidScore = errors.New("mapeval: invalid score")

	// ErrInvalidThreshold indicates an empty, unordered or out of range
	// IoU threshold sweep.
	ErrInvalidThreshold = errors.New("mapeval: invalid IoU threshold")
)

// ValidationError reports which input record broke the caller contract.
type ValidationError struct {
	Kind  string // "detection" or "ground truth"
	Index int    // position in the caller's input slice
	Key   FrameKey
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %d in frame %s: %v", e.Kind, e.Index, e.Key, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
