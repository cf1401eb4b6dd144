package mapeval

import (
	"fmt"
	"math"
)

// Box is an axis-aligned rectangle in a frame's pixel space.
type Box struct {
	XMin, YMin, XMax, YMax float64
}

// NewBox builds a Box from the [xmin, ymin, xmax, ymax] layout used by the
// annotation and prediction records.
func NewBox(c [4]float64) Box {
	return Box{XMin: c[0], YMin: c[1], XMax: c[2], YMax: c[3]}
}

// Coords returns the box in [xmin, ymin, xmax, ymax] layout.
func (b Box) Coords() [4]float64 {
	return [4]float64{b.XMin, b.YMin, b.XMax, b.YMax}
}

// Valid reports whether the box has finite coordinates and positive area.
func (b Box) Valid() bool {
	for _, v := range b.Coords() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.XMin < b.XMax && b.YMin < b.YMax
}

// Area returns the box area, or 0 for a degenerate box.
func (b Box) Area() float64 {
	w := b.XMax - b.XMin
	h := b.YMax - b.YMin
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

func (b Box) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g]", b.XMin, b.YMin, b.XMax, b.YMax)
}

// IoU returns the intersection over union of a and b in [0, 1].
// Boxes without positive area overlap nothing.
func IoU(a, b Box) float64 {
	areaA := a.Area()
	areaB := b.Area()
	if areaA == 0 || areaB == 0 {
		return 0
	}

	iw := math.Min(a.XMax, b.XMax) - math.Max(a.XMin, b.XMin)
	ih := math.Min(a.YMax, b.YMax) - math.Max(a.YMin, b.YMin)
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih

	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	iou := inter / union
	if iou > 1 {
		return 1
	}
	return iou
}
