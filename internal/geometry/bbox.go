// Package geometry is the coordinate model shared by parsers, the
// classifier and renderers.
//
// All boxes use a top-left origin with y growing downwards, in points.
// Conversions to a page's native system (bottom-left origin, as used by
// PDF) happen only at ingestion and at the final write.
package geometry

import (
	"fmt"
	"math"
)

// Epsilon is the tolerance used for floating point comparisons.
const Epsilon = 1e-6

// BoundingBox is an axis-aligned rectangle in internal coordinates.
type BoundingBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// New builds a box from two corners in internal coordinates, swapping
// edges when needed so that X1 >= X0 and Y1 >= Y0.
func New(x0, y0, x1, y1 float64) BoundingBox {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return BoundingBox{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

// FromNative converts a box given in bottom-left-origin coordinates.
func FromNative(x0, y0, x1, y1, pageHeight float64) BoundingBox {
	return New(x0, pageHeight-y1, x1, pageHeight-y0)
}

// ToNative returns the box in bottom-left-origin coordinates as
// (x0, y0, x1, y1) with y0 the lower edge.
func (b BoundingBox) ToNative(pageHeight float64) (x0, y0, x1, y1 float64) {
	return b.X0, pageHeight - b.Y1, b.X1, pageHeight - b.Y0
}

// Width of the box.
func (b BoundingBox) Width() float64 { return b.X1 - b.X0 }

// Height of the box.
func (b BoundingBox) Height() float64 { return b.Y1 - b.Y0 }

// CenterX is the horizontal center.
func (b BoundingBox) CenterX() float64 { return (b.X0 + b.X1) / 2 }

// CenterY is the vertical center.
func (b BoundingBox) CenterY() float64 { return (b.Y0 + b.Y1) / 2 }

// Area of the box.
func (b BoundingBox) Area() float64 { return b.Width() * b.Height() }

// IsEmpty reports a zero-width or zero-height box. Such boxes are legal
// but cannot be rendered into.
func (b BoundingBox) IsEmpty() bool {
	return b.Width() <= Epsilon || b.Height() <= Epsilon
}

// Valid reports whether the edges are ordered and finite.
func (b BoundingBox) Valid() bool {
	for _, v := range []float64{b.X0, b.Y0, b.X1, b.Y1} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X1 >= b.X0 && b.Y1 >= b.Y0
}

// Intersect returns the overlapping region and whether it is non-empty.
func (b BoundingBox) Intersect(o BoundingBox) (BoundingBox, bool) {
	r := BoundingBox{
		X0: math.Max(b.X0, o.X0),
		Y0: math.Max(b.Y0, o.Y0),
		X1: math.Min(b.X1, o.X1),
		Y1: math.Min(b.Y1, o.Y1),
	}
	if r.X1 <= r.X0 || r.Y1 <= r.Y0 {
		return BoundingBox{}, false
	}
	return r, true
}

// Union returns the smallest box containing both boxes.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	return BoundingBox{
		X0: math.Min(b.X0, o.X0),
		Y0: math.Min(b.Y0, o.Y0),
		X1: math.Max(b.X1, o.X1),
		Y1: math.Max(b.Y1, o.Y1),
	}
}

// Contains reports whether o lies inside b, allowing tolerance points of slack.
func (b BoundingBox) Contains(o BoundingBox, tolerance float64) bool {
	return o.X0 >= b.X0-tolerance &&
		o.Y0 >= b.Y0-tolerance &&
		o.X1 <= b.X1+tolerance &&
		o.Y1 <= b.Y1+tolerance
}

// Expand grows the box by d on every side; a negative d shrinks it, never
// past its center.
func (b BoundingBox) Expand(d float64) BoundingBox {
	r := BoundingBox{X0: b.X0 - d, Y0: b.Y0 - d, X1: b.X1 + d, Y1: b.Y1 + d}
	if r.X1 < r.X0 {
		cx := b.CenterX()
		r.X0, r.X1 = cx, cx
	}
	if r.Y1 < r.Y0 {
		cy := b.CenterY()
		r.Y0, r.Y1 = cy, cy
	}
	return r
}

// OverlapRatio is the intersection area divided by inner's own area. It is
// 0 when inner is empty or the boxes do not overlap.
func OverlapRatio(inner, outer BoundingBox) float64 {
	area := inner.Area()
	if area <= 0 {
		return 0
	}
	r, ok := inner.Intersect(outer)
	if !ok {
		return 0
	}
	return r.Area() / area
}

// IoU is the intersection over union of two boxes.
func IoU(a, b BoundingBox) float64 {
	r, ok := a.Intersect(b)
	if !ok {
		return 0
	}
	inter := r.Area()
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Merge returns the union of all boxes, or false for an empty slice.
func Merge(boxes []BoundingBox) (BoundingBox, bool) {
	if len(boxes) == 0 {
		return BoundingBox{}, false
	}
	r := boxes[0]
	for _, b := range boxes[1:] {
		r = r.Union(b)
	}
	return r, true
}

// Equal compares two boxes within Epsilon.
func (b BoundingBox) Equal(o BoundingBox) bool {
	return math.Abs(b.X0-o.X0) <= Epsilon &&
		math.Abs(b.Y0-o.Y0) <= Epsilon &&
		math.Abs(b.X1-o.X1) <= Epsilon &&
		math.Abs(b.Y1-o.Y1) <= Epsilon
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%.2f,%.2f)-(%.2f,%.2f)", b.X0, b.Y0, b.X1, b.Y1)
}
