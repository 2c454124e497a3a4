package atr

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidBoundingBox is returned when a box has inverted or non-finite coordinates
var ErrInvalidBoundingBox = errors.New("invalid bounding box")

// BoundingBox is an axis-aligned rectangle in image coordinates
type BoundingBox struct {
	XMin float64 `json:"xmin"` // Left coordinate
	YMin float64 `json:"ymin"` // Top coordinate
	XMax float64 `json:"xmax"` // Right coordinate
	YMax float64 `json:"ymax"` // Bottom coordinate
}

// Point is a 2D coordinate
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Polygon is the outline of a region. Point order defines the boundary traversal.
type Polygon struct {
	Points []Point `json:"points"`
}

// NewBoundingBox creates a bounding box from its corner coordinates
func NewBoundingBox(xmin, ymin, xmax, ymax float64) BoundingBox {
	return BoundingBox{XMin: xmin, YMin: ymin, XMax: xmax, YMax: ymax}
}

// Width returns the horizontal extent of the box
func (b BoundingBox) Width() float64 { return b.XMax - b.XMin }

// Height returns the vertical extent of the box
func (b BoundingBox) Height() float64 { return b.YMax - b.YMin }

// Area returns the area of the box, zero for degenerate boxes
func (b BoundingBox) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Validate checks that coordinates are finite and min values do not exceed max values
func (b BoundingBox) Validate() error {
	for _, v := range []float64{b.XMin, b.YMin, b.XMax, b.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite coordinate in %+v", ErrInvalidBoundingBox, b)
		}
	}
	if b.XMin > b.XMax || b.YMin > b.YMax {
		return fmt.Errorf("%w: min exceeds max in %+v", ErrInvalidBoundingBox, b)
	}
	return nil
}

// Normalize returns the box with min and max swapped where they are inverted
func (b BoundingBox) Normalize() BoundingBox {
	if b.XMin > b.XMax {
		b.XMin, b.XMax = b.XMax, b.XMin
	}
	if b.YMin > b.YMax {
		b.YMin, b.YMax = b.YMax, b.YMin
	}
	return b
}

// Clone returns a copy of the polygon that shares no memory with the original
func (p Polygon) Clone() Polygon {
	return Polygon{Points: append([]Point{}, p.Points...)}
}

// Drawable reports whether the polygon has enough points to be drawn
func (p Polygon) Drawable() bool {
	return len(p.Points) >= 2
}

// Bounds returns the smallest bounding box containing every point.
// The second value is false for an empty polygon.
func (p Polygon) Bounds() (BoundingBox, bool) {
	if len(p.Points) == 0 {
		return BoundingBox{}, false
	}
	b := BoundingBox{
		XMin: p.Points[0].X, YMin: p.Points[0].Y,
		XMax: p.Points[0].X, YMax: p.Points[0].Y,
	}
	for _, pt := range p.Points[1:] {
		b.XMin = math.Min(b.XMin, pt.X)
		b.YMin = math.Min(b.YMin, pt.Y)
		b.XMax = math.Max(b.XMax, pt.X)
		b.YMax = math.Max(b.YMax, pt.Y)
	}
	return b, true
}

// RectPolygon returns the four-point clockwise outline of a box
func RectPolygon(b BoundingBox) Polygon {
	return Polygon{Points: []Point{
		{X: b.XMin, Y: b.YMin},
		{X: b.XMax, Y: b.YMin},
		{X: b.XMax, Y: b.YMax},
		{X: b.XMin, Y: b.YMax},
	}}
}
