package export

import (
	"math"

	"github.com/forsete/atrdoc/pkg/atr"
)

// Strategy records how a box was placed by Layout
type Strategy int

const (
	PlacedDirect   Strategy = iota // Original position, no significant overlap
	PlacedOffset                   // Moved by one of the fixed nudges
	PlacedSpiral                   // Moved by the sector search
	PlacedFallback                 // Original position with a reduced font, overlap accepted
)

func (s Strategy) String() string {
	switch s {
	case PlacedDirect:
		return "direct"
	case PlacedOffset:
		return "offset"
	case PlacedSpiral:
		return "spiral"
	case PlacedFallback:
		return "fallback"
	}
	return "unknown"
}

// Offset is a displacement in points
type Offset struct {
	DX float64
	DY float64
}

// LayoutConfig controls overlap avoidance
type LayoutConfig struct {
	PageWidth        float64  // Page bounds for moved boxes
	PageHeight       float64  // Page bounds for moved boxes
	OverlapThreshold float64  // Defer a box when overlap exceeds this share of the smaller box
	Offsets          []Offset // Nudges tried in order during the second pass
	SpiralStep       float64  // Distance unit of the sector search
	SpiralRings      int      // Number of step multiples tried per sector
	FallbackScale    float64  // Font scale for boxes that could not be moved
}

// DefaultOffsets are tried in order: small vertical nudges, horizontal, diagonal, then
// larger steps up to 30pt
var DefaultOffsets = []Offset{
	{0, 5}, {0, -5}, {0, 10}, {0, -10},
	{5, 0}, {-5, 0}, {10, 0}, {-10, 0},
	{5, 5}, {-5, 5}, {5, -5}, {-5, -5},
	{10, 10}, {-10, 10}, {10, -10}, {-10, -10},
	{0, 15}, {0, -15}, {0, 20}, {0, -20},
	{15, 0}, {-15, 0}, {20, 0}, {-20, 0},
	{0, 30}, {0, -30}, {30, 0}, {-30, 0},
}

// DefaultLayoutConfig returns the layout settings used by the geometry PDF. Page bounds
// are filled in by the renderer.
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		OverlapThreshold: 0.15,
		Offsets:          DefaultOffsets,
		SpiralStep:       50,
		SpiralRings:      10,
		FallbackScale:    0.7,
	}
}

// Placement is where Layout put one box
type Placement struct {
	Box       atr.BoundingBox // Final position
	DX        float64         // Horizontal displacement from the original box
	DY        float64         // Vertical displacement from the original box
	FontScale float64         // Multiplier for the fitted font size
	Strategy  Strategy
}

// Layout positions boxes so that their text does not pile up. It returns one placement per
// input box, in input order; no box is ever dropped.
//
// First pass: a box is placed at its original position unless it overlaps an already placed
// box by more than OverlapThreshold of the smaller box's area, in which case it is deferred.
// Second pass: each deferred box takes the first offset (then the first sector search
// position) that overlaps no placed box and stays on the page. A box with no such position
// stays where it was with its font scaled by FallbackScale.
func Layout(boxes []atr.BoundingBox, cfg LayoutConfig) []Placement {
	placements := make([]Placement, len(boxes))
	placed := make([]atr.BoundingBox, 0, len(boxes))
	var deferred []int

	for i, box := range boxes {
		if overlapsAny(box, placed, cfg.OverlapThreshold) {
			deferred = append(deferred, i)
			continue
		}
		placements[i] = Placement{Box: box, FontScale: 1, Strategy: PlacedDirect}
		placed = append(placed, box)
	}

	for _, i := range deferred {
		p := cfg.relocate(boxes[i], placed)
		placements[i] = p
		placed = append(placed, p.Box)
	}
	return placements
}

func (cfg LayoutConfig) relocate(box atr.BoundingBox, placed []atr.BoundingBox) Placement {
	for _, off := range cfg.Offsets {
		if p, ok := cfg.try(box, placed, off, PlacedOffset); ok {
			return p
		}
	}

	for ring := 1; ring <= cfg.SpiralRings; ring++ {
		dist := float64(ring) * cfg.SpiralStep
		for _, dir := range sectors {
			if p, ok := cfg.try(box, placed, Offset{dir.DX * dist, dir.DY * dist}, PlacedSpiral); ok {
				return p
			}
		}
	}

	return Placement{Box: box, FontScale: cfg.FallbackScale, Strategy: PlacedFallback}
}

func (cfg LayoutConfig) try(box atr.BoundingBox, placed []atr.BoundingBox, off Offset, s Strategy) (Placement, bool) {
	moved := shift(box, off)
	if !cfg.onPage(moved) || !isClear(moved, placed) {
		return Placement{}, false
	}
	return Placement{Box: moved, DX: off.DX, DY: off.DY, FontScale: 1, Strategy: s}, true
}

func (cfg LayoutConfig) onPage(b atr.BoundingBox) bool {
	return b.XMin >= 0 && b.YMin >= 0 && b.XMax <= cfg.PageWidth && b.YMax <= cfg.PageHeight
}

// sectors are the eight directions around the box, searched ring by ring
var sectors = []Offset{
	{0, 1}, {0, -1}, {1, 0}, {-1, 0},
	{1, 1}, {-1, 1}, {1, -1}, {-1, -1},
}

// OverlapArea returns the area of the intersection of a and b
func OverlapArea(a, b atr.BoundingBox) float64 {
	w := math.Min(a.XMax, b.XMax) - math.Max(a.XMin, b.XMin)
	h := math.Min(a.YMax, b.YMax) - math.Max(a.YMin, b.YMin)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

func overlapsAny(box atr.BoundingBox, placed []atr.BoundingBox, threshold float64) bool {
	for _, p := range placed {
		smaller := math.Min(box.Area(), p.Area())
		if smaller > 0 && OverlapArea(box, p) > threshold*smaller {
			return true
		}
	}
	return false
}

func isClear(box atr.BoundingBox, placed []atr.BoundingBox) bool {
	for _, p := range placed {
		if OverlapArea(box, p) > 0 {
			return false
		}
	}
	return true
}

func shift(b atr.BoundingBox, off Offset) atr.BoundingBox {
	return atr.NewBoundingBox(b.XMin+off.DX, b.YMin+off.DY, b.XMax+off.DX, b.YMax+off.DY)
}
