package export

import (
	"math"
	"strings"

	"github.com/forsete/atrdoc/pkg/atr"
)

// Measure returns the rendered width of text at the given font size
type Measure func(text string, size float64) float64

// FitConfig controls how text is sized to its bounding box
type FitConfig struct {
	HeightRatio float64 // Initial font size as a share of box height
	MinSize     float64 // Lower bound of the initial font size
	WidthRatio  float64 // Share of box width text may use
	MinShrink   float64 // Lower bound when shrinking to fit the width
	LineSpacing float64 // Line height as a multiple of font size
	Ellipsis    string  // Appended to truncated text
}

// DefaultFitConfig returns the sizing used by the geometry PDF
func DefaultFitConfig() FitConfig {
	return FitConfig{
		HeightRatio: 0.65,
		MinSize:     6,
		WidthRatio:  0.9,
		MinShrink:   5,
		LineSpacing: 1.2,
		Ellipsis:    "...",
	}
}

// Fit is text prepared for drawing inside a box
type Fit struct {
	Lines     []string
	Size      float64
	Truncated bool
}

// FitText sizes text to box. The font starts at HeightRatio of the box height and shrinks
// (not below MinShrink) until the text fits WidthRatio of the width. Text that still does not
// fit is word-wrapped over at most floor(height / (size*LineSpacing)) lines; whatever remains
// is cut character by character and ends in Ellipsis.
func FitText(text string, box atr.BoundingBox, measure Measure, cfg FitConfig) Fit {
	size := math.Max(math.Floor(box.Height()*cfg.HeightRatio), cfg.MinSize)
	avail := box.Width() * cfg.WidthRatio

	if w := measure(text, size); w > avail && w > 0 {
		size = math.Max(size*avail/w, cfg.MinShrink)
	}
	if measure(text, size) <= avail {
		return Fit{Lines: []string{text}, Size: size}
	}

	maxLines := int(math.Floor(box.Height() / (size * cfg.LineSpacing)))
	if maxLines < 1 {
		maxLines = 1
	}

	fit := Fit{Size: size}
	lines := wrap(text, avail, size, measure)
	if len(lines) > maxLines {
		last := strings.Join(lines[maxLines-1:], " ")
		lines = append(lines[:maxLines-1], last)
	}
	for i, line := range lines {
		if measure(line, size) > avail {
			lines[i] = truncate(line, avail, size, measure, cfg.Ellipsis)
			fit.Truncated = true
		}
	}
	fit.Lines = lines
	return fit
}

// wrap breaks text greedily at spaces so that each line fits avail where possible.
// A single word wider than avail occupies a line of its own.
func wrap(text string, avail, size float64, measure Measure) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{text}
	}
	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		candidate := current + " " + word
		if measure(candidate, size) <= avail {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = word
	}
	return append(lines, current)
}

func truncate(line string, avail, size float64, measure Measure, ellipsis string) string {
	runes := []rune(line)
	for len(runes) > 0 && measure(string(runes)+ellipsis, size) > avail {
		runes = runes[:len(runes)-1]
	}
	return strings.TrimRight(string(runes), " ") + ellipsis
}
