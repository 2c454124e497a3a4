package hocr

import (
	"strings"

	"github.com/forsete/atrdoc/pkg/atr"
)

// Document is a complete hOCR file
type Document struct {
	Title       string            // Document title
	Description string            // Document description
	Language    string            // Document language
	System      string            // Value of the ocr-system meta tag
	Metadata    map[string]string // Other ocr-* meta tags
	Pages       []Page            // Pages in document order
}

// Page is one ocr_page element
type Page struct {
	ID         string      // Element id
	Number     int         // Physical page number (ppageno)
	ImageName  string      // Source image file
	Lang       string      // Language code
	BBox       BoundingBox // Page bounds in image pixels
	Areas      []Area      // ocr_carea children
	Paragraphs []Paragraph // ocr_par elements outside any area
	Lines      []Line      // Lines outside any area or paragraph
}

// Area is one ocr_carea element
type Area struct {
	ID         string
	Lang       string
	BBox       BoundingBox
	Paragraphs []Paragraph
	Lines      []Line
}

// Paragraph is one ocr_par element
type Paragraph struct {
	ID    string
	Lang  string
	BBox  BoundingBox
	Lines []Line
}

// Line is one ocr_line element, or one of the other line-level classes
// (ocr_header, ocr_caption, ocr_textfloat)
type Line struct {
	ID         string            // Element id
	Class      string            // hOCR class
	Lang       string            // Language code
	BBox       BoundingBox       // Line bounds
	Baseline   string            // Raw baseline property
	Words      []Word            // Words in reading order
	Properties map[string]string // Other title properties (x_size, x_descenders, ...)
}

// Word is one ocrx_word element
type Word struct {
	ID         string      // Element id
	Text       string      // Recognized text
	BBox       BoundingBox // Word bounds
	Confidence float64     // x_wconf, 0-100
	Lang       string      // Language code
}

// BoundingBox is an hOCR bbox property: top-left and bottom-right corners
type BoundingBox struct {
	X1 float64
	Y1 float64
	X2 float64
	Y2 float64
}

// NewBoundingBox creates a bounding box from corner coordinates
func NewBoundingBox(x1, y1, x2, y2 float64) BoundingBox {
	return BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// ATR converts the box to ATR bounds
func (b BoundingBox) ATR() atr.BoundingBox {
	return atr.NewBoundingBox(b.X1, b.Y1, b.X2, b.Y2)
}

// FromATR converts ATR bounds to an hOCR box
func FromATR(b atr.BoundingBox) BoundingBox {
	return NewBoundingBox(b.XMin, b.YMin, b.XMax, b.YMax)
}

// Text joins the words of the line with single spaces
func (l Line) Text() string {
	parts := make([]string, 0, len(l.Words))
	for _, w := range l.Words {
		if w.Text != "" {
			parts = append(parts, w.Text)
		}
	}
	return strings.Join(parts, " ")
}

// Confidence returns the mean word confidence of the line (0-100), or 0 without words
func (l Line) Confidence() float64 {
	if len(l.Words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range l.Words {
		sum += w.Confidence
	}
	return sum / float64(len(l.Words))
}

// AllLines returns every line on the page in document order
func (p Page) AllLines() []Line {
	var lines []Line
	for _, area := range p.Areas {
		for _, par := range area.Paragraphs {
			lines = append(lines, par.Lines...)
		}
		lines = append(lines, area.Lines...)
	}
	for _, par := range p.Paragraphs {
		lines = append(lines, par.Lines...)
	}
	return append(lines, p.Lines...)
}

// Text returns the text of every page, one line per row and pages separated by a blank line
func (d *Document) Text() string {
	pages := make([]string, 0, len(d.Pages))
	for _, page := range d.Pages {
		var rows []string
		for _, line := range page.AllLines() {
			rows = append(rows, line.Text())
		}
		pages = append(pages, strings.Join(rows, "\n"))
	}
	return strings.Join(pages, "\n\n")
}
