package export

import (
	"math"

	"codeberg.org/go-pdf/fpdf"

	"github.com/forsete/atrdoc/pkg/atr"
	"github.com/forsete/atrdoc/pkg/lineseg"
)

// EditedFootnote is printed at the bottom of geometry PDFs that contain edited lines
const EditedFootnote = "* Some text has been edited from the original"

// Height of the band kept free below the segments for the footnote, and the distance of
// the footnote baseline from the bottom edge of the page
const (
	footnoteBand     = 20
	footnoteBaseline = 8
)

// PDFConfig controls the geometry-preserving PDF
type PDFConfig struct {
	PageWidth     float64      // Page width in points (0 = fit the segments)
	PageHeight    float64      // Page height in points (0 = fit the segments)
	Margin        float64      // Space added around the segments when fitting the page
	Debug         bool         // Draw bounding boxes and polygons
	Font          FontConfig   // Text font
	LowConfidence float64      // Lines below this confidence (0-100) are drawn in gray
	Footnote      string       // Printed when any line was edited ("" = none)
	Layout        LayoutConfig // Overlap avoidance
	Fit           FitConfig    // Text sizing
}

// DefaultPDFConfig returns the geometry PDF defaults
func DefaultPDFConfig() PDFConfig {
	return PDFConfig{
		Margin:        20,
		Font:          DefaultFont,
		LowConfidence: 70,
		Footnote:      EditedFootnote,
		Layout:        DefaultLayoutConfig(),
		Fit:           DefaultFitConfig(),
	}
}

func (cfg PDFConfig) withDefaults() PDFConfig {
	if cfg.Font.Name == "" {
		cfg.Font = DefaultFont
	}
	if cfg.Fit == (FitConfig{}) {
		cfg.Fit = DefaultFitConfig()
	}
	if len(cfg.Layout.Offsets) == 0 && cfg.Layout.SpiralRings == 0 {
		cfg.Layout = DefaultLayoutConfig()
	}
	return cfg
}

// PageSize returns the page size used for segments: the configured size, or the extent of
// the segments plus the margin, applied alike to the right and bottom edges. When the
// footnote will be printed, a band below the margin is reserved for it. An empty document
// gets a Letter page.
func (cfg PDFConfig) PageSize(segments []lineseg.LineSegment) (float64, float64) {
	if cfg.PageWidth > 0 && cfg.PageHeight > 0 {
		return cfg.PageWidth, cfg.PageHeight
	}
	if len(segments) == 0 {
		return 612, 792
	}
	var w, h float64
	for _, seg := range segments {
		w = math.Max(w, seg.BBox.XMax)
		h = math.Max(h, seg.BBox.YMax)
	}
	h += cfg.Margin
	if cfg.footnote(segments) {
		h += footnoteBand
	}
	return math.Ceil(w + cfg.Margin), math.Ceil(h)
}

// footnote reports whether the edit footnote is printed for segments
func (cfg PDFConfig) footnote(segments []lineseg.LineSegment) bool {
	return cfg.Footnote != "" && anyEdited(segments)
}

// GeometryPDF draws the effective text of every visible segment inside its original
// bounding box on a single page
func GeometryPDF(segments []lineseg.LineSegment, opts Options) (*File, error) {
	cfg := opts.PDF.withDefaults()
	ordered := readingOrder(segments)
	width, height := cfg.PageSize(ordered)

	pdf := newDocument("", fpdf.SizeType{Wd: width, Ht: height}, opts.CreationDate)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pdf.SetFont(cfg.Font.Name, cfg.Font.Style, 12)

	if cfg.Debug {
		drawDebug(pdf, ordered)
	}

	measure := func(text string, size float64) float64 {
		encoded, _ := pdfText(text)
		pdf.SetFontSize(size)
		return pdf.GetStringWidth(encoded)
	}

	boxes := make([]atr.BoundingBox, len(ordered))
	for i, seg := range ordered {
		boxes[i] = seg.BBox
	}
	layout := cfg.Layout
	layout.PageWidth, layout.PageHeight = width, height
	if cfg.footnote(segments) {
		layout.PageHeight = math.Max(height-footnoteBand, 0)
	}
	placements := Layout(boxes, layout)

	missing := 0
	for i, seg := range ordered {
		p := placements[i]
		fit := FitText(seg.EffectiveText(), p.Box, measure, cfg.Fit)
		size := fit.Size * p.FontScale

		if seg.Confidence < cfg.LowConfidence {
			gray := int(math.Round(40 + seg.Confidence))
			pdf.SetTextColor(gray, gray, gray)
		} else {
			pdf.SetTextColor(0, 0, 0)
		}
		pdf.SetFontSize(size)
		missing += drawLines(pdf, fit.Lines, p.Box, size, cfg.Fit.LineSpacing)

		if fit.Truncated {
			opts.warnf("line %d does not fit its box and was truncated", seg.OriginalIndex)
		}
		if p.Strategy == PlacedFallback {
			opts.warnf("line %d overlaps other lines and was drawn with a smaller font", seg.OriginalIndex)
		}
	}

	if cfg.footnote(segments) {
		text, _ := pdfText(cfg.Footnote)
		pdf.SetFontSize(8)
		pdf.SetTextColor(100, 100, 100)
		pdf.Text(footnoteBand, height-footnoteBaseline, text)
	}
	if missing > 0 {
		opts.warnf("%d characters cannot be represented in the PDF font and were replaced", missing)
	}

	return output(pdf)
}

// drawLines centers lines horizontally in box. A single line sits on a baseline at 60% of
// the box height; several lines are centered vertically as a block.
func drawLines(pdf *fpdf.Fpdf, lines []string, box atr.BoundingBox, size, spacing float64) int {
	missing := 0
	lineHeight := size * spacing
	baseline := box.YMin + box.Height()*0.6
	if len(lines) > 1 {
		baseline = box.YMin + (box.Height()-float64(len(lines))*lineHeight)/2 + size*0.8
	}
	for i, line := range lines {
		text, n := pdfText(line)
		missing += n
		x := box.XMin + (box.Width()-pdf.GetStringWidth(text))/2
		pdf.Text(x, baseline+float64(i)*lineHeight, text)
	}
	return missing
}

func drawDebug(pdf *fpdf.Fpdf, segments []lineseg.LineSegment) {
	for _, seg := range segments {
		b := seg.BBox
		pdf.SetDrawColor(200, 0, 0)
		pdf.SetLineWidth(0.5)
		pdf.Rect(b.XMin, b.YMin, b.Width(), b.Height(), "D")

		if seg.Polygon.Drawable() {
			points := make([]fpdf.PointType, len(seg.Polygon.Points))
			for i, pt := range seg.Polygon.Points {
				points[i] = fpdf.PointType{X: pt.X, Y: pt.Y}
			}
			pdf.SetDrawColor(0, 100, 200)
			pdf.SetLineWidth(0.3)
			if len(points) == 2 {
				pdf.Line(points[0].X, points[0].Y, points[1].X, points[1].Y)
			} else {
				pdf.Polygon(points, "D")
			}
		}

		if seg.Edited {
			pdf.SetFontSize(8)
			pdf.SetTextColor(200, 0, 0)
			pdf.Text(b.XMin-8, b.YMin+b.Height()/2, "*")
		}
	}
}

func anyEdited(segments []lineseg.LineSegment) bool {
	for _, seg := range segments {
		if seg.Edited {
			return true
		}
	}
	return false
}
