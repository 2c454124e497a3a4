package export

import (
	"codeberg.org/go-pdf/fpdf"

	"github.com/forsete/atrdoc/pkg/lineseg"
)

// PlainPDFConfig controls the flowing PDF
type PlainPDFConfig struct {
	PageSize     string     // Standard page size name ("Letter", "A4", ...)
	Margin       float64    // Page margin in points
	Font         FontConfig // Text font
	FontSize     float64    // Font size in points
	LineHeight   float64    // Height of one wrapped line
	ParagraphGap float64    // Extra space after each segment
}

// DefaultPlainPDFConfig returns the flowing PDF defaults
func DefaultPlainPDFConfig() PlainPDFConfig {
	return PlainPDFConfig{
		PageSize:     "Letter",
		Margin:       50,
		Font:         DefaultFont,
		FontSize:     12,
		LineHeight:   14,
		ParagraphGap: 10,
	}
}

// PlainPDF writes the visible segments in reading order as flowing text. Long lines wrap at
// the page width and new pages are added as needed.
func PlainPDF(segments []lineseg.LineSegment, opts Options) (*File, error) {
	cfg := opts.PlainPDF
	if cfg == (PlainPDFConfig{}) {
		cfg = DefaultPlainPDFConfig()
	}
	pdf := newDocument(cfg.PageSize, fpdf.SizeType{}, opts.CreationDate)
	pdf.SetMargins(cfg.Margin, cfg.Margin, cfg.Margin)
	pdf.SetAutoPageBreak(true, cfg.Margin)
	pdf.AddPage()
	pdf.SetFont(cfg.Font.Name, cfg.Font.Style, cfg.FontSize)
	pdf.SetTextColor(0, 0, 0)

	missing := 0
	for _, seg := range readingOrder(segments) {
		text, n := pdfText(seg.EffectiveText())
		missing += n
		pdf.MultiCell(0, cfg.LineHeight, text, "", "L", false)
		pdf.Ln(cfg.ParagraphGap)
	}
	if missing > 0 {
		opts.warnf("%d characters cannot be represented in the PDF font and were replaced", missing)
	}
	return output(pdf)
}
