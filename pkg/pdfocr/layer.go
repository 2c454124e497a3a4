package pdfocr

import (
	"fmt"
	"math"
	"strings"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/forsete/atrdoc/pkg/lineseg"
)

var fixedEpoch = time.Unix(0, 0).UTC()

// drawOCRLayer draws the visible segments onto a layer of the current page.
// The pageNum parameter is used to create unique layer names for each page.
func drawOCRLayer(
	pdf *fpdf.Fpdf,
	segments []lineseg.LineSegment,
	config Config,
	pageNum int,
	transform func(x, y float64) (float64, float64),
) {
	font := config.Font
	if font.Name == "" {
		font = DefaultFont
	}

	layer := pdf.AddLayer(fmt.Sprintf("%s (Page %d)", config.LayerName, pageNum), true)
	pdf.BeginLayer(layer)
	pdf.SetFont(font.Name, font.Style, font.Size)

	if config.Debug {
		pdf.SetTextColor(255, 0, 0) // highlight text in red
		pdf.SetDrawColor(255, 0, 0)
	} else {
		pdf.SetAlpha(0.0, "Normal") // hide text from normal view
	}

	encodingErrors, lineCount := 0, 0
	for _, seg := range segments {
		if !seg.HasText() {
			continue
		}
		if !drawLine(pdf, seg, transform, font, config.Debug) {
			encodingErrors++
		}
		lineCount++
	}

	if !config.Debug {
		pdf.SetAlpha(1.0, "Normal")
	}
	pdf.EndLayer()

	if encodingErrors > 0 {
		config.warnf("character encoding issues in %d of %d lines", encodingErrors, lineCount)
	}
}

// drawLine renders the effective text of one segment stretched to the width of its box.
// It reports whether the text could be encoded without replacements.
func drawLine(pdf *fpdf.Fpdf, seg lineseg.LineSegment, transform func(x, y float64) (float64, float64),
	font FontConfig, debug bool) bool {

	x, y := transform(seg.BBox.XMin, seg.BBox.YMin)
	x2, y2 := transform(seg.BBox.XMax, seg.BBox.YMax)
	lineWidth, lineHeight := x2-x, y2-y

	latin1, ok := encodeLatin1(seg.EffectiveText())

	pdf.SetFontSize(font.Size)
	if strWidth := pdf.GetStringWidth(latin1); strWidth > 0 && lineWidth > 0 {
		size := font.Size * lineWidth / strWidth
		if lineHeight > 0 {
			size = math.Min(size, lineHeight)
		}
		pdf.SetFontSize(size)
	}

	fontSize, _ := pdf.GetFontSize()
	pdf.Text(x, y+fontSize*font.AscentRatio, latin1)
	pdf.SetFontSize(font.Size)

	if debug {
		pdf.Rect(x, y, lineWidth, lineHeight, "D")
	}
	return ok
}

// encodeLatin1 converts s to ISO-8859-1 for the core fonts. Runes outside Latin-1 become '?'.
func encodeLatin1(s string) (string, bool) {
	if out, err := charmap.ISO8859_1.NewEncoder().String(s); err == nil {
		return out, true
	}
	var b strings.Builder
	for _, r := range s {
		c, ok := charmap.ISO8859_1.EncodeRune(r)
		if !ok {
			c = '?'
		}
		b.WriteByte(c)
	}
	return b.String(), false
}
