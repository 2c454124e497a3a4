package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
)

// FontConfig selects one of the core PDF fonts
type FontConfig struct {
	Name  string // Font family (e.g. "Helvetica")
	Style string // Font style ("", "B", "I", "BI")
}

// DefaultFont is the font used by both PDF renderers
var DefaultFont = FontConfig{Name: "Helvetica", Style: ""}

// newDocument starts a portrait PDF in points with a reproducible creation date.
// size takes precedence over sizeName when set.
func newDocument(sizeName string, size fpdf.SizeType, created time.Time) *fpdf.Fpdf {
	if created.IsZero() {
		created = time.Unix(0, 0).UTC()
	}
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		SizeStr:        sizeName,
		Size:           size,
	})
	pdf.SetCreationDate(created)
	pdf.SetModificationDate(created)
	pdf.SetCatalogSort(true)
	return pdf
}

func output(pdf *fpdf.Fpdf) (*File, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return &File{
		Data:      buf.Bytes(),
		MimeType:  "application/pdf",
		Extension: "pdf",
	}, nil
}

// pdfText converts text to the Windows-1252 encoding used by the core fonts.
// Runes outside the code page become '?'; the second result counts them.
func pdfText(s string) (string, int) {
	var b strings.Builder
	missing := 0
	for _, r := range s {
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('?')
		missing++
	}
	return b.String(), missing
}
