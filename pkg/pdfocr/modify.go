package pdfocr

import (
	"bytes"
	"fmt"
	"io"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"

	"github.com/forsete/atrdoc/pkg/lineseg"
)

// modifyExistingPDF imports one page from an existing PDF and overlays the text layer
func modifyExistingPDF(inputPDFData []byte, segments []lineseg.LineSegment, config Config) (out []byte, err error) {
	// gofpdi panics on input it cannot parse
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to import page %d: %v", config.Page, r)
		}
	}()

	pdf := newPDF(config)
	importer := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(inputPDFData))

	tpl := importer.ImportPageFromStream(pdf, &rs, config.Page, "/MediaBox")
	box, ok := importer.GetPageSizes()[config.Page]["/MediaBox"]
	if !ok || box["w"] <= 0 || box["h"] <= 0 {
		return nil, fmt.Errorf("page %d not found in input PDF", config.Page)
	}
	w, h := box["w"], box["h"]

	pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
	importer.UseImportedTemplate(pdf, tpl, 0, 0, w, 0)

	drawOCRLayer(pdf, segments, config, config.Page, scaler(config, w, h))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}
