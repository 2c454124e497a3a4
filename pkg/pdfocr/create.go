package pdfocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"codeberg.org/go-pdf/fpdf"

	"github.com/forsete/atrdoc/pkg/lineseg"
)

type imageInfo struct {
	Type          string
	Width, Height int
}

// createPDFFromImage builds a one-page PDF from the image and overlays the text layer.
// This function assumes inputs have been validated by the caller.
func createPDFFromImage(segments []lineseg.LineSegment, imageData []byte, img imageInfo, config Config) ([]byte, error) {
	w, h := float64(img.Width), float64(img.Height)
	pdf := newPDF(config)
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})

	opts := fpdf.ImageOptions{ReadDpi: false, ImageType: img.Type}
	pdf.RegisterImageOptionsReader("page", opts, bytes.NewReader(imageData))
	pdf.ImageOptions("page", 0, 0, w, h, false, opts, 0, "")

	transform := scaler(config, w, h)
	drawOCRLayer(pdf, segments, config, 1, transform)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// newPDF returns an empty document in points with fixed metadata dates
func newPDF(config Config) *fpdf.Fpdf {
	pdf := fpdf.New("P", "pt", "A4", "")
	created := config.CreationDate
	if created.IsZero() {
		created = fixedEpoch
	}
	pdf.SetCreationDate(created)
	pdf.SetModificationDate(created)
	pdf.SetCatalogSort(true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	return pdf
}

// decodeImageConfig figures out whether the data is PNG, JPEG or GIF and reads its size
func decodeImageConfig(data []byte) (imageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return imageInfo{}, fmt.Errorf("failed to decode image config: %w", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return imageInfo{}, fmt.Errorf("image has no pixels")
	}
	return imageInfo{Type: strings.ToUpper(format), Width: cfg.Width, Height: cfg.Height}, nil
}
