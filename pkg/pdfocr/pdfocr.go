// Package pdfocr turns transcribed line segments into searchable PDFs.
//
// The text of every visible line is drawn on an optional content layer, scaled to the width
// of the line's bounding box and made invisible, on top of the scanned page. The result looks
// like the scan but its text can be searched, selected and copied, and compatible readers can
// toggle the layer to show just the transcription.
//
// Key Features:
//
// - Assemble a new one-page PDF from a page image and its line segments
// - Overlay line segments on a page of an existing PDF
// - Detect existing text layers to prevent duplication
//
// Main Functions:
//
// - AssembleWithOCR: Creates a PDF from an image with a text layer
// - ApplyOCR: Adds a text layer to a page of an existing PDF
// - DetectOCR: Reports text layers already present in a PDF
package pdfocr

import (
	"fmt"

	"github.com/forsete/atrdoc/pkg/lineseg"
)

// AssembleWithOCR creates a one-page PDF showing imageData with the segments drawn over it.
// The page is sized to the image with one point per pixel, which is the coordinate space of
// the segments.
func AssembleWithOCR(segments []lineseg.LineSegment, imageData []byte, config Config) ([]byte, error) {
	if len(imageData) == 0 {
		return nil, fmt.Errorf("no image data provided")
	}
	img, err := decodeImageConfig(imageData)
	if err != nil {
		return nil, fmt.Errorf("image has invalid format: %w", err)
	}
	if config.Debug {
		fmt.Fprintf(getLogger(config), "Image is of type %s, %dx%d\n", img.Type, img.Width, img.Height)
	}

	finalPDF, err := createPDFFromImage(segments, imageData, img, config)
	if err != nil {
		return nil, fmt.Errorf("error creating PDF from image: %w", err)
	}
	return finalPDF, nil
}

// ApplyOCR overlays the segments on page config.Page of an existing PDF and returns a PDF
// holding that page. A PDF that already carries a text layer is refused unless config.Force
// is set.
func ApplyOCR(inputPDFData []byte, segments []lineseg.LineSegment, config Config) ([]byte, error) {
	if len(inputPDFData) == 0 {
		return nil, fmt.Errorf("input PDF data is empty")
	}
	if config.Page < 1 {
		return nil, fmt.Errorf("page must be at least 1, got %d", config.Page)
	}
	logger := getLogger(config)

	if config.DumpPDF {
		dumpPDFStructure(inputPDFData, 2000, logger)
	}

	detection, err := DetectOCR(inputPDFData, config)
	if err != nil {
		return nil, fmt.Errorf("layer detection failed: %w", err)
	}
	if layers := detection.LayerInfo.Layers; len(layers) > 0 && config.Debug {
		fmt.Fprintln(logger, "Existing layers detected in PDF:")
		for i, layer := range layers {
			fmt.Fprintf(logger, "  %d. %q\n", i+1, layer)
		}
	}
	for _, warning := range detection.Warnings {
		config.warnf("%s", warning)
	}

	if detection.HasLayerOCR && !config.Force {
		return nil, fmt.Errorf("file already has a text layer (%q), use force to reapply",
			detection.LayerInfo.OCRLayerName)
	} else if detection.HasLayerOCR {
		config.warnf("file already has a text layer; reapplying will duplicate the text")
	}

	finalPDF, err := modifyExistingPDF(inputPDFData, segments, config)
	if err != nil {
		return nil, fmt.Errorf("error modifying existing PDF: %w", err)
	}
	return finalPDF, nil
}
