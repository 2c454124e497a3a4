// Package gdocai uses Google Document AI as a text recognition backend.
//
// Document AI returns one Document proto per request with pages, lines and tokens whose
// geometry is given as vertices normalized to the page size. This package converts that
// response into ATR results, one per page, so that Document AI output can be indexed, edited
// and exported like the output of any other ATR service. It can also produce an hOCR document
// with word-level boxes and confidences.
//
// Key Features:
//
// - Process PDFs and page images with Google Document AI
// - Convert every detected line into an ATR text element with pixel geometry
// - Convert the response to hOCR for interoperability
// - Extract page images returned by the API
//
// Main Functions:
//
// - ProcessDocument: Sends a document to Google Document AI for processing
// - Transcribe: Processes a document and returns ATR results
// - ToResults: Converts a Document AI response to ATR results
// - ToHOCR: Converts a Document AI response to an hOCR document
//
// Usage Requirements:
//
// - Google Cloud project with Document AI API enabled
// - Document AI processor configured for OCR
// - Authentication via a credentials file or the GOOGLE_APPLICATION_CREDENTIALS environment variable
package gdocai

import (
	"context"
	"fmt"

	"github.com/forsete/atrdoc/pkg/atr"
)

// Config identifies the Document AI processor to call
type Config struct {
	ProjectID       string // Google Cloud project
	Location        string // Processor region ("us", "eu")
	ProcessorID     string // Processor identifier
	CredentialsFile string // Service account key (empty = GOOGLE_APPLICATION_CREDENTIALS)
}

// Validate reports missing settings
func (c *Config) Validate() error {
	switch {
	case c == nil:
		return fmt.Errorf("document AI config is nil")
	case c.ProjectID == "":
		return fmt.Errorf("document AI project id is required")
	case c.Location == "":
		return fmt.Errorf("document AI location is required")
	case c.ProcessorID == "":
		return fmt.Errorf("document AI processor id is required")
	}
	return nil
}

// Transcribe processes content with Document AI and returns one ATR result per page
func Transcribe(ctx context.Context, content []byte, mimeType, fileName string, cfg *Config) ([]*atr.Result, error) {
	doc, err := ProcessDocument(ctx, content, mimeType, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to process document: %w", err)
	}
	return ToResults(doc, ResultOptions{FileName: fileName, ProcessorID: cfg.ProcessorID}), nil
}
