// Package hocr reads and writes hOCR, the HTML-based interchange format for OCR output.
//
// The object model follows the hOCR hierarchy: Document → Pages → Areas → Paragraphs →
// Lines → Words. Words that appear outside an ocr_line are grouped into one synthetic line
// per container so every word is reachable through Page.AllLines.
//
// hOCR is a second input and output format next to ATR JSON. ToResults turns every page
// into an atr.Result (one text element per line) and FromLineSegments renders edited line
// segments back into an hOCR page.
//
// Main Functions:
//
// - Parse: Parses hOCR HTML into the object model
// - Generate: Renders the object model as an hOCR document
// - ToResults / FromLineSegments: Convert between hOCR and ATR data
package hocr
