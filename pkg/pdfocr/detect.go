package pdfocr

import (
	"fmt"
	"regexp"
	"strings"
)

// pdfString matches a literal PDF string, escaped parentheses included
const pdfString = `\(((?:\\.|[^\\)])*)\)`

var ocgPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/Type\s*/OCG\s*/Name\s*` + pdfString),
	regexp.MustCompile(`/OCG\s*<<[^>]*?/Name\s*` + pdfString),
	regexp.MustCompile(`/Name\s*` + pdfString + `[\s\S]{1,50}/Type\s*/OCG`),
	regexp.MustCompile(`/Title\s*` + pdfString),
}

// detectPDFLayers attempts to find layer names in the raw PDF data
func detectPDFLayers(pdfData []byte) ([]string, error) {
	if len(pdfData) == 0 {
		return nil, fmt.Errorf("empty PDF data")
	}

	var layers []string
	for _, pattern := range ocgPatterns {
		for _, match := range pattern.FindAllSubmatch(pdfData, -1) {
			layers = append(layers, unescapePDFString(string(match[1])))
		}
	}

	// Layer names written by fpdf are UTF-16 with a BOM
	for i, layer := range layers {
		if strings.HasPrefix(layer, "\xfe\xff") {
			if decoded, err := decodeUTF16BE([]byte(layer)); err == nil {
				layers[i] = decoded
			}
		}
	}

	unique := make([]string, 0, len(layers))
	seen := make(map[string]bool)
	for _, l := range layers {
		if !seen[l] {
			seen[l] = true
			unique = append(unique, l)
		}
	}
	return unique, nil
}

// LayerCheckResult contains the results of checking for text layers
type LayerCheckResult struct {
	Layers       []string // All detected layers
	HasOCRLayer  bool     // True if the named text layer exists
	OCRLayerName string   // Name of the detected text layer (if any)
	Warnings     []string // Any warnings about potential text layers
}

// CheckExistingOCRLayers checks for an existing layer named ocrLayerName, with or without a
// page suffix
func CheckExistingOCRLayers(pdfData []byte, ocrLayerName string) (LayerCheckResult, error) {
	result := LayerCheckResult{}

	layers, err := detectPDFLayers(pdfData)
	if err != nil {
		return result, fmt.Errorf("cannot analyze layers: %w", err)
	}
	result.Layers = layers

	pageLayerPattern := regexp.MustCompile(fmt.Sprintf(`^%s\s*\(Page\s*\d+\)$`, regexp.QuoteMeta(ocrLayerName)))

	for _, layer := range layers {
		if layer == ocrLayerName || pageLayerPattern.MatchString(layer) {
			result.HasOCRLayer = true
			result.OCRLayerName = layer
			break
		}

		lower := strings.ToLower(layer)
		if strings.Contains(lower, "ocr") || strings.Contains(lower, "text") {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Existing layer detected that might contain text: %s", layer))
		}
	}

	return result, nil
}

// OCRDetectionResult contains text layer detection information
type OCRDetectionResult struct {
	HasOCR      bool // True if any text layer is detected by any method
	HasLayerOCR bool // True if the configured text layer is detected

	LayerInfo LayerCheckResult // Details from layer detection

	Warnings []string // Warnings from any detection method
}

// DetectOCR reports whether pdfData already carries the text layer named in config
func DetectOCR(pdfData []byte, config Config) (OCRDetectionResult, error) {
	result := OCRDetectionResult{}

	layerResult, err := CheckExistingOCRLayers(pdfData, config.LayerName)
	if err != nil {
		return result, err
	}
	result.LayerInfo = layerResult
	result.HasLayerOCR = layerResult.HasOCRLayer
	result.Warnings = append(result.Warnings, layerResult.Warnings...)

	// Layer detection is the only method so far
	result.HasOCR = result.HasLayerOCR

	return result, nil
}
