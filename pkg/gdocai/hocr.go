package gdocai

import (
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/forsete/atrdoc/pkg/hocr"
)

// ToHOCR converts a Document AI response to an hOCR document. Lines are grouped into the
// paragraphs that contain them; lines outside any paragraph sit directly on the page.
func ToHOCR(doc *documentaipb.Document) *hocr.Document {
	out := &hocr.Document{
		Title:    "Document OCR",
		Language: getDocumentLanguage(doc),
		System:   "Document AI OCR",
		Metadata: map[string]string{
			"ocr-capabilities": "ocr_page ocr_par ocr_line ocrx_word",
		},
	}
	if doc == nil {
		return out
	}

	text := newAnchoredText(doc)
	for i, page := range doc.Pages {
		pageNum := int(page.PageNumber)
		if pageNum == 0 {
			pageNum = i + 1
		}
		out.Pages = append(out.Pages, convertPage(page, text, pageNum))
	}
	out.Metadata["ocr-number-of-pages"] = fmt.Sprint(len(out.Pages))
	if langs := documentLanguages(out); langs != "" {
		out.Metadata["ocr-langs"] = langs
	}
	return out
}

func convertPage(page *documentaipb.Document_Page, text anchoredText, pageNum int) hocr.Page {
	ocrPage := hocr.Page{
		ID:     fmt.Sprintf("page_%d", pageNum),
		Number: pageNum,
	}
	if dim := page.GetDimension(); dim != nil {
		ocrPage.BBox = hocr.NewBoundingBox(0, 0, float64(dim.Width), float64(dim.Height))
	}
	if len(page.DetectedLanguages) > 0 {
		ocrPage.Lang = page.DetectedLanguages[0].LanguageCode
	}

	// Track which lines are assigned to avoid duplication
	assigned := make(map[int]bool)
	for pidx, para := range page.Paragraphs {
		ocrPar := hocr.Paragraph{
			ID:   fmt.Sprintf("par_%d_%d", pageNum, pidx),
			BBox: layoutBox(para.Layout, page.Dimension),
		}
		for lidx, line := range page.Lines {
			if assigned[lidx] || !isElementInParent(line.Layout, para.Layout) {
				continue
			}
			assigned[lidx] = true
			ocrPar.Lines = append(ocrPar.Lines, convertLine(line, page, text, pageNum, lidx))
		}
		if len(ocrPar.Lines) > 0 {
			ocrPage.Paragraphs = append(ocrPage.Paragraphs, ocrPar)
		}
	}
	for lidx, line := range page.Lines {
		if !assigned[lidx] {
			ocrPage.Lines = append(ocrPage.Lines, convertLine(line, page, text, pageNum, lidx))
		}
	}
	return ocrPage
}

func convertLine(line *documentaipb.Document_Page_Line, page *documentaipb.Document_Page,
	text anchoredText, pageNum, lineIdx int) hocr.Line {

	ocrLine := hocr.Line{
		ID:    fmt.Sprintf("line_%d_%d", pageNum, lineIdx),
		Class: "ocr_line",
		BBox:  layoutBox(line.Layout, page.Dimension),
	}
	if len(line.DetectedLanguages) > 0 {
		ocrLine.Lang = line.DetectedLanguages[0].LanguageCode
	}

	for tidx, token := range page.Tokens {
		if !isElementInParent(token.Layout, line.Layout) {
			continue
		}
		wordText := text.of(token.Layout)
		if wordText == "" {
			continue
		}
		word := hocr.Word{
			ID:         fmt.Sprintf("word_%d_%d_%d", pageNum, lineIdx, tidx),
			Text:       wordText,
			BBox:       layoutBox(token.Layout, page.Dimension),
			Confidence: float64(token.GetLayout().GetConfidence() * 100),
		}
		if len(token.DetectedLanguages) > 0 {
			word.Lang = token.DetectedLanguages[0].LanguageCode
		}
		ocrLine.Words = append(ocrLine.Words, word)
	}
	return ocrLine
}

// layoutBox converts a layout's bounding polygon to an hOCR box in page pixels
func layoutBox(layout *documentaipb.Document_Page_Layout, dim *documentaipb.Document_Page_Dimension) hocr.BoundingBox {
	bbox, ok := layoutPolygon(layout, dim).Bounds()
	if !ok {
		return hocr.BoundingBox{}
	}
	return hocr.FromATR(bbox)
}

// getDocumentLanguage finds the most common language in the document
// by counting language occurrences across pages and tokens
func getDocumentLanguage(doc *documentaipb.Document) string {
	langCount := make(map[string]int)
	for _, page := range doc.GetPages() {
		for _, lang := range page.DetectedLanguages {
			langCount[lang.LanguageCode]++
		}
		for _, token := range page.Tokens {
			for _, lang := range token.DetectedLanguages {
				langCount[lang.LanguageCode]++
			}
		}
	}

	var mostCommonLang string
	var highestCount int
	for lang, count := range langCount {
		if count > highestCount || (count == highestCount && lang < mostCommonLang) {
			highestCount = count
			mostCommonLang = lang
		}
	}
	return mostCommonLang
}

// documentLanguages lists every language used on pages, lines and words
func documentLanguages(doc *hocr.Document) string {
	seen := map[string]bool{doc.Language: true}
	for _, page := range doc.Pages {
		seen[page.Lang] = true
		for _, line := range page.AllLines() {
			seen[line.Lang] = true
			for _, word := range line.Words {
				seen[word.Lang] = true
			}
		}
	}
	var langs []string
	for lang := range seen {
		if lang != "" {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	return strings.Join(langs, ", ")
}

// isElementInParent reports whether the element's text lies within the parent's text
func isElementInParent(elementLayout, parentLayout *documentaipb.Document_Page_Layout) bool {
	es := elementLayout.GetTextAnchor().GetTextSegments()
	ps := parentLayout.GetTextAnchor().GetTextSegments()
	if len(es) == 0 || len(ps) == 0 {
		return false
	}
	return es[0].StartIndex >= ps[0].StartIndex && es[0].EndIndex <= ps[0].EndIndex
}
