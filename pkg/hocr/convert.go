package hocr

import (
	"fmt"
	"math"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/forsete/atrdoc/pkg/atr"
	"github.com/forsete/atrdoc/pkg/lineseg"
)

// System is written to the ocr-system meta tag of generated documents
const System = "atrdoc"

// PageOptions describes the page FromLineSegments renders into
type PageOptions struct {
	Title     string  // Document title
	ImageName string  // Source image of the page
	Language  string  // Document language
	Width     float64 // Page width in pixels (0 = derive from segments)
	Height    float64 // Page height in pixels (0 = derive from segments)
}

// ToResults converts every page of doc into an ATR result. Each line becomes one text
// element with a single candidate; word confidences are averaged into its score.
// Lines without text are dropped.
func ToResults(doc *Document) []*atr.Result {
	if doc == nil {
		return nil
	}
	results := make([]*atr.Result, 0, len(doc.Pages))
	for _, page := range doc.Pages {
		r := &atr.Result{
			FileName:  page.ImageName,
			ImageName: page.ImageName,
			Label:     strings.TrimSuffix(page.ImageName, path.Ext(page.ImageName)),
			Contains:  []atr.TextElement{},
			ProcessingSteps: []atr.ProcessingStep{{
				Description: "hOCR import",
				Settings:    atr.StepSettings{ModelClass: "text-recognition", Model: doc.System},
			}},
		}
		for _, line := range page.AllLines() {
			text := line.Text()
			if text == "" {
				continue
			}
			bbox := line.BBox.ATR().Normalize()
			r.Contains = append(r.Contains, atr.TextElement{
				Segment: atr.Segment{
					BBox:       bbox,
					Polygon:    atr.RectPolygon(bbox),
					Score:      1,
					ClassLabel: "line",
				},
				TextResult: &atr.TextResult{
					Texts:  []string{text},
					Scores: []float64{line.Confidence() / 100},
				},
				Label: "line",
			})
		}
		results = append(results, r)
	}
	return results
}

// FromLineSegments renders segments as a single hOCR page. Every segment with text
// becomes one line; its effective text is split into words whose boxes divide the line
// box in proportion to their length.
func FromLineSegments(segments []lineseg.LineSegment, opts PageOptions) *Document {
	width, height := opts.Width, opts.Height
	if width <= 0 || height <= 0 {
		for _, seg := range segments {
			width = math.Max(width, seg.BBox.XMax)
			height = math.Max(height, seg.BBox.YMax)
		}
	}

	page := Page{
		ID:        "page_1",
		ImageName: opts.ImageName,
		BBox:      NewBoundingBox(0, 0, math.Ceil(width), math.Ceil(height)),
	}
	for _, seg := range segments {
		if !seg.HasText() {
			continue
		}
		lineNo := seg.OriginalIndex + 1
		page.Lines = append(page.Lines, Line{
			ID:         fmt.Sprintf("line_1_%d", lineNo),
			Class:      "ocr_line",
			BBox:       FromATR(seg.BBox),
			Words:      splitWords(seg.EffectiveText(), seg.BBox, seg.Confidence, lineNo),
			Properties: map[string]string{},
		})
	}

	return &Document{
		Title:    opts.Title,
		Language: opts.Language,
		System:   System,
		Metadata: map[string]string{},
		Pages:    []Page{page},
	}
}

func splitWords(text string, box atr.BoundingBox, confidence float64, lineNo int) []Word {
	fields := strings.Fields(text)
	total := len(fields) - 1
	for _, f := range fields {
		total += utf8.RuneCountInString(f)
	}
	if total <= 0 {
		return nil
	}

	unit := box.Width() / float64(total)
	x := box.XMin
	words := make([]Word, 0, len(fields))
	for i, f := range fields {
		w := float64(utf8.RuneCountInString(f)) * unit
		words = append(words, Word{
			ID:         fmt.Sprintf("word_1_%d_%d", lineNo, i+1),
			Text:       f,
			BBox:       NewBoundingBox(math.Round(x), box.YMin, math.Round(x+w), box.YMax),
			Confidence: confidence,
		})
		x += w + unit
	}
	return words
}
