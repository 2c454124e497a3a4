package gdocai

import (
	"fmt"
	"math"
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/forsete/atrdoc/pkg/atr"
)

// ResultOptions names the results built by ToResults
type ResultOptions struct {
	FileName    string // Source file name
	ProcessorID string // Recorded in the processing steps
}

// ToResults converts a Document AI response into one ATR result per page. Every line with
// text becomes a text element with a single candidate; its geometry is scaled from
// normalized vertices to page pixels.
func ToResults(doc *documentaipb.Document, opts ResultOptions) []*atr.Result {
	if doc == nil {
		return nil
	}
	label := opts.FileName
	if i := strings.LastIndex(label, "."); i > 0 {
		label = label[:i]
	}

	anchored := newAnchoredText(doc)
	results := make([]*atr.Result, 0, len(doc.Pages))
	for i, page := range doc.Pages {
		pageNum := int(page.PageNumber)
		if pageNum == 0 {
			pageNum = i + 1
		}
		result := &atr.Result{
			FileName:  opts.FileName,
			ImageName: fmt.Sprintf("%s_page_%d", label, pageNum),
			Label:     label,
			Contains:  []atr.TextElement{},
			ProcessingSteps: []atr.ProcessingStep{{
				Description: "Text recognition",
				Settings: atr.StepSettings{
					ModelClass: "DocumentAI",
					Model:      opts.ProcessorID,
				},
			}},
		}

		var shape []float64
		if dim := page.GetDimension(); dim != nil {
			shape = []float64{float64(dim.Height), float64(dim.Width)}
		}
		for _, line := range page.Lines {
			text := anchored.of(line.GetLayout())
			if text == "" {
				continue
			}
			polygon := layoutPolygon(line.GetLayout(), page.GetDimension())
			bbox, _ := polygon.Bounds()
			score := roundScore(line.GetLayout().GetConfidence())

			result.Contains = append(result.Contains, atr.TextElement{
				Segment: atr.Segment{
					BBox:       bbox,
					Polygon:    polygon,
					Score:      score,
					ClassLabel: "line",
					OrigShape:  shape,
				},
				TextResult: &atr.TextResult{Texts: []string{text}, Scores: []float64{score}},
				Label:      "line",
			})
		}
		results = append(results, result)
	}
	return results
}

// layoutPolygon returns the outline of layout in page pixels. Normalized vertices are
// preferred; absolute vertices are used when the response has no normalized ones.
func layoutPolygon(layout *documentaipb.Document_Page_Layout, dim *documentaipb.Document_Page_Dimension) atr.Polygon {
	poly := layout.GetBoundingPoly()
	if nv := poly.GetNormalizedVertices(); len(nv) > 0 && dim != nil {
		points := make([]atr.Point, len(nv))
		for i, v := range nv {
			points[i] = atr.Point{
				X: math.Round(float64(v.X) * float64(dim.Width)),
				Y: math.Round(float64(v.Y) * float64(dim.Height)),
			}
		}
		return atr.Polygon{Points: points}
	}
	vs := poly.GetVertices()
	points := make([]atr.Point, len(vs))
	for i, v := range vs {
		points[i] = atr.Point{X: float64(v.X), Y: float64(v.Y)}
	}
	return atr.Polygon{Points: points}
}

func roundScore(c float32) float64 {
	return math.Round(float64(c)*1e4) / 1e4
}
