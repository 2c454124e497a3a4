package lineseg

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/forsete/atrdoc/pkg/atr"
)

// IndexOptions controls how a result is flattened
type IndexOptions struct {
	LogWarnings bool      // Whether to print warnings about skipped input
	Logger      io.Writer // Destination for warnings (nil = stdout)
}

// DefaultIndexOptions returns options that log warnings to stdout
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{LogWarnings: true}
}

// Index flattens an ATR result into line segments ordered by OriginalIndex.
//
// A missing contains array yields an empty slice. Elements without a texts array are skipped
// and indexing continues with the next element. Every candidate text of an element becomes a
// segment, and all of them inherit the element's first score as confidence.
func Index(result *atr.Result, opts IndexOptions) []LineSegment {
	segments := []LineSegment{}
	if result == nil || result.Contains == nil {
		opts.warnf("ATR result has no contains array; no line segments indexed")
		return segments
	}

	for elemIdx, element := range result.Contains {
		if !element.Valid() {
			opts.warnf("contains[%d] is not an object; skipping", elemIdx)
			continue
		}
		if element.TextResult == nil || element.TextResult.Texts == nil {
			opts.warnf("contains[%d] has no text_result.texts array; skipping", elemIdx)
			continue
		}

		bbox := element.Segment.BBox
		if err := bbox.Validate(); err != nil {
			opts.warnf("contains[%d]: %v; normalizing", elemIdx, err)
			bbox = bbox.Normalize()
		}
		confidence := Confidence(element.TextResult.Scores)

		for candIdx, text := range element.TextResult.Texts {
			segments = append(segments, LineSegment{
				OriginalIndex:  len(segments),
				ElementIndex:   elemIdx,
				CandidateIndex: candIdx,
				TextContent:    text,
				Confidence:     confidence,
				BBox:           bbox,
				Polygon:        element.Segment.Polygon.Clone(),
			})
		}
	}

	return segments
}

// Confidence converts the first score of a text result into a percentage rounded to two
// decimals. It returns 0 when there are no scores.
func Confidence(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	v := scores[0] * 100
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}

func (o IndexOptions) warnf(format string, args ...any) {
	if !o.LogWarnings {
		return
	}
	logger := o.Logger
	if logger == nil {
		logger = os.Stdout
	}
	fmt.Fprintf(logger, "Warning: "+format+"\n", args...)
}
