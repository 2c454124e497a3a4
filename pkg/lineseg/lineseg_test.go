package lineseg

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/forsete/atrdoc/pkg/atr"
)

const helloResult = `{"contains": [{
  "text_result": {"texts": ["Hello"], "scores": [0.95]},
  "segment": {
    "bbox": {"xmin": 0, "ymin": 0, "xmax": 10, "ymax": 10},
    "polygon": {"points": [{"x": 0, "y": 0}, {"x": 10, "y": 0}, {"x": 10, "y": 10}, {"x": 0, "y": 10}]}
  },
  "label": "line"
}]}`

const mixedResult = `{"contains": [
  {"text_result": {"texts": ["a", "a2"], "scores": [0.5, 0.4]}, "segment": {"bbox": {"xmin": 0, "ymin": 20, "xmax": 5, "ymax": 25}, "polygon": {"points": [{"x": 0, "y": 20}]}}},
  {"segment": {"bbox": {"xmin": 0, "ymin": 0, "xmax": 1, "ymax": 1}}},
  {"text_result": {"texts": "bad", "scores": [1]}},
  {"text_result": {"texts": ["b"], "scores": []}, "segment": {"bbox": {"xmin": 9, "ymin": 9, "xmax": 1, "ymax": 1}}},
  {"text_result": {"texts": [], "scores": [0.9]}},
  {"text_result": {"texts": ["c"], "scores": [0.123456]}}
]}`

func mustParse(t *testing.T, s string) *atr.Result {
	t.Helper()
	r, err := atr.Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return r
}

func quiet() IndexOptions {
	return IndexOptions{}
}

func TestIndexSingleLine(t *testing.T) {
	segments := Index(mustParse(t, helloResult), quiet())
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	want := LineSegment{
		OriginalIndex: 0,
		TextContent:   "Hello",
		Confidence:    95,
		BBox:          atr.NewBoundingBox(0, 0, 10, 10),
		Polygon: atr.Polygon{Points: []atr.Point{
			{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10},
		}},
	}
	if !reflect.DeepEqual(segments[0], want) {
		t.Fatalf("Index() = %+v, want %+v", segments[0], want)
	}
}

func TestIndexSkipsMalformedElements(t *testing.T) {
	var log bytes.Buffer
	segments := Index(mustParse(t, mixedResult), IndexOptions{LogWarnings: true, Logger: &log})

	var texts []string
	for i, s := range segments {
		if s.OriginalIndex != i {
			t.Fatalf("segment %d has OriginalIndex %d", i, s.OriginalIndex)
		}
		texts = append(texts, s.TextContent)
	}
	if !reflect.DeepEqual(texts, []string{"a", "a2", "b", "c"}) {
		t.Fatalf("unexpected texts: %q", texts)
	}

	// Every candidate of an element inherits the first score
	if segments[0].Confidence != 50 || segments[1].Confidence != 50 {
		t.Fatalf("unexpected confidences: %v %v", segments[0].Confidence, segments[1].Confidence)
	}
	if segments[1].ElementIndex != 0 || segments[1].CandidateIndex != 1 {
		t.Fatalf("unexpected back reference: %+v", segments[1])
	}
	if segments[2].ElementIndex != 3 || segments[2].Confidence != 0 {
		t.Fatalf("unexpected segment for element 3: %+v", segments[2])
	}
	if segments[2].BBox != atr.NewBoundingBox(1, 1, 9, 9) {
		t.Fatalf("expected inverted bbox to be normalized, got %+v", segments[2].BBox)
	}
	if segments[3].ElementIndex != 5 || segments[3].Confidence != 12.35 {
		t.Fatalf("unexpected segment for element 5: %+v", segments[3])
	}

	if got := strings.Count(log.String(), "Warning:"); got != 3 {
		t.Fatalf("expected 3 warnings, got %d:\n%s", got, log.String())
	}
}

func TestIndexMissingContains(t *testing.T) {
	var log bytes.Buffer
	segments := Index(mustParse(t, `{"file_name": "x.png"}`), IndexOptions{LogWarnings: true, Logger: &log})
	if segments == nil || len(segments) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", segments)
	}
	if !strings.Contains(log.String(), "no contains array") {
		t.Fatalf("expected a warning, got %q", log.String())
	}
	if got := Index(nil, quiet()); len(got) != 0 {
		t.Fatalf("expected no segments for nil result, got %d", len(got))
	}
}

func TestIndexIsDeterministic(t *testing.T) {
	r := mustParse(t, mixedResult)
	first := Index(r, quiet())
	second := Index(r, quiet())
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("indexing twice gave different results")
	}
}

func TestIndexCopiesGeometry(t *testing.T) {
	r := mustParse(t, mixedResult)
	segments := Index(r, quiet())
	segments[0].Polygon.Points[0].X = 42
	if segments[1].Polygon.Points[0].X != 0 {
		t.Fatalf("segments from the same element share polygon points")
	}
	if r.Contains[0].Segment.Polygon.Points[0].X != 0 {
		t.Fatalf("segment polygon aliases the source document")
	}
}

func TestEffectiveText(t *testing.T) {
	empty := ""
	edit := "World"
	tests := []struct {
		name string
		seg  LineSegment
		want string
	}{
		{"original", LineSegment{TextContent: "Hello"}, "Hello"},
		{"edited", LineSegment{TextContent: "Hello", Edited: true, EditedContent: &edit}, "World"},
		{"edited to empty", LineSegment{TextContent: "Hello", Edited: true, EditedContent: &empty}, ""},
		{"edited without content", LineSegment{TextContent: "Hello", Edited: true}, "Hello"},
		{"content but not edited", LineSegment{TextContent: "Hello", EditedContent: &edit}, "Hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.seg.EffectiveText(); got != tt.want {
				t.Fatalf("EffectiveText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEditAndRevertRoundTrip(t *testing.T) {
	s := LineSegment{TextContent: "Hello"}
	edited := s.WithEdit("X")
	if edited.EffectiveText() != "X" || !edited.Edited {
		t.Fatalf("WithEdit() = %+v", edited)
	}
	if s.Edited {
		t.Fatalf("WithEdit mutated the receiver")
	}
	reverted := edited.Reverted()
	if reverted.Edited || reverted.EffectiveText() != "Hello" || *reverted.EditedContent != "Hello" {
		t.Fatalf("Reverted() = %+v", reverted)
	}
	if !edited.Edited || *edited.EditedContent != "X" {
		t.Fatalf("Reverted mutated the receiver")
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		scores []float64
		want   float64
	}{
		{nil, 0},
		{[]float64{0.95}, 95},
		{[]float64{0.87654, 0.1}, 87.65},
		{[]float64{1}, 100},
	}
	for _, tt := range tests {
		if got := Confidence(tt.scores); got != tt.want {
			t.Fatalf("Confidence(%v) = %v, want %v", tt.scores, got, tt.want)
		}
	}
}
