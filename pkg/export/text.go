package export

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/forsete/atrdoc/pkg/atr"
	"github.com/forsete/atrdoc/pkg/hocr"
	"github.com/forsete/atrdoc/pkg/lineseg"
)

// PlainText joins the effective text of every visible segment in reading order,
// separated by a blank line
func PlainText(segments []lineseg.LineSegment) *File {
	ordered := readingOrder(segments)
	texts := make([]string, len(ordered))
	for i, seg := range ordered {
		texts[i] = seg.EffectiveText()
	}
	return &File{
		Data:      []byte(strings.Join(texts, "\n\n")),
		MimeType:  "text/plain",
		Extension: "txt",
	}
}

type jsonLine struct {
	Text string          `json:"text"`
	BBox atr.BoundingBox `json:"bbox"`
}

// JSON writes the visible segments as an indented [{text, bbox}] array in index order
func JSON(segments []lineseg.LineSegment) (*File, error) {
	lines := make([]jsonLine, 0, len(segments))
	for _, seg := range visible(segments) {
		lines = append(lines, jsonLine{Text: seg.EffectiveText(), BBox: seg.BBox})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(lines); err != nil {
		return nil, err
	}
	return &File{
		Data:      bytes.TrimSuffix(buf.Bytes(), []byte("\n")),
		MimeType:  "application/json",
		Extension: "json",
	}, nil
}

// HOCR renders the visible segments in reading order as one hOCR page
func HOCR(segments []lineseg.LineSegment, page hocr.PageOptions) (*File, error) {
	data, err := hocr.Generate(hocr.FromLineSegments(readingOrder(segments), page))
	if err != nil {
		return nil, err
	}
	return &File{
		Data:      data,
		MimeType:  "text/vnd.hocr+html",
		Extension: "hocr",
	}, nil
}
