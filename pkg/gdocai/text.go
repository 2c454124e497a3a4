package gdocai

import (
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
)

// anchoredText resolves text anchors against the full text of a document. Anchor offsets
// count code points, so the text is kept as runes.
type anchoredText []rune

func newAnchoredText(doc *documentaipb.Document) anchoredText {
	return anchoredText(doc.GetText())
}

// of returns the text a layout refers to, with line breaks folded into single spaces
func (t anchoredText) of(layout *documentaipb.Document_Page_Layout) string {
	var sb strings.Builder
	for _, seg := range layout.GetTextAnchor().GetTextSegments() {
		start := min(max(int(seg.GetStartIndex()), 0), len(t))
		end := min(max(int(seg.GetEndIndex()), start), len(t))
		sb.WriteString(string(t[start:end]))
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
