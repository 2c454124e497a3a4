// Package lineseg flattens a nested ATR result into line segments, the editable unit of a
// transcript.
//
// Every text candidate of every text element becomes one LineSegment with a dense, zero-based
// OriginalIndex assigned in document order. Each segment also records where it came from
// (ElementIndex, CandidateIndex) so edits can be written back to the nested document without
// relying on positional coincidence.
//
// EffectiveText is the single rule for which text a segment currently shows: the edited
// content when the segment is marked edited and has edited content, otherwise the original
// transcription. Every renderer and export path in this module goes through it.
package lineseg

import (
	"strings"

	"github.com/forsete/atrdoc/pkg/atr"
)

// LineSegment is one transcribed text candidate together with its geometry
type LineSegment struct {
	OriginalIndex  int             `json:"originalIndex"`           // Dense index in document order
	ElementIndex   int             `json:"elementIndex"`            // Index into Result.Contains
	CandidateIndex int             `json:"candidateIndex"`          // Index into TextResult.Texts
	TextContent    string          `json:"textContent"`             // Original transcription
	Confidence     float64         `json:"confidence"`              // Percentage 0-100, two decimals
	Edited         bool            `json:"edited"`                  // True once the user changed the text
	EditedContent  *string         `json:"editedContent,omitempty"` // User text, nil when never set
	BBox           atr.BoundingBox `json:"bbox"`                    // Region bounds
	Polygon        atr.Polygon     `json:"polygon"`                 // Region outline
}

// EffectiveText returns the text a segment currently stands for
func (s LineSegment) EffectiveText() string {
	if s.Edited && s.EditedContent != nil {
		return *s.EditedContent
	}
	return s.TextContent
}

// HasText reports whether the effective text contains anything besides whitespace
func (s LineSegment) HasText() bool {
	return strings.TrimSpace(s.EffectiveText()) != ""
}

// Clone returns a copy that shares no memory with s
func (s LineSegment) Clone() LineSegment {
	out := s
	out.Polygon = s.Polygon.Clone()
	if s.EditedContent != nil {
		v := *s.EditedContent
		out.EditedContent = &v
	}
	return out
}

// WithEdit returns a copy of s carrying newContent as an edit
func (s LineSegment) WithEdit(newContent string) LineSegment {
	out := s.Clone()
	out.Edited = true
	out.EditedContent = &newContent
	return out
}

// Reverted returns a copy of s with the edit discarded and the original text restored
func (s LineSegment) Reverted() LineSegment {
	out := s.Clone()
	original := s.TextContent
	out.Edited = false
	out.EditedContent = &original
	return out
}

// CloneAll deep-copies a slice of segments
func CloneAll(segments []LineSegment) []LineSegment {
	if segments == nil {
		return nil
	}
	out := make([]LineSegment, len(segments))
	for i, s := range segments {
		out[i] = s.Clone()
	}
	return out
}
