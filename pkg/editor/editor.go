// Package editor is the headless model behind a line-by-line transcription editor.
//
// A Surface presents one editable item per line segment in index order and routes every
// change through the document.Manager it wraps. Focusing a line signals which polygon an
// image overlay should highlight; this never changes the document. After each change the full
// set of line segments is written to an optional draft store so an interrupted session can be
// resumed, and reverting everything removes that draft.
//
// A Surface is not safe for concurrent use.
package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/forsete/atrdoc/pkg/atr"
	"github.com/forsete/atrdoc/pkg/document"
	"github.com/forsete/atrdoc/pkg/lineseg"
	"github.com/forsete/atrdoc/pkg/store"
)

// ConfidenceClass buckets a line's confidence for display
type ConfidenceClass string

const (
	ConfidenceHigh   ConfidenceClass = "high"   // 90 and above
	ConfidenceGood   ConfidenceClass = "good"   // 75 and above
	ConfidenceMedium ConfidenceClass = "medium" // 60 and above
	ConfidenceLow    ConfidenceClass = "low"
)

// Classify returns the class of a confidence percentage
func Classify(confidence float64) ConfidenceClass {
	switch {
	case confidence >= 90:
		return ConfidenceHigh
	case confidence >= 75:
		return ConfidenceGood
	case confidence >= 60:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Style is the overlay coloring of a highlighted polygon
type Style struct {
	Fill   string // CSS color with alpha
	Stroke string // CSS color
}

// Style returns the overlay colors for c
func (c ConfidenceClass) Style() Style {
	switch c {
	case ConfidenceHigh:
		return Style{Fill: "rgba(198, 246, 213, 0.5)", Stroke: "#22543d"}
	case ConfidenceGood:
		return Style{Fill: "rgba(190, 227, 248, 0.5)", Stroke: "#2c5282"}
	case ConfidenceMedium:
		return Style{Fill: "rgba(254, 252, 191, 0.5)", Stroke: "#744210"}
	default:
		return Style{Fill: "rgba(254, 215, 215, 0.5)", Stroke: "#822727"}
	}
}

// Item is the view state of one editable line
type Item struct {
	Index      int
	Text       string // Effective text shown in the control
	Original   string
	Edited     bool
	Confidence float64
	Class      ConfidenceClass
	Selected   bool
}

// Highlight tells an image overlay which region to draw
type Highlight struct {
	Index   int
	Polygon atr.Polygon
	Style   Style
}

// DraftStore persists the editor's working copy
type DraftStore interface {
	SaveDraft(ctx context.Context, key store.Key, segments []lineseg.LineSegment) error
	LoadDraft(ctx context.Context, key store.Key) ([]lineseg.LineSegment, error)
	DeleteDraft(ctx context.Context, key store.Key) error
}

// Options configures a Surface
type Options struct {
	Drafts      DraftStore      // Optional draft persistence
	OnHighlight func(Highlight) // Called when a line gains focus
}

// Surface is the editing model for one document
type Surface struct {
	doc         *document.Manager
	key         store.Key
	drafts      DraftStore
	onHighlight func(Highlight)
	focused     int
	dirty       bool
}

// New returns a Surface over doc. A saved draft for the document is merged into doc first.
func New(ctx context.Context, doc *document.Manager, opts Options) (*Surface, error) {
	s := &Surface{
		doc:         doc,
		key:         store.Key{ImageID: doc.ImageID(), OutputID: doc.OutputID()},
		drafts:      opts.Drafts,
		onHighlight: opts.OnHighlight,
		focused:     -1,
	}
	if s.drafts == nil {
		return s, nil
	}
	saved, err := s.drafts.LoadDraft(ctx, s.key)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load draft: %w", err)
	default:
		doc.SetLineSegments(saved)
	}
	return s, nil
}

// Items returns one item per line segment in index order
func (s *Surface) Items() []Item {
	segments := s.doc.LineSegments()
	items := make([]Item, len(segments))
	for i, seg := range segments {
		items[i] = Item{
			Index:      seg.OriginalIndex,
			Text:       seg.EffectiveText(),
			Original:   seg.TextContent,
			Edited:     seg.Edited,
			Confidence: seg.Confidence,
			Class:      Classify(seg.Confidence),
			Selected:   seg.OriginalIndex == s.focused,
		}
	}
	return items
}

// Change sets the text of line index. The line counts as edited only when text differs from
// the original transcription. It returns false when the line does not exist.
func (s *Surface) Change(ctx context.Context, index int, text string) (bool, error) {
	seg, err := s.doc.LineSegment(index)
	if err != nil {
		return false, nil
	}
	seg = seg.WithEdit(text)
	seg.Edited = text != seg.TextContent
	s.doc.SetLineSegment(seg)
	s.dirty = true
	return true, s.saveDraft(ctx)
}

// Reset restores the original text of line index
func (s *Surface) Reset(ctx context.Context, index int) (bool, error) {
	if !s.doc.Revert(index) {
		return false, nil
	}
	s.dirty = true
	return true, s.saveDraft(ctx)
}

// RevertAll discards every edit and deletes the saved draft
func (s *Surface) RevertAll(ctx context.Context) error {
	s.doc.RevertAll()
	s.dirty = false
	if s.drafts == nil {
		return nil
	}
	if err := s.drafts.DeleteDraft(ctx, s.key); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// Focus selects line index and asks the overlay to highlight its polygon.
// It returns false when the line does not exist.
func (s *Surface) Focus(index int) bool {
	seg, err := s.doc.LineSegment(index)
	if err != nil {
		return false
	}
	s.focused = index
	if s.onHighlight != nil {
		s.onHighlight(Highlight{
			Index:   index,
			Polygon: seg.Polygon,
			Style:   Classify(seg.Confidence).Style(),
		})
	}
	return true
}

// Focused returns the selected line
func (s *Surface) Focused() (int, bool) {
	return s.focused, s.focused >= 0
}

// CanRevert reports whether any line is edited
func (s *Surface) CanRevert() bool {
	return s.doc.HasEdits()
}

// Dirty reports whether lines changed since the surface was created or last reverted
func (s *Surface) Dirty() bool {
	return s.dirty
}

func (s *Surface) saveDraft(ctx context.Context) error {
	if s.drafts == nil {
		return nil
	}
	if err := s.drafts.SaveDraft(ctx, s.key, s.doc.LineSegments()); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}
