package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/forsete/atrdoc/pkg/atr"
	"github.com/forsete/atrdoc/pkg/document"
	"github.com/forsete/atrdoc/pkg/lineseg"
	"github.com/forsete/atrdoc/pkg/store"
)

func newDoc(t *testing.T) *document.Manager {
	t.Helper()
	result, err := atr.Parse([]byte(`{"contains": [
	  {"segment": {"bbox": {"xmin": 0, "ymin": 0, "xmax": 10, "ymax": 10},
	               "polygon": {"points": [{"x": 0, "y": 0}, {"x": 10, "y": 0}, {"x": 10, "y": 10}, {"x": 0, "y": 10}]}},
	   "text_result": {"texts": ["Hello"], "scores": [0.95]}},
	  {"segment": {"bbox": {"xmin": 0, "ymin": 20, "xmax": 10, "ymax": 30}},
	   "text_result": {"texts": ["wrold"], "scores": [0.62]}}
	]}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return document.New(result, document.Options{ImageID: "img", OutputID: "out"})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		confidence float64
		want       ConfidenceClass
	}{
		{100, ConfidenceHigh},
		{90, ConfidenceHigh},
		{89.99, ConfidenceGood},
		{75, ConfidenceGood},
		{60, ConfidenceMedium},
		{59.5, ConfidenceLow},
		{0, ConfidenceLow},
	}
	for _, tt := range tests {
		if got := Classify(tt.confidence); got != tt.want {
			t.Fatalf("Classify(%v) = %q, want %q", tt.confidence, got, tt.want)
		}
	}
	if ConfidenceLow.Style().Stroke != "#822727" {
		t.Fatalf("unexpected low confidence style %+v", ConfidenceLow.Style())
	}
}

func TestItems(t *testing.T) {
	s, err := New(context.Background(), newDoc(t), Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	items := s.Items()
	if len(items) != 2 {
		t.Fatalf("Items() returned %d items", len(items))
	}
	if items[0].Index != 0 || items[0].Text != "Hello" || items[0].Class != ConfidenceHigh {
		t.Fatalf("Items()[0] = %+v", items[0])
	}
	if items[1].Class != ConfidenceMedium || items[1].Confidence != 62 {
		t.Fatalf("Items()[1] = %+v", items[1])
	}
}

func TestChange(t *testing.T) {
	ctx := context.Background()
	doc := newDoc(t)
	s, _ := New(ctx, doc, Options{})

	ok, err := s.Change(ctx, 1, "world")
	if !ok || err != nil {
		t.Fatalf("Change() = %v, %v", ok, err)
	}
	if text, _ := doc.TextContent(1); text != "world" {
		t.Fatalf("TextContent(1) = %q", text)
	}
	if !s.Dirty() || !s.CanRevert() || !s.Items()[1].Edited {
		t.Fatalf("expected a dirty surface with an edited line")
	}

	// typing the original text back is not an edit
	s.Change(ctx, 1, "wrold")
	if s.Items()[1].Edited || s.CanRevert() {
		t.Fatalf("line matching the original is still marked edited")
	}

	if ok, _ := s.Change(ctx, 9, "x"); ok {
		t.Fatalf("Change() on an unknown line returned true")
	}
}

func TestFocus(t *testing.T) {
	doc := newDoc(t)
	var got []Highlight
	s, _ := New(context.Background(), doc, Options{OnHighlight: func(h Highlight) { got = append(got, h) }})

	if _, ok := s.Focused(); ok {
		t.Fatalf("new surface has a focused line")
	}
	if !s.Focus(0) {
		t.Fatalf("Focus(0) returned false")
	}
	if len(got) != 1 || got[0].Index != 0 || len(got[0].Polygon.Points) != 4 {
		t.Fatalf("highlight = %+v", got)
	}
	if got[0].Style != ConfidenceHigh.Style() {
		t.Fatalf("highlight style = %+v", got[0].Style)
	}

	got[0].Polygon.Points[0].X = 99
	if p, _ := doc.Polygon(0); p.Points[0].X != 0 {
		t.Fatalf("highlight polygon aliases the document")
	}
	if doc.HasEdits() {
		t.Fatalf("Focus() changed the document")
	}
	if i, ok := s.Focused(); !ok || i != 0 || !s.Items()[0].Selected {
		t.Fatalf("Focused() = %d, %v", i, ok)
	}
	if s.Focus(5) || len(got) != 1 {
		t.Fatalf("Focus() on an unknown line fired a highlight")
	}
}

func TestDrafts(t *testing.T) {
	ctx := context.Background()
	drafts := store.NewMemory()
	key := store.Key{ImageID: "img", OutputID: "out"}

	s, err := New(ctx, newDoc(t), Options{Drafts: drafts})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := s.Change(ctx, 0, "World"); err != nil {
		t.Fatalf("Change() error = %v", err)
	}
	saved, err := drafts.LoadDraft(ctx, key)
	if err != nil || len(saved) != 2 || saved[0].EffectiveText() != "World" {
		t.Fatalf("LoadDraft() = %+v, %v", saved, err)
	}

	// a new session resumes from the draft
	doc := newDoc(t)
	if _, err := New(ctx, doc, Options{Drafts: drafts}); err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if text, _ := doc.TextContent(0); text != "World" {
		t.Fatalf("resumed TextContent(0) = %q", text)
	}

	s, _ = New(ctx, doc, Options{Drafts: drafts})
	if err := s.RevertAll(ctx); err != nil {
		t.Fatalf("RevertAll() error = %v", err)
	}
	if doc.HasEdits() || s.Dirty() {
		t.Fatalf("RevertAll() left edits behind")
	}
	if seg, _ := doc.LineSegment(0); seg.EditedContent == nil || *seg.EditedContent != "Hello" {
		t.Fatalf("RevertAll() did not restore edited content: %+v", seg)
	}
	if _, err := drafts.LoadDraft(ctx, key); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("draft still present after RevertAll(): %v", err)
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s, _ := New(ctx, newDoc(t), Options{})
	s.Change(ctx, 0, "World")
	if ok, err := s.Reset(ctx, 0); !ok || err != nil {
		t.Fatalf("Reset() = %v, %v", ok, err)
	}
	if item := s.Items()[0]; item.Edited || item.Text != "Hello" {
		t.Fatalf("Reset() left %+v", item)
	}
	if ok, _ := s.Reset(ctx, 7); ok {
		t.Fatalf("Reset() on an unknown line returned true")
	}
}

type failingDrafts struct{}

func (failingDrafts) SaveDraft(context.Context, store.Key, []lineseg.LineSegment) error {
	return errors.New("disk full")
}

func (failingDrafts) LoadDraft(context.Context, store.Key) ([]lineseg.LineSegment, error) {
	return nil, store.ErrNotFound
}

func (failingDrafts) DeleteDraft(context.Context, store.Key) error { return nil }

func TestDraftErrorsAreReturned(t *testing.T) {
	ctx := context.Background()
	doc := newDoc(t)
	s, err := New(ctx, doc, Options{Drafts: failingDrafts{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ok, err := s.Change(ctx, 0, "World")
	if !ok || err == nil {
		t.Fatalf("Change() = %v, %v, want applied with an error", ok, err)
	}
	if text, _ := doc.TextContent(0); text != "World" {
		t.Fatalf("edit was not applied: %q", text)
	}
}
