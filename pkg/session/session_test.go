package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/forsete/atrdoc/pkg/atr"
	"github.com/forsete/atrdoc/pkg/document"
	"github.com/forsete/atrdoc/pkg/store"
)

func newDoc(texts ...string) *document.Manager {
	result := &atr.Result{}
	for _, text := range texts {
		result.Contains = append(result.Contains, atr.TextElement{
			Segment:    atr.Segment{BBox: atr.NewBoundingBox(0, 0, 10, 10)},
			TextResult: &atr.TextResult{Texts: []string{text}, Scores: []float64{0.9}},
		})
	}
	return document.New(result, document.Options{})
}

func loaderOf(doc *document.Manager) Loader {
	return func(context.Context) (*document.Manager, error) { return doc, nil }
}

func TestOpenLoadsOnce(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	key := store.Key{ImageID: "img", OutputID: "out"}

	calls := 0
	load := func(context.Context) (*document.Manager, error) {
		calls++
		return newDoc("Hello"), nil
	}
	for i := 0; i < 3; i++ {
		if _, err := r.Open(ctx, key, load); err != nil {
			t.Fatalf("Open() error = %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("loader called %d times, want 1", calls)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}

func TestOpenFailureLeavesKeyClosed(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	key := store.Key{ImageID: "img", OutputID: "out"}
	boom := errors.New("upstream unavailable")

	_, err := r.Open(ctx, key, func(context.Context) (*document.Manager, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Open() error = %v, want %v", err, boom)
	}
	if err := r.With(key, func(*document.Manager) error { return nil }); !errors.Is(err, ErrNoSession) {
		t.Fatalf("With() error = %v, want ErrNoSession", err)
	}

	if _, err := r.Open(ctx, key, func(context.Context) (*document.Manager, error) { return nil, nil }); err == nil {
		t.Fatalf("Open() with a nil document expected error")
	}

	loaded, err := r.Open(ctx, key, loaderOf(newDoc("Hello")))
	if err != nil || !loaded {
		t.Fatalf("Open() after failure = %v, %v", loaded, err)
	}
}

func TestWithAndClose(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	key := store.Key{ImageID: "img", OutputID: "out"}
	if _, err := r.Open(ctx, key, loaderOf(newDoc("Hello"))); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	err := r.With(key, func(doc *document.Manager) error {
		if !doc.EditText(0, "World") {
			return fmt.Errorf("EditText() returned false")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}

	var text string
	r.With(key, func(doc *document.Manager) error {
		text, err = doc.TextContent(0)
		return err
	})
	if text != "World" {
		t.Fatalf("TextContent() = %q, want World", text)
	}

	sentinel := errors.New("callback failed")
	if err := r.With(key, func(*document.Manager) error { return sentinel }); !errors.Is(err, sentinel) {
		t.Fatalf("With() error = %v, want callback error", err)
	}

	r.Close(key)
	r.Close(key)
	if err := r.With(key, func(*document.Manager) error { return nil }); !errors.Is(err, ErrNoSession) {
		t.Fatalf("With() after Close error = %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("Len() = %d after Close", r.Len())
	}
}

func TestConcurrentEditsAreSerialized(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	keys := []store.Key{{ImageID: "a", OutputID: "1"}, {ImageID: "b", OutputID: "2"}}

	var wg sync.WaitGroup
	for _, key := range keys {
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(key store.Key, i int) {
				defer wg.Done()
				if _, err := r.Open(ctx, key, loaderOf(newDoc("x", "y"))); err != nil {
					t.Errorf("Open() error = %v", err)
					return
				}
				err := r.With(key, func(doc *document.Manager) error {
					doc.EditText(i%2, fmt.Sprintf("edit %d", i))
					doc.UpdatedResult()
					return nil
				})
				if err != nil {
					t.Errorf("With() error = %v", err)
				}
			}(key, i)
		}
	}
	wg.Wait()

	for _, key := range keys {
		r.With(key, func(doc *document.Manager) error {
			if len(doc.EditedAndOriginal()) != 2 {
				t.Errorf("%s: expected both lines edited, got %v", key, doc.EditedAndOriginal())
			}
			return nil
		})
	}
}
