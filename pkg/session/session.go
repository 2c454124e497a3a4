// Package session serializes access to open documents.
//
// A document.Manager assumes a single owner. When several requests may touch the same
// document at once, the Registry holds one Manager per (image, output) key and runs every
// access to it under that key's lock. Different documents never block each other.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/forsete/atrdoc/pkg/document"
	"github.com/forsete/atrdoc/pkg/store"
)

// ErrNoSession is returned when a key has no open document
var ErrNoSession = errors.New("no open document")

// Loader builds the Manager for a key that is not open yet
type Loader func(ctx context.Context) (*document.Manager, error)

type entry struct {
	mu  sync.Mutex
	doc *document.Manager
}

// Registry holds open documents by key
type Registry struct {
	mu      sync.Mutex
	entries map[store.Key]*entry
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[store.Key]*entry)}
}

// Open makes sure a document is open for key, calling load when it is not. It reports
// whether load was called. A failed load leaves the key closed.
func (r *Registry) Open(ctx context.Context, key store.Key, load Loader) (bool, error) {
	for {
		r.mu.Lock()
		e, ok := r.entries[key]
		if !ok {
			e = &entry{}
			e.mu.Lock()
			r.entries[key] = e
			r.mu.Unlock()
			defer e.mu.Unlock()
			return r.load(ctx, key, e, load)
		}
		r.mu.Unlock()

		e.mu.Lock()
		open := e.doc != nil
		e.mu.Unlock()
		if open {
			return false, nil
		}
		// a concurrent load failed or the key was closed; start over
		if err := ctx.Err(); err != nil {
			return false, err
		}
	}
}

// load runs with e.mu held
func (r *Registry) load(ctx context.Context, key store.Key, e *entry, load Loader) (bool, error) {
	doc, err := load(ctx)
	if err == nil && doc == nil {
		err = errors.New("loader returned no document")
	}
	if err != nil {
		r.mu.Lock()
		if r.entries[key] == e {
			delete(r.entries, key)
		}
		r.mu.Unlock()
		return true, fmt.Errorf("open %s: %w", key, err)
	}
	e.doc = doc
	return true, nil
}

// With runs fn with exclusive access to the document open for key
func (r *Registry) With(key store.Key, fn func(doc *document.Manager) error) error {
	r.mu.Lock()
	e, ok := r.entries[key]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSession, key)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.doc == nil {
		return fmt.Errorf("%w: %s", ErrNoSession, key)
	}
	return fn(e.doc)
}

// Close forgets the document open for key. It waits for a running With on the key.
func (r *Registry) Close(key store.Key) {
	r.mu.Lock()
	e, ok := r.entries[key]
	delete(r.entries, key)
	r.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.doc = nil
	e.mu.Unlock()
}

// Len returns the number of open documents
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
