package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/forsete/atrdoc/pkg/atr"
	"github.com/forsete/atrdoc/pkg/lineseg"
)

// Memory keeps drafts and confirmed results in process memory
type Memory struct {
	mu        sync.RWMutex
	drafts    map[Key][]lineseg.LineSegment
	confirmed map[Key]atr.Confirmed
}

// NewMemory returns an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		drafts:    make(map[Key][]lineseg.LineSegment),
		confirmed: make(map[Key]atr.Confirmed),
	}
}

func (m *Memory) SaveDraft(_ context.Context, key Key, segments []lineseg.LineSegment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[key] = lineseg.CloneAll(segments)
	return nil
}

func (m *Memory) LoadDraft(_ context.Context, key Key) ([]lineseg.LineSegment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	segments, ok := m.drafts[key]
	if !ok {
		return nil, fmt.Errorf("draft %s: %w", key, ErrNotFound)
	}
	return lineseg.CloneAll(segments), nil
}

func (m *Memory) DeleteDraft(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, key)
	return nil
}

func (m *Memory) SaveConfirmed(_ context.Context, key Key, confirmed atr.Confirmed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmed[key] = atr.Confirmed{Confirmed: confirmed.Confirmed, Data: confirmed.Data.Clone()}
	return nil
}

func (m *Memory) LoadConfirmed(_ context.Context, key Key) (atr.Confirmed, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.confirmed[key]
	if !ok {
		return atr.Confirmed{}, fmt.Errorf("confirmed result %s: %w", key, ErrNotFound)
	}
	return atr.Confirmed{Confirmed: c.Confirmed, Data: c.Data.Clone()}, nil
}

// Close is a no-op
func (m *Memory) Close() error { return nil }
