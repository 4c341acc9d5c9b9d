package store

import (
	"context"
	"sync"

	"github.com/matzehuels/astkg/pkg/kg"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// Memory is a Store backed by a map. It is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	graphs map[string][]kg.Triple
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{graphs: make(map[string][]kg.Triple)}
}

// Put replaces the triples stored under graphID.
func (m *Memory) Put(ctx context.Context, graphID string, triples []kg.Triple) error {
	if err := checkPut(graphID, triples); err != nil {
		return err
	}
	cp := make([]kg.Triple, len(triples))
	copy(cp, triples)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphs[graphID] = cp
	return nil
}

// Scan calls fn for every triple of graphID.
func (m *Memory) Scan(ctx context.Context, graphID string, fn func(kg.Triple) error) error {
	if err := apperr.ValidateGraphID(graphID); err != nil {
		return err
	}
	m.mu.RLock()
	ts, ok := m.graphs[graphID]
	m.mu.RUnlock()
	if !ok {
		return notFound(graphID)
	}
	// The slice is never mutated after Put, so it can be read unlocked.
	for _, t := range ts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes graphID.
func (m *Memory) Delete(ctx context.Context, graphID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.graphs[graphID]; !ok {
		return notFound(graphID)
	}
	delete(m.graphs, graphID)
	return nil
}

// List returns the stored graph ids.
func (m *Memory) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.graphs))
	for id := range m.graphs {
		ids = append(ids, id)
	}
	return sorted(ids), nil
}

// Close does nothing.
func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)
