package vectorstore

import (
	"context"
	"slices"
	"sync"

	"glass/internal/contextmodel"
)

// Memory is an in-process backend used by tests and dry runs.
type Memory struct {
	mu      sync.RWMutex
	records map[contextmodel.ContextType]map[string]contextmodel.ProcessedContext
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[contextmodel.ContextType]map[string]contextmodel.ProcessedContext)}
}

// Name identifies the backend.
func (m *Memory) Name() string { return "memory" }

// BatchUpsert stores copies of the contexts.
func (m *Memory) BatchUpsert(_ context.Context, contextType contextmodel.ContextType, contexts []contextmodel.ProcessedContext) ([]string, error) {
	if err := validateBatch(contextType, contexts); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket := m.records[contextType]
	if bucket == nil {
		bucket = make(map[string]contextmodel.ProcessedContext)
		m.records[contextType] = bucket
	}
	ids := make([]string, 0, len(contexts))
	for _, c := range contexts {
		c.Vectorize.Vector = slices.Clone(c.Vectorize.Vector)
		bucket[c.ID] = c
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// Get returns a copy of the stored record.
func (m *Memory) Get(_ context.Context, contextType contextmodel.ContextType, id string) (*contextmodel.ProcessedContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.records[contextType][id]
	if !ok {
		return nil, nil
	}
	c.Vectorize.Vector = slices.Clone(c.Vectorize.Vector)
	return &c, nil
}

// Delete removes a record.
func (m *Memory) Delete(contextType contextmodel.ContextType, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records[contextType], id)
}

// Len counts stored records across categories.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, bucket := range m.records {
		total += len(bucket)
	}
	return total
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
