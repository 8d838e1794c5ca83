// Package backend provides the concrete backend adapters shipped with the
// console: an in-memory store, a bleve index with native search, and a
// remote HTTP content API. Each implements some subset of the capability
// interfaces in the adapter package; the coordinator discovers which at bind
// time.
package backend

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/copydesk/copydesk/internal/adapter"
)

// Memory is a full-write in-memory backend. It implements every capability
// except native search, so search against it exercises the synthesized
// listAll-plus-filter path. Records keep insertion order.
type Memory struct {
	mu      sync.Mutex
	records []map[string]any
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{}
}

// Seed inserts a record with a preassigned id, for fixtures.
func (m *Memory) Seed(rec map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, cloneRecord(rec))
}

// ListAll returns every record in insertion order.
func (m *Memory) ListAll(ctx context.Context) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]any, len(m.records))
	for i, rec := range m.records {
		out[i] = cloneRecord(rec)
	}
	return out, nil
}

// FetchOne returns the record with the given id, or (nil, nil).
func (m *Memory) FetchOne(ctx context.Context, id string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec["id"] == id {
			return cloneRecord(rec), nil
		}
	}
	return nil, nil
}

// Create stores a new record under a generated id.
func (m *Memory) Create(ctx context.Context, fields map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := cloneRecord(fields)
	id := uuid.NewString()
	rec["id"] = id
	m.records = append(m.records, rec)
	return id, nil
}

// Update overwrites the given fields on an existing record.
func (m *Memory) Update(ctx context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec["id"] == id {
			for k, v := range fields {
				rec[k] = v
			}
			return nil
		}
	}
	return adapter.ErrNotExist
}

// Delete removes a record.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rec := range m.records {
		if rec["id"] == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return adapter.ErrNotExist
}

func cloneRecord(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
