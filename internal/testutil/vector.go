package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/markdave123-py/drivesync/internal/core"
	"github.com/markdave123-py/drivesync/internal/models"
)

// MemoryIndex is an in-memory core.VectorIndex that records calls.
type MemoryIndex struct {
	mu      sync.Mutex
	records map[string]models.VectorRecord

	UpsertCalls int
	DeleteCalls int
	// DeletedIDs collects every id passed to DeleteMany, in order.
	DeletedIDs []string

	FailUpsert error
	FailDelete error
}

var _ core.VectorIndex = (*MemoryIndex)(nil)

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{records: make(map[string]models.VectorRecord)}
}

func (m *MemoryIndex) Upsert(_ context.Context, records []models.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if m.FailUpsert != nil {
		return m.FailUpsert
	}
	for _, r := range records {
		m.records[r.ID] = r
	}
	return nil
}

func (m *MemoryIndex) DeleteMany(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.FailDelete != nil {
		return m.FailDelete
	}
	for _, id := range ids {
		m.DeletedIDs = append(m.DeletedIDs, id)
		delete(m.records, id)
	}
	return nil
}

func (m *MemoryIndex) Close() error { return nil }

// Seed inserts records with the given ids directly.
func (m *MemoryIndex) Seed(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.records[id] = models.VectorRecord{ID: id}
	}
}

// IDsFor returns the stored ids that belong to fileID, sorted.
func (m *MemoryIndex) IDsFor(fileID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id := range m.records {
		if strings.HasPrefix(id, fileID+"_chunk_") {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (m *MemoryIndex) Get(id string) (models.VectorRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	return r, ok
}

func (m *MemoryIndex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
