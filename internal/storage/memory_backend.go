package storage

import (
	"context"
	"sync"

	"github.com/Benny93/tangle/internal/graph"
)

// MemoryBackend is an in-memory implementation of StorageBackend for testing.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]*graph.Record
	meta    *ScanMeta
}

// NewMemoryBackend creates a new in-memory storage backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		records: make(map[string]*graph.Record),
	}
}

// Initialize implements StorageBackend.
func (m *MemoryBackend) Initialize(path string, readOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = make(map[string]*graph.Record)
	}
	return nil
}

// Close implements StorageBackend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.meta = nil
	return nil
}

// BulkLoad implements StorageBackend.
func (m *MemoryBackend) BulkLoad(ctx context.Context, g *graph.MetadataGraph) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = make(map[string]*graph.Record, g.NodeCount())
	for _, path := range g.Paths() {
		m.records[path] = g.Get(path)
	}
	return nil
}

// LoadGraph implements StorageBackend.
func (m *MemoryBackend) LoadGraph(ctx context.Context) (*graph.MetadataGraph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := graph.NewMetadataGraph()
	for path, rec := range m.records {
		g.Put(path, rec.Clone())
	}
	return g, nil
}

// GetRecord implements StorageBackend.
func (m *MemoryBackend) GetRecord(ctx context.Context, path string) (*graph.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[path]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

// SetMeta implements StorageBackend.
func (m *MemoryBackend) SetMeta(ctx context.Context, meta ScanMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta = &meta
	return nil
}

// Meta implements StorageBackend.
func (m *MemoryBackend) Meta(ctx context.Context) (*ScanMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.meta == nil {
		return nil, nil
	}
	meta := *m.meta
	return &meta, nil
}

// RecordCount returns the number of stored records.
func (m *MemoryBackend) RecordCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
