// Package storage persists metadata graphs between runs.
//
// It defines the StorageBackend interface that the scan pipeline writes to
// and the query commands read from.
package storage

import (
	"context"
	"time"

	"github.com/Benny93/tangle/internal/graph"
)

// ScanMeta describes the scan that produced the stored graph.
type ScanMeta struct {
	// Root is the scanned directory.
	Root string `json:"root"`

	// ScannedAt is when the scan finished.
	ScannedAt time.Time `json:"scanned_at"`

	// Paths is the number of records written.
	Paths int `json:"paths"`
}

// StorageBackend defines the interface for storage implementations.
//
// Implementations must be thread-safe and support concurrent access.
type StorageBackend interface {
	// Initialize opens or creates the storage backend at the given path.
	// If readOnly is true, the backend is opened in read-only mode.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the backend.
	Close() error

	// BulkLoad replaces every stored record with the records of g.
	BulkLoad(ctx context.Context, g *graph.MetadataGraph) error

	// LoadGraph rebuilds the stored graph.
	LoadGraph(ctx context.Context) (*graph.MetadataGraph, error)

	// GetRecord returns the record for path, or nil if there is none.
	GetRecord(ctx context.Context, path string) (*graph.Record, error)

	// SetMeta stores the description of the last scan.
	SetMeta(ctx context.Context, meta ScanMeta) error

	// Meta returns the description of the last scan, or nil if no scan
	// has been stored.
	Meta(ctx context.Context) (*ScanMeta, error)
}
