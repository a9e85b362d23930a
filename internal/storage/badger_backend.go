package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/Benny93/tangle/internal/graph"
)

// Key layout
const (
	prefixRecord = "p:"     // record by path
	keyMeta      = "m:scan" // last scan metadata
)

// Backend usage errors.
var (
	ErrNotInitialized = errors.New("storage backend not initialized")
	ErrReadOnly       = errors.New("storage backend opened read-only")
)

// BadgerBackend is a BadgerDB-backed storage implementation.
type BadgerBackend struct {
	db          *badger.DB
	initialized bool
	readOnly    bool
	mu          sync.RWMutex
	recordCount int
}

// NewBadgerBackend creates a new BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}
	b.db = db
	b.readOnly = readOnly
	b.initialized = true

	return b.countRecords()
}

// countRecords refreshes the cached record count from the database.
func (b *BadgerBackend) countRecords() error {
	b.recordCount = 0
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixRecord)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			b.recordCount++
		}
		return nil
	})
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}

	err := b.db.Close()
	b.db = nil
	b.initialized = false
	return err
}

// BulkLoad replaces every stored record with the records of g.
func (b *BadgerBackend) BulkLoad(ctx context.Context, g *graph.MetadataGraph) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return ErrNotInitialized
	}
	if b.readOnly {
		return ErrReadOnly
	}
	if err := b.db.DropPrefix([]byte(prefixRecord)); err != nil {
		return fmt.Errorf("dropping records: %w", err)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	b.recordCount = 0
	for _, path := range g.Paths() {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.Marshal(g.Get(path))
		if err != nil {
			return fmt.Errorf("marshaling record %s: %w", path, err)
		}
		if err := wb.Set(recordKey(path), data); err != nil {
			return fmt.Errorf("setting record %s: %w", path, err)
		}
		b.recordCount++
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flushing records: %w", err)
	}
	return nil
}

// LoadGraph rebuilds the stored graph.
func (b *BadgerBackend) LoadGraph(ctx context.Context) (*graph.MetadataGraph, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, ErrNotInitialized
	}

	g := graph.NewMetadataGraph()
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixRecord)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			path := strings.TrimPrefix(string(item.Key()), prefixRecord)
			var rec graph.Record
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decoding record %s: %w", path, err)
			}
			g.Put(path, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetRecord returns the record for path, or nil if there is none.
func (b *BadgerBackend) GetRecord(ctx context.Context, path string) (*graph.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, ErrNotInitialized
	}

	var rec *graph.Record
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		rec = &graph.Record{}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, rec)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("getting record %s: %w", path, err)
	}
	return rec, nil
}

// SetMeta stores the description of the last scan.
func (b *BadgerBackend) SetMeta(ctx context.Context, meta ScanMeta) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return ErrNotInitialized
	}
	if b.readOnly {
		return ErrReadOnly
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling scan meta: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyMeta), data)
	})
}

// Meta returns the description of the last scan, or nil if none is stored.
func (b *BadgerBackend) Meta(ctx context.Context) (*ScanMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, ErrNotInitialized
	}

	var meta *ScanMeta
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyMeta))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		meta = &ScanMeta{}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, meta)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("reading scan meta: %w", err)
	}
	return meta, nil
}

// RecordCount returns the number of stored records.
func (b *BadgerBackend) RecordCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.recordCount
}

func recordKey(path string) []byte {
	return []byte(prefixRecord + path)
}
