// Package graph provides the in-memory metadata graph for Tangle.
//
// The graph is a map from normalized path to attribute record. Entries are
// created lazily on first mention, whether by traversal or by reference,
// so a file can collect inbound edges before it has been visited.
package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// MetadataGraph maps file paths to their attribute records.
//
// All methods are safe for concurrent use. Multi-valued attributes are
// append-only: insertion order is kept and duplicates are retained.
type MetadataGraph struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMetadataGraph creates a new empty graph.
func NewMetadataGraph() *MetadataGraph {
	return &MetadataGraph{
		records: make(map[string]*Record),
	}
}

// record returns the record for path, creating it if needed.
// Must be called with the write lock held.
func (g *MetadataGraph) record(path string) *Record {
	r, ok := g.records[path]
	if !ok {
		r = &Record{}
		g.records[path] = r
	}
	return r
}

// MarkExists records that path was found on disk.
func (g *MetadataGraph) MarkExists(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(path).Exists = true
}

// SetTitle assigns the title of path.
func (g *MetadataGraph) SetTitle(path, title string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(path).Title = &title
}

// SetLinked marks path as the target of a navigational link.
func (g *MetadataGraph) SetLinked(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(path).Linked = true
}

// SetIncluded marks path as an embedded resource.
func (g *MetadataGraph) SetIncluded(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(path).Included = true
}

// AddRole records that source assigns role to target: "has <role>" on the
// source and "is <role>" on the target. Both entries are materialized.
func (g *MetadataGraph) AddRole(source, target, role string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	src := g.record(source)
	if src.Has == nil {
		src.Has = make(map[string]bool)
	}
	src.Has[role] = true

	dst := g.record(target)
	if dst.Is == nil {
		dst.Is = make(map[string]bool)
	}
	dst.Is[role] = true
}

// AppendInbound appends source to the inbound list of target.
func (g *MetadataGraph) AppendInbound(target, source string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.record(target)
	r.Inbound = append(r.Inbound, source)
}

// Put replaces the record of path. Used when loading a stored graph.
func (g *MetadataGraph) Put(path string, r *Record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records[path] = r.Clone()
}

// Get returns a copy of the record for path, or nil if the path is unknown.
func (g *MetadataGraph) Get(path string) *Record {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.records[path]
	if !ok {
		return nil
	}
	return r.Clone()
}

// IsArchived reports whether path carries "is archived".
func (g *MetadataGraph) IsArchived(path string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.records[path]
	return ok && r.IsRole(RoleArchived)
}

// NodeCount returns the number of paths in the graph.
func (g *MetadataGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.records)
}

// Paths returns every path in the graph, sorted.
func (g *MetadataGraph) Paths() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	paths := make([]string, 0, len(g.records))
	for p := range g.records {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Broken returns the sorted paths that are referenced but do not exist.
func (g *MetadataGraph) Broken() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var paths []string
	for p, r := range g.records {
		if !r.Exists {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

// Orphans returns the sorted paths that exist but are never linked or
// included and carry neither the archived nor the chapter role.
func (g *MetadataGraph) Orphans() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var paths []string
	for p, r := range g.records {
		if !r.Exists || r.Linked || r.Included {
			continue
		}
		if r.IsRole(RoleArchived) || r.IsRole(RoleChapter) {
			continue
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Stats returns a summary of graph size.
func (g *MetadataGraph) Stats() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := map[string]int{
		"paths":    len(g.records),
		"existing": 0,
		"missing":  0,
		"linked":   0,
		"included": 0,
		"edges":    0,
	}
	for _, r := range g.records {
		if r.Exists {
			stats["existing"]++
		} else {
			stats["missing"]++
		}
		if r.Linked {
			stats["linked"]++
		}
		if r.Included {
			stats["included"]++
		}
		stats["edges"] += len(r.Inbound)
	}
	return stats
}

// MarshalJSON writes the graph as the interchange document: a single
// object mapping each path to its attribute record.
func (g *MetadataGraph) MarshalJSON() ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return json.Marshal(g.records)
}

// UnmarshalJSON reads an interchange document, replacing the contents.
func (g *MetadataGraph) UnmarshalJSON(data []byte) error {
	records := make(map[string]*Record)
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	for p, r := range records {
		if r == nil {
			records[p] = &Record{}
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.records = records
	return nil
}

// WriteTo encodes the graph as the interchange document.
func (g *MetadataGraph) WriteTo(w io.Writer) (int64, error) {
	data, err := g.MarshalJSON()
	if err != nil {
		return 0, fmt.Errorf("encoding graph: %w", err)
	}
	n, err := w.Write(data)
	return int64(n), err
}

// ReadGraph decodes an interchange document.
func ReadGraph(r io.Reader) (*MetadataGraph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading graph: %w", err)
	}
	g := NewMetadataGraph()
	if len(strings.TrimSpace(string(data))) == 0 {
		return g, nil
	}
	if err := g.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("decoding graph: %w", err)
	}
	return g, nil
}
