// Package parsers provides per-file-type extractors for published documents.
package parsers

import (
	"context"
	"sort"
)

// RolePair is a (target, role) pair taken from a relationship attribute.
type RolePair struct {
	// Target is the resolved local reference.
	Target string

	// Role is a single token of the rel attribute.
	Role string
}

// Document contains the facts extracted from a single file.
type Document struct {
	// Title is the document title, nil if none was found.
	Title *string

	// Links are navigational references to other local paths.
	Links map[string]struct{}

	// Inclusions are local resources embedded by the document.
	Inclusions map[string]struct{}

	// Roles are the (target, role) pairs found on local references.
	Roles map[RolePair]struct{}
}

// NewDocument creates an empty Document.
func NewDocument() *Document {
	return &Document{
		Links:      make(map[string]struct{}),
		Inclusions: make(map[string]struct{}),
		Roles:      make(map[RolePair]struct{}),
	}
}

// SetTitle sets the document title.
func (d *Document) SetTitle(title string) {
	d.Title = &title
}

// SortedLinks returns the links in sorted order.
func (d *Document) SortedLinks() []string {
	return sortedKeys(d.Links)
}

// SortedInclusions returns the inclusions in sorted order.
func (d *Document) SortedInclusions() []string {
	return sortedKeys(d.Inclusions)
}

// SortedRoles returns the role pairs ordered by target, then role.
func (d *Document) SortedRoles() []RolePair {
	pairs := make([]RolePair, 0, len(d.Roles))
	for p := range d.Roles {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Target != pairs[j].Target {
			return pairs[i].Target < pairs[j].Target
		}
		return pairs[i].Role < pairs[j].Role
	})
	return pairs
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Parser defines the interface for file-type-specific extractors.
type Parser interface {
	// Parse extracts document facts from a file's content.
	// path is the normalized path of the file relative to the scan root.
	Parse(ctx context.Context, path string, content []byte) (*Document, error)

	// Kind returns the file kind this parser handles.
	Kind() string
}

// NeedsContent reports whether p reads the file content passed to Parse.
// Parsers that read the file themselves implement NeedsContent to opt out.
func NeedsContent(p Parser) bool {
	if c, ok := p.(interface{ NeedsContent() bool }); ok {
		return c.NeedsContent()
	}
	return true
}
