// Package graph provides the metadata graph data model for Tangle.
//
// It defines the attribute record kept for every path in a published
// document tree: whether the file exists, its title, whether anything
// links to or embeds it, the roles it carries, and which files refer to it.
package graph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Attribute keys of the interchange document.
const (
	KeyExists   = "exists"
	KeyTitle    = "title"
	KeyLinked   = "linked"
	KeyIncluded = "included"
	KeyInbound  = "inbound"

	hasPrefix = "has "
	isPrefix  = "is "
)

// Well-known role tokens. Roles are free-form; these are the ones the
// builder and the contents report give meaning to.
const (
	RoleArchived   = "archived"
	RoleChapter    = "chapter"
	RoleStylesheet = "stylesheet"
)

// Record is the attribute record of a single path in the graph.
type Record struct {
	// Exists is set for every path discovered by traversal.
	Exists bool

	// Title is the extracted title, nil when none was found.
	Title *string

	// Linked is set when a non-archived hypertext file links to the path.
	Linked bool

	// Included is set when a hypertext file or stylesheet embeds the path.
	Included bool

	// Has holds the roles this path assigns to the files it references.
	Has map[string]bool

	// Is holds the roles other files assign to this path.
	Is map[string]bool

	// Inbound lists every referencing path, once per edge, in discovery order.
	Inbound []string
}

// HasRole reports whether the path carries "has <role>".
func (r *Record) HasRole(role string) bool {
	return r.Has[role]
}

// IsRole reports whether the path carries "is <role>".
func (r *Record) IsRole(role string) bool {
	return r.Is[role]
}

// TitleOr returns the title, or fallback when there is none.
func (r *Record) TitleOr(fallback string) string {
	if r.Title == nil || *r.Title == "" {
		return fallback
	}
	return *r.Title
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := &Record{
		Exists:   r.Exists,
		Linked:   r.Linked,
		Included: r.Included,
	}
	if r.Title != nil {
		t := *r.Title
		c.Title = &t
	}
	if len(r.Has) > 0 {
		c.Has = make(map[string]bool, len(r.Has))
		for k, v := range r.Has {
			c.Has[k] = v
		}
	}
	if len(r.Is) > 0 {
		c.Is = make(map[string]bool, len(r.Is))
		for k, v := range r.Is {
			c.Is[k] = v
		}
	}
	if r.Inbound != nil {
		c.Inbound = append([]string(nil), r.Inbound...)
	}
	return c
}

// MarshalJSON writes the record as the flat key→value object of the
// interchange document. Unset flags are omitted.
func (r *Record) MarshalJSON() ([]byte, error) {
	m := make(map[string]any)
	if r.Exists {
		m[KeyExists] = true
	}
	if r.Title != nil {
		m[KeyTitle] = *r.Title
	}
	if r.Linked {
		m[KeyLinked] = true
	}
	if r.Included {
		m[KeyIncluded] = true
	}
	for role, v := range r.Has {
		if v {
			m[hasPrefix+role] = true
		}
	}
	for role, v := range r.Is {
		if v {
			m[isPrefix+role] = true
		}
	}
	if len(r.Inbound) > 0 {
		m[KeyInbound] = r.Inbound
	}
	// encoding/json sorts map keys, so output is stable.
	return json.Marshal(m)
}

// UnmarshalJSON reads the flat key→value object of the interchange document.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = Record{}
	for key, val := range raw {
		switch {
		case key == KeyTitle:
			var t *string
			if err := json.Unmarshal(val, &t); err != nil {
				return fmt.Errorf("decoding %q: %w", key, err)
			}
			r.Title = t
		case key == KeyInbound:
			if err := json.Unmarshal(val, &r.Inbound); err != nil {
				return fmt.Errorf("decoding %q: %w", key, err)
			}
		default:
			var flag bool
			if err := json.Unmarshal(val, &flag); err != nil {
				return fmt.Errorf("decoding %q: %w", key, err)
			}
			r.setFlag(key, flag)
		}
	}
	return nil
}

func (r *Record) setFlag(key string, v bool) {
	switch {
	case key == KeyExists:
		r.Exists = v
	case key == KeyLinked:
		r.Linked = v
	case key == KeyIncluded:
		r.Included = v
	case strings.HasPrefix(key, hasPrefix):
		if r.Has == nil {
			r.Has = make(map[string]bool)
		}
		r.Has[strings.TrimPrefix(key, hasPrefix)] = v
	case strings.HasPrefix(key, isPrefix):
		if r.Is == nil {
			r.Is = make(map[string]bool)
		}
		r.Is[strings.TrimPrefix(key, isPrefix)] = v
	}
}

// Roles returns the sorted role names in a role set.
func Roles(set map[string]bool) []string {
	roles := make([]string, 0, len(set))
	for role, v := range set {
		if v {
			roles = append(roles, role)
		}
	}
	sort.Strings(roles)
	return roles
}
