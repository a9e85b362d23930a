package parsers

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"strings"

	"golang.org/x/net/html"
)

// DefaultCatalogueMarker is the meta attribute that stops extraction.
const DefaultCatalogueMarker = "data-catalogue"

// Elements whose reference is a navigational link.
var linkers = map[string]bool{
	"a":    true,
	"area": true,
}

// Elements whose reference is an embedded resource.
var includers = map[string]bool{
	"audio":  true,
	"embed":  true,
	"iframe": true,
	"img":    true,
	"input":  true,
	"link":   true,
	"script": true,
	"source": true,
	"track":  true,
	"video":  true,
}

// HTMLParser extracts title, links, inclusions and roles from hypertext.
type HTMLParser struct {
	marker string
}

// NewHTMLParser creates a new hypertext parser. marker names the meta
// attribute that excludes the rest of a document from cataloguing; an
// empty marker selects DefaultCatalogueMarker.
func NewHTMLParser(marker string) *HTMLParser {
	if marker == "" {
		marker = DefaultCatalogueMarker
	}
	return &HTMLParser{marker: strings.ToLower(marker)}
}

// Kind returns the file kind this parser handles.
func (p *HTMLParser) Kind() string {
	return "hypertext"
}

// Parse builds the HTML5 tree of content and walks its elements in
// document order, keeping a running base that starts at filePath.
func (p *HTMLParser) Parse(_ context.Context, filePath string, content []byte) (*Document, error) {
	root, err := html.ParseWithOptions(bytes.NewReader(content), html.ParseOptionEnableScripting(false))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filePath, err)
	}

	doc := NewDocument()
	base := filePath

	for el := range elements(root) {
		attrs := attributes(el)

		switch {
		case el.Data == "title":
			if doc.Title == nil {
				doc.SetTitle(Normalize(text(el)))
			}

		case el.Data == "base":
			if b, ok := ResolveAttrs(base, attrs); ok {
				base = b
			}

		case el.Data == "meta":
			if _, ok := attrs[p.marker]; ok {
				return doc, nil
			}

		case el.Data == "style":
			for _, uri := range ExtractInclusions(base, text(el)) {
				doc.Inclusions[uri] = struct{}{}
			}

		case linkers[el.Data] || includers[el.Data]:
			uri, ok := ResolveAttrs(base, attrs)
			if !ok || !IsLocal(uri) {
				continue
			}
			if linkers[el.Data] {
				doc.Links[uri] = struct{}{}
			} else {
				doc.Inclusions[uri] = struct{}{}
			}
			for _, role := range roles(attrs["rel"]) {
				doc.Roles[RolePair{Target: uri, Role: role}] = struct{}{}
			}
		}
	}

	return doc, nil
}

// elements yields the element nodes below n in document order.
// Breaking out of the range stops the walk.
func elements(n *html.Node) iter.Seq[*html.Node] {
	return func(yield func(*html.Node) bool) {
		var walk func(*html.Node) bool
		walk = func(n *html.Node) bool {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && !yield(c) {
					return false
				}
				if !walk(c) {
					return false
				}
			}
			return true
		}
		walk(n)
	}
}

// attributes returns the attributes of an element keyed by name.
func attributes(n *html.Node) map[string]string {
	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		if _, seen := attrs[a.Key]; !seen {
			attrs[a.Key] = a.Val
		}
	}
	return attrs
}

// text concatenates the text of all descendants of n.
func text(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			}
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}

// roles splits a rel attribute into its unique tokens.
func roles(rel string) []string {
	rel = Normalize(rel)
	if rel == "" {
		return nil
	}

	seen := make(map[string]bool)
	var tokens []string
	for _, tok := range strings.Split(rel, " ") {
		if !seen[tok] {
			seen[tok] = true
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
