package parsers

import (
	"context"
	"path"
	"regexp"
	"strings"
)

// cssRegex matches, leftmost-first and in priority order: comments,
// double-quoted url(), single-quoted url(), bare url(), double-quoted
// strings and single-quoted strings. Comments and strings are consumed
// only so that url() inside them is not picked up.
var cssRegex = regexp.MustCompile(`(?i)` + strings.Join([]string{
	`/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`,
	`url\(\s*"([^"\\]*(?:\\.[^"\\]*)*)"\s*\)`,
	`url\(\s*'([^'\\]*(?:\\.[^'\\]*)*)'\s*\)`,
	`url\(\s*([^)]+)\s*\)`,
	`"[^"\\]*(?:\\.[^"\\]*)*"`,
	`'[^'\\]*(?:\\.[^'\\]*)*'`,
}, "|"))

// ExtractInclusions scans stylesheet text for url() references and
// returns them resolved against base, in order of appearance.
// References with a scheme separator are skipped.
func ExtractInclusions(base, css string) []string {
	var uris []string
	for _, m := range cssRegex.FindAllStringSubmatch(css, -1) {
		link := strings.TrimSpace(firstNonEmpty(m[1], m[2], m[3]))
		if link == "" || strings.Contains(link, ":") {
			continue
		}
		uri, ok := Resolve(base, path.Clean(link))
		if !ok {
			continue
		}
		uris = append(uris, uri)
	}
	return uris
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// StyleParser extracts embedded resources from stylesheets.
type StyleParser struct{}

// NewStyleParser creates a new stylesheet parser.
func NewStyleParser() *StyleParser {
	return &StyleParser{}
}

// Kind returns the file kind this parser handles.
func (p *StyleParser) Kind() string {
	return "stylesheet"
}

// Parse collects the url() inclusions of a stylesheet, resolved against
// the stylesheet's own path. Stylesheets have no title.
func (p *StyleParser) Parse(_ context.Context, filePath string, content []byte) (*Document, error) {
	doc := NewDocument()
	for _, uri := range ExtractInclusions(filePath, string(content)) {
		doc.Inclusions[uri] = struct{}{}
	}
	return doc, nil
}
