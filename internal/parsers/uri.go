package parsers

import (
	"net/url"
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`[ \t\r\n\f]+`)

// Normalize collapses runs of HTML whitespace into single spaces and trims the ends.
func Normalize(text string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(text, " "))
}

// Reference picks the reference carried by an element's attributes:
// href wins over src when both are non-empty. The result is
// whitespace-normalized. ok is false if neither attribute is set.
func Reference(attrs map[string]string) (ref string, ok bool) {
	if href := attrs["href"]; href != "" {
		return Normalize(href), true
	}
	if src := attrs["src"]; src != "" {
		return Normalize(src), true
	}
	return "", false
}

// Resolve resolves ref against base using RFC 3986 reference resolution
// and strips the fragment.
//
// Tree-relative bases ("d/a.html") are unescaped keys rooted at the scan
// root, and results inside the tree are returned as unescaped
// tree-relative keys again, so a root-absolute reference like "/x.html"
// names the file x.html at the top of the tree. Queries do not name
// files and are dropped from local keys. ok is false for malformed
// references and for references that resolve to the bare root.
func Resolve(base, ref string) (string, bool) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", false
	}

	baseURL, err := parseBase(base)
	if err != nil {
		return "", false
	}

	resolved := baseURL.ResolveReference(refURL)
	resolved.Fragment = ""
	resolved.RawFragment = ""

	if resolved.Scheme != "" || resolved.Host != "" || resolved.Opaque != "" {
		return resolved.String(), true
	}

	p := strings.TrimPrefix(resolved.Path, "/")
	if p == "" {
		return "", false
	}
	return p, true
}

// parseBase turns a base into a URL. Local bases are keys, not
// references, so they are taken as a path verbatim.
func parseBase(base string) (*url.URL, error) {
	if IsLocal(base) {
		return &url.URL{Path: "/" + strings.TrimPrefix(base, "/")}, nil
	}
	return url.Parse(base)
}

// Escape returns the tree-relative reference naming key. Resolving it
// against the root, or "/"+Escape(key) against any local base, yields key.
func Escape(key string) string {
	return (&url.URL{Path: key}).String()
}

// ResolveAttrs picks the reference from attrs and resolves it against base.
func ResolveAttrs(base string, attrs map[string]string) (string, bool) {
	ref, ok := Reference(attrs)
	if !ok {
		return "", false
	}
	return Resolve(base, ref)
}

// IsLocal reports whether uri refers to a path inside the scanned tree:
// it is non-empty and has no scheme separator.
func IsLocal(uri string) bool {
	return uri != "" && !strings.Contains(uri, ":")
}
