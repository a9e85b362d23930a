// Package report renders a metadata graph as a human-readable contents page.
package report

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Benny93/tangle/internal/config"
	"github.com/Benny93/tangle/internal/graph"
	"github.com/Benny93/tangle/internal/parsers"
)

// Contents writes the contents page for g to w.
//
// Paths with fewer than two slashes are listed before deeper ones. Within
// each group, paths are sectioned by directory and then by category.
// Every referenced path that does not exist is reported as NOT FOUND
// together with the files that refer to it.
func Contents(w io.Writer, g *graph.MetadataGraph, cfg *config.Config) error {
	if cfg == nil {
		cfg = config.Default()
	}

	var shallow, deep []string
	for _, p := range g.Paths() {
		if strings.Count(p, "/") < 2 {
			shallow = append(shallow, p)
		} else {
			deep = append(deep, p)
		}
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString("<title>Contents</title>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<meta %s=\"false\">\n", cfg.CatalogueMarker)
	for _, href := range cfg.Stylesheets {
		fmt.Fprintf(&b, "<link rel=\"stylesheet\" href=\"%s\">\n", escape(href))
	}
	b.WriteString("\n")

	r := &renderer{g: g, cfg: cfg, b: &b}
	r.section(shallow)
	r.section(deep)

	_, err := io.WriteString(w, b.String())
	return err
}

type renderer struct {
	g   *graph.MetadataGraph
	cfg *config.Config
	b   *strings.Builder
}

type category struct {
	name  string
	items []string
}

func (r *renderer) section(paths []string) {
	for _, dir := range groups(paths, directory) {
		var cats []category
		for _, cat := range groups(dir.paths, r.category) {
			var items []string
			for _, p := range cat.paths {
				if item, ok := r.item(p); ok {
					items = append(items, item)
				}
			}
			if len(items) > 0 {
				cats = append(cats, category{name: cat.key, items: items})
			}
		}
		if len(cats) == 0 {
			continue
		}

		name := dir.key
		if name == "" {
			name = "."
		}
		fmt.Fprintf(r.b, "<h2>%s</h2>\n\n", escape(name))
		for _, cat := range cats {
			fmt.Fprintf(r.b, "<h3>%s</h3>\n\n<ul>\n", escape(cat.name))
			for _, item := range cat.items {
				r.b.WriteString(item)
				r.b.WriteString("\n")
			}
			r.b.WriteString("</ul>\n\n")
		}
	}
}

// item returns the list entry for p. Missing paths are reported
// immediately and produce no entry.
func (r *renderer) item(p string) (string, bool) {
	if strings.HasSuffix(p, ".DS_Store") {
		return "", false
	}
	rec := r.g.Get(p)
	if rec == nil {
		return "", false
	}

	if !rec.Exists {
		fmt.Fprintf(r.b, "<p>NOT FOUND: %s, from %s\n\n",
			escape(p), escape(strings.Join(rec.Inbound, ", ")))
		return "", false
	}

	hypertext := r.cfg.KindOf(path.Ext(p)) == config.KindHypertext
	bold := !rec.Included && (hypertext || !rec.Linked)
	if !bold || rec.IsRole(graph.RoleArchived) || rec.IsRole(graph.RoleChapter) {
		return "", false
	}

	title := truncate(rec.TitleOr(path.Base(p)), r.cfg.TitleLimit)
	if title == "" {
		title = "."
	}
	return fmt.Sprintf("<li><a href=\"%s\">%s</a>", escape(parsers.Escape(p)), escape(title)), true
}

func (r *renderer) category(p string) string {
	return r.cfg.CategoryOf(path.Ext(p))
}

// directory returns the parent directory of p, empty at the top level.
func directory(p string) string {
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}

type group struct {
	key   string
	paths []string
}

// groups partitions paths by key, keeping their order within each group,
// and returns the groups sorted by key.
func groups(paths []string, key func(string) string) []group {
	index := make(map[string]int)
	var out []group
	for _, p := range paths {
		k := key(p)
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, group{key: k})
		}
		out[i].paths = append(out[i].paths, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	return strings.ReplaceAll(s, "<", "&lt;")
}
