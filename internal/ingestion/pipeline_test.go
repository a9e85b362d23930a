package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/tangle/internal/config"
	"github.com/Benny93/tangle/internal/graph"
	"github.com/Benny93/tangle/internal/parsers"
	"github.com/Benny93/tangle/internal/storage"
)

// testConfig returns the default configuration with an image tool that
// cannot be found, so scans never depend on the host.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.ImageTool = "/nonexistent/tangle-image-tool"
	cfg.Workers = 4
	return cfg
}

func runPipeline(t *testing.T, root string) *graph.MetadataGraph {
	t.Helper()
	g, _, err := RunPipeline(context.Background(), root, testConfig(), nil, nil, false)
	require.NoError(t, err)
	return g
}

type failingParser struct{}

func (failingParser) Kind() string { return config.KindText }

func (failingParser) Parse(context.Context, string, []byte) (*parsers.Document, error) {
	return nil, errors.New("boom")
}

func TestRunPipeline_LinksAndMissingTargets(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"a.html": `<a href="b.html">b</a><a href="c.html">c</a>`,
		"b.html": `<title>B</title>`,
	})

	g := runPipeline(t, root)

	b := g.Get("b.html")
	require.NotNil(t, b)
	assert.True(t, b.Exists)
	assert.True(t, b.Linked)
	assert.Equal(t, "B", b.TitleOr(""))
	assert.Equal(t, []string{"a.html"}, b.Inbound)

	c := g.Get("c.html")
	require.NotNil(t, c)
	assert.False(t, c.Exists)
	assert.True(t, c.Linked)
	assert.Equal(t, []string{"a.html"}, c.Inbound)

	a := g.Get("a.html")
	require.NotNil(t, a)
	assert.True(t, a.Exists)
	assert.False(t, a.Linked)
	assert.Empty(t, a.Inbound)

	assert.Equal(t, []string{"c.html"}, g.Broken())
	assert.Equal(t, []string{"a.html"}, g.Orphans())
}

func TestRunPipeline_EveryFileExists(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"index.html":    `<title>Home</title>`,
		"notes.txt":     "# Notes\nbody",
		"data.bin":      "\x00\x01",
		"img/photo.png": "not really a png",
		"sub/page.htm":  `<p>page</p>`,
		"sub/style.css": `body{}`,
		".git/config":   "[core]",
		".DS_Store":     "junk",
		"sub/.DS_Store": "junk",
	})

	g := runPipeline(t, root)

	assert.Equal(t, []string{
		"data.bin",
		"img/photo.png",
		"index.html",
		"notes.txt",
		"sub/page.htm",
		"sub/style.css",
	}, g.Paths())
	for _, path := range g.Paths() {
		assert.True(t, g.Get(path).Exists, path)
	}

	assert.Equal(t, "Notes", g.Get("notes.txt").TitleOr(""))
	assert.Nil(t, g.Get("img/photo.png").Title)
	assert.Nil(t, g.Get("data.bin").Title)
}

func TestRunPipeline_StylesheetInclusions(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"d/style.css": `.x{background:url('img/x.png')}`,
		"d/img/x.png": "png",
		"page.html":   `<link rel="stylesheet" href="d/style.css">`,
	})

	g := runPipeline(t, root)

	x := g.Get("d/img/x.png")
	require.NotNil(t, x)
	assert.True(t, x.Exists)
	assert.True(t, x.Included)
	assert.False(t, x.Linked)
	assert.Equal(t, []string{"d/style.css"}, x.Inbound)

	css := g.Get("d/style.css")
	require.NotNil(t, css)
	assert.True(t, css.Included)
	assert.True(t, css.IsRole(graph.RoleStylesheet))
	assert.Equal(t, []string{"page.html"}, css.Inbound)

	page := g.Get("page.html")
	require.NotNil(t, page)
	assert.True(t, page.HasRole(graph.RoleStylesheet))
}

func TestRunPipeline_ArchivedDocuments(t *testing.T) {
	t.Parallel()

	// The archiving page sorts after the page it archives, so the role is
	// only known once every file has been read.
	root := writeTree(t, map[string]string{
		"a.html": `<a href="b.html">b</a><img src="pic.png">`,
		"b.html": `<p>b</p>`,
		"z.html": `<a rel="archived" href="a.html">old</a>`,
	})

	g := runPipeline(t, root)

	a := g.Get("a.html")
	require.NotNil(t, a)
	assert.True(t, a.IsRole(graph.RoleArchived))
	assert.True(t, a.Linked)
	assert.Equal(t, []string{"z.html"}, a.Inbound)

	b := g.Get("b.html")
	require.NotNil(t, b)
	assert.False(t, b.Linked)
	assert.Empty(t, b.Inbound)

	assert.Nil(t, g.Get("pic.png"), "archived pages reference nothing")
	assert.True(t, g.Get("z.html").HasRole(graph.RoleArchived))
	assert.Equal(t, []string{"b.html", "z.html"}, g.Orphans())
}

func TestRunPipeline_InboundOrder(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"a.html": `<a href="pic.png">full size</a><img src="pic.png">`,
		"b.html": `<a href="pic.png">again</a><a href="pic.png">and again</a>`,
		"c.css":  `div{background:url(pic.png)} p{background:url(pic.png)}`,
	})

	g := runPipeline(t, root)

	pic := g.Get("pic.png")
	require.NotNil(t, pic)
	assert.False(t, pic.Exists)
	assert.True(t, pic.Linked)
	assert.True(t, pic.Included)
	// One entry per distinct kind of reference from each source, sources
	// in traversal order.
	assert.Equal(t, []string{"a.html", "a.html", "b.html", "c.css"}, pic.Inbound)
}

func TestRunPipeline_StylesheetEdgesFollowTraversal(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"a.html": `<img src="x.png">`,
		"z.css":  `.x{background:url(x.png)}`,
	})

	g := runPipeline(t, root)

	assert.Equal(t, []string{"a.html", "z.css"}, g.Get("x.png").Inbound)
}

func TestRunPipeline_CatalogueMarker(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"page.html": `<html><head><title>Kept</title><meta data-catalogue></head>
<body><a href="never.html">x</a></body></html>`,
	})

	g := runPipeline(t, root)

	assert.Equal(t, "Kept", g.Get("page.html").TitleOr(""))
	assert.Nil(t, g.Get("never.html"))
}

func TestRunPipeline_ExternalReferences(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"page.html": `<a href="http://example.com/x" rel="external">x</a>
<a href="mailto:me@example.com">mail</a>`,
	})

	g := runPipeline(t, root)

	assert.Equal(t, []string{"page.html"}, g.Paths())
	assert.Empty(t, g.Get("page.html").Has)
}

func TestRunPipeline_Idempotent(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"index.html":   `<title>Home</title><a href="a.html">a</a><a href="gone.html">g</a>`,
		"a.html":       `<a rel="chapter" href="ch1.html">1</a><img src="img/x.png">`,
		"ch1.html":     `<title>One</title><a href="index.html">home</a>`,
		"site.css":     `@import "print.css";`,
		"notes.txt":    "notes",
		"archive.html": `<a rel="archived" href="ch1.html">old</a>`,
	})

	var first, second bytes.Buffer
	_, err := runPipeline(t, root).WriteTo(&first)
	require.NoError(t, err)
	_, err = runPipeline(t, root).WriteTo(&second)
	require.NoError(t, err)

	assert.JSONEq(t, first.String(), second.String())
}

func TestRunPipeline_Root(t *testing.T) {
	t.Parallel()

	t.Run("Missing", func(t *testing.T) {
		_, _, err := RunPipeline(context.Background(), filepath.Join(t.TempDir(), "nope"), testConfig(), nil, nil, false)
		assert.ErrorIs(t, err, ErrRootNotFound)
	})

	t.Run("Empty", func(t *testing.T) {
		g, result, err := RunPipeline(context.Background(), t.TempDir(), testConfig(), nil, nil, false)
		require.NoError(t, err)
		assert.Equal(t, 0, g.NodeCount())
		assert.Equal(t, 0, result.Files)
	})
}

func TestRunPipeline_Cancelled(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"a.html": "<p>a</p>"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := RunPipeline(ctx, root, testConfig(), nil, nil, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunPipeline_StoreAndProgress(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"a.html": `<a href="b.html">b</a>`,
		"b.html": `<title>B</title>`,
	})
	store := storage.NewMemoryBackend()

	var phases []string
	progress := func(phase string, pct float64) {
		if pct == 1.0 {
			phases = append(phases, phase)
		}
	}

	g, result, err := RunPipeline(context.Background(), root, testConfig(), store, progress, false)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Walking files",
		"Extracting documents",
		"Recording facts",
		"Resolving references",
		"Loading to storage",
	}, phases)

	assert.Equal(t, 2, result.Files)
	assert.Equal(t, 2, result.Extracted)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 2, result.Paths)
	assert.Equal(t, 0, result.Missing)
	assert.Equal(t, 1, result.Edges)

	assert.Equal(t, g.NodeCount(), store.RecordCount())
	rec, err := store.GetRecord(context.Background(), "b.html")
	require.NoError(t, err)
	assert.Equal(t, g.Get("b.html"), rec)
}

func TestRunPipeline_Gitignore(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		".gitignore":      "drafts/\n",
		"index.html":      `<a href="drafts/wip.html">wip</a>`,
		"drafts/wip.html": `<p>wip</p>`,
	})

	g, _, err := RunPipeline(context.Background(), root, testConfig(), nil, nil, true)
	require.NoError(t, err)

	wip := g.Get("drafts/wip.html")
	require.NotNil(t, wip)
	assert.False(t, wip.Exists)
	assert.True(t, wip.Linked)
}

func TestProcessExtraction_Degrades(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"bad.txt":  "title",
		"ok.html":  `<title>OK</title><a href="bad.txt">x</a>`,
		"blob.bin": "\x00",
	})
	classifier := NewClassifier(root, testConfig())
	classifier.parsers[config.KindText] = failingParser{}

	entry := func(rel, kind string) FileEntry {
		return FileEntry{Path: filepath.Join(root, rel), RelPath: rel, Kind: kind}
	}
	entries := []FileEntry{
		entry("bad.txt", config.KindText),
		entry("blob.bin", config.KindOther),
		// Removed between walk and extraction.
		entry("gone.html", config.KindHypertext),
		entry("ok.html", config.KindHypertext),
	}

	data, err := ProcessExtraction(context.Background(), entries, classifier, 2)
	require.NoError(t, err)
	assert.Nil(t, data.Get("bad.txt"))
	assert.Nil(t, data.Get("gone.html"))
	assert.Nil(t, data.Get("blob.bin"))
	require.NotNil(t, data.Get("ok.html"))

	g := graph.NewMetadataGraph()
	ProcessFacts(entries, data, g)
	ProcessReferences(entries, data, g)

	assert.Equal(t, []string{"bad.txt", "blob.bin", "gone.html", "ok.html"}, g.Paths())
	for _, path := range g.Paths() {
		assert.True(t, g.Get(path).Exists, path)
	}
	assert.Nil(t, g.Get("bad.txt").Title)
	assert.Nil(t, g.Get("gone.html").Title)
	assert.Equal(t, "OK", g.Get("ok.html").TitleOr(""))
	assert.True(t, g.Get("bad.txt").Linked)
}

// lengthParser reads no content and titles each document with the
// number of bytes it was given.
type lengthParser struct{}

func (lengthParser) Kind() string { return config.KindImage }

func (lengthParser) NeedsContent() bool { return false }

func (lengthParser) Parse(_ context.Context, _ string, content []byte) (*parsers.Document, error) {
	doc := parsers.NewDocument()
	doc.SetTitle(fmt.Sprintf("bytes=%d", len(content)))
	return doc, nil
}

func TestProcessExtraction_SkipsReadWhenContentUnused(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"pic.png": "large image bytes"})
	classifier := NewClassifier(root, testConfig())
	classifier.parsers[config.KindImage] = lengthParser{}

	entries := []FileEntry{
		{Path: filepath.Join(root, "pic.png"), RelPath: "pic.png", Kind: config.KindImage},
		{Path: filepath.Join(root, "missing.png"), RelPath: "missing.png", Kind: config.KindImage},
	}

	data, err := ProcessExtraction(context.Background(), entries, classifier, 1)
	require.NoError(t, err)

	for _, rel := range []string{"pic.png", "missing.png"} {
		doc := data.Get(rel)
		require.NotNil(t, doc, rel)
		assert.Equal(t, "bytes=0", *doc.Title, rel)
	}
}

func TestProcessFacts_TitlesOnlyWhenPresent(t *testing.T) {
	t.Parallel()

	entries := []FileEntry{
		{RelPath: "titled.html", Kind: config.KindHypertext},
		{RelPath: "untitled.html", Kind: config.KindHypertext},
	}
	data := NewExtractData()
	titled := parsers.NewDocument()
	titled.SetTitle("")
	data.AddFile("titled.html", titled)
	data.AddFile("untitled.html", parsers.NewDocument())

	g := graph.NewMetadataGraph()
	ProcessFacts(entries, data, g)

	require.NotNil(t, g.Get("titled.html").Title)
	assert.Equal(t, "", *g.Get("titled.html").Title)
	assert.Nil(t, g.Get("untitled.html").Title)
}
