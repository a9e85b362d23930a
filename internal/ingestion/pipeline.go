// Package ingestion provides the scan pipeline for Tangle.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Benny93/tangle/internal/config"
	"github.com/Benny93/tangle/internal/graph"
	"github.com/Benny93/tangle/internal/logfields"
	"github.com/Benny93/tangle/internal/parsers"
	"github.com/Benny93/tangle/internal/storage"
)

// ExtractData holds extraction results for all files.
type ExtractData struct {
	mu   sync.RWMutex
	Docs map[string]*parsers.Document
}

// NewExtractData creates a new ExtractData instance.
func NewExtractData() *ExtractData {
	return &ExtractData{
		Docs: make(map[string]*parsers.Document),
	}
}

// AddFile adds the extraction result for a file.
func (e *ExtractData) AddFile(relPath string, doc *parsers.Document) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Docs[relPath] = doc
}

// Get returns the extraction result for a file, or nil.
func (e *ExtractData) Get(relPath string) *parsers.Document {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.Docs[relPath]
}

// PipelineResult summarizes a pipeline run.
type PipelineResult struct {
	Files        int     `json:"files"`
	Extracted    int     `json:"extracted"`
	Failed       int     `json:"failed"`
	Paths        int     `json:"paths"`
	Missing      int     `json:"missing"`
	Edges        int     `json:"edges"`
	DurationSecs float64 `json:"duration_secs"`
}

// ProgressCallback is called with phase name and progress (0.0-1.0).
type ProgressCallback func(phase string, progress float64)

// RunPipeline scans the tree at root and builds its metadata graph.
//
// Only an unusable root is fatal; files that fail to read or parse are
// recorded as existing without further facts. When store is non-nil the
// finished graph is bulk-loaded into it.
func RunPipeline(
	ctx context.Context,
	root string,
	cfg *config.Config,
	store storage.StorageBackend,
	progress ProgressCallback,
	useGitignore bool,
) (*graph.MetadataGraph, *PipelineResult, error) {
	start := time.Now()
	result := &PipelineResult{}

	if cfg == nil {
		cfg = config.Default()
	}
	report := func(phase string, pct float64) {
		if progress != nil {
			progress(phase, pct)
		}
	}

	// Phase 1: File walking
	report("Walking files", 0.0)
	patterns := ParsePatterns(cfg.Ignore)
	if useGitignore {
		gi, err := LoadGitignore(root)
		if err != nil {
			slog.Warn("ignoring unreadable .gitignore", logfields.Root(root), logfields.Error(err))
		}
		patterns = append(patterns, gi...)
	}
	classifier := NewClassifier(root, cfg)
	entries, err := WalkTree(root, classifier, patterns)
	if err != nil {
		return nil, nil, err
	}
	result.Files = len(entries)
	slog.Debug("walked tree", logfields.Root(root), logfields.Count(len(entries)))
	report("Walking files", 1.0)

	// Phase 2: Extraction
	report("Extracting documents", 0.0)
	data, err := ProcessExtraction(ctx, entries, classifier, cfg.Workers)
	if err != nil {
		return nil, nil, err
	}
	for _, entry := range entries {
		if data.Get(entry.RelPath) != nil {
			result.Extracted++
		} else if classifier.ParserFor(entry.Kind) != nil {
			result.Failed++
		}
	}
	report("Extracting documents", 1.0)

	g := graph.NewMetadataGraph()

	// Phase 3: Facts and roles
	report("Recording facts", 0.0)
	ProcessFacts(entries, data, g)
	report("Recording facts", 1.0)

	// Phase 4: Links and inclusions
	report("Resolving references", 0.0)
	ProcessReferences(entries, data, g)
	report("Resolving references", 1.0)

	stats := g.Stats()
	result.Paths = stats["paths"]
	result.Missing = stats["missing"]
	result.Edges = stats["edges"]

	// Store in backend
	if store != nil {
		report("Loading to storage", 0.0)
		if err := store.BulkLoad(ctx, g); err != nil {
			return nil, nil, fmt.Errorf("bulk load: %w", err)
		}
		report("Loading to storage", 1.0)
	}

	result.DurationSecs = time.Since(start).Seconds()
	slog.Info("scan complete",
		logfields.Root(root),
		logfields.Count(result.Paths),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))

	return g, result, nil
}

// ProcessExtraction runs the extractor for every classified file, up to
// workers at a time. Each worker reads its file only when the parser
// needs the bytes, so at most workers files are held in memory.
// Unreadable files and extraction failures are logged and leave no result
// for the file; only context cancellation is returned as an error.
func ProcessExtraction(
	ctx context.Context,
	entries []FileEntry,
	classifier *Classifier,
	workers int,
) (*ExtractData, error) {
	data := NewExtractData()
	if workers < 1 {
		workers = 1
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for _, entry := range entries {
		parser := classifier.ParserFor(entry.Kind)
		if parser == nil {
			continue
		}

		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			content, err := readContent(parser, entry.Path)
			if err != nil {
				slog.Warn("unreadable file recorded without facts",
					logfields.Path(entry.RelPath), logfields.Error(err))
				return nil
			}

			doc, err := parser.Parse(egCtx, entry.RelPath, content)
			if err != nil {
				slog.Warn("extraction failed",
					logfields.Path(entry.RelPath), logfields.Kind(entry.Kind), logfields.Error(err))
				return nil
			}
			data.AddFile(entry.RelPath, doc)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("extracting documents: %w", err)
	}
	return data, nil
}

func readContent(parser parsers.Parser, path string) ([]byte, error) {
	if !parsers.NeedsContent(parser) {
		return nil, nil
	}
	return os.ReadFile(path)
}

// ProcessFacts is the first reconciliation pass: it marks every walked
// file as existing, stores titles, and records role edges of hypertext
// files. Role edges materialize their targets.
func ProcessFacts(entries []FileEntry, data *ExtractData, g *graph.MetadataGraph) {
	for _, entry := range entries {
		g.MarkExists(entry.RelPath)

		doc := data.Get(entry.RelPath)
		if doc == nil {
			continue
		}
		if doc.Title != nil {
			g.SetTitle(entry.RelPath, *doc.Title)
		}
		if entry.Kind != config.KindHypertext {
			continue
		}
		for _, pair := range doc.SortedRoles() {
			g.AddRole(entry.RelPath, pair.Target, pair.Role)
		}
	}
}

// ProcessReferences is the second reconciliation pass. It must run after
// ProcessFacts has completed, because whether a hypertext file counts
// depends on roles that any other file may assign to it.
//
// Archived hypertext files contribute nothing. Other hypertext files mark
// their links linked and their inclusions included; stylesheets mark
// their inclusions included. Every edge appends the source to the
// target's inbound list.
func ProcessReferences(entries []FileEntry, data *ExtractData, g *graph.MetadataGraph) {
	for _, entry := range entries {
		doc := data.Get(entry.RelPath)
		if doc == nil {
			continue
		}

		switch entry.Kind {
		case config.KindHypertext:
			if g.IsArchived(entry.RelPath) {
				slog.Debug("skipping archived document", logfields.Path(entry.RelPath))
				continue
			}
			for _, link := range doc.SortedLinks() {
				g.SetLinked(link)
				g.AppendInbound(link, entry.RelPath)
			}
			addInclusions(entry.RelPath, doc, g)

		case config.KindStylesheet:
			addInclusions(entry.RelPath, doc, g)
		}
	}
}

func addInclusions(source string, doc *parsers.Document, g *graph.MetadataGraph) {
	for _, inc := range doc.SortedInclusions() {
		g.SetIncluded(inc)
		g.AppendInbound(inc, source)
	}
}
