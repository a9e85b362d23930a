// Package cmd provides CLI command implementations for Tangle.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/Benny93/tangle/internal/config"
	"github.com/Benny93/tangle/internal/graph"
	"github.com/Benny93/tangle/internal/ingestion"
	"github.com/Benny93/tangle/internal/logfields"
	"github.com/Benny93/tangle/internal/report"
	"github.com/Benny93/tangle/internal/storage"
	"github.com/Benny93/tangle/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Terminal holds the streams commands read from and write to.
type Terminal struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Quiet suppresses human-facing summaries on Err.
	Quiet bool
}

// StdTerminal returns a Terminal bound to the process streams.
func StdTerminal() *Terminal {
	return &Terminal{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// GraphSource selects where a command reads a stored graph from.
type GraphSource struct {
	Graph string `short:"g" env:"TANGLE_GRAPH" help:"Read the graph from FILE ('-' or empty for stdin)" placeholder:"FILE"`
	DB    string `env:"TANGLE_DB" help:"Read the graph from the database at DIR" placeholder:"DIR"`
}

// ScanCmd scans a document tree into a metadata graph.
type ScanCmd struct {
	Root      string `arg:"" help:"Directory to scan"`
	Output    string `short:"o" env:"TANGLE_OUTPUT" help:"Write the graph to FILE instead of stdout" placeholder:"FILE"`
	DB        string `env:"TANGLE_DB" help:"Also store the graph in the database at DIR" placeholder:"DIR"`
	Config    string `short:"c" env:"TANGLE_CONFIG" help:"YAML configuration file" placeholder:"FILE"`
	Workers   int    `short:"j" env:"TANGLE_WORKERS" help:"Files extracted concurrently (default: configured or CPU count)"`
	Gitignore bool   `env:"TANGLE_GITIGNORE" help:"Also honour the tree's .gitignore"`
	Exiftool  string `env:"TANGLE_EXIFTOOL" help:"Image metadata command" placeholder:"CMD"`
}

// Run executes the scan command.
func (c *ScanCmd) Run(ctx context.Context, term *Terminal) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if c.Workers > 0 {
		cfg.Workers = c.Workers
	}
	if c.Exiftool != "" {
		cfg.ImageTool = c.Exiftool
	}

	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	if err := ingestion.CheckRoot(root); err != nil {
		return fmt.Errorf("scanning %s: %w", root, err)
	}

	var store storage.StorageBackend
	if c.DB != "" {
		if err := os.MkdirAll(c.DB, 0o755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
		badger := storage.NewBadgerBackend()
		if err := badger.Initialize(c.DB, false); err != nil {
			return fmt.Errorf("initializing storage: %w", err)
		}
		defer func() { _ = badger.Close() }()
		store = badger
	}

	progress := func(phase string, pct float64) {
		slog.Debug("scan progress", logfields.Stage(phase), slog.Float64("progress", pct))
	}

	g, result, err := ingestion.RunPipeline(ctx, root, cfg, store, progress, c.Gitignore)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", root, err)
	}

	if store != nil {
		meta := storage.ScanMeta{Root: root, ScannedAt: time.Now().UTC(), Paths: result.Paths}
		if err := store.SetMeta(ctx, meta); err != nil {
			return fmt.Errorf("writing scan metadata: %w", err)
		}
	}

	if err := writeGraph(g, c.Output, term.Out); err != nil {
		return err
	}

	if !term.Quiet {
		color.New(color.FgGreen).Fprintf(term.Err, "✓ Scanned %s\n", root)
		fmt.Fprintf(term.Err, "  Files:     %d\n", result.Files)
		fmt.Fprintf(term.Err, "  Paths:     %d\n", result.Paths)
		fmt.Fprintf(term.Err, "  Missing:   %d\n", result.Missing)
		fmt.Fprintf(term.Err, "  Edges:     %d\n", result.Edges)
		if result.Failed > 0 {
			color.New(color.FgYellow).Fprintf(term.Err, "  Failed:    %d\n", result.Failed)
		}
		fmt.Fprintf(term.Err, "  Duration:  %.2fs\n", result.DurationSecs)
	}

	return nil
}

// ContentsCmd renders the contents page of a stored graph.
type ContentsCmd struct {
	GraphSource `embed:""`

	Config string `short:"c" env:"TANGLE_CONFIG" help:"YAML configuration file" placeholder:"FILE"`
}

// Run executes the contents command.
func (c *ContentsCmd) Run(ctx context.Context, term *Terminal) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	g, err := loadGraph(ctx, c.GraphSource, term)
	if err != nil {
		return err
	}
	return report.Contents(term.Out, g, cfg)
}

// BrokenCmd lists referenced paths that do not exist.
type BrokenCmd struct {
	GraphSource `embed:""`

	JSON bool `help:"Print JSON"`
}

type brokenEntry struct {
	Path    string   `json:"path"`
	Inbound []string `json:"inbound"`
}

// Run executes the broken command.
func (c *BrokenCmd) Run(ctx context.Context, term *Terminal) error {
	g, err := loadGraph(ctx, c.GraphSource, term)
	if err != nil {
		return err
	}

	entries := make([]brokenEntry, 0)
	for _, p := range g.Broken() {
		entries = append(entries, brokenEntry{Path: p, Inbound: g.Get(p).Inbound})
	}

	if c.JSON {
		fmt.Fprintln(term.Out, toJSON(entries))
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(term.Out, "%s\t%s\n", e.Path, strings.Join(e.Inbound, ", "))
	}
	if !term.Quiet && len(entries) == 0 {
		color.New(color.FgGreen).Fprintln(term.Err, "No broken references")
	}
	return nil
}

// OrphansCmd lists existing files nothing links to or includes.
type OrphansCmd struct {
	GraphSource `embed:""`

	JSON bool `help:"Print JSON"`
}

// Run executes the orphans command.
func (c *OrphansCmd) Run(ctx context.Context, term *Terminal) error {
	g, err := loadGraph(ctx, c.GraphSource, term)
	if err != nil {
		return err
	}

	orphans := g.Orphans()
	if c.JSON {
		if orphans == nil {
			orphans = []string{}
		}
		fmt.Fprintln(term.Out, toJSON(orphans))
		return nil
	}
	for _, p := range orphans {
		fmt.Fprintln(term.Out, p)
	}
	return nil
}

// StatusCmd shows what a database holds.
type StatusCmd struct {
	DB string `required:"" env:"TANGLE_DB" help:"Database directory" placeholder:"DIR"`
}

// Run executes the status command.
func (c *StatusCmd) Run(ctx context.Context, term *Terminal) error {
	store, err := openStore(c.DB)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	meta, err := store.Meta(ctx)
	if err != nil {
		return err
	}
	g, err := store.LoadGraph(ctx)
	if err != nil {
		return fmt.Errorf("loading graph: %w", err)
	}
	stats := g.Stats()

	fmt.Fprintf(term.Out, "Database %s\n", c.DB)
	if meta != nil {
		fmt.Fprintf(term.Out, "  Root:       %s\n", meta.Root)
		fmt.Fprintf(term.Out, "  Scanned:    %s\n", meta.ScannedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(term.Out, "  Paths:      %d\n", stats["paths"])
	fmt.Fprintf(term.Out, "  Existing:   %d\n", stats["existing"])
	fmt.Fprintf(term.Out, "  Missing:    %d\n", stats["missing"])
	fmt.Fprintf(term.Out, "  Linked:     %d\n", stats["linked"])
	fmt.Fprintf(term.Out, "  Included:   %d\n", stats["included"])
	fmt.Fprintf(term.Out, "  Edges:      %d\n", stats["edges"])

	return nil
}

// ServeCmd starts the MCP server over stdio.
type ServeCmd struct {
	GraphSource `embed:""`

	Config string `short:"c" env:"TANGLE_CONFIG" help:"YAML configuration file" placeholder:"FILE"`
}

// Run executes the serve command.
func (c *ServeCmd) Run(ctx context.Context, term *Terminal) error {
	if c.Graph == "" && c.DB == "" {
		return errors.New("serve needs --graph FILE or --db DIR, stdin carries the protocol")
	}
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	g, err := loadGraph(ctx, c.GraphSource, term)
	if err != nil {
		return err
	}

	slog.Info("starting MCP server", logfields.Count(g.NodeCount()))

	// No other output on stdout, it carries JSON-RPC only.
	server := mcp.NewServer(g, cfg)
	return server.Run(ctx, term.In, term.Out)
}

// Helper functions

func writeGraph(g *graph.MetadataGraph, output string, stdout io.Writer) error {
	if output == "" || output == "-" {
		if _, err := g.WriteTo(stdout); err != nil {
			return fmt.Errorf("writing graph: %w", err)
		}
		_, err := fmt.Fprintln(stdout)
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	if _, err := g.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", output, err)
	}
	return f.Close()
}

func loadGraph(ctx context.Context, src GraphSource, term *Terminal) (*graph.MetadataGraph, error) {
	if src.DB != "" {
		store, err := openStore(src.DB)
		if err != nil {
			return nil, err
		}
		defer func() { _ = store.Close() }()
		return store.LoadGraph(ctx)
	}

	if src.Graph == "" || src.Graph == "-" {
		return graph.ReadGraph(term.In)
	}

	f, err := os.Open(src.Graph)
	if err != nil {
		return nil, fmt.Errorf("opening graph: %w", err)
	}
	defer f.Close()
	return graph.ReadGraph(f)
}

func openStore(dbPath string) (*storage.BadgerBackend, error) {
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no database at %s. Run 'tangle scan --db %s' first", dbPath, dbPath)
	}

	store := storage.NewBadgerBackend()
	if err := store.Initialize(dbPath, true); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

func toJSON(v any) string {
	bytes, _ := json.Marshal(v)
	return string(bytes)
}

// setupLogging installs the process-wide structured logger on w.
func setupLogging(w io.Writer, verbose, quiet bool) {
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// CLI defines the command-line interface.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Verbose bool             `short:"v" env:"TANGLE_VERBOSE" help:"Enable debug logging"`
	Quiet   bool             `short:"q" env:"TANGLE_QUIET" help:"Only log warnings and errors, no summaries"`

	// Commands
	Scan     ScanCmd     `cmd:"" help:"Scan a document tree into a metadata graph"`
	Contents ContentsCmd `cmd:"" help:"Render the contents page of a graph"`
	Broken   BrokenCmd   `cmd:"" help:"List referenced paths that do not exist"`
	Orphans  OrphansCmd  `cmd:"" help:"List files nothing links to or includes"`
	Status   StatusCmd   `cmd:"" help:"Show what a database holds"`
	Serve    ServeCmd    `cmd:"" help:"Start MCP server (stdio transport)"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return c.run(ctx, args, StdTerminal())
}

func (c *CLI) run(ctx context.Context, args []string, term *Terminal) error {
	parser, err := kong.New(c,
		kong.Name("tangle"),
		kong.Description("Link and inclusion graph builder for static document trees"),
		kong.UsageOnError(),
		kong.Writers(term.Out, term.Err),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	setupLogging(term.Err, c.Verbose, c.Quiet)
	term.Quiet = term.Quiet || c.Quiet

	kongCtx.BindTo(ctx, (*context.Context)(nil))
	return kongCtx.Run(term)
}
