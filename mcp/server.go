// Package mcp provides the MCP (Model Context Protocol) server for Tangle.
//
// The server answers questions about a single metadata graph: what is
// known about a path, which references are broken, which files are
// orphaned, and how large the graph is.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/tangle/internal/config"
	"github.com/Benny93/tangle/internal/graph"
	"github.com/Benny93/tangle/internal/report"
)

// Server represents the MCP server.
type Server struct {
	graph  *graph.MetadataGraph
	cfg    *config.Config
	server *mcp.Server
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server for g.
func NewServer(g *graph.MetadataGraph, cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Server{
		graph: g,
		cfg:   cfg,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "tangle",
		Version: "0.1.0",
	}, nil)

	s.registerTools()
	s.registerResources()

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	noArgs := func() *jsonschema.Schema {
		return &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		}
	}

	return []Tool{
		{
			Name:        "tangle_lookup",
			Description: "Show everything known about a path: existence, title, link and inclusion flags, roles, and the files that refer to it.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"path": {Type: "string", Description: "Path relative to the scanned root"},
				},
				Required: []string{"path"},
			},
		},
		{
			Name:        "tangle_broken",
			Description: "List referenced paths that do not exist, with the files referring to them.",
			InputSchema: noArgs(),
		},
		{
			Name:        "tangle_orphans",
			Description: "List existing files that nothing links to or includes.",
			InputSchema: noArgs(),
		},
		{
			Name:        "tangle_stats",
			Description: "Summarize the size of the graph.",
			InputSchema: noArgs(),
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "tangle://contents",
			Name:        "Contents",
			Description: "Contents page of the scanned tree",
			MimeType:    "text/html",
		},
		{
			URI:         "tangle://graph",
			Name:        "Metadata Graph",
			Description: "The full metadata graph as a JSON object keyed by path",
			MimeType:    "application/json",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "tangle_lookup":
		path, _ := args["path"].(string)
		return handleLookup(s.graph, path)
	case "tangle_broken":
		return handleBroken(s.graph), nil
	case "tangle_orphans":
		return handleOrphans(s.graph), nil
	case "tangle_stats":
		return handleStats(s.graph), nil
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "tangle://contents":
		var buf bytes.Buffer
		if err := report.Contents(&buf, s.graph, s.cfg); err != nil {
			return "", err
		}
		return buf.String(), nil
	case "tangle://graph":
		data, err := s.graph.MarshalJSON()
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run serves MCP over the given streams until the client disconnects or
// ctx is cancelled.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	transport := &mcp.IOTransport{
		Reader: io.NopCloser(stdin),
		Writer: nopWriteCloser{stdout},
	}
	return s.server.Run(ctx, transport)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Tool Handlers

func handleLookup(g *graph.MetadataGraph, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	path = strings.TrimPrefix(path, "/")

	rec := g.Get(path)
	if rec == nil {
		return fmt.Sprintf("Path '%s' is not in the graph.", path), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", path)
	fmt.Fprintf(&b, "**Exists:** %s\n", yesNo(rec.Exists))
	if rec.Title != nil {
		fmt.Fprintf(&b, "**Title:** %s\n", *rec.Title)
	}
	fmt.Fprintf(&b, "**Linked:** %s\n", yesNo(rec.Linked))
	fmt.Fprintf(&b, "**Included:** %s\n", yesNo(rec.Included))
	if roles := graph.Roles(rec.Has); len(roles) > 0 {
		fmt.Fprintf(&b, "**Has roles:** %s\n", strings.Join(roles, ", "))
	}
	if roles := graph.Roles(rec.Is); len(roles) > 0 {
		fmt.Fprintf(&b, "**Is roles:** %s\n", strings.Join(roles, ", "))
	}

	fmt.Fprintf(&b, "\n### Inbound (%d)\n", len(rec.Inbound))
	if len(rec.Inbound) == 0 {
		b.WriteString("None\n")
	}
	for _, src := range rec.Inbound {
		fmt.Fprintf(&b, "- %s\n", src)
	}
	return b.String(), nil
}

func handleBroken(g *graph.MetadataGraph) string {
	broken := g.Broken()
	if len(broken) == 0 {
		return "No broken references."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Broken references (%d):\n\n", len(broken))
	for _, p := range broken {
		fmt.Fprintf(&b, "- %s (from %s)\n", p, strings.Join(g.Get(p).Inbound, ", "))
	}
	return b.String()
}

func handleOrphans(g *graph.MetadataGraph) string {
	orphans := g.Orphans()
	if len(orphans) == 0 {
		return "No orphaned files."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Orphaned files (%d):\n\n", len(orphans))
	for _, p := range orphans {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	return b.String()
}

func handleStats(g *graph.MetadataGraph) string {
	stats := g.Stats()

	var b strings.Builder
	b.WriteString("# Metadata Graph\n\n")
	fmt.Fprintf(&b, "Paths: %d\n", stats["paths"])
	fmt.Fprintf(&b, "Existing: %d\n", stats["existing"])
	fmt.Fprintf(&b, "Missing: %d\n", stats["missing"])
	fmt.Fprintf(&b, "Linked: %d\n", stats["linked"])
	fmt.Fprintf(&b, "Included: %d\n", stats["included"])
	fmt.Fprintf(&b, "Edges: %d\n", stats["edges"])
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// registerTools registers every tool with the MCP server, dispatching to
// CallTool. Tool failures are reported to the client as error results.
func (s *Server) registerTools() {
	for _, tool := range s.ListTools() {
		name := tool.Name
		s.server.AddTool(&mcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := make(map[string]any)
			if len(req.Params.Arguments) > 0 {
				if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
					return errorResult(fmt.Errorf("invalid arguments: %w", err)), nil
				}
			}
			text, err := s.CallTool(ctx, name, args)
			if err != nil {
				return errorResult(err), nil
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: text}},
			}, nil
		})
	}
}

// registerResources registers every resource with the MCP server,
// dispatching to ReadResource.
func (s *Server) registerResources() {
	for _, res := range s.ListResources() {
		mimeType := res.MimeType
		s.server.AddResource(&mcp.Resource{
			URI:         res.URI,
			Name:        res.Name,
			Description: res.Description,
			MIMEType:    res.MimeType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			text, err := s.ReadResource(ctx, req.Params.URI)
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: req.Params.URI, MIMEType: mimeType, Text: text},
				},
			}, nil
		})
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}
