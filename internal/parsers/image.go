package parsers

import (
	"bufio"
	"context"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Benny93/tangle/internal/logfields"
)

// DefaultImageTool is the metadata tool invoked for images.
const DefaultImageTool = "exiftool"

const documentNameField = "Document Name"

// ImageParser takes the title of an image from the "Document Name" field
// reported by an external metadata tool.
type ImageParser struct {
	root    string
	tool    string
	timeout time.Duration
}

// NewImageParser creates a new image parser for the tree at root. It runs
// tool with the image's on-disk path as its only argument; an empty tool
// selects DefaultImageTool. A positive timeout bounds each invocation.
func NewImageParser(root, tool string, timeout time.Duration) *ImageParser {
	if tool == "" {
		tool = DefaultImageTool
	}
	return &ImageParser{root: root, tool: tool, timeout: timeout}
}

// Kind returns the file kind this parser handles.
func (p *ImageParser) Kind() string {
	return "image"
}

// NeedsContent reports false: the metadata tool reads the image itself.
func (p *ImageParser) NeedsContent() bool {
	return false
}

// Parse runs the metadata tool on the image. The tool reads the file
// itself, so content is ignored. A missing or failing tool yields a
// document without a title, never an error.
func (p *ImageParser) Parse(ctx context.Context, relPath string, _ []byte) (*Document, error) {
	doc := NewDocument()
	absPath := filepath.Join(p.root, filepath.FromSlash(relPath))

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	out, err := exec.CommandContext(ctx, p.tool, absPath).Output()
	if err != nil && len(out) == 0 {
		slog.Debug("image metadata tool unavailable",
			logfields.Path(absPath), slog.String("tool", p.tool), logfields.Error(err))
		return doc, nil
	}

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, documentNameField) {
			continue
		}
		if _, value, ok := strings.Cut(line, ":"); ok {
			doc.SetTitle(strings.TrimSpace(value))
		}
	}
	return doc, nil
}
