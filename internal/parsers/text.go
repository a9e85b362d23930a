package parsers

import (
	"bufio"
	"bytes"
	"context"
	"strings"
)

// TextParser takes the title of a plain-text file from its header line.
type TextParser struct{}

// NewTextParser creates a new plain-text parser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Kind returns the file kind this parser handles.
func (p *TextParser) Kind() string {
	return "text"
}

// Parse uses the first line that is non-empty once comment and heading
// markers ('#', '/') and surrounding spaces are trimmed.
func (p *TextParser) Parse(_ context.Context, _ string, content []byte) (*Document, error) {
	doc := NewDocument()

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.Trim(scanner.Text(), "#/ \r\n"); line != "" {
			doc.SetTitle(line)
			break
		}
	}
	// A header line longer than the buffer only loses the title.
	return doc, nil
}
