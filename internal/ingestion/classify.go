package ingestion

import (
	"path"

	"github.com/Benny93/tangle/internal/config"
	"github.com/Benny93/tangle/internal/parsers"
)

// Classifier dispatches files to extractors by extension.
type Classifier struct {
	cfg     *config.Config
	parsers map[string]parsers.Parser
}

// NewClassifier creates a classifier for the tree at root. root is only
// needed by the image extractor, which hands on-disk paths to its tool.
func NewClassifier(root string, cfg *config.Config) *Classifier {
	return &Classifier{
		cfg: cfg,
		parsers: map[string]parsers.Parser{
			config.KindHypertext:  parsers.NewHTMLParser(cfg.CatalogueMarker),
			config.KindText:       parsers.NewTextParser(),
			config.KindImage:      parsers.NewImageParser(root, cfg.ImageTool, cfg.ImageTimeout),
			config.KindStylesheet: parsers.NewStyleParser(),
		},
	}
}

// Classify returns the kind of the file at relPath.
func (c *Classifier) Classify(relPath string) string {
	return c.cfg.KindOf(path.Ext(relPath))
}

// ParserFor returns the extractor for kind, or nil for kinds that only
// record existence.
func (c *Classifier) ParserFor(kind string) parsers.Parser {
	return c.parsers[kind]
}
