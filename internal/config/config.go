// Package config loads Tangle's optional YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// File kinds understood by the classifier.
const (
	KindHypertext  = "hypertext"
	KindText       = "text"
	KindImage      = "image"
	KindStylesheet = "stylesheet"
	KindOther      = "other"
)

var validKinds = map[string]bool{
	KindHypertext:  true,
	KindText:       true,
	KindImage:      true,
	KindStylesheet: true,
	KindOther:      true,
}

// Config holds scan and report settings.
type Config struct {
	// Kinds maps a lower-case file extension (without the dot) to the
	// extractor that handles it.
	Kinds map[string]string `yaml:"kinds"`

	// Categories maps a file extension to its heading in the contents report.
	Categories map[string]string `yaml:"categories"`

	// Ignore holds extra gitignore-style patterns excluded from the scan.
	Ignore []string `yaml:"ignore"`

	// CatalogueMarker is the meta attribute that stops hypertext extraction.
	CatalogueMarker string `yaml:"catalogue_marker"`

	// ImageTool is the metadata command run for images.
	ImageTool string `yaml:"image_tool"`

	// ImageTimeout bounds a single image tool invocation.
	ImageTimeout time.Duration `yaml:"image_timeout"`

	// Workers is the number of files extracted concurrently.
	Workers int `yaml:"workers"`

	// TitleLimit is the byte length titles are cut to in the report.
	TitleLimit int `yaml:"title_limit"`

	// Stylesheets are linked from the generated contents page.
	Stylesheets []string `yaml:"stylesheets"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Kinds: map[string]string{
			"html": KindHypertext,
			"htm":  KindHypertext,
			"txt":  KindText,
			"png":  KindImage,
			"jpg":  KindImage,
			"jpeg": KindImage,
			"css":  KindStylesheet,
		},
		Categories: map[string]string{
			"html": "hypertext",
			"txt":  "text",
			"png":  "image",
			"jpg":  "image",
			"svg":  "image",
			"gif":  "image",
			"ico":  "image",
			"webp": "image",
			"py":   "code",
			"js":   "code",
			"sh":   "code",
		},
		CatalogueMarker: "data-catalogue",
		ImageTool:       "exiftool",
		ImageTimeout:    30 * time.Second,
		Workers:         runtime.NumCPU(),
		TitleLimit:      128,
		Stylesheets:     []string{"tangle.css"},
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.merge(&file)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// merge overlays the fields set in other. Map entries are merged key by key.
func (c *Config) merge(other *Config) {
	for ext, kind := range other.Kinds {
		c.Kinds[normalizeExt(ext)] = kind
	}
	for ext, cat := range other.Categories {
		c.Categories[normalizeExt(ext)] = cat
	}
	c.Ignore = append(c.Ignore, other.Ignore...)
	if other.CatalogueMarker != "" {
		c.CatalogueMarker = other.CatalogueMarker
	}
	if other.ImageTool != "" {
		c.ImageTool = other.ImageTool
	}
	if other.ImageTimeout > 0 {
		c.ImageTimeout = other.ImageTimeout
	}
	if other.Workers > 0 {
		c.Workers = other.Workers
	}
	if other.TitleLimit > 0 {
		c.TitleLimit = other.TitleLimit
	}
	if other.Stylesheets != nil {
		c.Stylesheets = other.Stylesheets
	}
}

// Validate checks the configuration for unknown kinds and bad limits.
func (c *Config) Validate() error {
	var errs []error

	exts := make([]string, 0, len(c.Kinds))
	for ext := range c.Kinds {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		if !validKinds[c.Kinds[ext]] {
			errs = append(errs, fmt.Errorf("extension %q: unknown kind %q", ext, c.Kinds[ext]))
		}
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.TitleLimit < 1 {
		errs = append(errs, fmt.Errorf("title_limit must be positive, got %d", c.TitleLimit))
	}
	return errors.Join(errs...)
}

// KindOf returns the kind configured for a file extension.
func (c *Config) KindOf(ext string) string {
	if kind, ok := c.Kinds[normalizeExt(ext)]; ok {
		return kind
	}
	return KindOther
}

// CategoryOf returns the report category of a file extension.
func (c *Config) CategoryOf(ext string) string {
	if cat, ok := c.Categories[normalizeExt(ext)]; ok {
		return cat
	}
	return "other"
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
