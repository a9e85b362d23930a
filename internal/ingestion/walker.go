// Package ingestion provides the scan pipeline for Tangle.
package ingestion

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/Benny93/tangle/internal/logfields"
)

// Fatal conditions of a scan.
var (
	ErrRootNotFound = errors.New("root directory does not exist")
	ErrRootNotDir   = errors.New("root is not a directory")
)

// FileEntry represents a file to be processed.
type FileEntry struct {
	// Path is the on-disk file path.
	Path string

	// RelPath is the slash-separated path relative to the scan root.
	// It is the file's key in the metadata graph.
	RelPath string

	// Kind is the classified file kind.
	Kind string
}

// vcsDir is pruned from every scan.
const vcsDir = ".git"

// Default patterns to ignore (in addition to configured ones).
var defaultIgnorePatterns = []string{
	vcsDir + "/",
	".DS_Store",
}

// CheckRoot verifies that root exists and is a directory.
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", root, ErrRootNotFound)
		}
		return fmt.Errorf("accessing %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", root, ErrRootNotDir)
	}
	return nil
}

// WalkTree walks the tree under root and returns every file not excluded
// by the ignore patterns, in lexical order. Content is not read here;
// extraction reads each file when it needs the bytes.
func WalkTree(root string, classifier *Classifier, patterns []gitignore.Pattern) ([]FileEntry, error) {
	if err := CheckRoot(root); err != nil {
		return nil, err
	}

	allPatterns := make([]gitignore.Pattern, 0, len(defaultIgnorePatterns)+len(patterns))
	for _, p := range defaultIgnorePatterns {
		allPatterns = append(allPatterns, gitignore.ParsePattern(p, nil))
	}
	allPatterns = append(allPatterns, patterns...)

	matcher := gitignore.NewMatcher(allPatterns)

	var entries []FileEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			slog.Warn("skipping unreadable entry", logfields.Path(path), logfields.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path == root {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if d.IsDir() {
			if shouldSkipDir(d.Name(), relPath, matcher) {
				return filepath.SkipDir
			}
			return nil
		}

		if !isFile(path, d) {
			return nil
		}

		if matcher.Match(splitPath(relPath), false) {
			return nil
		}

		entry := FileEntry{
			Path:    path,
			RelPath: filepath.ToSlash(relPath),
		}
		entry.Kind = classifier.Classify(entry.RelPath)
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	return entries, nil
}

// LoadGitignore loads .gitignore patterns from the tree root.
func LoadGitignore(root string) ([]gitignore.Pattern, error) {
	content, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ParsePatterns(strings.Split(string(content), "\n")), nil
}

// ParsePatterns parses gitignore-style pattern lines, skipping blanks and comments.
func ParsePatterns(lines []string) []gitignore.Pattern {
	var patterns []gitignore.Pattern
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns
}

// isFile reports whether d is a regular file or a symlink to one.
// Symlinked directories are not followed.
func isFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// shouldSkipDir checks if a directory should be skipped.
func shouldSkipDir(name, relPath string, matcher gitignore.Matcher) bool {
	// Always skip the version-control directory
	if name == vcsDir {
		return true
	}
	return matcher.Match(splitPath(relPath), true)
}

// splitPath splits a path into its components.
func splitPath(path string) []string {
	return strings.Split(path, string(filepath.Separator))
}
