package crawler

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Crawler finds the Python sources under the paths it is given.
type Crawler struct {
	ignored    []string
	extensions []string
}

// NewCrawler creates a new crawler instance.
func NewCrawler() *Crawler {
	return &Crawler{
		ignored:    []string{".git", "__pycache__", ".venv", "venv", "node_modules", ".tox", "build", "dist"},
		extensions: []string{".py", ".pyi"},
	}
}

// ScanProject walks root and calls onFile for every Python source, in
// lexical order.
func (c *Crawler) ScanProject(root string, onFile func(path string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Skip ignored directories
		if d.IsDir() {
			if path != root && c.isIgnored(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !c.isSource(d.Name()) {
			return nil
		}
		onFile(path)
		return nil
	})
}

// Discover expands directories into their Python sources. Files named
// explicitly are kept whatever their extension. Duplicates are dropped.
func (c *Crawler) Discover(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("can't read %s: %w", p, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		if err := c.ScanProject(p, add); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", p, err)
		}
	}
	return out, nil
}

func (c *Crawler) isIgnored(name string) bool {
	for _, ign := range c.ignored {
		if name == ign {
			return true
		}
	}
	return false
}

func (c *Crawler) isSource(name string) bool {
	for _, ext := range c.extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
