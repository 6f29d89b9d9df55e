package source

import (
	"os"
	"path/filepath"
	"strings"
)

var pyExtensions = []string{".pyi", ".py"}

// CrawlUp walks up from a .py/.pyi path while directories contain an
// __init__ file and returns the first directory outside the package tree
// together with the dotted module name of the file.
func CrawlUp(path string) (dir, module string) {
	dir, module = filepath.Split(filepath.Clean(path))
	dir = strings.TrimSuffix(dir, string(filepath.Separator))
	module = StripPy(module)
	for dir != "" && hasInitFile(dir) {
		parent, base := filepath.Split(dir)
		parent = strings.TrimSuffix(parent, string(filepath.Separator))
		if base == "" {
			break
		}
		if module == "__init__" || module == "" {
			module = base
		} else {
			module = base + "." + module
		}
		dir = parent
	}
	if module == "__init__" {
		module = ""
	}
	return dir, module
}

// StripPy drops a trailing .py or .pyi suffix.
func StripPy(name string) string {
	for _, ext := range pyExtensions {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

func hasInitFile(dir string) bool {
	for _, ext := range pyExtensions {
		if info, err := os.Stat(filepath.Join(dir, "__init__"+ext)); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}
