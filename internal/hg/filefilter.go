package hg

import (
	"path"
	"strings"
)

// FileFilter decides which changed files are worth analyzing. Build goo,
// documentation, and vendored test suites dilute attribution scores, so they
// are split out before diffing.
type FileFilter struct {
	// CodeExtensions is the allow-list of file extensions, lowercase with
	// leading dot.
	CodeExtensions map[string]bool
	// ExcludedDirs are path prefixes that are never analyzed regardless of
	// extension.
	ExcludedDirs []string
}

// DefaultFileFilter covers the compiled and scripting languages that appear
// in crash stacks, and excludes the trees that only hold tests, docs, and
// third-party imports.
func DefaultFileFilter() FileFilter {
	exts := map[string]bool{
		".c": true, ".cc": true, ".cpp": true, ".cxx": true, ".c++": true,
		".h": true, ".hh": true, ".hpp": true, ".hxx": true, ".h++": true,
		".rs": true, ".js": true, ".jsm": true, ".mjs": true, ".sjs": true,
		".py": true, ".java": true, ".kt": true, ".mm": true, ".m": true,
		".idl": true, ".ipdl": true, ".webidl": true,
	}
	return FileFilter{
		CodeExtensions: exts,
		ExcludedDirs: []string{
			"testing/web-platform/",
			"third_party/",
			"docs/",
			"taskcluster/",
			"tools/lint/",
			"browser/locales/",
			"intl/icu/",
		},
	}
}

// IsCodeFile reports whether the file should be analyzed.
func (f FileFilter) IsCodeFile(filename string) bool {
	normalized := strings.ReplaceAll(filename, "\\", "/")
	for _, dir := range f.ExcludedDirs {
		if strings.HasPrefix(normalized, dir) {
			return false
		}
	}
	return f.CodeExtensions[strings.ToLower(path.Ext(normalized))]
}
