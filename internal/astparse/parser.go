// Package astparse extracts function boundaries from C and C++ sources using
// tree-sitter. The pipeline parses a file at two revisions and joins the
// resulting Functions by name to follow a function across a change.
package astparse

import (
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
)

// Parser wraps a tree-sitter parser for one language.
// Always call Close() when done; the underlying parser is CGO-managed.
type Parser struct {
	parser   *sitter.Parser
	language *sitter.Language
	langName string
}

// NewParser creates a parser for "c" or "cpp".
func NewParser(lang string) (*Parser, error) {
	parser := sitter.NewParser()
	if parser == nil {
		return nil, fmt.Errorf("failed to create tree-sitter parser")
	}

	var language *sitter.Language
	switch lang {
	case "c":
		language = sitter.NewLanguage(tree_sitter_c.Language())
	case "cpp":
		language = sitter.NewLanguage(tree_sitter_cpp.Language())
	default:
		parser.Close()
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}

	if err := parser.SetLanguage(language); err != nil {
		parser.Close()
		return nil, fmt.Errorf("failed to set language %s: %w", lang, err)
	}

	return &Parser{parser: parser, language: language, langName: lang}, nil
}

// Close releases parser resources.
func (p *Parser) Close() {
	if p.parser != nil {
		p.parser.Close()
	}
}

// ExtractFunctions parses source text and returns every function and method
// definition found, in document order. Unparseable fragments are skipped, not
// fatal; tree-sitter produces a best-effort tree for broken input.
func (p *Parser) ExtractFunctions(code []byte) ([]Function, error) {
	tree := p.parser.Parse(code, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse source")
	}
	defer tree.Close()

	return extractFunctions(tree.RootNode(), code), nil
}

// LanguageForFile maps a filename to the parser language, or "" when the file
// is not C/C++.
func LanguageForFile(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".c":
		return "c"
	case ".cc", ".cpp", ".cxx", ".c++":
		return "cpp"
	case ".h", ".hh", ".hpp", ".hxx", ".h++":
		// Headers are parsed as C++; Mozilla headers are overwhelmingly C++.
		return "cpp"
	default:
		return ""
	}
}

// ParseFile is the one-shot convenience used by the pipeline: pick the
// language from the filename, parse, extract.
func ParseFile(filename string, code []byte) ([]Function, error) {
	lang := LanguageForFile(filename)
	if lang == "" {
		return nil, fmt.Errorf("unsupported file type: %s", filename)
	}
	p, err := NewParser(lang)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.ExtractFunctions(code)
}
