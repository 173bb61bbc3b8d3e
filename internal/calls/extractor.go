// Package calls pulls call-like identifiers out of raw C++ source text with a
// battery of regular expressions. It is deliberately a coarse heuristic, not
// a parser: the pipeline uses it to survey what a suspicious function touches,
// and occasional false positives are acceptable there.
package calls

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// basePatterns catch the generic C/C++ call shapes. Each pattern's first
// capture group is the candidate identifier.
var basePatterns = []*regexp.Regexp{
	// Namespaced and templated calls: A::B<T>::C(
	regexp.MustCompile(`(\w+(?:::\w+)*(?:<[^<>]*>)?(?:::\w+)*)\s*\(`),
	// Templated class static/method calls with one nesting level
	regexp.MustCompile(`((?:\w+::)*\w+<[^<>]*(?:<[^<>]*>)*[^<>]*>::\w+)\s*\(`),
	// Object method calls: obj.method( and obj->method(
	regexp.MustCompile(`(\w+(?:\.\w+)*(?:->\w+)*)\s*\(`),
	// Plain calls
	regexp.MustCompile(`(\w+)\s*\(`),
	// Macro-style calls
	regexp.MustCompile(`([A-Z_][A-Z0-9_]*)\s*\(`),
}

// keywordDenylist drops control flow, casts, and allocation keywords that the
// call-shaped patterns inevitably pick up.
var keywordDenylist = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "return": true,
	"break": true, "continue": true, "sizeof": true, "typeof": true,
	"const_cast": true, "static_cast": true, "dynamic_cast": true,
	"reinterpret_cast": true, "new": true, "delete": true, "this": true,
	"class": true, "struct": true, "true": true, "false": true,
	"nullptr": true, "auto": true, "decltype": true, "typename": true,
	"template": true, "namespace": true, "using": true, "typedef": true,
}

// Extractor extracts call sites from source text. NamespacePrefixes lists the
// namespaces worth matching in their fully qualified templated forms
// ("mozilla", "js", "JS" for Firefox sources); they are configuration, not a
// constant, because they are a property of the codebase under analysis.
type Extractor struct {
	patterns []*regexp.Regexp
}

// NewExtractor builds an extractor with additional deep-matching patterns for
// the given namespace prefixes.
func NewExtractor(namespacePrefixes []string) *Extractor {
	patterns := make([]*regexp.Regexp, 0, len(basePatterns)+2*len(namespacePrefixes))
	patterns = append(patterns, basePatterns...)

	for _, prefix := range namespacePrefixes {
		quoted := regexp.QuoteMeta(prefix)
		// Fully qualified call chains: prefix::a::b(
		patterns = append(patterns, regexp.MustCompile(
			fmt.Sprintf(`(%s::\w+(?:::\w+)*)\s*\(`, quoted)))
		// Templated members: prefix::detail::HashTable<...>::add(
		patterns = append(patterns, regexp.MustCompile(
			fmt.Sprintf(`(%s::(?:\w+::)*\w+<[^()]*>::\w+)\s*\(`, quoted)))
	}

	return &Extractor{patterns: patterns}
}

// Extract returns the distinct call-like identifiers in source, sorted
// lexicographically. Empty input yields an empty result, never an error.
func (e *Extractor) Extract(source string) []string {
	found := make(map[string]bool)

	for _, re := range e.patterns {
		for _, idx := range re.FindAllStringSubmatchIndex(source, -1) {
			start, end := idx[2], idx[3]
			if start < 0 || qualifiedFragment(source, start) {
				continue
			}
			name := strings.TrimSpace(source[start:end])
			if keep(name) {
				found[name] = true
			}
		}
	}

	out := make([]string, 0, len(found))
	for name := range found {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// qualifiedFragment reports whether the match starting at pos is the tail of
// a qualified name (preceded by "::", ".", or "->"), in which case the fuller
// pattern already captured the whole thing.
func qualifiedFragment(source string, pos int) bool {
	if pos == 0 {
		return false
	}
	switch source[pos-1] {
	case ':', '.':
		return true
	case '>':
		return pos >= 2 && source[pos-2] == '-'
	}
	return false
}

// keep applies the post-filter from the extraction heuristic: drop keywords,
// one-character and numeric tokens; keep anything structured (qualified,
// templated, member access), macro-cased, or at least three characters long.
func keep(name string) bool {
	if keywordDenylist[name] {
		return false
	}
	if len(name) <= 1 || isNumeric(name) {
		return false
	}
	if strings.Contains(name, "::") || strings.Contains(name, "<") ||
		strings.Contains(name, ".") || strings.Contains(name, "->") {
		return true
	}
	if name == strings.ToUpper(name) {
		return true
	}
	return len(name) >= 3
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
