package diff

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// hunkHeaderRe matches a unified diff hunk header like "@@ -846,46 +846,6 @@".
// Counts are optional; the diff format omits them for single-line hunks.
var hunkHeaderRe = regexp.MustCompile(`@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Hunk is one @@ block of a unified diff. Line numbers are 1-based.
// OldStart/OldCount describe the pre-change file, NewStart/NewCount the
// post-change file. A Hunk is immutable once parsed.
type Hunk struct {
	Header   string `json:"header"`
	OldStart int    `json:"old_start"`
	OldCount int    `json:"old_count"`
	NewStart int    `json:"new_start"`
	NewCount int    `json:"new_count"`
}

// OldEnd returns the last old-file line covered by the hunk.
func (h Hunk) OldEnd() int {
	return h.OldStart + h.OldCount - 1
}

// OldLines returns the ordered old-file line numbers the hunk declares.
func (h Hunk) OldLines() []int {
	lines := make([]int, 0, h.OldCount)
	for n := h.OldStart; n < h.OldStart+h.OldCount; n++ {
		lines = append(lines, n)
	}
	return lines
}

// NewLines returns the ordered new-file line numbers the hunk declares.
func (h Hunk) NewLines() []int {
	lines := make([]int, 0, h.NewCount)
	for n := h.NewStart; n < h.NewStart+h.NewCount; n++ {
		lines = append(lines, n)
	}
	return lines
}

// ParseHunkHeader parses a single hunk header line. The second return value
// reports whether the line was a valid header.
func ParseHunkHeader(line string) (Hunk, bool) {
	m := hunkHeaderRe.FindStringSubmatch(line)
	if m == nil {
		return Hunk{}, false
	}

	atoi := func(s string, def int) int {
		if s == "" {
			return def
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return def
		}
		return n
	}

	return Hunk{
		Header:   strings.TrimSpace(line),
		OldStart: atoi(m[1], 0),
		OldCount: atoi(m[2], 1),
		NewStart: atoi(m[3], 0),
		NewCount: atoi(m[4], 1),
	}, true
}

// ParseHunks extracts all hunks from a unified diff. A diff with no hunks
// (empty text, binary file, merge commit) yields an empty slice, never an
// error.
func ParseHunks(diffText string) []Hunk {
	var hunks []Hunk
	for _, line := range strings.Split(diffText, "\n") {
		if !strings.HasPrefix(line, "@@") {
			continue
		}
		if h, ok := ParseHunkHeader(line); ok {
			hunks = append(hunks, h)
		}
	}
	return hunks
}

// ChangeSet is the result of classifying a diff's body lines. AddedLines use
// new-file numbering, RemovedLines old-file numbering; both are ascending.
// Identifiers holds heuristically extracted symbol names touched by the diff,
// deduplicated in first-seen order. A ChangeSet is never mutated after
// ClassifyLines returns it.
type ChangeSet struct {
	AddedLines   []int    `json:"added_lines"`
	RemovedLines []int    `json:"removed_lines"`
	Identifiers  []string `json:"affected_identifiers"`
}

// ChangedLines returns the added and removed line numbers as one list, added
// first. Downstream proximity scoring treats a line that was both removed and
// re-added as two observations, so the lists are concatenated, not unioned.
func (cs ChangeSet) ChangedLines() []int {
	all := make([]int, 0, len(cs.AddedLines)+len(cs.RemovedLines))
	all = append(all, cs.AddedLines...)
	all = append(all, cs.RemovedLines...)
	return all
}

// IdentifierSet returns the affected identifiers as a lookup set.
func (cs ChangeSet) IdentifierSet() map[string]bool {
	set := make(map[string]bool, len(cs.Identifiers))
	for _, id := range cs.Identifiers {
		set[id] = true
	}
	return set
}

// identifierPatterns is the ordered battery run against every changed line to
// pull out touched symbol names. Order matters only for the first-seen
// ordering of the result.
var identifierPatterns = []*regexp.Regexp{
	// Function definition: name(...) {
	regexp.MustCompile(`\b([a-zA-Z_][a-zA-Z0-9_]*)\s*\([^)]*\)\s*\{`),
	// Plain call or declaration: name(
	regexp.MustCompile(`\b([a-zA-Z_][a-zA-Z0-9_]*)\s*\(`),
	// Namespaced call: A::B(
	regexp.MustCompile(`\b([a-zA-Z_][a-zA-Z0-9_]*::[a-zA-Z_][a-zA-Z0-9_]*)\s*\(`),
	// Class or struct declaration
	regexp.MustCompile(`\b(?:class|struct)\s+([a-zA-Z_][a-zA-Z0-9_]*)`),
}

var allCapsRe = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)

// IdentifierFilter decides which extracted tokens count as identifiers worth
// tracking. Keyword and macro-prefix lists are project conventions, so they
// are injectable rather than baked in.
type IdentifierFilter struct {
	// Keywords are compared case-insensitively against the whole token.
	Keywords map[string]bool
	// MacroPrefixes reject tokens such as MOZ_ASSERT or NS_WARNING that are
	// macro invocations rather than functions.
	MacroPrefixes []string
}

// DefaultIdentifierFilter returns the filter tuned for Mozilla C++ sources.
func DefaultIdentifierFilter() IdentifierFilter {
	keywords := []string{
		"if", "else", "for", "while", "switch", "case", "break", "continue",
		"return", "const", "static", "inline", "namespace", "using",
		"auto", "void", "int", "bool", "char", "long", "short", "float", "double",
		"handle", "dword", "lphandle", "false", "true",
	}
	kw := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		kw[k] = true
	}
	return IdentifierFilter{
		Keywords:      kw,
		MacroPrefixes: []string{"MOZ_", "NS_", "CHROMIUM_"},
	}
}

// Keep reports whether name should be recorded as an affected identifier.
func (f IdentifierFilter) Keep(name string) bool {
	if len(name) < 3 {
		return false
	}
	if f.Keywords[strings.ToLower(name)] {
		return false
	}
	if allCapsRe.MatchString(name) {
		return false
	}
	for _, prefix := range f.MacroPrefixes {
		if strings.HasPrefix(name, prefix) {
			return false
		}
	}
	// Bare lowercase words without structure are almost always locals or
	// keywords the lists missed.
	if name == strings.ToLower(name) && !strings.Contains(name, "_") && !strings.Contains(name, "::") {
		return false
	}
	return true
}

// ClassifyLines walks a unified diff and records which line numbers were
// added and removed, plus the identifiers mentioned on those lines. Lines
// outside any hunk are ignored. Empty or malformed input yields an empty
// ChangeSet.
func ClassifyLines(diffText string, filter IdentifierFilter) ChangeSet {
	var cs ChangeSet
	seen := make(map[string]bool)

	oldCursor, newCursor := 0, 0
	inHunk := false

	for _, line := range strings.Split(diffText, "\n") {
		if strings.HasPrefix(line, "@@") {
			if h, ok := ParseHunkHeader(line); ok {
				oldCursor = h.OldStart
				newCursor = h.NewStart
				inHunk = true
			}
			continue
		}
		if !inHunk {
			continue
		}

		switch {
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			cs.AddedLines = append(cs.AddedLines, newCursor)
			newCursor++
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			cs.RemovedLines = append(cs.RemovedLines, oldCursor)
			oldCursor++
		case strings.HasPrefix(line, " "):
			oldCursor++
			newCursor++
		}

		if isContentLine(line) {
			content := strings.TrimSpace(line[1:])
			for _, re := range identifierPatterns {
				for _, m := range re.FindAllStringSubmatch(content, -1) {
					name := m[1]
					if seen[name] || !filter.Keep(name) {
						continue
					}
					seen[name] = true
					cs.Identifiers = append(cs.Identifiers, name)
				}
			}
		}
	}

	sort.Ints(cs.AddedLines)
	sort.Ints(cs.RemovedLines)
	return cs
}

// isContentLine reports whether the diff line carries added or removed file
// content, as opposed to headers and context.
func isContentLine(line string) bool {
	if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
		return false
	}
	return strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-")
}
