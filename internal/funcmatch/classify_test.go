package funcmatch

import (
	"reflect"
	"testing"

	"github.com/crashscope/crashscope/internal/astparse"
	"github.com/crashscope/crashscope/internal/diff"
)

func hunk(t *testing.T, header string) diff.Hunk {
	t.Helper()
	h, ok := diff.ParseHunkHeader(header)
	if !ok {
		t.Fatalf("bad hunk header %q", header)
	}
	return h
}

func TestClassify(t *testing.T) {
	// Old-file lines 10-14 changed.
	hunks := []diff.Hunk{hunk(t, "@@ -10,5 +10,2 @@")}
	fns := []astparse.Function{
		{Name: "whole", StartLine: 10, EndLine: 14},   // every line changed
		{Name: "partial", StartLine: 12, EndLine: 20}, // lines 12-14 changed
		{Name: "outside", StartLine: 30, EndLine: 40}, // untouched
	}

	c := Classify(hunks, fns)

	if len(c.FullyModified) != 1 || c.FullyModified[0].Function.Name != "whole" {
		t.Errorf("FullyModified = %+v, want [whole]", c.FullyModified)
	}
	if got := c.FullyModified[0].OverlapPercentage; got != 100.0 {
		t.Errorf("whole overlap = %v, want 100.0", got)
	}

	if len(c.PartiallyModified) != 1 || c.PartiallyModified[0].Function.Name != "partial" {
		t.Fatalf("PartiallyModified = %+v, want [partial]", c.PartiallyModified)
	}
	partial := c.PartiallyModified[0]
	if want := []int{12, 13, 14}; !reflect.DeepEqual(partial.ChangedLines, want) {
		t.Errorf("partial changed lines = %v, want %v", partial.ChangedLines, want)
	}
	// 3 of 9 lines = 33.3%, rounded to one decimal.
	if partial.OverlapPercentage != 33.3 {
		t.Errorf("partial overlap = %v, want 33.3", partial.OverlapPercentage)
	}

	if len(c.Unmodified) != 1 || c.Unmodified[0].Name != "outside" {
		t.Errorf("Unmodified = %+v, want [outside]", c.Unmodified)
	}
}

func TestClassifyExhaustive(t *testing.T) {
	hunks := []diff.Hunk{
		hunk(t, "@@ -5,3 +5,3 @@"),
		hunk(t, "@@ -50 +50 @@"),
	}
	fns := []astparse.Function{
		{Name: "a", StartLine: 1, EndLine: 4},
		{Name: "b", StartLine: 5, EndLine: 7},
		{Name: "c", StartLine: 6, EndLine: 60},
		{Name: "d", StartLine: 100, EndLine: 120},
	}

	c := Classify(hunks, fns)
	total := len(c.FullyModified) + len(c.PartiallyModified) + len(c.Unmodified)
	if total != len(fns) {
		t.Errorf("classification covers %d functions, want %d", total, len(fns))
	}

	// No function may appear in two buckets.
	seen := make(map[string]int)
	for _, m := range c.FullyModified {
		seen[m.Function.Name]++
	}
	for _, m := range c.PartiallyModified {
		seen[m.Function.Name]++
	}
	for _, f := range c.Unmodified {
		seen[f.Name]++
	}
	for name, count := range seen {
		if count != 1 {
			t.Errorf("function %q classified %d times", name, count)
		}
	}
}

func TestClassifyEmptyInputs(t *testing.T) {
	c := Classify(nil, []astparse.Function{{Name: "f", StartLine: 1, EndLine: 5}})
	if len(c.Unmodified) != 1 {
		t.Errorf("no hunks should leave every function unmodified, got %+v", c)
	}

	c = Classify([]diff.Hunk{hunk(t, "@@ -1,5 +1,5 @@")}, nil)
	if len(c.FullyModified)+len(c.PartiallyModified)+len(c.Unmodified) != 0 {
		t.Errorf("no functions should classify to nothing, got %+v", c)
	}
}

func TestClassifyNewUsesNewNumbering(t *testing.T) {
	// Hunk: old 10-11, new 40-42. A function at new lines 40-42 is fully
	// modified in the post-change numbering but untouched in the old one.
	hunks := []diff.Hunk{hunk(t, "@@ -10,2 +40,3 @@")}
	fns := []astparse.Function{{Name: "moved", StartLine: 40, EndLine: 42}}

	if c := ClassifyNew(hunks, fns); len(c.FullyModified) != 1 {
		t.Errorf("ClassifyNew: %+v, want moved fully modified", c)
	}
	if c := Classify(hunks, fns); len(c.Unmodified) != 1 {
		t.Errorf("Classify with old numbering: %+v, want moved unmodified", c)
	}
}
