package diff

import (
	"reflect"
	"testing"
)

func TestParseHunkHeader(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantOK   bool
		wantHunk Hunk
	}{
		{
			name:   "full header",
			line:   "@@ -10,5 +12,3 @@",
			wantOK: true,
			wantHunk: Hunk{
				Header:   "@@ -10,5 +12,3 @@",
				OldStart: 10, OldCount: 5,
				NewStart: 12, NewCount: 3,
			},
		},
		{
			name:   "counts omitted default to one",
			line:   "@@ -1 +1 @@",
			wantOK: true,
			wantHunk: Hunk{
				Header:   "@@ -1 +1 @@",
				OldStart: 1, OldCount: 1,
				NewStart: 1, NewCount: 1,
			},
		},
		{
			name:   "header with trailing context",
			line:   "@@ -846,46 +846,6 @@ void nsDocShell::Destroy()",
			wantOK: true,
			wantHunk: Hunk{
				Header:   "@@ -846,46 +846,6 @@ void nsDocShell::Destroy()",
				OldStart: 846, OldCount: 46,
				NewStart: 846, NewCount: 6,
			},
		},
		{
			name:   "not a header",
			line:   "+  mDestroyed = true;",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ok := ParseHunkHeader(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("ParseHunkHeader(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			}
			if ok && h != tt.wantHunk {
				t.Errorf("ParseHunkHeader(%q) = %+v, want %+v", tt.line, h, tt.wantHunk)
			}
		})
	}
}

func TestHunkOldLines(t *testing.T) {
	h, ok := ParseHunkHeader("@@ -10,5 +12,3 @@")
	if !ok {
		t.Fatal("header did not parse")
	}
	if h.OldEnd() != 14 {
		t.Errorf("OldEnd() = %d, want 14", h.OldEnd())
	}
	want := []int{10, 11, 12, 13, 14}
	if got := h.OldLines(); !reflect.DeepEqual(got, want) {
		t.Errorf("OldLines() = %v, want %v", got, want)
	}
	if got := h.NewLines(); !reflect.DeepEqual(got, []int{12, 13, 14}) {
		t.Errorf("NewLines() = %v, want [12 13 14]", got)
	}
}

func TestParseHunks(t *testing.T) {
	diffText := `diff --git a/dom/base/nsDocShell.cpp b/dom/base/nsDocShell.cpp
--- a/dom/base/nsDocShell.cpp
+++ b/dom/base/nsDocShell.cpp
@@ -10,5 +12,3 @@
 context
-removed
 context
@@ -40 +40 @@
-old
+new
`
	hunks := ParseHunks(diffText)
	if len(hunks) != 2 {
		t.Fatalf("got %d hunks, want 2", len(hunks))
	}
	if hunks[0].OldStart != 10 || hunks[0].OldCount != 5 {
		t.Errorf("hunk 0 = %+v", hunks[0])
	}
	if hunks[1].OldStart != 40 || hunks[1].OldCount != 1 {
		t.Errorf("hunk 1 = %+v", hunks[1])
	}
}

func TestParseHunksEmptyInput(t *testing.T) {
	for _, input := range []string{"", "no hunks here", "binary file differs"} {
		if hunks := ParseHunks(input); len(hunks) != 0 {
			t.Errorf("ParseHunks(%q) = %v, want empty", input, hunks)
		}
	}
}

func TestClassifyLinesCursorArithmetic(t *testing.T) {
	// One hunk starting at old=5/new=5: the removed line takes old 5, the two
	// added lines take new 5 and 6, and the trailing context line advances
	// both cursors without recording anything.
	diffText := `--- a/file.cpp
+++ b/file.cpp
@@ -5,2 +5,3 @@
-foo
+bar
+baz
 unchanged
`
	cs := ClassifyLines(diffText, DefaultIdentifierFilter())

	if want := []int{5}; !reflect.DeepEqual(cs.RemovedLines, want) {
		t.Errorf("RemovedLines = %v, want %v", cs.RemovedLines, want)
	}
	if want := []int{5, 6}; !reflect.DeepEqual(cs.AddedLines, want) {
		t.Errorf("AddedLines = %v, want %v", cs.AddedLines, want)
	}
}

func TestClassifyLinesIgnoresOutsideHunks(t *testing.T) {
	// +++ / --- headers appear before any hunk and must not be counted.
	diffText := `diff --git a/f.cpp b/f.cpp
--- a/f.cpp
+++ b/f.cpp
some stray line
`
	cs := ClassifyLines(diffText, DefaultIdentifierFilter())
	if len(cs.AddedLines) != 0 || len(cs.RemovedLines) != 0 {
		t.Errorf("expected empty ChangeSet, got %+v", cs)
	}
}

func TestClassifyLinesEmptyDiff(t *testing.T) {
	cs := ClassifyLines("", DefaultIdentifierFilter())
	if len(cs.AddedLines) != 0 || len(cs.RemovedLines) != 0 || len(cs.Identifiers) != 0 {
		t.Errorf("expected empty ChangeSet, got %+v", cs)
	}
}

func TestClassifyLinesIdentifiers(t *testing.T) {
	diffText := `@@ -100,4 +100,4 @@
-  mListener->OnStopRequest(aRequest);
+  nsDocLoader::Stop(aRequest);
-  MOZ_ASSERT(mListener);
+  if (aRequest) {
`
	cs := ClassifyLines(diffText, DefaultIdentifierFilter())
	got := cs.IdentifierSet()

	for _, want := range []string{"OnStopRequest", "nsDocLoader::Stop"} {
		if !got[want] {
			t.Errorf("identifier %q missing from %v", want, cs.Identifiers)
		}
	}
	for _, reject := range []string{"if", "MOZ_ASSERT"} {
		if got[reject] {
			t.Errorf("identifier %q should have been filtered, got %v", reject, cs.Identifiers)
		}
	}
}

func TestIdentifierFilterKeep(t *testing.T) {
	f := DefaultIdentifierFilter()
	tests := []struct {
		name string
		want bool
	}{
		{"OnStopRequest", true},
		{"nsDocShell::Destroy", true},
		{"moz_xmalloc", true},
		{"if", false},
		{"Return", false}, // keyword check is case-insensitive
		{"ab", false},
		{"MOZ_ASSERT", false},
		{"NS_WARNING", false},
		{"UPPER_MACRO", false},
		{"plainword", false},
	}
	for _, tt := range tests {
		if got := f.Keep(tt.name); got != tt.want {
			t.Errorf("Keep(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestChangedLinesConcatenates(t *testing.T) {
	cs := ChangeSet{AddedLines: []int{5, 6}, RemovedLines: []int{5}}
	if got := cs.ChangedLines(); !reflect.DeepEqual(got, []int{5, 6, 5}) {
		t.Errorf("ChangedLines() = %v, want [5 6 5]", got)
	}
}
