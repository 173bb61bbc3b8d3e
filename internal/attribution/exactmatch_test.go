package attribution

import (
	"strings"
	"testing"
)

func TestNormalizeLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "whitespace collapsed and lowercased",
			in:   "  if (mListener)   {  Return; }",
			want: "if (mlistener) { return; }",
		},
		{
			name: "trailing comment stripped",
			in:   "delete mBuffer; // freed again in Destroy()",
			want: "delete mbuffer;",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeLine(tt.in); got != tt.want {
				t.Errorf("NormalizeLine(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeLineIdempotent(t *testing.T) {
	inputs := []string{
		"  nsCOMPtr<nsIRequest> req = aRequest;  // keep alive",
		"IF (X)   { Y(); }",
		"",
		"   ",
		"already normalized line",
	}
	for _, in := range inputs {
		once := NormalizeLine(in)
		twice := NormalizeLine(once)
		if once != twice {
			t.Errorf("NormalizeLine not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "a b c", "a b c", 1.0},
		{"disjoint", "a b", "c d", 0.0},
		{"half overlap", "a b c", "b c d", 0.5},
		{"empty side", "", "a b", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jaccard(tt.a, tt.b); !almostEqual(got, tt.want) {
				t.Errorf("jaccard(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

const fixDiff = `--- a/dom/base/nsDocShell.cpp
+++ b/dom/base/nsDocShell.cpp
@@ -100,3 +100,2 @@
-  mContentViewer->PermitUnload(aPermitUnload);
-  mContentViewer->Destroy();
+  DestroyContentViewer(aPermitUnload);
 }
`

func TestExtractPatterns(t *testing.T) {
	removed := ExtractRemovedPatterns(fixDiff)
	if len(removed) != 2 {
		t.Fatalf("removed patterns = %v, want 2 entries", removed)
	}
	if removed[0] != "mcontentviewer->permitunload(apermitunload);" {
		t.Errorf("unexpected first removed pattern: %q", removed[0])
	}

	added := ExtractAddedPatterns(fixDiff)
	if len(added) != 1 {
		t.Fatalf("added patterns = %v, want 1 entry", added)
	}
}

func TestExtractPatternsDropsShortLines(t *testing.T) {
	diffText := `@@ -1,3 +1,0 @@
-}
-  return;
-  mContentViewer->Destroy();
`
	removed := ExtractRemovedPatterns(diffText)
	if len(removed) != 1 || !strings.Contains(removed[0], "destroy") {
		t.Errorf("short lines should be dropped, got %v", removed)
	}
}

func TestComparePatternsBounds(t *testing.T) {
	cases := [][2][]string{
		{nil, nil},
		{{"mcontentviewer->destroy();"}, nil},
		{{"mcontentviewer->destroy();"}, {"mcontentviewer->destroy();"}},
		{{"a b c d e f g h"}, {"x y z w q r s t"}},
		{
			{"one two three four", "five six seven eight"},
			{"one two three four", "five six seven eight", "unrelated words entirely here"},
		},
	}
	for _, c := range cases {
		score := ComparePatterns(c[0], c[1])
		if score < 0.0 || score > 1.0 {
			t.Errorf("ComparePatterns(%v, %v) = %v out of [0,1]", c[0], c[1], score)
		}
	}
}

func TestComparePatternsExactBonus(t *testing.T) {
	removed := []string{"mcontentviewer->destroy();"}
	added := []string{"mcontentviewer->destroy();"}
	// base 1.0 + bonus 0.3 capped at 1.0
	if got := ComparePatterns(removed, added); !almostEqual(got, 1.0) {
		t.Errorf("ComparePatterns = %v, want 1.0", got)
	}
}

func TestComparePatternsEmptyInputs(t *testing.T) {
	if got := ComparePatterns(nil, []string{"something long enough"}); got != 0 {
		t.Errorf("empty removed side should score 0, got %v", got)
	}
	if got := ComparePatterns([]string{"something long enough"}, nil); got != 0 {
		t.Errorf("empty added side should score 0, got %v", got)
	}
}

func TestFindBestMatchRankingAndThreshold(t *testing.T) {
	// Candidate "intro" adds exactly the code the fix removed; candidate
	// "noise" adds unrelated code and must not qualify.
	introDiff := `@@ -90,2 +90,4 @@
+  mContentViewer->PermitUnload(aPermitUnload);
+  mContentViewer->Destroy();
`
	noiseDiff := `@@ -10,0 +10,2 @@
+  printf("completely unrelated logging line");
+  RefreshObserverList(aRefreshAll);
`
	matches := FindBestMatch(fixDiff, []CandidateDiff{
		{Candidate: Candidate{CommitID: "noise"}, DiffText: noiseDiff},
		{Candidate: Candidate{CommitID: "intro"}, DiffText: introDiff},
	})

	if len(matches) != 1 {
		t.Fatalf("matches = %+v, want exactly the introducing candidate", matches)
	}
	if matches[0].Candidate.CommitID != "intro" {
		t.Errorf("best match = %q, want intro", matches[0].Candidate.CommitID)
	}
	if matches[0].Score < ExactMatchThreshold {
		t.Errorf("score %v below threshold", matches[0].Score)
	}
}

func TestFindBestMatchTieKeepsInputOrder(t *testing.T) {
	d := `@@ -1,2 +1,2 @@
+  mContentViewer->PermitUnload(aPermitUnload);
+  mContentViewer->Destroy();
`
	matches := FindBestMatch(fixDiff, []CandidateDiff{
		{Candidate: Candidate{CommitID: "earlier"}, DiffText: d},
		{Candidate: Candidate{CommitID: "later"}, DiffText: d},
	})
	if len(matches) != 2 {
		t.Fatalf("matches = %+v, want 2", matches)
	}
	if matches[0].Candidate.CommitID != "earlier" {
		t.Errorf("tie broke to %q, want input order preserved", matches[0].Candidate.CommitID)
	}
}

func TestFindBestMatchNoQualifier(t *testing.T) {
	matches := FindBestMatch(fixDiff, []CandidateDiff{
		{Candidate: Candidate{CommitID: "none"}, DiffText: "@@ -1,0 +1,1 @@\n+  int unrelatedvariable = 0;\n"},
	})
	if len(matches) != 0 {
		t.Errorf("matches = %+v, want none", matches)
	}
}
