package attribution

import (
	"math"
	"reflect"
	"testing"

	"github.com/crashscope/crashscope/internal/diff"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBugRefs(t *testing.T) {
	tests := []struct {
		name string
		desc string
		want []string
	}{
		{
			name: "single reference",
			desc: "Bug 1873004 - Null-check the listener in OnStopRequest. r=smaug",
			want: []string{"1873004"},
		},
		{
			name: "case insensitive and deduplicated",
			desc: "bug 12345 follow-up to Bug 12345 and bug 99",
			want: []string{"12345", "99"},
		},
		{
			name: "no references",
			desc: "No bug - fix typo in comment",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BugRefs(tt.desc); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("BugRefs(%q) = %v, want %v", tt.desc, got, tt.want)
			}
		})
	}
}

func TestClassifyScore(t *testing.T) {
	tests := []struct {
		score float64
		want  Bucket
	}{
		{0.0, BucketDiscarded},
		{0.29, BucketDiscarded},
		{0.3, BucketRelated},
		{0.69, BucketRelated},
		{0.7, BucketIntroducing},
		{1.0, BucketIntroducing},
	}
	for _, tt := range tests {
		if got := ClassifyScore(tt.score); got != tt.want {
			t.Errorf("ClassifyScore(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func target(changed []int, identifiers []string, desc, filename string) Target {
	return Target{
		Changes: diff.ChangeSet{
			RemovedLines: changed,
			Identifiers:  identifiers,
		},
		Description: desc,
		Filename:    filename,
	}
}

func TestScoreDeterminism(t *testing.T) {
	var s Scorer
	tgt := target([]int{42, 43}, []string{"Init"}, "Bug 111 - fix crash", "widget.cpp")
	cd := &diff.ChangeSet{AddedLines: []int{45}, Identifiers: []string{"Init"}}

	first := s.Score("abc123", "Bug 111 - add Init path", cd, tgt)
	second := s.Score("abc123", "Bug 111 - add Init path", cd, tgt)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("scoring is not deterministic: %+v vs %+v", first, second)
	}
}

func TestScoreMonotonicBugRef(t *testing.T) {
	var s Scorer
	base := target([]int{42}, nil, "fix the crash", "widget.cpp")
	withBug := base
	withBug.Description = "Bug 777 - fix the crash"

	without := s.Score("abc", "refactor widget.cpp handling", nil, base)
	with := s.Score("abc", "Bug 777 - refactor widget.cpp handling", nil, withBug)

	if with.Score < without.Score {
		t.Errorf("adding a shared bug reference lowered the score: %v -> %v",
			without.Score, with.Score)
	}
}

func TestScoreSignals(t *testing.T) {
	var s Scorer

	// Candidate A: touches line 45 (near 42/43), shares identifier Init.
	// Proximity hits: |42-45|=3 and |43-45|=2, both <= 10 -> 2 hits over 2
	// target lines = 1.0, capped at 0.5. Plus 0.3 identifier bonus.
	tgt := target([]int{42, 43}, []string{"Init"}, "Bug 500 - fix crash in Init", "widget.cpp")
	diffA := &diff.ChangeSet{AddedLines: []int{45}, Identifiers: []string{"Init"}}
	a := s.Score("aaa", "Tidy Init setup", diffA, tgt)
	if !almostEqual(a.Score, 0.8) {
		t.Errorf("candidate A score = %v, want 0.8", a.Score)
	}
	if len(a.Reasons) != 2 {
		t.Errorf("candidate A reasons = %v, want proximity + identifiers", a.Reasons)
	}

	// Candidate B: far away, no identifiers, but shares bug 500.
	diffB := &diff.ChangeSet{AddedLines: []int{200}}
	b := s.Score("bbb", "Bug 500 - earlier attempt", diffB, tgt)
	if !almostEqual(b.Score, 0.4) {
		t.Errorf("candidate B score = %v, want 0.4", b.Score)
	}

	if a.Score <= b.Score {
		t.Errorf("expected A (%v) to outrank B (%v)", a.Score, b.Score)
	}
}

func TestScoreClampedToOne(t *testing.T) {
	var s Scorer
	// All four signals at once: 0.5 + 0.3 + 0.4 + 0.2 must clamp to 1.0.
	tgt := target([]int{10}, []string{"Paint"}, "Bug 9 - widget.cpp crash", "widget.cpp")
	cd := &diff.ChangeSet{AddedLines: []int{10}, Identifiers: []string{"Paint"}}
	c := s.Score("ccc", "Bug 9 - rework widget.cpp Paint", cd, tgt)
	if !almostEqual(c.Score, 1.0) {
		t.Errorf("score = %v, want clamp at 1.0", c.Score)
	}
	if len(c.Reasons) != 4 {
		t.Errorf("reasons = %v, want all four signals recorded", c.Reasons)
	}
}

func TestScoreNilDiffUsesDescriptionSignals(t *testing.T) {
	var s Scorer
	tgt := target([]int{10}, []string{"Paint"}, "Bug 42 - crash fix", "widget.cpp")
	c := s.Score("ddd", "Bug 42 - land new widget.cpp logic", nil, tgt)
	if !almostEqual(c.Score, 0.6) {
		t.Errorf("score without diff = %v, want 0.4 + 0.2", c.Score)
	}
}

func TestRankCandidatesStable(t *testing.T) {
	cands := []Candidate{
		{CommitID: "first", Score: 0.5},
		{CommitID: "second", Score: 0.9},
		{CommitID: "third", Score: 0.5},
	}
	ranked := RankCandidates(cands)
	ids := []string{ranked[0].CommitID, ranked[1].CommitID, ranked[2].CommitID}
	want := []string{"second", "first", "third"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("RankCandidates order = %v, want %v", ids, want)
	}
	// Input must be untouched.
	if cands[0].CommitID != "first" {
		t.Error("RankCandidates mutated its input")
	}
}
