// Package attribution ranks historical commits by how likely they are to have
// introduced the code a later fix commit removed. Relevance scoring shortlists
// candidates from cheap signals; exact matching then compares the fix's
// removed code against each candidate's added code to pick the introducing
// commit.
package attribution

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/crashscope/crashscope/internal/diff"
)

// Classification thresholds. These are empirically tuned constants, not
// tunables: the pipeline's output categories are defined by them.
const (
	// ScoreIntroducing marks a candidate as a likely introducing commit.
	ScoreIntroducing = 0.7
	// ScoreRelated marks a candidate as related but not introducing.
	ScoreRelated = 0.3
)

// Signal weights for relevance scoring. Each signal is strictly additive; the
// sum is clamped to [0, 1].
const (
	proximityWindow   = 10
	maxProximityScore = 0.5
	identifierBonus   = 0.3
	bugRefBonus       = 0.4
	filenameBonus     = 0.2
)

// Bucket is the three-way classification of a scored candidate.
type Bucket string

const (
	BucketIntroducing Bucket = "introducing"
	BucketRelated     Bucket = "related"
	BucketDiscarded   Bucket = "discarded"
)

// ClassifyScore maps a relevance score onto its bucket.
func ClassifyScore(score float64) Bucket {
	switch {
	case score >= ScoreIntroducing:
		return BucketIntroducing
	case score >= ScoreRelated:
		return BucketRelated
	default:
		return BucketDiscarded
	}
}

var bugRefRe = regexp.MustCompile(`[Bb]ug (\d+)`)

// BugRefs extracts bug-tracker references from a commit description,
// deduplicated in first-seen order.
func BugRefs(description string) []string {
	var refs []string
	seen := make(map[string]bool)
	for _, m := range bugRefRe.FindAllStringSubmatch(description, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			refs = append(refs, m[1])
		}
	}
	return refs
}

// Candidate is a historical commit scored as a possible regression introducer.
// Candidates are scored once and never re-scored.
type Candidate struct {
	CommitID    string   `json:"commit_id"`
	Description string   `json:"description"`
	Score       float64  `json:"relevance_score"`
	Reasons     []string `json:"reasons"`
}

// Bucket returns the candidate's score classification.
func (c Candidate) Bucket() Bucket {
	return ClassifyScore(c.Score)
}

// Target describes the fix commit the scorer compares candidates against.
type Target struct {
	Changes     diff.ChangeSet
	Description string
	Filename    string
}

// Scorer computes relevance scores for candidate commits.
type Scorer struct{}

// Score evaluates one historical commit against the fix target. candDiff is
// nil when the candidate's diff could not be retrieved (a commit living on a
// different branch, a binary file); the diff-based signals are then skipped
// and only description-based signals apply. Deciding whether an entirely
// unresolvable candidate should be scored at all is the caller's call -
// skipped candidates must stay absent from output, not show up as discarded
// noise.
func (Scorer) Score(commitID, candidateDesc string, candDiff *diff.ChangeSet, target Target) Candidate {
	cand := Candidate{CommitID: commitID, Description: candidateDesc}

	if candDiff != nil {
		targetLines := target.Changes.ChangedLines()
		candLines := candDiff.ChangedLines()

		hits := 0
		for _, tl := range targetLines {
			for _, cl := range candLines {
				if abs(tl-cl) <= proximityWindow {
					hits++
				}
			}
		}
		if hits > 0 && len(targetLines) > 0 {
			score := float64(hits) / float64(len(targetLines))
			if score > maxProximityScore {
				score = maxProximityScore
			}
			cand.Score += score
			cand.Reasons = append(cand.Reasons,
				fmt.Sprintf("Line proximity: %d lines near fix changes", hits))
		}

		common := intersect(target.Changes.Identifiers, candDiff.IdentifierSet())
		if len(common) > 0 {
			cand.Score += identifierBonus
			if len(common) > 3 {
				common = common[:3]
			}
			cand.Reasons = append(cand.Reasons,
				fmt.Sprintf("Common identifiers: %s", strings.Join(common, ", ")))
		}
	}

	shared := intersect(BugRefs(target.Description), toSet(BugRefs(candidateDesc)))
	if len(shared) > 0 {
		cand.Score += bugRefBonus
		cand.Reasons = append(cand.Reasons,
			fmt.Sprintf("Shared bug references: %s", strings.Join(shared, ", ")))
	}

	if target.Filename != "" &&
		strings.Contains(strings.ToLower(candidateDesc), strings.ToLower(target.Filename)) {
		cand.Score += filenameBonus
		cand.Reasons = append(cand.Reasons, "Fix filename mentioned in description")
	}

	if cand.Score > 1.0 {
		cand.Score = 1.0
	}
	return cand
}

// intersect returns the members of ordered that are present in set, keeping
// the order of the first argument so Reasons strings are deterministic.
func intersect(ordered []string, set map[string]bool) []string {
	var out []string
	for _, s := range ordered {
		if set[s] {
			out = append(out, s)
		}
	}
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// RankCandidates sorts candidates descending by score. The sort is stable so
// ties resolve to input order, which keeps reruns reproducible.
func RankCandidates(cands []Candidate) []Candidate {
	ranked := make([]Candidate, len(cands))
	copy(ranked, cands)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}
