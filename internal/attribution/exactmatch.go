package attribution

import (
	"sort"
	"strings"
)

// ExactMatchThreshold is the minimum pattern-match score for a candidate to
// qualify as the exact introducing commit. Below it the pipeline falls back
// to the best relevance candidate, labeled potential rather than exact.
const ExactMatchThreshold = 0.7

// exactBonusWeight scales the bonus for byte-identical line matches.
const exactBonusWeight = 0.3

// minPatternLen drops normalized lines too short to compare reliably
// (closing braces, bare returns).
const minPatternLen = 10

// NormalizeLine prepares a code line for pattern comparison: trailing //
// comments stripped, whitespace runs collapsed, lowercased. Normalization is
// idempotent.
func NormalizeLine(line string) string {
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	return strings.ToLower(strings.Join(strings.Fields(line), " "))
}

// ExtractRemovedPatterns returns the normalized removed-line patterns of a
// unified diff, in diff order.
func ExtractRemovedPatterns(diffText string) []string {
	return extractPatterns(diffText, "-", "---")
}

// ExtractAddedPatterns returns the normalized added-line patterns of a
// unified diff, in diff order.
func ExtractAddedPatterns(diffText string) []string {
	return extractPatterns(diffText, "+", "+++")
}

func extractPatterns(diffText, marker, fileHeader string) []string {
	var patterns []string
	inHunk := false
	for _, line := range strings.Split(diffText, "\n") {
		if strings.HasPrefix(line, "@@") {
			inHunk = true
			continue
		}
		if !inHunk {
			continue
		}
		if !strings.HasPrefix(line, marker) || strings.HasPrefix(line, fileHeader) {
			continue
		}
		normalized := NormalizeLine(line[1:])
		if len(normalized) > minPatternLen {
			patterns = append(patterns, normalized)
		}
	}
	return patterns
}

// jaccard computes word-set Jaccard similarity between two normalized lines.
func jaccard(a, b string) float64 {
	wordsA := toSet(strings.Fields(a))
	wordsB := toSet(strings.Fields(b))
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}
	inter := 0
	for w := range wordsA {
		if wordsB[w] {
			inter++
		}
	}
	union := len(wordsA) + len(wordsB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// ComparePatterns scores how well a candidate's added code reproduces the
// fix's removed code. For each removed pattern the best similarity across the
// added patterns is kept (1.0 on exact equality); the mean of those best
// similarities plus an exact-equality bonus gives the final score, capped at
// 1.0. Empty input on either side scores 0.
func ComparePatterns(removed, added []string) float64 {
	if len(removed) == 0 || len(added) == 0 {
		return 0
	}

	total := 0.0
	exact := 0
	for _, rp := range removed {
		best := 0.0
		for _, ap := range added {
			if rp == ap {
				exact++
				best = 1.0
				break
			}
			if sim := jaccard(rp, ap); sim > best {
				best = sim
			}
		}
		total += best
	}

	base := total / float64(len(removed))
	bonus := float64(exact) / float64(len(removed)) * exactBonusWeight
	score := base + bonus
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// PatternMatch is one candidate's textual-match result against the fix diff.
type PatternMatch struct {
	Candidate        Candidate `json:"candidate"`
	Score            float64   `json:"pattern_match_score"`
	MatchingPatterns int       `json:"matching_pattern_count"`
}

// CandidateDiff pairs a shortlisted candidate with its retrieved diff text.
type CandidateDiff struct {
	Candidate Candidate
	DiffText  string
}

// FindBestMatch compares the fix commit's removed code against each
// shortlisted candidate's added code and returns the candidates whose score
// reaches ExactMatchThreshold, ranked descending. The sort is stable: ties
// keep input order. An empty result means no exact introducing commit was
// identified, which is a valid outcome, not an error.
func FindBestMatch(fixDiffText string, candidates []CandidateDiff) []PatternMatch {
	removed := ExtractRemovedPatterns(fixDiffText)

	var matches []PatternMatch
	for _, cd := range candidates {
		added := ExtractAddedPatterns(cd.DiffText)
		score := ComparePatterns(removed, added)
		if score < ExactMatchThreshold {
			continue
		}
		matches = append(matches, PatternMatch{
			Candidate:        cd.Candidate,
			Score:            score,
			MatchingPatterns: minInt(len(removed), len(added)),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
