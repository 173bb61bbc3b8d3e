package coverage

import "sort"

// FileCoverage holds per-line hit counts for one file. Lines absent from
// the map were not instrumented (blanks, comments, preprocessor output).
type FileCoverage struct {
	Revision string      `json:"revision"`
	Path     string      `json:"path"`
	Lines    map[int]int `json:"lines"`
}

// Summary condenses coverage over a set of target lines, typically the
// lines a suspect commit changed.
type Summary struct {
	Instrumented   int     `json:"instrumented"`
	Covered        int     `json:"covered"`
	Uncovered      []int   `json:"uncovered,omitempty"`
	Percent        float64 `json:"percent"`
	TargetsMissing int     `json:"targets_missing"`
}

// Summarize reports how well tests cover the target lines. Target lines
// that were never instrumented count as missing, not as uncovered; a change
// to a comment should not read as a coverage gap.
func (fc *FileCoverage) Summarize(targetLines []int) Summary {
	var s Summary
	for _, line := range dedupSorted(targetLines) {
		hits, instrumented := fc.Lines[line]
		if !instrumented {
			s.TargetsMissing++
			continue
		}
		s.Instrumented++
		if hits > 0 {
			s.Covered++
		} else {
			s.Uncovered = append(s.Uncovered, line)
		}
	}
	if s.Instrumented > 0 {
		s.Percent = float64(s.Covered) / float64(s.Instrumented) * 100
	}
	return s
}

func dedupSorted(lines []int) []int {
	seen := make(map[int]bool, len(lines))
	var out []int
	for _, n := range lines {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}
