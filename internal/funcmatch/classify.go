// Package funcmatch classifies parsed functions against the line ranges a
// diff touched: fully modified, partially modified, or untouched.
package funcmatch

import (
	"math"
	"sort"

	"github.com/crashscope/crashscope/internal/astparse"
	"github.com/crashscope/crashscope/internal/diff"
)

// ModifiedFunction is a function whose line span overlaps the diff.
type ModifiedFunction struct {
	Function          astparse.Function `json:"function"`
	ChangedLines      []int             `json:"changed_lines"`
	OverlapPercentage float64           `json:"overlap_percentage"`
}

// Classification partitions a file's functions by how much of each one the
// diff touched. The three lists are disjoint and together cover exactly the
// input functions.
type Classification struct {
	FullyModified     []ModifiedFunction  `json:"fully_modified"`
	PartiallyModified []ModifiedFunction  `json:"partially_modified"`
	Unmodified        []astparse.Function `json:"unmodified"`
}

// Classify matches functions parsed from the PRE-change revision against the
// hunks' old-file line ranges. Callers asking the symmetric question about
// the post-change revision must use ClassifyNew; mixing the two numbering
// spaces produces garbage.
func Classify(hunks []diff.Hunk, fns []astparse.Function) Classification {
	changed := make(map[int]bool)
	for _, h := range hunks {
		for _, n := range h.OldLines() {
			changed[n] = true
		}
	}
	return classify(changed, fns)
}

// ClassifyNew matches functions parsed from the POST-change revision against
// the hunks' new-file line ranges.
func ClassifyNew(hunks []diff.Hunk, fns []astparse.Function) Classification {
	changed := make(map[int]bool)
	for _, h := range hunks {
		for _, n := range h.NewLines() {
			changed[n] = true
		}
	}
	return classify(changed, fns)
}

func classify(changed map[int]bool, fns []astparse.Function) Classification {
	var result Classification

	for _, fn := range fns {
		var overlap []int
		for n := fn.StartLine; n <= fn.EndLine; n++ {
			if changed[n] {
				overlap = append(overlap, n)
			}
		}

		if len(overlap) == 0 {
			result.Unmodified = append(result.Unmodified, fn)
			continue
		}

		sort.Ints(overlap)
		mod := ModifiedFunction{
			Function:          fn,
			ChangedLines:      overlap,
			OverlapPercentage: roundPercent(len(overlap), fn.Size()),
		}

		if len(overlap) == fn.Size() {
			result.FullyModified = append(result.FullyModified, mod)
		} else {
			result.PartiallyModified = append(result.PartiallyModified, mod)
		}
	}

	return result
}

// roundPercent returns 100*part/total rounded to one decimal place.
func roundPercent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}
