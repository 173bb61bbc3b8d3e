// Package testscan locates tests related to a modified source file. It works
// in two passes: a cheap path-based pass over the repository file list, then
// a content pass that checks whether candidate tests actually mention the
// modified functions.
package testscan

import (
	"path"
	"regexp"
	"sort"
	"strings"
)

// TestFile is one discovered test with the evidence that tied it to the
// modified code.
type TestFile struct {
	Path      string   `json:"path"`
	Score     float64  `json:"score"`
	Reasons   []string `json:"reasons"`
	Mentioned []string `json:"mentioned_functions,omitempty"`
}

// Path-pass weights. Directory proximity dominates because a test living
// next to the source is almost always the right harness.
const (
	sameDirScore   = 0.5
	nearDirScore   = 0.3
	stemMatchScore = 0.4
	testPathScore  = 0.1
	mentionScore   = 0.4
	maxPathScore   = 1.0
	candidateFloor = 0.2
)

var testDirMarkers = []string{
	"/test/", "/tests/", "/gtest/", "/gtests/", "/unit/",
	"/mochitest/", "/crashtests/", "/reftests/", "/xpcshell/",
}

var testNameRe = regexp.MustCompile(`(?i)(^|[_/-])tests?([_.-]|$)`)

// IsTestPath reports whether a path looks like a test by location or name.
func IsTestPath(p string) bool {
	normalized := "/" + strings.ToLower(strings.ReplaceAll(p, "\\", "/"))
	for _, marker := range testDirMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return testNameRe.MatchString(path.Base(normalized))
}

// stem strips the extension and common test decorations from a file name
// so TestMediaDecoder.cpp and media_decoder_test.rs both map back to their
// subject.
func stem(filename string) string {
	base := path.Base(strings.ToLower(strings.ReplaceAll(filename, "\\", "/")))
	base = strings.TrimSuffix(base, path.Ext(base))
	for _, decoration := range []string{"test_", "tests_"} {
		base = strings.TrimPrefix(base, decoration)
	}
	for _, decoration := range []string{"_test", "_tests", "_unittest"} {
		base = strings.TrimSuffix(base, decoration)
	}
	base = strings.TrimPrefix(base, "test")
	base = strings.ReplaceAll(base, "_", "")
	base = strings.ReplaceAll(base, "-", "")
	return base
}

// CandidateTestFiles scores every test-looking file in the repository list
// against a modified source file and returns candidates above the floor,
// best first. Ties break on path for deterministic output.
func CandidateTestFiles(repoFiles []string, sourcePath string) []TestFile {
	sourceDir := path.Dir(strings.ReplaceAll(sourcePath, "\\", "/"))
	sourceTop := topComponent(sourceDir)
	sourceStem := stem(sourcePath)

	var out []TestFile
	for _, f := range repoFiles {
		if !IsTestPath(f) {
			continue
		}
		normalized := strings.ReplaceAll(f, "\\", "/")

		var score float64
		var reasons []string

		dir := path.Dir(normalized)
		switch {
		case strings.HasPrefix(dir, sourceDir+"/") || dir == sourceDir:
			score += sameDirScore
			reasons = append(reasons, "test directory under source directory")
		case topComponent(dir) == sourceTop:
			score += nearDirScore
			reasons = append(reasons, "same top-level module")
		}

		if sourceStem != "" && stem(normalized) == sourceStem {
			score += stemMatchScore
			reasons = append(reasons, "file name matches source file")
		}

		score += testPathScore
		if score > maxPathScore {
			score = maxPathScore
		}
		if score < candidateFloor {
			continue
		}
		out = append(out, TestFile{Path: f, Score: score, Reasons: reasons})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Path < out[j].Path
	})
	return out
}

func topComponent(dir string) string {
	dir = strings.TrimPrefix(dir, "/")
	if i := strings.IndexByte(dir, '/'); i >= 0 {
		return dir[:i]
	}
	return dir
}

// MentionedFunctions returns which of the given function names appear in the
// test content. Qualified names also match on their final component, since
// tests usually call methods through an instance.
func MentionedFunctions(content string, functionNames []string) []string {
	var mentioned []string
	seen := make(map[string]bool)
	for _, name := range functionNames {
		probe := name
		if i := strings.LastIndex(probe, "::"); i >= 0 {
			probe = probe[i+2:]
		}
		if probe == "" || seen[name] {
			continue
		}
		if strings.Contains(content, probe) {
			mentioned = append(mentioned, name)
			seen[name] = true
		}
	}
	return mentioned
}

// Boost folds content evidence into a candidate's score.
func Boost(candidate TestFile, mentioned []string) TestFile {
	if len(mentioned) == 0 {
		return candidate
	}
	candidate.Mentioned = mentioned
	candidate.Score += mentionScore
	if candidate.Score > maxPathScore+mentionScore {
		candidate.Score = maxPathScore + mentionScore
	}
	candidate.Reasons = append(candidate.Reasons, "mentions modified functions")
	return candidate
}
