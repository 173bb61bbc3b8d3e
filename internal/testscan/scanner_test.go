package testscan

import (
	"reflect"
	"testing"
)

func TestIsTestPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"dom/media/test/test_playback.html", true},
		{"dom/media/gtest/TestMediaDecoder.cpp", true},
		{"netwerk/test/unit/test_http3.js", true},
		{"layout/reftests/bugs/1234-ref.html", true},
		{"gfx/wr/webrender/src/renderer_test.rs", true},
		{"dom/media/MediaDecoder.cpp", false},
		{"netwerk/base/nsIOService.cpp", false},
		{"toolkit/components/contest/winner.cpp", false},
	}
	for _, tt := range tests {
		if got := IsTestPath(tt.path); got != tt.want {
			t.Errorf("IsTestPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestStem(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"dom/media/MediaDecoder.cpp", "mediadecoder"},
		{"dom/media/gtest/TestMediaDecoder.cpp", "mediadecoder"},
		{"dom/media/test/test_media_decoder.html", "mediadecoder"},
		{"gfx/renderer_test.rs", "renderer"},
	}
	for _, tt := range tests {
		if got := stem(tt.filename); got != tt.want {
			t.Errorf("stem(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestCandidateTestFiles(t *testing.T) {
	repoFiles := []string{
		"dom/media/MediaDecoder.cpp",
		"dom/media/gtest/TestMediaDecoder.cpp",
		"dom/media/test/test_playback.html",
		"netwerk/test/unit/test_http3.js",
		"docs/index.rst",
	}

	candidates := CandidateTestFiles(repoFiles, "dom/media/MediaDecoder.cpp")
	if len(candidates) < 2 {
		t.Fatalf("got %d candidates, want at least 2", len(candidates))
	}
	// The gtest next to the source with a matching stem must rank first.
	if candidates[0].Path != "dom/media/gtest/TestMediaDecoder.cpp" {
		t.Errorf("top candidate = %q", candidates[0].Path)
	}
	if candidates[0].Score <= candidates[1].Score {
		t.Errorf("top candidate score %v not above runner-up %v",
			candidates[0].Score, candidates[1].Score)
	}
	for _, c := range candidates {
		if c.Path == "netwerk/test/unit/test_http3.js" {
			t.Error("unrelated module's test survived the floor")
		}
		if c.Path == "dom/media/MediaDecoder.cpp" {
			t.Error("source file itself reported as a test")
		}
	}
}

func TestCandidateTestFilesDeterministic(t *testing.T) {
	repoFiles := []string{
		"dom/media/test/test_b.html",
		"dom/media/test/test_a.html",
	}
	candidates := CandidateTestFiles(repoFiles, "dom/media/MediaDecoder.cpp")
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
	if candidates[0].Path != "dom/media/test/test_a.html" {
		t.Errorf("equal-score candidates not ordered by path: %q first", candidates[0].Path)
	}
}

func TestMentionedFunctions(t *testing.T) {
	content := `
TEST(MediaDecoder, ShutdownDuringSeek) {
  RefPtr<MediaDecoder> decoder = CreateDecoder();
  decoder->Shutdown();
}
`
	got := MentionedFunctions(content, []string{
		"MediaDecoder::Shutdown",
		"MediaDecoder::Play",
		"CreateDecoder",
	})
	want := []string{"MediaDecoder::Shutdown", "CreateDecoder"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MentionedFunctions = %v, want %v", got, want)
	}
}

func TestBoost(t *testing.T) {
	base := TestFile{Path: "a", Score: 0.5, Reasons: []string{"same top-level module"}}

	boosted := Boost(base, []string{"Foo::Bar"})
	if boosted.Score != 0.9 {
		t.Errorf("boosted score = %v, want 0.9", boosted.Score)
	}
	if len(boosted.Mentioned) != 1 {
		t.Errorf("mentioned = %v", boosted.Mentioned)
	}

	unchanged := Boost(base, nil)
	if unchanged.Score != 0.5 || unchanged.Mentioned != nil {
		t.Errorf("Boost with no mentions changed the candidate: %+v", unchanged)
	}
}
