package hg

import (
	"reflect"
	"testing"
)

func TestParseHistory(t *testing.T) {
	out := "abc123|Jane Doe <jane@example.com>|2024-03-01 10:00 +0000|Bug 1234 - Fix buffer overrun\n" +
		"def456|John Roe <john@example.com>|2024-02-28 09:00 +0000|Bug 1200 - Refactor stream handling\n" +
		"malformed-line\n"

	entries := parseHistory(out)
	if len(entries) != 2 {
		t.Fatalf("parseHistory returned %d entries, want 2", len(entries))
	}
	want := HistoryEntry{
		Node:        "abc123",
		Author:      "Jane Doe <jane@example.com>",
		Date:        "2024-03-01 10:00 +0000",
		Description: "Bug 1234 - Fix buffer overrun",
	}
	if entries[0] != want {
		t.Errorf("first entry = %+v, want %+v", entries[0], want)
	}
	if entries[1].Node != "def456" {
		t.Errorf("second entry node = %q, want def456", entries[1].Node)
	}
}

func TestParseHistoryEmpty(t *testing.T) {
	if entries := parseHistory(""); entries != nil {
		t.Errorf("parseHistory(\"\") = %v, want nil", entries)
	}
}

func TestMapChannel(t *testing.T) {
	tests := []struct {
		channel string
		want    string
	}{
		{"nightly", "nightly"},
		{"release", "release"},
		{"beta", "release"},
		{"esr", "esr115"},
		{"esr115", "esr115"},
		{"default", "nightly"},
		{"Nightly", "nightly"},
		{" release ", "release"},
		{"unknown-channel", "nightly"},
		{"", "nightly"},
	}
	for _, tt := range tests {
		if got := MapChannel(tt.channel); got != tt.want {
			t.Errorf("MapChannel(%q) = %q, want %q", tt.channel, got, tt.want)
		}
	}
}

func TestIsMergeDescription(t *testing.T) {
	tests := []struct {
		desc string
		want bool
	}{
		{"Merge autoland to mozilla-central, a=merge", true},
		{"merge mozilla-central to beta", true},
		{"Automated merge of release into esr115", true},
		{"Bug 1234 - Fix crash in nsDocShell::Destroy", false},
		{"Bug 99 - merge two code paths in the parser", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsMergeDescription(tt.desc); got != tt.want {
			t.Errorf("IsMergeDescription(%q) = %v, want %v", tt.desc, got, tt.want)
		}
	}
}

func TestCommitAnalyzable(t *testing.T) {
	tests := []struct {
		name   string
		commit Commit
		want   bool
	}{
		{
			name:   "bug reference present",
			commit: Commit{Description: "Bug 1234 - Fix crash", BugNumbers: []string{"1234"}},
			want:   true,
		},
		{
			name:   "no bug numbers",
			commit: Commit{Description: "Fix typo in comment"},
			want:   false,
		},
		{
			name:   "explicitly no bug",
			commit: Commit{Description: "No bug - reformat, also mentions Bug 1 in passing", BugNumbers: []string{"1"}},
			want:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.commit.Analyzable(); got != tt.want {
				t.Errorf("Analyzable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractedBugNumbers(t *testing.T) {
	desc := "Bug 1234 - Fix regression from bug 1200, r=reviewer"
	var got []string
	for _, m := range bugNumberRe.FindAllStringSubmatch(desc, -1) {
		got = append(got, m[1])
	}
	if want := []string{"1234", "1200"}; !reflect.DeepEqual(got, want) {
		t.Errorf("bug numbers = %v, want %v", got, want)
	}
}

func TestAnnotateLineParsing(t *testing.T) {
	tests := []struct {
		line    string
		wantRev string
		wantOK  bool
	}{
		{"   jdoe 412345: void Foo::Bar() {", "412345", true},
		{"someone 99:   return;", "99", true},
		{"no revision marker here", "", false},
	}
	for _, tt := range tests {
		m := annotateRe.FindStringSubmatch(tt.line)
		if (m != nil) != tt.wantOK {
			t.Errorf("annotateRe match on %q = %v, want ok=%v", tt.line, m != nil, tt.wantOK)
			continue
		}
		if tt.wantOK && m[1] != tt.wantRev {
			t.Errorf("annotateRe rev on %q = %q, want %q", tt.line, m[1], tt.wantRev)
		}
	}
}

func TestFileFilter(t *testing.T) {
	filter := DefaultFileFilter()

	tests := []struct {
		filename string
		want     bool
	}{
		{"dom/media/MediaDecoder.cpp", true},
		{"netwerk/base/nsIOService.h", true},
		{"js/src/vm/Interpreter.cpp", true},
		{"gfx/wr/webrender/src/renderer.rs", true},
		{"browser/base/content/browser.js", true},
		{"dom/webidl/Window.webidl", true},
		{"testing/web-platform/tests/dom/historical.html", false},
		{"third_party/rust/serde/src/lib.rs", false},
		{"docs/contributing/how_to_submit_a_patch.rst", false},
		{"README.md", false},
		{"moz.build", false},
		{"dom\\media\\MediaDecoder.cpp", true},
	}
	for _, tt := range tests {
		if got := filter.IsCodeFile(tt.filename); got != tt.want {
			t.Errorf("IsCodeFile(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}
