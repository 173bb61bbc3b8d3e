// Package hg wraps the Mercurial CLI for the repository operations the
// analysis pipeline needs: single-revision diffs, file content at a revision,
// per-file ancestor history, and per-line annotation. All commands run
// against local repository clones.
package hg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrRevisionNotFound distinguishes "this clone does not have the revision"
// from empty command output. Callers scan sibling repositories on it.
var ErrRevisionNotFound = errors.New("revision not found in repository")

// commandTimeout bounds every hg invocation. Local clone operations that run
// longer than this are stuck, not slow.
const commandTimeout = 30 * time.Second

// Commit is the metadata of one changeset.
type Commit struct {
	Revision    string   `json:"revision"`
	Author      string   `json:"author"`
	Date        string   `json:"date"`
	Description string   `json:"description"`
	BugNumbers  []string `json:"bug_numbers"`
	Channel     string   `json:"channel"`
}

// HistoryEntry is one line of per-file ancestor history.
type HistoryEntry struct {
	Node        string `json:"node"`
	Author      string `json:"author"`
	Date        string `json:"date"`
	Description string `json:"description"` // first line only
}

// LineAnnotation records which local revision last modified a line.
type LineAnnotation struct {
	Line int    `json:"line"`
	Rev  string `json:"rev"`
}

// Repo is one local Mercurial clone, tagged with the release channel it
// tracks (nightly, release, esr115).
type Repo struct {
	Path    string
	Channel string
}

// run executes an hg command in the repository, with a bounded timeout.
func (r Repo) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "hg", args...)
	cmd.Dir = r.Path
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("hg %s failed: %w (stderr: %s)",
				args[0], err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("hg %s failed: %w", args[0], err)
	}
	return string(output), nil
}

// HasRevision reports whether the clone contains the revision.
func (r Repo) HasRevision(ctx context.Context, revision string) bool {
	out, err := r.run(ctx, "log", "-r", revision, "--template", "{node}")
	return err == nil && strings.Contains(out, revision)
}

var bugNumberRe = regexp.MustCompile(`[Bb]ug (\d+)`)

// CommitInfo returns the commit metadata for a revision.
func (r Repo) CommitInfo(ctx context.Context, revision string) (*Commit, error) {
	out, err := r.run(ctx, "log", "-r", revision, "--template", "{author}|{date|isodate}|{desc}")
	if err != nil {
		return nil, err
	}

	parts := strings.SplitN(strings.TrimSpace(out), "|", 3)
	if len(parts) < 2 {
		return nil, fmt.Errorf("unexpected hg log output for %s: %q", revision, out)
	}
	commit := &Commit{
		Revision: revision,
		Author:   parts[0],
		Date:     parts[1],
		Channel:  r.Channel,
	}
	if len(parts) == 3 {
		commit.Description = parts[2]
	}
	for _, m := range bugNumberRe.FindAllStringSubmatch(commit.Description, -1) {
		commit.BugNumbers = append(commit.BugNumbers, m[1])
	}
	return commit, nil
}

// FileDiff returns the unified diff a single revision introduced for one
// file, with the Mercurial "diff -r" header rewritten to the git-style header
// the diff parser expects. An empty diff means the revision did not touch the
// file.
func (r Repo) FileDiff(ctx context.Context, revision, filename string) (string, error) {
	out, err := r.run(ctx, "diff", "-c", revision, filename)
	if err != nil {
		return "", err
	}

	lines := strings.Split(out, "\n")
	clean := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(line, "diff -r ") && strings.Contains(line, " -r ") {
			clean = append(clean, fmt.Sprintf("diff --git a/%s b/%s", filename, filename))
			continue
		}
		clean = append(clean, line)
	}
	return strings.Join(clean, "\n"), nil
}

// Cat returns the file content at a revision.
func (r Repo) Cat(ctx context.Context, revision, filename string) (string, error) {
	return r.run(ctx, "cat", "-r", revision, filename)
}

// FileHistory returns up to limit ancestor commits of revision that touched
// the file, newest first.
func (r Repo) FileHistory(ctx context.Context, revision, filename string, limit int) ([]HistoryEntry, error) {
	out, err := r.run(ctx,
		"log",
		"-r", fmt.Sprintf("reverse(ancestors(%s))", revision),
		"--limit", strconv.Itoa(limit),
		"--template", "{node|short}|{author}|{date|isodate}|{desc|firstline}\n",
		filename,
	)
	if err != nil {
		return nil, err
	}
	return parseHistory(out), nil
}

// parseHistory parses the pipe-delimited log template output. Malformed lines
// are skipped rather than failing the whole history.
func parseHistory(out string) []HistoryEntry {
	var entries []HistoryEntry
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 4)
		if len(parts) < 3 {
			continue
		}
		entry := HistoryEntry{
			Node:   parts[0],
			Author: parts[1],
			Date:   parts[2],
		}
		if len(parts) == 4 {
			entry.Description = parts[3]
		}
		entries = append(entries, entry)
	}
	return entries
}

var annotateRe = regexp.MustCompile(`^\s*.*?\s+(\d+):`)

// Annotate returns, for each requested 1-based line number, the local
// revision that last modified it. Lines outside the file are omitted.
func (r Repo) Annotate(ctx context.Context, revision, filename string, lineNumbers []int) ([]LineAnnotation, error) {
	out, err := r.run(ctx, "annotate", "-r", revision, "-n", "-u", filename)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(out, "\n")
	var annotations []LineAnnotation
	for _, n := range lineNumbers {
		if n < 1 || n > len(lines) {
			continue
		}
		if m := annotateRe.FindStringSubmatch(lines[n-1]); m != nil {
			annotations = append(annotations, LineAnnotation{Line: n, Rev: m[1]})
		}
	}
	return annotations, nil
}

// Parent returns the first-parent node of a revision.
func (r Repo) Parent(ctx context.Context, revision string) (string, error) {
	out, err := r.run(ctx, "log", "-r", revision, "--template", "{p1node}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// FileChanges groups the files a revision touched by change type, with
// non-code files split out by the filter rather than silently dropped.
type FileChanges struct {
	Modified    []string `json:"modified"`
	Added       []string `json:"added"`
	Removed     []string `json:"removed"`
	FilteredOut []string `json:"filtered_out"`
}

// ChangedFiles lists the files a revision changed relative to its first
// parent, classifying them via hg status codes and the code-file filter.
func (r Repo) ChangedFiles(ctx context.Context, revision string, filter FileFilter) (*FileChanges, error) {
	parent, err := r.Parent(ctx, revision)
	if err != nil {
		return nil, err
	}

	out, err := r.run(ctx, "status", "--rev", parent, "--rev", revision)
	if err != nil {
		return nil, err
	}

	changes := &FileChanges{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if len(line) < 3 {
			continue
		}
		status, filename := line[0], strings.TrimSpace(line[2:])
		if !filter.IsCodeFile(filename) {
			changes.FilteredOut = append(changes.FilteredOut, fmt.Sprintf("%c %s", status, filename))
			continue
		}
		switch status {
		case 'M':
			changes.Modified = append(changes.Modified, filename)
		case 'A':
			changes.Added = append(changes.Added, filename)
		case 'R':
			changes.Removed = append(changes.Removed, filename)
		}
	}
	return changes, nil
}

// ListFiles returns every tracked file at a revision.
func (r Repo) ListFiles(ctx context.Context, revision string) ([]string, error) {
	out, err := r.run(ctx, "files", "-r", revision)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// mergePhrases and mergePatterns identify integration merges, which carry no
// analyzable change of their own.
var mergePhrases = []string{
	"merge autoland to mozilla-central",
	"merge mozilla-central to",
	"merge central to",
	"merge beta to",
	"merge release to",
	"merge esr",
	"a=merge",
}

var mergePatterns = []*regexp.Regexp{
	regexp.MustCompile(`merge.*a=merge`),
	regexp.MustCompile(`merge.*to.*central`),
	regexp.MustCompile(`merge.*to.*release`),
	regexp.MustCompile(`merge.*to.*beta`),
	regexp.MustCompile(`merge.*to.*esr`),
	regexp.MustCompile(`automated merge`),
}

// IsMergeDescription reports whether a commit description marks an
// integration merge commit.
func IsMergeDescription(description string) bool {
	desc := strings.ToLower(description)
	for _, phrase := range mergePhrases {
		if strings.Contains(desc, phrase) {
			return true
		}
	}
	for _, re := range mergePatterns {
		if re.MatchString(desc) {
			return true
		}
	}
	return false
}

var noBugPhrases = []string{"no bug", "nobug", "no-bug"}

// Analyzable reports whether the commit is worth attributing: it must carry
// at least one bug reference and not be marked "no bug".
func (c *Commit) Analyzable() bool {
	if len(c.BugNumbers) == 0 {
		return false
	}
	desc := strings.ToLower(c.Description)
	for _, phrase := range noBugPhrases {
		if strings.Contains(desc, phrase) {
			return false
		}
	}
	return true
}
