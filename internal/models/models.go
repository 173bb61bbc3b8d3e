// Package models defines the record types shared by the pipeline, the
// storage layer, and report generation.
package models

import (
	"strings"
	"time"
)

// AnalysisRun tracks one end-to-end analysis of a crash signature.
type AnalysisRun struct {
	ID          string     `json:"id" db:"id"`
	Signature   string     `json:"signature" db:"signature"`
	CrashID     string     `json:"crash_id" db:"crash_id"`
	Channel     string     `json:"channel" db:"channel"`
	Status      string     `json:"status" db:"status"`
	Error       string     `json:"error,omitempty" db:"error"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// CrashRecord is one sampled crash instance tied to a run, with the build
// resolved to a repository revision.
type CrashRecord struct {
	UUID      string `json:"uuid" db:"uuid"`
	RunID     string `json:"run_id" db:"run_id"`
	Signature string `json:"signature" db:"signature"`
	BuildID   string `json:"build_id" db:"build_id"`
	Version   string `json:"version" db:"version"`
	Channel   string `json:"channel" db:"channel"`
	Revision  string `json:"revision" db:"revision"`
	CrashDate string `json:"crash_date" db:"crash_date"`
}

// SuspectCommit is one scored candidate for the change that introduced the
// crash.
type SuspectCommit struct {
	ID          int64   `json:"-" db:"id"`
	RunID       string  `json:"run_id" db:"run_id"`
	Revision    string  `json:"revision" db:"revision"`
	Channel     string  `json:"channel" db:"channel"`
	Author      string  `json:"author" db:"author"`
	Date        string  `json:"date" db:"date"`
	Description string  `json:"description" db:"description"`
	BugNumbers  string  `json:"bug_numbers,omitempty" db:"bug_numbers"`
	Score       float64 `json:"score" db:"score"`
	Bucket      string  `json:"bucket" db:"bucket"`
	Reasons     string  `json:"reasons,omitempty" db:"reasons"`
}

// ModifiedFunction records how a suspect commit touched one function.
type ModifiedFunction struct {
	ID             int64   `json:"-" db:"id"`
	RunID          string  `json:"run_id" db:"run_id"`
	Revision       string  `json:"revision" db:"revision"`
	File           string  `json:"file" db:"file"`
	Name           string  `json:"name" db:"name"`
	StartLine      int     `json:"start_line" db:"start_line"`
	EndLine        int     `json:"end_line" db:"end_line"`
	Classification string  `json:"classification" db:"classification"`
	OverlapPercent float64 `json:"overlap_percent" db:"overlap_percent"`
	ChangedLines   string  `json:"changed_lines,omitempty" db:"changed_lines"`
	Calls          string  `json:"calls,omitempty" db:"calls"`
}

// Function modification classifications.
const (
	FullyModified     = "fully_modified"
	PartiallyModified = "partially_modified"
)

// RelatedTest is one discovered test tied to a run.
type RelatedTest struct {
	ID      int64   `json:"-" db:"id"`
	RunID   string  `json:"run_id" db:"run_id"`
	Path    string  `json:"path" db:"path"`
	Score   float64 `json:"score" db:"score"`
	Reasons string  `json:"reasons,omitempty" db:"reasons"`
}

// JoinList flattens a slice field for storage.
func JoinList(items []string) string {
	return strings.Join(items, "; ")
}

// SplitList is the inverse of JoinList.
func SplitList(joined string) []string {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, "; ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
