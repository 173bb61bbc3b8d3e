package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crashscope/crashscope/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *Report {
	return &Report{
		RunID:       "run-abc",
		Signature:   "mozilla::dom::Worker::Run",
		Channel:     "release",
		GeneratedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Suspects: []*models.SuspectCommit{
			{Revision: "bbb222333444555", Score: 0.8, Bucket: "introducing", Description: "Bug 2 - rework worker shutdown"},
			{Revision: "aaa111", Score: 0.4, Bucket: "related", Description: "Bug 1 - logging tweak"},
		},
		Functions: []*models.ModifiedFunction{
			{File: "dom/workers/Worker.cpp", Name: "Worker::Run", StartLine: 10, EndLine: 40,
				Classification: models.PartiallyModified, OverlapPercent: 33.3},
		},
		Tests: []*models.RelatedTest{
			{Path: "dom/workers/test/test_worker_shutdown.html", Score: 0.9},
		},
	}
}

func TestWriteAndLoadJSON(t *testing.T) {
	w := NewWriter(t.TempDir())
	r := sampleReport()

	path, err := w.WriteJSON(r)
	require.NoError(t, err)
	assert.Equal(t, "report.json", filepath.Base(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, r.Signature, loaded.Signature)
	require.Len(t, loaded.Suspects, 2)
	assert.Equal(t, "introducing", loaded.Suspects[0].Bucket)
}

func TestWriteHTML(t *testing.T) {
	w := NewWriter(t.TempDir())
	path, err := w.WriteHTML(sampleReport())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(data)
	assert.Contains(t, html, "mozilla::dom::Worker::Run")
	assert.Contains(t, html, "bbb222333444555")
	assert.Contains(t, html, `class="introducing"`)
	assert.Contains(t, html, "Worker::Run")
}

func TestSummary(t *testing.T) {
	s := Summary(sampleReport())
	assert.Contains(t, s, "mozilla::dom::Worker::Run")
	assert.Contains(t, s, "Likely introducing commits (1)")
	// Revisions are shortened for terminal output.
	assert.Contains(t, s, "bbb222333444")
	assert.NotContains(t, s, "bbb222333444555")
	assert.Contains(t, s, "Related tests (1)")
}

func TestSummaryNoSuspects(t *testing.T) {
	r := &Report{RunID: "run-1", Signature: "sig", GeneratedAt: time.Now()}
	s := Summary(r)
	assert.Contains(t, s, "No candidate commits found")
}

func TestIntroducing(t *testing.T) {
	r := sampleReport()
	intro := r.Introducing()
	require.Len(t, intro, 1)
	assert.Equal(t, "bbb222333444555", intro[0].Revision)

	if got := strings.TrimSpace(Summary(r)); got == "" {
		t.Error("summary is empty")
	}
}
