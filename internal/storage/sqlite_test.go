package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/crashscope/crashscope/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := logrus.New()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "crashscope.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := &models.AnalysisRun{
		ID:        "run-1",
		Signature: "mozilla::dom::Worker::Run",
		Channel:   "release",
		Status:    models.RunRunning,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunRunning, got.Status)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, store.CompleteRun(ctx, "run-1", models.RunCompleted, ""))
	got, err = store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.CompleteRun(context.Background(), "missing", models.RunFailed, "boom")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSuspectsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := &models.AnalysisRun{ID: "run-1", Signature: "sig", Status: models.RunRunning, StartedAt: time.Now().UTC()}
	require.NoError(t, store.SaveRun(ctx, run))

	suspects := []*models.SuspectCommit{
		{RunID: "run-1", Revision: "aaa111", Score: 0.4, Bucket: "related", Description: "Bug 1 - minor"},
		{RunID: "run-1", Revision: "bbb222", Score: 0.8, Bucket: "introducing", Description: "Bug 2 - major"},
	}
	require.NoError(t, store.SaveSuspects(ctx, suspects))

	got, err := store.GetSuspects(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Highest score first.
	assert.Equal(t, "bbb222", got[0].Revision)
	assert.Equal(t, "introducing", got[0].Bucket)
}

func TestFunctionsAndTestsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := &models.AnalysisRun{ID: "run-1", Signature: "sig", Status: models.RunRunning, StartedAt: time.Now().UTC()}
	require.NoError(t, store.SaveRun(ctx, run))

	functions := []*models.ModifiedFunction{
		{
			RunID: "run-1", Revision: "aaa111", File: "dom/media/MediaDecoder.cpp",
			Name: "MediaDecoder::Shutdown", StartLine: 100, EndLine: 140,
			Classification: models.PartiallyModified, OverlapPercent: 33.3,
			ChangedLines: models.JoinList([]string{"101", "102"}),
			Calls:        models.JoinList([]string{"DiscardOngoingSeekIfExists", "mStateMachine->Shutdown"}),
		},
	}
	require.NoError(t, store.SaveFunctions(ctx, functions))

	gotFns, err := store.GetFunctions(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, gotFns, 1)
	assert.Equal(t, 33.3, gotFns[0].OverlapPercent)
	assert.Equal(t, []string{"101", "102"}, models.SplitList(gotFns[0].ChangedLines))

	tests := []*models.RelatedTest{
		{RunID: "run-1", Path: "dom/media/gtest/TestMediaDecoder.cpp", Score: 0.9},
		{RunID: "run-1", Path: "dom/media/test/test_playback.html", Score: 0.6},
	}
	require.NoError(t, store.SaveTests(ctx, tests))

	gotTests, err := store.GetTests(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, gotTests, 2)
	assert.Equal(t, "dom/media/gtest/TestMediaDecoder.cpp", gotTests[0].Path)
}

func TestSaveEmptySlicesNoOp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveSuspects(ctx, nil))
	require.NoError(t, store.SaveFunctions(ctx, nil))
	require.NoError(t, store.SaveTests(ctx, nil))
	require.NoError(t, store.SaveCrashes(ctx, nil))
}
