// Package storage persists analysis runs and their results. SQLite backs
// local single-user use; PostgreSQL backs shared deployments.
package storage

import (
	"context"
	"errors"

	"github.com/crashscope/crashscope/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
)

// Store defines the storage interface.
type Store interface {
	// Run lifecycle
	SaveRun(ctx context.Context, run *models.AnalysisRun) error
	CompleteRun(ctx context.Context, runID, status, errMsg string) error
	GetRun(ctx context.Context, runID string) (*models.AnalysisRun, error)
	ListRuns(ctx context.Context, limit int) ([]*models.AnalysisRun, error)

	// Result records
	SaveCrashes(ctx context.Context, crashes []*models.CrashRecord) error
	GetCrashes(ctx context.Context, runID string) ([]*models.CrashRecord, error)
	SaveSuspects(ctx context.Context, suspects []*models.SuspectCommit) error
	GetSuspects(ctx context.Context, runID string) ([]*models.SuspectCommit, error)
	SaveFunctions(ctx context.Context, functions []*models.ModifiedFunction) error
	GetFunctions(ctx context.Context, runID string) ([]*models.ModifiedFunction, error)
	SaveTests(ctx context.Context, tests []*models.RelatedTest) error
	GetTests(ctx context.Context, runID string) ([]*models.RelatedTest, error)

	// Close connection
	Close() error
}
