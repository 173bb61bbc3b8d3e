package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/crashscope/crashscope/internal/models"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteStore implements storage using SQLite (for local use)
type SQLiteStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewSQLiteStore creates a new SQLite storage
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	// Enable foreign keys and WAL mode for better concurrency
	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	store := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		signature TEXT NOT NULL,
		crash_id TEXT,
		channel TEXT,
		status TEXT NOT NULL,
		error TEXT,
		started_at DATETIME,
		completed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS crashes (
		uuid TEXT NOT NULL,
		run_id TEXT NOT NULL,
		signature TEXT,
		build_id TEXT,
		version TEXT,
		channel TEXT,
		revision TEXT,
		crash_date TEXT,
		PRIMARY KEY (uuid, run_id),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS suspects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		revision TEXT NOT NULL,
		channel TEXT,
		author TEXT,
		date TEXT,
		description TEXT,
		bug_numbers TEXT,
		score REAL,
		bucket TEXT,
		reasons TEXT,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS functions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		revision TEXT,
		file TEXT NOT NULL,
		name TEXT NOT NULL,
		start_line INTEGER,
		end_line INTEGER,
		classification TEXT,
		overlap_percent REAL,
		changed_lines TEXT,
		calls TEXT,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS tests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		path TEXT NOT NULL,
		score REAL,
		reasons TEXT,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_crashes_run ON crashes(run_id);
	CREATE INDEX IF NOT EXISTS idx_suspects_run ON suspects(run_id);
	CREATE INDEX IF NOT EXISTS idx_functions_run ON functions(run_id);
	CREATE INDEX IF NOT EXISTS idx_tests_run ON tests(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Run operations

func (s *SQLiteStore) SaveRun(ctx context.Context, run *models.AnalysisRun) error {
	query := `
		INSERT OR REPLACE INTO runs
		(id, signature, crash_id, channel, status, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Signature, run.CrashID, run.Channel,
		run.Status, run.Error, run.StartedAt, run.CompletedAt)

	return err
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID, status, errMsg string) error {
	now := time.Now().UTC()
	query := `UPDATE runs SET status = ?, error = ?, completed_at = ? WHERE id = ?`

	res, err := s.db.ExecContext(ctx, query, status, errMsg, now, runID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*models.AnalysisRun, error) {
	var run models.AnalysisRun
	query := `SELECT * FROM runs WHERE id = ?`

	err := s.db.GetContext(ctx, &run, query, runID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*models.AnalysisRun, error) {
	var runs []*models.AnalysisRun
	query := `SELECT * FROM runs ORDER BY started_at DESC LIMIT ?`

	if err := s.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, err
	}
	return runs, nil
}

// Crash operations

func (s *SQLiteStore) SaveCrashes(ctx context.Context, crashes []*models.CrashRecord) error {
	if len(crashes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT OR REPLACE INTO crashes
		(uuid, run_id, signature, build_id, version, channel, revision, crash_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, crash := range crashes {
		_, err := tx.ExecContext(ctx, query,
			crash.UUID, crash.RunID, crash.Signature, crash.BuildID,
			crash.Version, crash.Channel, crash.Revision, crash.CrashDate)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetCrashes(ctx context.Context, runID string) ([]*models.CrashRecord, error) {
	var crashes []*models.CrashRecord
	query := `SELECT * FROM crashes WHERE run_id = ? ORDER BY crash_date DESC`

	if err := s.db.SelectContext(ctx, &crashes, query, runID); err != nil {
		return nil, err
	}
	return crashes, nil
}

// Suspect operations

func (s *SQLiteStore) SaveSuspects(ctx context.Context, suspects []*models.SuspectCommit) error {
	if len(suspects) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO suspects
		(run_id, revision, channel, author, date, description, bug_numbers, score, bucket, reasons)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, suspect := range suspects {
		_, err := tx.ExecContext(ctx, query,
			suspect.RunID, suspect.Revision, suspect.Channel, suspect.Author,
			suspect.Date, suspect.Description, suspect.BugNumbers,
			suspect.Score, suspect.Bucket, suspect.Reasons)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetSuspects(ctx context.Context, runID string) ([]*models.SuspectCommit, error) {
	var suspects []*models.SuspectCommit
	query := `SELECT * FROM suspects WHERE run_id = ? ORDER BY score DESC, id ASC`

	if err := s.db.SelectContext(ctx, &suspects, query, runID); err != nil {
		return nil, err
	}
	return suspects, nil
}

// Function operations

func (s *SQLiteStore) SaveFunctions(ctx context.Context, functions []*models.ModifiedFunction) error {
	if len(functions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO functions
		(run_id, revision, file, name, start_line, end_line,
		 classification, overlap_percent, changed_lines, calls)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, fn := range functions {
		_, err := tx.ExecContext(ctx, query,
			fn.RunID, fn.Revision, fn.File, fn.Name, fn.StartLine, fn.EndLine,
			fn.Classification, fn.OverlapPercent, fn.ChangedLines, fn.Calls)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetFunctions(ctx context.Context, runID string) ([]*models.ModifiedFunction, error) {
	var functions []*models.ModifiedFunction
	query := `SELECT * FROM functions WHERE run_id = ? ORDER BY file ASC, start_line ASC`

	if err := s.db.SelectContext(ctx, &functions, query, runID); err != nil {
		return nil, err
	}
	return functions, nil
}

// Test operations

func (s *SQLiteStore) SaveTests(ctx context.Context, tests []*models.RelatedTest) error {
	if len(tests) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO tests (run_id, path, score, reasons) VALUES (?, ?, ?, ?)`

	for _, test := range tests {
		_, err := tx.ExecContext(ctx, query, test.RunID, test.Path, test.Score, test.Reasons)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetTests(ctx context.Context, runID string) ([]*models.RelatedTest, error) {
	var tests []*models.RelatedTest
	query := `SELECT * FROM tests WHERE run_id = ? ORDER BY score DESC, path ASC`

	if err := s.db.SelectContext(ctx, &tests, query, runID); err != nil {
		return nil, err
	}
	return tests, nil
}
