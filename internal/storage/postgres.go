package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/crashscope/crashscope/internal/models"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// PostgresStore implements storage using PostgreSQL
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresStore creates a new PostgreSQL storage
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{
		db:     db,
		logger: logger,
	}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		signature TEXT NOT NULL,
		crash_id TEXT,
		channel TEXT,
		status TEXT NOT NULL,
		error TEXT,
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS crashes (
		uuid TEXT NOT NULL,
		run_id TEXT NOT NULL REFERENCES runs(id),
		signature TEXT,
		build_id TEXT,
		version TEXT,
		channel TEXT,
		revision TEXT,
		crash_date TEXT,
		PRIMARY KEY (uuid, run_id)
	);

	CREATE TABLE IF NOT EXISTS suspects (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id),
		revision TEXT NOT NULL,
		channel TEXT,
		author TEXT,
		date TEXT,
		description TEXT,
		bug_numbers TEXT,
		score DOUBLE PRECISION,
		bucket TEXT,
		reasons TEXT
	);

	CREATE TABLE IF NOT EXISTS functions (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id),
		revision TEXT,
		file TEXT NOT NULL,
		name TEXT NOT NULL,
		start_line INTEGER,
		end_line INTEGER,
		classification TEXT,
		overlap_percent DOUBLE PRECISION,
		changed_lines TEXT,
		calls TEXT
	);

	CREATE TABLE IF NOT EXISTS tests (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id),
		path TEXT NOT NULL,
		score DOUBLE PRECISION,
		reasons TEXT
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Run operations

func (s *PostgresStore) SaveRun(ctx context.Context, run *models.AnalysisRun) error {
	query := `
		INSERT INTO runs (id, signature, crash_id, channel, status, error, started_at, completed_at)
		VALUES (:id, :signature, :crash_id, :channel, :status, :error, :started_at, :completed_at)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			completed_at = EXCLUDED.completed_at
	`
	_, err := s.db.NamedExecContext(ctx, query, run)
	return err
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID, status, errMsg string) error {
	query := `UPDATE runs SET status = $1, error = $2, completed_at = $3 WHERE id = $4`

	res, err := s.db.ExecContext(ctx, query, status, errMsg, time.Now().UTC(), runID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*models.AnalysisRun, error) {
	var run models.AnalysisRun
	query := `SELECT * FROM runs WHERE id = $1`

	err := s.db.GetContext(ctx, &run, query, runID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]*models.AnalysisRun, error) {
	var runs []*models.AnalysisRun
	query := `SELECT * FROM runs ORDER BY started_at DESC LIMIT $1`

	if err := s.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, err
	}
	return runs, nil
}

// Crash operations

func (s *PostgresStore) SaveCrashes(ctx context.Context, crashes []*models.CrashRecord) error {
	if len(crashes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO crashes (uuid, run_id, signature, build_id, version, channel, revision, crash_date)
		VALUES (:uuid, :run_id, :signature, :build_id, :version, :channel, :revision, :crash_date)
		ON CONFLICT (uuid, run_id) DO UPDATE SET
			revision = EXCLUDED.revision,
			channel = EXCLUDED.channel
	`

	for _, crash := range crashes {
		if _, err := tx.NamedExecContext(ctx, query, crash); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) GetCrashes(ctx context.Context, runID string) ([]*models.CrashRecord, error) {
	var crashes []*models.CrashRecord
	query := `SELECT * FROM crashes WHERE run_id = $1 ORDER BY crash_date DESC`

	if err := s.db.SelectContext(ctx, &crashes, query, runID); err != nil {
		return nil, err
	}
	return crashes, nil
}

// Suspect operations

func (s *PostgresStore) SaveSuspects(ctx context.Context, suspects []*models.SuspectCommit) error {
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
		VALUES (:run_id, :revision, :channel, :author, :date, :description, :bug_numbers, :score, :bucket, :reasons)
	`

	for _, suspect := range suspects {
		if _, err := tx.NamedExecContext(ctx, query, suspect); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) GetSuspects(ctx context.Context, runID string) ([]*models.SuspectCommit, error) {
	var suspects []*models.SuspectCommit
	query := `SELECT * FROM suspects WHERE run_id = $1 ORDER BY score DESC, id ASC`

	if err := s.db.SelectContext(ctx, &suspects, query, runID); err != nil {
		return nil, err
	}
	return suspects, nil
}

// Function operations

func (s *PostgresStore) SaveFunctions(ctx context.Context, functions []*models.ModifiedFunction) error {
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
		VALUES (:run_id, :revision, :file, :name, :start_line, :end_line,
		 :classification, :overlap_percent, :changed_lines, :calls)
	`

	for _, fn := range functions {
		if _, err := tx.NamedExecContext(ctx, query, fn); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) GetFunctions(ctx context.Context, runID string) ([]*models.ModifiedFunction, error) {
	var functions []*models.ModifiedFunction
	query := `SELECT * FROM functions WHERE run_id = $1 ORDER BY file ASC, start_line ASC`

	if err := s.db.SelectContext(ctx, &functions, query, runID); err != nil {
		return nil, err
	}
	return functions, nil
}

// Test operations

func (s *PostgresStore) SaveTests(ctx context.Context, tests []*models.RelatedTest) error {
	if len(tests) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO tests (run_id, path, score, reasons) VALUES (:run_id, :path, :score, :reasons)`

	for _, test := range tests {
		if _, err := tx.NamedExecContext(ctx, query, test); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) GetTests(ctx context.Context, runID string) ([]*models.RelatedTest, error) {
	var tests []*models.RelatedTest
	query := `SELECT * FROM tests WHERE run_id = $1 ORDER BY score DESC, path ASC`

	if err := s.db.SelectContext(ctx, &tests, query, runID); err != nil {
		return nil, err
	}
	return tests, nil
}
