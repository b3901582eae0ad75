package extraction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Run statuses
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one row of extraction_runs.
type Run struct {
	ID         string     `json:"id"`
	Year       int        `json:"year"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	Months     int        `json:"months"`  // Months fully saved
	Records    int        `json:"records"` // Records saved across those months
	Error      string     `json:"error,omitempty"`
}

// RunRepository handles extraction_runs persistence.
type RunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: log.With().Str("repo", "extraction_runs").Logger(),
	}
}

// Create inserts a run.
func (r *RunRepository) Create(ctx context.Context, run *Run) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO extraction_runs (id, year, started_at, status, months, records)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Year, run.StartedAt.Unix(), run.Status, run.Months, run.Records)
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}
	return nil
}

// Finish stores the final status, counters and error of a run.
func (r *RunRepository) Finish(ctx context.Context, run *Run) error {
	var finishedAt sql.NullInt64
	if run.FinishedAt != nil {
		finishedAt = sql.NullInt64{Int64: run.FinishedAt.Unix(), Valid: true}
	}
	var errText sql.NullString
	if run.Error != "" {
		errText = sql.NullString{String: run.Error, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE extraction_runs
		SET finished_at = ?, status = ?, months = ?, records = ?, error = ?
		WHERE id = ?
	`, finishedAt, run.Status, run.Months, run.Records, errText, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

// Get returns a run by id, or nil when it does not exist.
func (r *RunRepository) Get(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, year, started_at, finished_at, status, months, records, error
		FROM extraction_runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// Recent returns up to limit runs, newest first.
func (r *RunRepository) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, year, started_at, finished_at, status, months, records, error
		FROM extraction_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run        Run
		startedAt  int64
		finishedAt sql.NullInt64
		errText    sql.NullString
	)
	if err := s.Scan(&run.ID, &run.Year, &startedAt, &finishedAt, &run.Status, &run.Months, &run.Records, &errText); err != nil {
		return nil, err
	}

	run.StartedAt = time.Unix(startedAt, 0).UTC()
	if finishedAt.Valid {
		t := time.Unix(finishedAt.Int64, 0).UTC()
		run.FinishedAt = &t
	}
	run.Error = errText.String
	return &run, nil
}
