// Package cleanup keeps the extraction run ledger tidy.
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// InterruptedError is stored on runs that never finished.
const InterruptedError = "interrupted: the process stopped before the run finished"

// DefaultStaleAfter is how long a run may stay "running" before it is
// considered interrupted.
const DefaultStaleAfter = 6 * time.Hour

// RunHistoryCleanupJob closes interrupted runs and deletes old runs that no
// CR row references any more.
type RunHistoryCleanupJob struct {
	db         *sql.DB
	retention  time.Duration // 0 keeps every run
	staleAfter time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// NewRunHistoryCleanupJob creates the job. retentionDays of 0 keeps every run.
func NewRunHistoryCleanupJob(db *sql.DB, retentionDays int, log zerolog.Logger) *RunHistoryCleanupJob {
	return &RunHistoryCleanupJob{
		db:         db,
		retention:  time.Duration(retentionDays) * 24 * time.Hour,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
		log:        log.With().Str("job", "run_history_cleanup").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *RunHistoryCleanupJob) Name() string {
	return "run_history_cleanup"
}

// Run executes the cleanup job
func (j *RunHistoryCleanupJob) Run(ctx context.Context) error {
	j.log.Info().Msg("Starting run history cleanup")
	now := j.now()

	interrupted, err := j.closeInterruptedRuns(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to close interrupted runs: %w", err)
	}

	var deleted int64
	if j.retention > 0 {
		deleted, err = j.deleteOrphanedRuns(ctx, now)
		if err != nil {
			return fmt.Errorf("failed to delete old runs: %w", err)
		}
	}

	j.log.Info().
		Int64("interrupted", interrupted).
		Int64("deleted", deleted).
		Msg("Run history cleanup completed")

	return nil
}

// closeInterruptedRuns marks runs still "running" after staleAfter as failed.
func (j *RunHistoryCleanupJob) closeInterruptedRuns(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-j.staleAfter).Unix()

	result, err := j.db.ExecContext(ctx, `
		UPDATE extraction_runs
		SET status = 'failed', finished_at = ?, error = ?
		WHERE status = 'running' AND started_at < ?
	`, now.Unix(), InterruptedError, cutoff)
	if err != nil {
		return 0, err
	}

	n, _ := result.RowsAffected()
	if n > 0 {
		j.log.Warn().Int64("runs", n).Msg("Closed interrupted runs")
	}
	return n, nil
}

// deleteOrphanedRuns removes finished runs older than the retention window
// whose rows have all been replaced by later runs.
func (j *RunHistoryCleanupJob) deleteOrphanedRuns(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-j.retention).Unix()

	result, err := j.db.ExecContext(ctx, `
		DELETE FROM extraction_runs
		WHERE status != 'running'
		  AND started_at < ?
		  AND id NOT IN (SELECT DISTINCT run_id FROM CR)
	`, cutoff)
	if err != nil {
		return 0, err
	}

	n, _ := result.RowsAffected()
	return n, nil
}
