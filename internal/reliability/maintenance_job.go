package reliability

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bene2386/Conta-Azul/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// Disk space thresholds for the database directory
const (
	criticalFreeBytes = 100 * 1024 * 1024
	lowFreeBytes      = 1024 * 1024 * 1024
)

// maxBackupAge is how old the newest backup may get before maintenance warns.
const maxBackupAge = 48 * time.Hour

// MaintenanceJob checks database integrity, truncates the WAL, checks free
// disk space and, when backups are enabled, that a recent backup exists.
type MaintenanceJob struct {
	db        *database.DB
	backups   *BackupService // Optional
	diskUsage func(ctx context.Context, path string) (*disk.UsageStat, error)
	now       func() time.Time
	log       zerolog.Logger
}

// NewMaintenanceJob creates a maintenance job. backups may be nil.
func NewMaintenanceJob(db *database.DB, backups *BackupService, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:        db,
		backups:   backups,
		diskUsage: disk.UsageWithContext,
		now:       time.Now,
		log:       log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes the maintenance steps. Integrity and critical disk space
// failures are returned; the rest is logged.
func (j *MaintenanceJob) Run(ctx context.Context) error {
	j.log.Info().Msg("Starting maintenance")
	startTime := time.Now()

	if err := j.db.HealthCheck(ctx); err != nil {
		j.log.Error().Err(err).Str("database", j.db.Name()).Msg("Integrity check failed")
		return err
	}

	if err := j.checkSchema(ctx); err != nil {
		return err
	}

	if _, err := j.db.Conn().ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	if err := j.checkDiskSpace(ctx); err != nil {
		return err
	}

	if j.backups != nil {
		j.checkBackups(ctx)
	}

	j.log.Info().Dur("duration_ms", time.Since(startTime)).Msg("Maintenance completed")
	return nil
}

// checkSchema re-applies the schema when a table has been dropped.
func (j *MaintenanceJob) checkSchema(ctx context.Context) error {
	var missing []string
	for _, table := range database.Tables {
		exists, err := j.db.TableExists(ctx, table)
		if err != nil {
			return err
		}
		if !exists {
			missing = append(missing, table)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	j.log.Warn().Strs("tables", missing).Msg("Tables missing, re-applying schema")
	if err := j.db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to restore tables %v: %w", missing, err)
	}
	return nil
}

func (j *MaintenanceJob) checkDiskSpace(ctx context.Context) error {
	dir := filepath.Dir(j.db.Path())

	usage, err := j.diskUsage(ctx, dir)
	if err != nil {
		j.log.Warn().Err(err).Str("path", dir).Msg("Failed to read disk usage")
		return nil
	}

	freeMB := usage.Free / 1024 / 1024
	j.log.Debug().Uint64("free_mb", freeMB).Float64("used_percent", usage.UsedPercent).Msg("Disk space check")

	if usage.Free < criticalFreeBytes {
		j.log.Error().Uint64("free_mb", freeMB).Msg("Insufficient disk space")
		return fmt.Errorf("only %d MB free in %s", freeMB, dir)
	}
	if usage.Free < lowFreeBytes {
		j.log.Warn().Uint64("free_mb", freeMB).Msg("Disk space running low")
	}
	return nil
}

func (j *MaintenanceJob) checkBackups(ctx context.Context) {
	backups, err := j.backups.ListBackups(ctx)
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to list backups")
		return
	}
	if len(backups) == 0 {
		j.log.Warn().Msg("No backups found")
		return
	}

	newest := backups[0]
	if age := j.now().Sub(newest.Timestamp); age > maxBackupAge {
		j.log.Warn().
			Str("filename", newest.Filename).
			Dur("age", age).
			Msg("Newest backup is stale")
	}
}
