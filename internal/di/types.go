// Package di wires the extractor's dependencies.
package di

import (
	"github.com/bene2386/Conta-Azul/internal/auth"
	"github.com/bene2386/Conta-Azul/internal/database"
	"github.com/bene2386/Conta-Azul/internal/modules/cleanup"
	"github.com/bene2386/Conta-Azul/internal/modules/extraction"
	"github.com/bene2386/Conta-Azul/internal/modules/receivables"
	"github.com/bene2386/Conta-Azul/internal/modules/settings"
	"github.com/bene2386/Conta-Azul/internal/reliability"
	"github.com/bene2386/Conta-Azul/internal/scheduler"
)

// Container holds all dependencies for the application.
// It is created by Wire and released with Close.
type Container struct {
	// Storage
	DB *database.DB

	// Repositories
	SettingsRepo    *settings.Repository
	ReceivablesRepo *receivables.Repository
	RunRepo         *extraction.RunRepository

	// Auth
	TokenStore    auth.TokenStore
	Authenticator *auth.Authenticator

	// Backups, nil unless BACKUP_ENABLED is set
	ObjectStore   *reliability.S3Client
	BackupService *reliability.BackupService

	// Services and jobs
	ExtractionService *extraction.Service
	ExtractionJob     *scheduler.ExtractionJob
	MaintenanceJob    *reliability.MaintenanceJob
	RunCleanupJob     *cleanup.RunHistoryCleanupJob
	Scheduler         *scheduler.Scheduler
}

// Close releases the database. It is safe to call on a partially wired container.
func (c *Container) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
