package di

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/bene2386/Conta-Azul/internal/auth"
	"github.com/bene2386/Conta-Azul/internal/clients/contaazul"
	"github.com/bene2386/Conta-Azul/internal/config"
	"github.com/bene2386/Conta-Azul/internal/modules/cleanup"
	"github.com/bene2386/Conta-Azul/internal/modules/extraction"
	"github.com/bene2386/Conta-Azul/internal/reliability"
	"github.com/bene2386/Conta-Azul/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// InitializeServices creates the auth, backup, extraction and job layers.
// Token files are read and written through fs.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, fs afero.Fs, log zerolog.Logger) error {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	switch cfg.TokenStore {
	case config.TokenStoreDatabase:
		container.TokenStore = auth.NewSettingsStore(container.SettingsRepo)
	default:
		container.TokenStore = auth.NewFileStore(fs, cfg.TokenFile)
	}

	container.Authenticator = auth.NewAuthenticator(auth.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		AuthURL:      cfg.AuthURL,
		TokenURL:     cfg.TokenURL,
		AuthCode:     cfg.AuthCode,
		HTTPClient:   httpClient,
	}, container.TokenStore, log)

	// The extraction service takes an interface; leave it nil rather than
	// a typed nil when backups are off.
	var backup extraction.BackupService
	if cfg.Backup != nil && cfg.Backup.Enabled {
		store, err := reliability.NewS3Client(ctx, reliability.S3Config{
			Bucket:          cfg.Backup.Bucket,
			Endpoint:        cfg.Backup.Endpoint,
			Region:          cfg.Backup.Region,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup client: %w", err)
		}
		container.ObjectStore = store
		container.BackupService = reliability.NewBackupService(
			container.DB,
			store,
			filepath.Dir(container.DB.Path()),
			cfg.Backup.RetentionDays,
			log,
		)
		backup = container.BackupService
	}

	endpoint := cfg.ReceivablesURL()
	container.ExtractionService = extraction.NewService(
		container.Authenticator,
		func(client *http.Client) extraction.Fetcher {
			return contaazul.NewClient(client, endpoint, cfg.PageSize, log)
		},
		container.ReceivablesRepo,
		container.RunRepo,
		backup,
		log,
	)

	container.ExtractionJob = scheduler.NewExtractionJob(container.ExtractionService, cfg.ExtractionYear)
	container.MaintenanceJob = reliability.NewMaintenanceJob(container.DB, container.BackupService, log)
	container.RunCleanupJob = cleanup.NewRunHistoryCleanupJob(container.DB.Conn(), cfg.RunRetentionDays, log)
	container.Scheduler = scheduler.New(log)

	log.Debug().
		Str("token_store", cfg.TokenStore).
		Bool("backups", container.BackupService != nil).
		Msg("Services initialized")

	return nil
}
