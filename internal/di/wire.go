package di

import (
	"context"
	"fmt"

	"github.com/bene2386/Conta-Azul/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Wire initializes all dependencies and returns a fully configured container.
// Order of operations:
// 1. Open the database and apply the schema
// 2. Initialize repositories
// 3. Initialize services and jobs
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	return WireWithFs(ctx, cfg, afero.NewOsFs(), log)
}

// WireWithFs is Wire with the filesystem used for the token file.
func WireWithFs(ctx context.Context, cfg *config.Config, fs afero.Fs, log zerolog.Logger) (*Container, error) {
	db, err := InitializeDatabase(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	container := &Container{DB: db}

	InitializeRepositories(container, log)

	if err := InitializeServices(ctx, container, cfg, fs, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	log.Debug().Msg("Dependency injection wiring completed")
	return container, nil
}
