package di

import (
	"context"
	"fmt"

	"github.com/bene2386/Conta-Azul/internal/config"
	"github.com/bene2386/Conta-Azul/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabase opens the receivables database and applies the schema.
func InitializeDatabase(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*database.DB, error) {
	db, err := database.New(database.Config{
		Path:    cfg.DBPath,
		Profile: database.ProfileLedger,
		Name:    "conta_azul",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
	}

	log.Info().
		Str("path", db.Path()).
		Str("profile", string(db.Profile())).
		Msg("Database initialized and schema applied")
	return db, nil
}
