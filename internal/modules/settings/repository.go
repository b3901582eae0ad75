// Package settings provides the key/value settings table.
// The database token store keeps the serialized OAuth2 token here.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Repository handles settings database operations.
//
// Settings are stored as strings; callers own the encoding of the value.
type Repository struct {
	db  *sql.DB        // settings table
	log zerolog.Logger // Structured logger
}

// NewRepository creates a new settings repository.
//
// Parameters:
//   - db: Database connection holding the settings table
//   - log: Structured logger
//
// Returns:
//   - *Repository: Initialized repository instance
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "settings").Logger(),
	}
}

// Get retrieves a setting value by key.
// Returns nil if the setting doesn't exist (not an error).
func (r *Repository) Get(ctx context.Context, key string) (*string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return &value, nil
}

// Set sets a setting value.
// Uses INSERT ... ON CONFLICT to handle both insert and update in a single operation.
// The description is optional and can be used to document the setting's purpose.
func (r *Repository) Set(ctx context.Context, key string, value string, description *string) error {
	now := time.Now().Unix()

	var err error
	if description != nil {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO settings (key, value, description, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				description = excluded.description,
				updated_at = excluded.updated_at
		`, key, value, *description, now)
	} else {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				updated_at = excluded.updated_at
		`, key, value, now)
	}
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}

	r.log.Debug().Str("key", key).Msg("Setting updated")
	return nil
}

// Delete removes a setting. Deleting a missing key is not an error.
func (r *Repository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}
