// Package testing provides testing utilities and helpers for the extractor.
package testing

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/bene2386/Conta-Azul/internal/database"
	_ "github.com/mattn/go-sqlite3"
)

// NewTestDB creates a file-backed SQLite database in a temporary directory
// with the schema applied. The directory is removed when the test ends.
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), name+".db")

	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(context.Background()); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})

	return db
}

// NewMemoryDB opens an in-memory SQLite database (mattn driver) with the
// schema applied. The pool is pinned to one connection because every
// :memory: connection is a separate database.
func NewMemoryDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := database.ApplySchema(context.Background(), db); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to apply schema: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// TempFilePath returns a path inside a per-test temporary directory
// without creating the file.
func TempFilePath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
