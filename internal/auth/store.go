package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/bene2386/Conta-Azul/internal/modules/settings"
	"github.com/spf13/afero"
	"golang.org/x/oauth2"
)

// TokenStore persists the OAuth2 token between runs.
type TokenStore interface {
	// Load returns the stored token, or nil with no error when nothing is stored.
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, token *oauth2.Token) error
	// Clear forgets the stored token. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// storedToken is the on-disk shape. expires_at (unix seconds) is what older
// tokens.json files carry; expiry is preferred when both are present.
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	ExpiresAt    float64   `json:"expires_at,omitempty"`
}

func encodeToken(token *oauth2.Token) ([]byte, error) {
	if token == nil {
		return nil, errors.New("cannot store a nil token")
	}

	st := storedToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		st.IDToken = idToken
	}
	if !token.Expiry.IsZero() {
		st.ExpiresAt = float64(token.Expiry.Unix())
	}

	return json.MarshalIndent(st, "", "  ")
}

func decodeToken(data []byte) (*oauth2.Token, error) {
	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse stored token: %w", err)
	}

	expiry := st.Expiry
	if expiry.IsZero() && st.ExpiresAt > 0 {
		sec, frac := math.Modf(st.ExpiresAt)
		expiry = time.Unix(int64(sec), int64(frac*1e9))
	}

	token := &oauth2.Token{
		AccessToken:  st.AccessToken,
		RefreshToken: st.RefreshToken,
		TokenType:    st.TokenType,
		Expiry:       expiry,
	}
	if st.IDToken != "" {
		token = token.WithExtra(map[string]interface{}{"id_token": st.IDToken})
	}
	return token, nil
}

// FileStore keeps the token as JSON in a single file.
type FileStore struct {
	fs   afero.Fs
	path string
}

// NewFileStore creates a store for path on fs. Use afero.NewOsFs() in
// production and afero.NewMemMapFs() in tests.
func NewFileStore(fs afero.Fs, path string) *FileStore {
	return &FileStore{fs: fs, path: path}
}

// Path returns the token file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the token file. A missing file is not an error.
func (s *FileStore) Load(_ context.Context) (*oauth2.Token, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file %s: %w", s.path, err)
	}
	return decodeToken(data)
}

// Save writes the token atomically (temp file + rename) with mode 0600.
func (s *FileStore) Save(_ context.Context, token *oauth2.Token) error {
	data, err := encodeToken(token)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create token directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// Clear removes the token file.
func (s *FileStore) Clear(_ context.Context) error {
	if err := s.fs.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file %s: %w", s.path, err)
	}
	return nil
}

// SettingsKey is the settings row holding the token for SettingsStore.
const SettingsKey = "conta_azul_token"

// SettingsStore keeps the token in the settings table of the extractor
// database, next to the data it authorizes.
type SettingsStore struct {
	repo *settings.Repository
}

// NewSettingsStore creates a store backed by the settings repository.
func NewSettingsStore(repo *settings.Repository) *SettingsStore {
	return &SettingsStore{repo: repo}
}

// Load returns the stored token or nil when the key is absent.
func (s *SettingsStore) Load(ctx context.Context) (*oauth2.Token, error) {
	value, err := s.repo.Get(ctx, SettingsKey)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	return decodeToken([]byte(*value))
}

// Save replaces the stored token.
func (s *SettingsStore) Save(ctx context.Context, token *oauth2.Token) error {
	data, err := encodeToken(token)
	if err != nil {
		return err
	}
	desc := "Conta Azul OAuth2 token"
	return s.repo.Set(ctx, SettingsKey, string(data), &desc)
}

// Clear deletes the token row.
func (s *SettingsStore) Clear(ctx context.Context) error {
	return s.repo.Delete(ctx, SettingsKey)
}
