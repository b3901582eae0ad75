// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalidConfig is returned for missing or malformed environment settings.
var ErrInvalidConfig = errors.New("invalid configuration")

// Token store backends
const (
	TokenStoreFile     = "file"
	TokenStoreDatabase = "database"
)

// Defaults for the Conta Azul endpoints
const (
	DefaultAuthURL         = "https://auth.contaazul.com/oauth2/authorize"
	DefaultTokenURL        = "https://auth.contaazul.com/oauth2/token"
	DefaultAPIURL          = "https://api-v2.contaazul.com"
	DefaultReceivablesPath = "/v1/financeiro/eventos-financeiros/contas-a-receber/buscar"
)

// Config holds application configuration
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthCode     string // Only needed on the first run

	AuthURL         string
	TokenURL        string
	APIURL          string
	ReceivablesPath string
	PageSize        int
	HTTPTimeout     time.Duration

	TokenStore string // "file" or "database"
	TokenFile  string
	DBPath     string
	Year       int
	YearFixed  bool // CONTA_AZUL_YEAR was set; otherwise Year follows the clock

	LogLevel  string
	LogPretty bool

	Schedule            string // cron expression for the schedule command
	MaintenanceSchedule string // cron expression for database maintenance in the schedule command; "" when "off"
	RunRetentionDays    int    // 0 keeps every extraction run
	Backup              *BackupConfig
}

// BackupConfig holds the S3-compatible backup target
type BackupConfig struct {
	Enabled         bool
	Bucket          string
	Endpoint        string // Empty means AWS S3; set for R2/MinIO
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	var errs []string

	pageSize, err := getEnvAsInt("CONTA_AZUL_PAGE_SIZE", 100)
	if err != nil {
		errs = append(errs, err.Error())
	}
	timeoutSeconds, err := getEnvAsInt("HTTP_TIMEOUT_SECONDS", 30)
	if err != nil {
		errs = append(errs, err.Error())
	}
	year, err := getEnvAsInt("CONTA_AZUL_YEAR", time.Now().Year())
	if err != nil {
		errs = append(errs, err.Error())
	}
	retention, err := getEnvAsInt("BACKUP_RETENTION_DAYS", 30)
	if err != nil {
		errs = append(errs, err.Error())
	}
	runRetention, err := getEnvAsInt("RUN_RETENTION_DAYS", 365)
	if err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}

	cfg := &Config{
		ClientID:            getEnv("CONTA_AZUL_CLIENT_ID", ""),
		ClientSecret:        getEnv("CONTA_AZUL_CLIENT_SECRET", ""),
		RedirectURI:         getEnv("CONTA_AZUL_REDIRECT_URI", ""),
		AuthCode:            getEnv("CONTA_AZUL_AUTH_CODE", ""),
		AuthURL:             getEnv("CONTA_AZUL_AUTH_URL", DefaultAuthURL),
		TokenURL:            getEnv("CONTA_AZUL_TOKEN_URL", DefaultTokenURL),
		APIURL:              strings.TrimRight(getEnv("CONTA_AZUL_API_URL", DefaultAPIURL), "/"),
		ReceivablesPath:     getEnv("CONTA_AZUL_RECEIVABLES_PATH", DefaultReceivablesPath),
		PageSize:            pageSize,
		HTTPTimeout:         time.Duration(timeoutSeconds) * time.Second,
		TokenStore:          strings.ToLower(getEnv("TOKEN_STORE", TokenStoreFile)),
		TokenFile:           getEnv("CONTA_AZUL_TOKEN_FILE", "tokens.json"),
		DBPath:              getEnv("CONTA_AZUL_DB_PATH", "conta_azul.db"),
		Year:                year,
		YearFixed:           os.Getenv("CONTA_AZUL_YEAR") != "",
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogPretty:           getEnvAsBool("LOG_PRETTY", true),
		Schedule:            getEnv("EXTRACT_SCHEDULE", ""),
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 0 3 * * *"),
		RunRetentionDays:    runRetention,
		Backup: &BackupConfig{
			Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
			Bucket:          getEnv("BACKUP_BUCKET", ""),
			Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
			Region:          getEnv("BACKUP_REGION", "auto"),
			AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
			RetentionDays:   retention,
		},
	}

	if strings.EqualFold(cfg.MaintenanceSchedule, "off") {
		cfg.MaintenanceSchedule = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that every command depends on.
// Credentials are checked separately by RequireCredentials so that local
// commands (summary, backup) work without them.
func (c *Config) Validate() error {
	var errs []string

	if c.PageSize <= 0 {
		errs = append(errs, "CONTA_AZUL_PAGE_SIZE must be positive")
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, "HTTP_TIMEOUT_SECONDS must be positive")
	}
	if c.Year < 2000 || c.Year > time.Now().Year() {
		errs = append(errs, fmt.Sprintf("CONTA_AZUL_YEAR %d is out of range", c.Year))
	}
	if c.TokenStore != TokenStoreFile && c.TokenStore != TokenStoreDatabase {
		errs = append(errs, fmt.Sprintf("TOKEN_STORE must be %q or %q", TokenStoreFile, TokenStoreDatabase))
	}
	if c.TokenStore == TokenStoreFile && c.TokenFile == "" {
		errs = append(errs, "CONTA_AZUL_TOKEN_FILE is required")
	}
	if c.DBPath == "" {
		errs = append(errs, "CONTA_AZUL_DB_PATH is required")
	}
	if c.RunRetentionDays < 0 {
		errs = append(errs, "RUN_RETENTION_DAYS must not be negative")
	}
	for name, raw := range map[string]string{
		"CONTA_AZUL_AUTH_URL":  c.AuthURL,
		"CONTA_AZUL_TOKEN_URL": c.TokenURL,
		"CONTA_AZUL_API_URL":   c.APIURL,
	} {
		if _, err := parseAbsoluteURL(raw); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
	}
	if c.Backup != nil && c.Backup.Enabled {
		if c.Backup.Bucket == "" {
			errs = append(errs, "BACKUP_BUCKET is required when BACKUP_ENABLED is set")
		}
		if c.Backup.RetentionDays < 0 {
			errs = append(errs, "BACKUP_RETENTION_DAYS must not be negative")
		}
	}

	if len(errs) > 0 {
		// Map iteration above is unordered
		sort.Strings(errs)
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// RequireCredentials checks the OAuth2 client settings needed before any
// call to Conta Azul.
func (c *Config) RequireCredentials() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "CONTA_AZUL_CLIENT_ID")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "CONTA_AZUL_CLIENT_SECRET")
	}
	if c.RedirectURI == "" {
		missing = append(missing, "CONTA_AZUL_REDIRECT_URI")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	if _, err := parseAbsoluteURL(c.RedirectURI); err != nil {
		return fmt.Errorf("%w: CONTA_AZUL_REDIRECT_URI: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ExtractionYear returns the year to extract at now.
func (c *Config) ExtractionYear(now time.Time) int {
	if c.YearFixed {
		return c.Year
	}
	return now.Year()
}

// ReceivablesURL is the full URL of the receivables search endpoint.
func (c *Config) ReceivablesURL() string {
	return c.APIURL + "/" + strings.TrimLeft(c.ReceivablesPath, "/")
}

func parseAbsoluteURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute URL", raw)
	}
	return u, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intVal, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, value)
	}
	return intVal, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
