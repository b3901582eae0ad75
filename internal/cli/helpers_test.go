package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	testingpkg "github.com/bene2386/Conta-Azul/internal/testing"
	"github.com/stretchr/testify/assert"
)

// fakeContaAzul serves the token endpoint and the receivables search.
// Every month window returns two fixture receivables.
type fakeContaAzul struct {
	*httptest.Server

	mu     sync.Mutex
	grants []string
}

func newFakeContaAzul(t *testing.T) *fakeContaAzul {
	t.Helper()
	f := &fakeContaAzul{}
	mux := http.NewServeMux()

	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		grant := r.Form.Get("grant_type")
		f.mu.Lock()
		f.grants = append(f.grants, grant)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if grant == "authorization_code" && r.Form.Get("code") == "sandbox-code" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "access", "refresh_token": "refresh", "token_type": "Bearer", "expires_in": 3600,
			})
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	mux.HandleFunc("/v1/receivables", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		from, err := time.Parse(time.DateOnly, r.URL.Query().Get("data_vencimento_de"))
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var items []json.RawMessage
		for _, record := range testingpkg.NewReceivableFixtures(from.Year(), from.Month(), 2) {
			items = append(items, record.Raw)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"itens":        items,
			"itens_totais": len(items),
		})
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeContaAzul) grantTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.grants...)
}

// setupEnv points the configuration at api and a temporary data directory,
// which it returns.
func setupEnv(t *testing.T, apiURL string) string {
	t.Helper()
	dir := t.TempDir()

	env := map[string]string{
		"CONTA_AZUL_CLIENT_ID":        "id",
		"CONTA_AZUL_CLIENT_SECRET":    "secret",
		"CONTA_AZUL_REDIRECT_URI":     "http://localhost:8080/callback",
		"CONTA_AZUL_AUTH_CODE":        "sandbox-code",
		"CONTA_AZUL_AUTH_URL":         apiURL + "/oauth2/authorize",
		"CONTA_AZUL_TOKEN_URL":        apiURL + "/oauth2/token",
		"CONTA_AZUL_API_URL":          apiURL,
		"CONTA_AZUL_RECEIVABLES_PATH": "/v1/receivables",
		"CONTA_AZUL_TOKEN_FILE":       filepath.Join(dir, "tokens.json"),
		"CONTA_AZUL_DB_PATH":          filepath.Join(dir, "conta_azul.db"),
		"CONTA_AZUL_YEAR":             "",
		"CONTA_AZUL_PAGE_SIZE":        "",
		"HTTP_TIMEOUT_SECONDS":        "",
		"TOKEN_STORE":                 "file",
		"LOG_LEVEL":                   "error",
		"LOG_PRETTY":                  "false",
		"EXTRACT_SCHEDULE":            "",
		"MAINTENANCE_SCHEDULE":        "",
		"BACKUP_ENABLED":              "false",
		"BACKUP_BUCKET":               "",
		"BACKUP_ENDPOINT":             "",
		"BACKUP_REGION":               "",
		"BACKUP_ACCESS_KEY_ID":        "",
		"BACKUP_SECRET_ACCESS_KEY":    "",
		"BACKUP_RETENTION_DAYS":       "",
		"RUN_RETENTION_DAYS":          "",
	}
	for key, value := range env {
		t.Setenv(key, value)
	}
	return dir
}

func executeCommand(ctx context.Context, args ...string) (string, error) {
	stdout := new(bytes.Buffer)
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.ExecuteContext(ctx)
	return stdout.String(), err
}
