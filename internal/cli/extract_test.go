package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/bene2386/Conta-Azul/internal/auth"
	"github.com/bene2386/Conta-Azul/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_PastYear(t *testing.T) {
	api := newFakeContaAzul(t)
	dir := setupEnv(t, api.URL)
	year := strconv.Itoa(time.Now().Year() - 1)

	out, err := executeCommand(context.Background(), "--year", year)
	require.NoError(t, err)
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "Months: 12")
	assert.Contains(t, out, "Records: 24")

	_, err = os.Stat(filepath.Join(dir, "tokens.json"))
	assert.NoError(t, err, "token file should be written")

	// The second run reuses the stored access token and replaces the rows
	out, err = executeCommand(context.Background(), "--year", year)
	require.NoError(t, err)
	assert.Contains(t, out, "Records: 24")
	assert.Equal(t, []string{"authorization_code"}, api.grantTypes())

	out, err = executeCommand(context.Background(), "summary", "--year", year)
	require.NoError(t, err)
	assert.Contains(t, out, "Receivables "+year)
	assert.Contains(t, out, year+"-01")
	assert.Contains(t, out, year+"-12")
	// 12 months of 10.00 + 20.00, no duplicates after the rerun
	assert.Contains(t, out, "360.00")
	assert.Contains(t, out, "Recent runs")
}

func TestExtract_MissingCredentials(t *testing.T) {
	api := newFakeContaAzul(t)
	setupEnv(t, api.URL)
	t.Setenv("CONTA_AZUL_CLIENT_SECRET", "")

	_, err := executeCommand(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "CONTA_AZUL_CLIENT_SECRET")
	assert.Empty(t, api.grantTypes())
}

func TestExtract_YearOutOfRange(t *testing.T) {
	api := newFakeContaAzul(t)
	setupEnv(t, api.URL)

	_, err := executeCommand(context.Background(), "--year", "1999")
	assert.Error(t, err)

	_, err = executeCommand(context.Background(), "--year", strconv.Itoa(time.Now().Year()+1))
	assert.Error(t, err)
}

func TestExtract_AuthorizationRequired(t *testing.T) {
	api := newFakeContaAzul(t)
	setupEnv(t, api.URL)
	t.Setenv("CONTA_AZUL_AUTH_CODE", "")

	out, err := executeCommand(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, auth.ErrAuthorizationRequired))
	assert.Contains(t, out, "failed")
}
