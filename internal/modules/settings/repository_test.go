package settings_test

import (
	"context"
	"testing"

	"github.com/bene2386/Conta-Azul/internal/modules/settings"
	testingpkg "github.com/bene2386/Conta-Azul/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_GetMissing(t *testing.T) {
	repo := settings.NewRepository(testingpkg.NewMemoryDB(t), zerolog.Nop())

	value, err := repo.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestRepository_SetAndOverwrite(t *testing.T) {
	ctx := context.Background()
	repo := settings.NewRepository(testingpkg.NewMemoryDB(t), zerolog.Nop())

	desc := "OAuth2 token"
	require.NoError(t, repo.Set(ctx, "conta_azul_token", "first", &desc))
	require.NoError(t, repo.Set(ctx, "conta_azul_token", "second", nil))

	value, err := repo.Get(ctx, "conta_azul_token")
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "second", *value)
}

func TestRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := settings.NewRepository(testingpkg.NewMemoryDB(t), zerolog.Nop())

	require.NoError(t, repo.Set(ctx, "k", "v", nil))
	require.NoError(t, repo.Delete(ctx, "k"))
	require.NoError(t, repo.Delete(ctx, "k"))

	value, err := repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, value)
}
