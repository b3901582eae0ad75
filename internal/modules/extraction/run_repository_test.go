package extraction

import (
	"context"
	"testing"
	"time"

	testingpkg "github.com/bene2386/Conta-Azul/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRepository_CreateAndFinish(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(testingpkg.NewMemoryDB(t), zerolog.Nop())
	started := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	run := &Run{ID: "run-1", Year: 2025, StartedAt: started, Status: StatusRunning}
	require.NoError(t, repo.Create(ctx, run))

	stored, err := repo.Get(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, StatusRunning, stored.Status)
	assert.Nil(t, stored.FinishedAt)
	assert.True(t, started.Equal(stored.StartedAt))

	finished := started.Add(2 * time.Minute)
	run.FinishedAt = &finished
	run.Status = StatusFailed
	run.Months = 3
	run.Records = 42
	run.Error = "failed to fetch 2025-04: boom"
	require.NoError(t, repo.Finish(ctx, run))

	stored, err = repo.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Equal(t, 3, stored.Months)
	assert.Equal(t, 42, stored.Records)
	assert.Equal(t, "failed to fetch 2025-04: boom", stored.Error)
	require.NotNil(t, stored.FinishedAt)
	assert.True(t, finished.Equal(*stored.FinishedAt))
}

func TestRunRepository_GetMissing(t *testing.T) {
	repo := NewRunRepository(testingpkg.NewMemoryDB(t), zerolog.Nop())

	run, err := repo.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestRunRepository_FinishUnknownRun(t *testing.T) {
	repo := NewRunRepository(testingpkg.NewMemoryDB(t), zerolog.Nop())

	err := repo.Finish(context.Background(), &Run{ID: "nope", Status: StatusSucceeded})
	assert.Error(t, err)
}

func TestRunRepository_DuplicateID(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(testingpkg.NewMemoryDB(t), zerolog.Nop())
	run := &Run{ID: "run-1", Year: 2025, StartedAt: time.Now(), Status: StatusRunning}

	require.NoError(t, repo.Create(ctx, run))
	assert.Error(t, repo.Create(ctx, run))
}

func TestRunRepository_Recent(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(testingpkg.NewMemoryDB(t), zerolog.Nop())
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, &Run{
			ID:        id,
			Year:      2025,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			Status:    StatusSucceeded,
		}))
	}

	runs, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
}
