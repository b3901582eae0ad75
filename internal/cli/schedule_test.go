package cli

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_RequiresSchedule(t *testing.T) {
	api := newFakeContaAzul(t)
	setupEnv(t, api.URL)

	_, err := executeCommand(context.Background(), "schedule")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXTRACT_SCHEDULE")
}

func TestSchedule_InvalidSchedules(t *testing.T) {
	api := newFakeContaAzul(t)
	setupEnv(t, api.URL)

	t.Setenv("EXTRACT_SCHEDULE", "every morning")
	_, err := executeCommand(context.Background(), "schedule")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXTRACT_SCHEDULE")

	t.Setenv("EXTRACT_SCHEDULE", "@daily")
	t.Setenv("MAINTENANCE_SCHEDULE", "99 * * * *")
	_, err = executeCommand(context.Background(), "schedule")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAINTENANCE_SCHEDULE")
}

func TestSchedule_RunNowThenStopsOnCancel(t *testing.T) {
	api := newFakeContaAzul(t)
	setupEnv(t, api.URL)
	t.Setenv("EXTRACT_SCHEDULE", "@every 1h")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	out, err := executeCommand(ctx, "schedule", "--run-now", "--listen", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, out, "Scheduled")
	assert.Equal(t, []string{"authorization_code"}, api.grantTypes())

	out, err = executeCommand(context.Background(), "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, time.Now().Format("2006-01"))
}

func TestSchedule_ListenFailureStopsCommand(t *testing.T) {
	api := newFakeContaAzul(t)
	setupEnv(t, api.URL)
	t.Setenv("EXTRACT_SCHEDULE", "@every 1h")

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = executeCommand(ctx, "schedule", "--listen", busy.Addr().String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status server on "+busy.Addr().String())
	assert.NoError(t, ctx.Err(), "the command must fail without waiting for cancellation")
}
