package audit

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordStartCompletedRoundTrip(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "audit.sqlite"))
	require.NoError(t, err)
	defer store.Close()

	started := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordStart("run-1", started))

	finished := started.Add(5 * time.Second)
	require.NoError(t, store.RecordCompleted("run-1", finished, 42))

	runs, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, 42, runs[0].NodeCount)
	assert.True(t, runs[0].FinishedAt.Valid)
}

func TestRecordFailedStoresError(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "audit.sqlite"))
	require.NoError(t, err)
	defer store.Close()

	started := time.Now()
	require.NoError(t, store.RecordStart("run-2", started))
	require.NoError(t, store.RecordFailed("run-2", started.Add(time.Second), errors.New("data loader failure")))

	runs, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "failed", runs[0].Status)
	assert.Equal(t, "data loader failure", runs[0].Error.String)
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "audit.sqlite"))
	require.NoError(t, err)
	defer store.Close()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordStart("older", base))
	require.NoError(t, store.RecordStart("newer", base.Add(time.Hour)))

	runs, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newer", runs[0].RunID)
	assert.Equal(t, "older", runs[1].RunID)
}
