package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, key, value string) {
	t.Helper()
	original, had := os.LookupEnv(key)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, original)
		} else {
			os.Unsetenv(key)
		}
	})
	os.Setenv(key, value)
}

func TestLoadResolvesDataDirToAbsolutePath(t *testing.T) {
	tmp := t.TempDir()
	withEnv(t, "EPOCH_DATA_DIR", tmp)

	cfg, err := Load()
	require.NoError(t, err)

	abs, err := filepath.Abs(tmp)
	require.NoError(t, err)
	assert.Equal(t, abs, cfg.DataDir)
	assert.Equal(t, filepath.Join(abs, "audit.sqlite"), cfg.AuditDBPath)
}

func TestLoadDefaults(t *testing.T) {
	tmp := t.TempDir()
	withEnv(t, "EPOCH_DATA_DIR", tmp)
	withEnv(t, "EPOCH_PORT", "")
	withEnv(t, "LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8090, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
}

func TestWorkerLimitPrecedence(t *testing.T) {
	cfg := &Config{MaxWorkerThreads: 4, DisableParallelReports: true}
	assert.Equal(t, 4, cfg.WorkerLimit(8), "MaxWorkerThreads wins over DisableParallelReports per spec open question")

	cfg2 := &Config{DisableParallelReports: true}
	assert.Equal(t, 1, cfg2.WorkerLimit(8))

	cfg3 := &Config{}
	assert.Equal(t, 8, cfg3.WorkerLimit(8))
}
