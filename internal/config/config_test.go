package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/groverq/internal/agent"
	"github.com/aristath/groverq/internal/environment"
)

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("GROVERQ_DATA_DIR", filepath.Join(tmpDir, "data"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(tmpDir, "data"), cfg.DataDir)
	assert.DirExists(t, cfg.DataDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "runs.db"), cfg.DatabasePath())
	assert.Equal(t, 8001, cfg.Port)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)

	assert.Equal(t, agent.DefaultHyperparameters(), cfg.Hyperparameters())
	assert.Equal(t, environment.DefaultSpec(), cfg.EnvironmentSpec())

	assert.Equal(t, uint64(42), cfg.Backend.Seed)
	assert.Equal(t, 3, cfg.Backend.Retries)
	assert.Equal(t, 50*time.Millisecond, cfg.Backend.RetryBackoff)
	assert.Empty(t, cfg.Training.Schedule)
	assert.Equal(t, "0 0 3 * * *", cfg.Training.MaintenanceSchedule)
	assert.False(t, cfg.Archive.Enabled)
	assert.Equal(t, 30, cfg.Archive.RetentionDays)
	assert.Equal(t, 10, cfg.Archive.Keep)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GROVERQ_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "9100")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("AGENT_K", "0.5")
	t.Setenv("AGENT_ALPHA", "0.2")
	t.Setenv("AGENT_MAX_EPOCHS", "20")
	t.Setenv("AGENT_OUT_OF_RANGE", "reject")
	t.Setenv("ENV_KIND", "chain")
	t.Setenv("ENV_CHAIN_LENGTH", "8")
	t.Setenv("BACKEND_SEED", "7")
	t.Setenv("BACKEND_RETRY_BACKOFF_MS", "5")
	t.Setenv("TRAIN_SCHEDULE", "0 */5 * * * *")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.True(t, cfg.DevMode)

	hp := cfg.Hyperparameters()
	assert.Equal(t, 0.5, hp.K)
	assert.Equal(t, 0.2, hp.Alpha)
	assert.Equal(t, 20, hp.MaxEpochs)
	assert.Equal(t, agent.RejectPolicy, hp.OutOfRange)

	assert.Equal(t, environment.KindChain, cfg.Environment.Kind)
	assert.Equal(t, 8, cfg.Environment.ChainLength)
	assert.Equal(t, uint64(7), cfg.Backend.Seed)
	assert.Equal(t, 5*time.Millisecond, cfg.Backend.RetryBackoff)
	assert.Equal(t, "0 */5 * * * *", cfg.Training.Schedule)
}

func TestLoad_MalformedNumbersFallBack(t *testing.T) {
	t.Setenv("GROVERQ_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "not-a-port")
	t.Setenv("AGENT_GAMMA", "high")
	t.Setenv("DEV_MODE", "perhaps")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, 0.99, cfg.Agent.Gamma)
	assert.False(t, cfg.DevMode)
}

func TestLoad_ValidationErrors(t *testing.T) {
	testCases := []struct {
		name     string
		env      map[string]string
		contains string
	}{
		{"port out of range", map[string]string{"GO_PORT": "70000"}, "GO_PORT"},
		{"zero epochs", map[string]string{"AGENT_MAX_EPOCHS": "0"}, "max_epochs"},
		{"unknown policy", map[string]string{"AGENT_OUT_OF_RANGE": "ignore"}, "out_of_range"},
		{"unknown environment", map[string]string{"ENV_KIND": "cartpole"}, "environment"},
		{"unknown map", map[string]string{"ENV_MAP": "3x3"}, "environment"},
		{"no retries", map[string]string{"BACKEND_RETRIES": "0"}, "BACKEND_RETRIES"},
		{"archive without bucket", map[string]string{"ARCHIVE_ENABLED": "true", "ARCHIVE_ENDPOINT": "https://r2.example"}, "ARCHIVE_BUCKET"},
		{"archive without keys", map[string]string{
			"ARCHIVE_ENABLED":  "true",
			"ARCHIVE_ENDPOINT": "https://r2.example",
			"ARCHIVE_BUCKET":   "runs",
		}, "ARCHIVE_ACCESS_KEY"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("GROVERQ_DATA_DIR", t.TempDir())
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}
