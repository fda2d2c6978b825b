package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := LoadFromEnv()

	assert.Equal(t, "fs", cfg.ArtifactStore)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Zero(t, cfg.DynamicQuota)
	assert.Empty(t, cfg.PersistDSN)
	assert.False(t, cfg.ObservabilityEnabled)
	assert.Equal(t, "INFO", cfg.LogLevel)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("SHIELD_DYNAMIC_QUOTA", "100")
	t.Setenv("SHIELD_SESSION_QUOTA", "200")
	t.Setenv("SHIELD_ARTIFACT_STORE", "redis")
	t.Setenv("SHIELD_PERSIST_DSN", "sqlite:/tmp/shield.db")
	t.Setenv("SHIELD_PERSIST_WRITES_PER_SECOND", "2.5")
	t.Setenv("SHIELD_OBSERVABILITY", "true")
	t.Setenv("SHIELD_LOG_LEVEL", "DEBUG")

	cfg := LoadFromEnv()
	assert.Equal(t, 100, cfg.DynamicQuota)
	assert.Equal(t, 200, cfg.SessionQuota)
	assert.Equal(t, "redis", cfg.ArtifactStore)
	assert.Equal(t, "sqlite:/tmp/shield.db", cfg.PersistDSN)
	assert.Equal(t, 2.5, cfg.PersistWritesPerSecond)
	assert.True(t, cfg.ObservabilityEnabled)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestLoadFromEnvIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("SHIELD_DYNAMIC_QUOTA", "lots")
	cfg := LoadFromEnv()
	assert.Zero(t, cfg.DynamicQuota)
}

func TestApplyFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shield.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dynamic_quota: 42
artifact_store: s3
log_level: WARN
`), 0o644))

	cfg := Default()
	require.NoError(t, cfg.ApplyFile(path))
	assert.Equal(t, 42, cfg.DynamicQuota)
	assert.Equal(t, "s3", cfg.ArtifactStore)
	assert.Equal(t, "WARN", cfg.LogLevel)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, "data", cfg.DataDir)
}

func TestApplyFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shield.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dynamc_quota: 42\n"), 0o644))

	cfg := Default()
	assert.Error(t, cfg.ApplyFile(path))
}

func TestApplyFileMissing(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.ApplyFile(filepath.Join(t.TempDir(), "absent.yaml")))
}
