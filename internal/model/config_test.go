package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultAppConfig(), cfg)
	assert.Equal(t, 2*time.Minute, cfg.PollInterval())
	assert.Equal(t, 2*time.Second, cfg.ReconcileDelay())
	assert.Equal(t, time.Hour, cfg.CleanupInterval())
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout())
	assert.Equal(t, time.Minute, cfg.DedupWindow())
	assert.Equal(t, 7*24*time.Hour, cfg.MaxAge())
	assert.Equal(t, 24*time.Hour, cfg.ActionMaxAge())
	assert.Equal(t, 30*24*time.Hour, cfg.PartitionMaxAge())
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultAppConfig()
	cfg.Role = "admin"
	cfg.API.BaseURL = "https://console.example.org"
	cfg.Sync.PollIntervalSec = 45
	cfg.Durable.Backend = "redis"
	cfg.Durable.RedisAddr = "redis.internal:6379"
	cfg.Durable.RedisDB = 2
	cfg.Session.ID = "tty1"
	cfg.StalePatterns = []string{`^demo`}

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("role: coordinator\nsync:\n  poll_interval_sec: 10\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "coordinator", cfg.Role)
	assert.Equal(t, 10*time.Second, cfg.PollInterval())
	assert.Equal(t, DefaultAppConfig().API.BaseURL, cfg.API.BaseURL)
	assert.Equal(t, 3600, cfg.Sync.CleanupIntervalSec)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("durable:\n  backend: postgres\n"), 0o600))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "validating config")
}

func TestValidate(t *testing.T) {
	cfg := DefaultAppConfig()
	require.NoError(t, cfg.Validate())

	cfg.API.BaseURL = "not a url"
	assert.Error(t, cfg.Validate())

	cfg = DefaultAppConfig()
	cfg.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = DefaultAppConfig()
	cfg.StalePatterns = []string{"(unclosed"}
	assert.ErrorContains(t, cfg.Validate(), "compiling stale pattern")

	cfg = DefaultAppConfig()
	cfg.Durable.Backend = "redis"
	cfg.Durable.RedisAddr = ""
	assert.Error(t, cfg.Validate())
}

func TestCompiledStalePatterns(t *testing.T) {
	cfg := DefaultAppConfig()
	patterns, err := cfg.CompiledStalePatterns()
	require.NoError(t, err)
	require.Len(t, patterns, 2)
	assert.True(t, patterns[0].MatchString("Sample Farmer registered"))
	assert.True(t, patterns[1].MatchString("Lorem ipsum dolor"))
}
