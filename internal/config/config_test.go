package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camera-dashboard/internal/config"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := config.GetDefaultConfig()

	assert.Equal(t, "http://localhost:3001/api/v1", cfg.API.BaseURL)
	assert.Equal(t, "ws://localhost:3001/ws", cfg.Socket.URL)
	assert.Equal(t, time.Second, cfg.Socket.BaseInterval)
	assert.Equal(t, 5, cfg.Socket.MaxAttempts)
	assert.Equal(t, 50, cfg.Alerts.MaxEntries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 3001, cfg.Simulator.Port)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
api:
  base_url: "https://dash.example.com/api/v1"
  request_timeout: 3s

socket:
  url: "wss://dash.example.com/ws"
  base_interval: 500ms
  max_attempts: 8

alerts:
  max_entries: 100
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://dash.example.com/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.GetRequestTimeout())
	assert.Equal(t, "wss://dash.example.com/ws", cfg.Socket.URL)
	assert.Equal(t, 500*time.Millisecond, cfg.GetBaseInterval())
	assert.Equal(t, 8, cfg.GetMaxAttempts())
	assert.Equal(t, 100, cfg.GetMaxAlerts())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [broken"), 0o644))

	_, err := config.LoadConfig(path)
	assert.Error(t, err)
}

func TestGetters_FallBackOnZeroValues(t *testing.T) {
	cfg := &config.Config{}

	assert.Equal(t, 10*time.Second, cfg.GetRequestTimeout())
	assert.Equal(t, 5*time.Second, cfg.GetHandshakeTimeout())
	assert.Equal(t, time.Second, cfg.GetBaseInterval())
	assert.Equal(t, 5, cfg.GetMaxAttempts())
	assert.Equal(t, 50, cfg.GetMaxAlerts())
}
