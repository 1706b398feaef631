package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:3000", cfg.Server.RESTAddr)
	assert.Equal(t, "127.0.0.1:5000", cfg.Server.GRPCAddr)
	assert.Equal(t, "127.0.0.1:4000", cfg.Server.JSONRPCAddr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 2*time.Second, cfg.DefaultInterval())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  rest_addr: "0.0.0.0:8080"
logging:
  level: info
stream:
  buffer: 64
  default_interval_seconds: 5
ratelimit:
  rps: 100
  burst: 20
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.RESTAddr)
	// Untouched keys keep their defaults.
	assert.Equal(t, "127.0.0.1:5000", cfg.Server.GRPCAddr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 64, cfg.Stream.Buffer)
	assert.Equal(t, 5*time.Second, cfg.DefaultInterval())
	assert.Equal(t, float64(100), cfg.RateLimit.RPS)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not: a: mapping")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.RESTAddr = ""
	cfg.Server.GRPCAddr = "missing-port"
	cfg.Stream.Buffer = 1
	cfg.Stream.DefaultIntervalSeconds = -1
	cfg.RateLimit.RPS = 5 // burst left at zero

	err := cfg.Validate()
	require.Error(t, err)

	assert.ErrorContains(t, err, "server.rest_addr is required")
	assert.ErrorContains(t, err, "server.grpc_addr")
	assert.ErrorContains(t, err, "stream.buffer must be at least 32")
	assert.ErrorContains(t, err, "stream.default_interval_seconds must not be negative")
	assert.ErrorContains(t, err, "ratelimit.burst must be positive")
}

func TestValidateMetricsAddrOnlyWhenEnabled(t *testing.T) {
	cfg := Default()
	cfg.Metrics.Addr = "garbage"
	require.NoError(t, cfg.Validate(), "disabled metrics addr is not checked")

	cfg.Metrics.Enabled = true
	assert.ErrorContains(t, cfg.Validate(), "metrics.addr")
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `
stream:
  buffer: 2
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "stream.buffer")
}
