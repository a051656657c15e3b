package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("CIRCLE_JWT_SECRET", "secret")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "./data/circle.db", cfg.DBPath)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "secret", cfg.JWTSecret)
}

func TestLoadServerRequiresSecret(t *testing.T) {
	t.Setenv("CIRCLE_JWT_SECRET", "")

	_, err := LoadServer()
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestLoadServerOverrides(t *testing.T) {
	t.Setenv("CIRCLE_JWT_SECRET", "secret")
	t.Setenv("CIRCLE_ADDR", ":9090")
	t.Setenv("CIRCLE_TOKEN_TTL", "90m")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 90*time.Minute, cfg.TokenTTL)
}

func TestLoadClientFromEnv(t *testing.T) {
	t.Setenv("CIRCLE_SERVER", "http://ledger.test")
	t.Setenv("CIRCLE_TOKEN_FILE", "/tmp/tok")

	cfg, err := LoadClient("")
	require.NoError(t, err)
	assert.Equal(t, "http://ledger.test", cfg.ServerURL)
	assert.Equal(t, "/tmp/tok", cfg.TokenFile)
	assert.Equal(t, time.Second, cfg.ReconcileDelay)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
}

func TestLoadClientFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "server_url: http://file.test\nreconcile_delay: 3s\ntoken_file: /tmp/file-token\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "http://file.test", cfg.ServerURL)
	assert.Equal(t, 3*time.Second, cfg.ReconcileDelay)
	assert.Equal(t, "/tmp/file-token", cfg.TokenFile)
}

func TestLoadClientMissingFileFallsBackToEnv(t *testing.T) {
	t.Setenv("CIRCLE_TOKEN_FILE", "")

	cfg, err := LoadClient(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, DefaultTokenFile(), cfg.TokenFile)
}
