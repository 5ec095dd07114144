package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(ConfigPathEnv, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "watchlog", cfg.Auth.JWTIssuer)
	assert.Equal(t, 24*time.Hour, cfg.Auth.JWTDuration)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watchlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9999"
log:
  level: debug
auth:
  jwt_ttl: 2h
`), 0o600))

	t.Setenv("WATCHLOG_LOG_LEVEL", "warn")
	t.Setenv("WATCHLOG_DB_PATH", "/tmp/custom.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/tmp/custom.db", cfg.DB.Path)
	assert.Equal(t, 2*time.Hour, cfg.Auth.JWTDuration)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "auth.jwt_secret", envKey("WATCHLOG_AUTH_JWT_SECRET"))
	assert.Equal(t, "client.api_url", envKey("WATCHLOG_CLIENT_API_URL"))
	assert.Equal(t, "", envKey("WATCHLOG_CONFIG"))
}
