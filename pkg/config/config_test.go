package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skillmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
db:
  path: /tmp/skillmap-test.db
auth:
  jwt_secret: a-very-secret-value
  token_ttl: 2h
`)
	t.Setenv("PORT", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, "/tmp/skillmap-test.db", cfg.DB.Path)
	assert.Equal(t, 1, cfg.DB.MaxOpenConns)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "skillmap", cfg.Metrics.Prefix)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
auth:
  jwt_secret: from-file-secret
`)
	t.Setenv("SKILLMAP_SERVER_PORT", "7070")
	t.Setenv("SKILLMAP_AUTH_JWT_SECRET", "from-env-secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "from-env-secret", cfg.Auth.JWTSecret)
}

func TestLoad_DevSecretRequiresDevelopment(t *testing.T) {
	path := writeConfig(t, "log:\n  development: false\n")
	_, err := Load(path)
	require.Error(t, err)

	path = writeConfig(t, "log:\n  development: true\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DevJWTSecret, cfg.Auth.JWTSecret)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: 0},
		DB:     DBConfig{Path: "x.db"},
		Auth:   AuthConfig{JWTSecret: "s", TokenTTL: time.Hour},
	}
	assert.Error(t, cfg.Validate())

	cfg.Server.Port = 8080
	assert.NoError(t, cfg.Validate())

	cfg.Auth.TokenTTL = 0
	assert.Error(t, cfg.Validate())
}
