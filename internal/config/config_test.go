package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 3600, cfg.PDF.ExpiresSeconds)
	assert.Equal(t, 7, cfg.PDF.CleanupDays)
	assert.Equal(t, "./tmp/pdfs", cfg.PDF.StoragePath)
	assert.Contains(t, cfg.Database.ConnString(), "host=localhost")
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
  cors_origins: ["https://app.example.com"]
pdf:
  expires_seconds: 600
  converter_url: http://gotenberg:3000
redis:
  url: redis://localhost:6379/0
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PDF_DOWNLOAD_EXPIRES_SECONDS", "120")
	t.Setenv("DATABASE_DSN", "postgres://u:p@db:5432/billing?sslmode=disable")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 120, cfg.PDF.ExpiresSeconds, "env wins over file")
	assert.Equal(t, "http://gotenberg:3000", cfg.PDF.ConverterURL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, "postgres://u:p@db:5432/billing?sslmode=disable", cfg.Database.ConnString())
	// untouched sections keep defaults
	assert.Equal(t, 7, cfg.PDF.CleanupDays)
}

func TestLoadRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [1,2"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.App.Dev = false
	assert.Error(t, cfg.Validate(), "default secret outside dev")

	cfg.Auth.SessionSecret = "prod-secret"
	assert.NoError(t, cfg.Validate())

	cfg.PDF.ExpiresSeconds = 0
	assert.Error(t, cfg.Validate())
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("X_INT", "nope")
	assert.Equal(t, 5, getEnvInt("X_INT", 5))
	t.Setenv("X_BOOL", "YES")
	assert.True(t, getEnvBool("X_BOOL", false))
	t.Setenv("X_LIST", " a, ,b ")
	assert.Equal(t, []string{"a", "b"}, getEnvList("X_LIST", nil))
}
