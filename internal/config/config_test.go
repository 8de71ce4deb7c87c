package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, DriverSQLite, cfg.Database.Driver)
	require.Equal(t, "app.db", cfg.Database.DSN)
	require.Equal(t, 500, cfg.Import.BatchSize)
	require.Equal(t, 100, cfg.Query.DefaultLimit)
	require.Equal(t, 500, cfg.Query.MaxLimit)
	require.Equal(t, ProviderMock, cfg.Suggest.Provider)
	require.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	require.False(t, cfg.Auth.Enabled)
	require.Contains(t, cfg.Server.CORSOrigins, "http://localhost:5173")
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "insight.yaml")
	yaml := []byte(`
server:
  port: 9001
database:
  driver: Postgres
  dsn: host=db user=app dbname=insight
import:
  batch_size: 50
suggest:
  provider: mock
  timeout: 3s
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o600))

	t.Setenv("PORT", "7000")
	t.Setenv("LLM_PROVIDER", "http")
	t.Setenv("SUGGEST_ENDPOINT", "http://llm.internal/suggest")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Server.Port)
	require.Equal(t, DriverPostgres, cfg.Database.Driver)
	require.Equal(t, "host=db user=app dbname=insight", cfg.Database.DSN)
	require.Equal(t, 50, cfg.Import.BatchSize)
	require.Equal(t, ProviderHTTP, cfg.Suggest.Provider)
	require.Equal(t, "http://llm.internal/suggest", cfg.Suggest.Endpoint)
	require.Equal(t, 3*time.Second, cfg.Suggest.Timeout)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Database.Driver = "oracle"
	require.ErrorContains(t, bad.Validate(), "database.driver")

	bad = cfg
	bad.Suggest.Provider = "openai"
	require.ErrorContains(t, bad.Validate(), "suggest.provider")

	bad = cfg
	bad.Suggest.Provider = ProviderHTTP
	require.ErrorContains(t, bad.Validate(), "suggest.endpoint")

	bad = cfg
	bad.Import.BatchSize = 0
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Query.DefaultLimit = 1000
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Demo.Size = -5
	require.ErrorContains(t, bad.Validate(), "demo.size")

	bad = cfg
	bad.Demo.Size = 0
	require.ErrorContains(t, bad.Validate(), "demo.size")

	bad = cfg
	bad.Server.CORSOrigins = nil
	require.ErrorContains(t, bad.Validate(), "cors_origins")

	bad = cfg
	bad.Auth.Enabled = true
	bad.Auth.JWTSecret = ""
	require.Error(t, bad.Validate())
}

func TestClampLimit(t *testing.T) {
	q := QueryConfig{DefaultLimit: 100, MaxLimit: 500}
	require.Equal(t, 100, q.ClampLimit(0))
	require.Equal(t, 100, q.ClampLimit(-3))
	require.Equal(t, 1, q.ClampLimit(1))
	require.Equal(t, 250, q.ClampLimit(250))
	require.Equal(t, 500, q.ClampLimit(500))
	require.Equal(t, 500, q.ClampLimit(5000))
}
