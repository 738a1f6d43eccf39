package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "DATABASE_URL", "SQLITE_PATH", "DEFAULT_API_KEY",
		"API_ALLOWED_ORIGINS", "DISABLE_RATELIMIT", "RATE_LIMIT_PER_MINUTE",
		"TELEMETRY_ENABLED", "OTLP_ENDPOINT",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, "data/crowddata.db", cfg.SQLitePath)
	assert.Empty(t, cfg.APIKey)
	assert.Contains(t, cfg.AllowedOrigins, "http://localhost:3000")
	assert.False(t, cfg.DisableRateLimit)
	assert.Equal(t, 10, cfg.RateLimitPerMinute)
	assert.False(t, cfg.TelemetryEnabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://crowd@localhost/crowddata?sslmode=disable")
	t.Setenv("DEFAULT_API_KEY", "secret-key-123")
	t.Setenv("API_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("DISABLE_RATELIMIT", "true")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "120")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "postgres://crowd@localhost/crowddata?sslmode=disable", cfg.DatabaseURL)
	assert.Equal(t, "secret-key-123", cfg.APIKey)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.True(t, cfg.DisableRateLimit)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
}

func TestLoad_BadRateLimitIgnored(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MINUTE", "nonsense")
	assert.Equal(t, 10, Load().RateLimitPerMinute)

	t.Setenv("RATE_LIMIT_PER_MINUTE", "-5")
	assert.Equal(t, 10, Load().RateLimitPerMinute)
}

func TestLoadFile_Overlay(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DEFAULT_API_KEY", "from-env")

	path := filepath.Join(t.TempDir(), "crowddata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"port: \"7070\"\nrate_limit_per_minute: 30\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	// YAML wins where present, env fills the rest.
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, 30, cfg.RateLimitPerMinute)
	assert.Equal(t, "from-env", cfg.APIKey)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
