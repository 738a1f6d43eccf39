// Package config loads server settings from the environment, with an
// optional YAML profile overlay.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds server configuration.
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// DatabaseURL selects Postgres when set; empty means local SQLite.
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`

	// APIKey is the shared ingest credential. Empty rejects all writers.
	APIKey string `yaml:"api_key"`

	AllowedOrigins []string `yaml:"allowed_origins"`

	DisableRateLimit   bool `yaml:"disable_ratelimit"`
	RateLimitPerMinute int  `yaml:"rate_limit_per_minute"`

	TelemetryEnabled bool   `yaml:"telemetry_enabled"`
	OTLPEndpoint     string `yaml:"otlp_endpoint"`
}

// defaultOrigins are used when API_ALLOWED_ORIGINS is not set. Production
// deployments set the env var to restrict to specific domains.
var defaultOrigins = []string{
	"http://localhost",
	"http://127.0.0.1",
	"http://localhost:8000",
	"http://127.0.0.1:8000",
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

// Load loads configuration from environment variables.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "data/crowddata.db"
	}

	perMinute := 10
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			perMinute = n
		}
	}

	return &Config{
		Port:               port,
		LogLevel:           logLevel,
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SQLitePath:         sqlitePath,
		APIKey:             os.Getenv("DEFAULT_API_KEY"),
		AllowedOrigins:     parseOrigins(os.Getenv("API_ALLOWED_ORIGINS")),
		DisableRateLimit:   isTruthy(os.Getenv("DISABLE_RATELIMIT")),
		RateLimitPerMinute: perMinute,
		TelemetryEnabled:   isTruthy(os.Getenv("TELEMETRY_ENABLED")),
		OTLPEndpoint:       os.Getenv("OTLP_ENDPOINT"),
	}
}

// LoadFile loads env configuration, then overlays values present in the
// YAML profile at path.
func LoadFile(path string) (*Config, error) {
	cfg := Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}

func parseOrigins(raw string) []string {
	if raw == "" {
		return defaultOrigins
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
