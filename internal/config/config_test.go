package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultIsValidInDevelopment(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, devSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, 14*24*time.Hour, cfg.Loans.Period)
	assert.Equal(t, 100, cfg.Limits.Requests)
	assert.Equal(t, 15*time.Minute, cfg.Limits.Window)
	assert.False(t, cfg.TrustProxy)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing port", func(c *Config) { c.Port = "" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }},
		{"firestore without credentials", func(c *Config) { c.Database.Driver = DriverFirestore }},
		{"production without secret", func(c *Config) { c.AppEnv = "production" }},
		{"negative fine", func(c *Config) { c.Loans.FinePerDay = -1 }},
		{"zero loan period", func(c *Config) { c.Loans.Period = 0 }},
		{"zero rate limit", func(c *Config) { c.Limits.Requests = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.yaml")
	yamlDoc := `
port: "9000"
database:
  driver: pgx
  dsn: postgres://file
loans:
  fine_per_day: 0.5
rate_limit:
  window: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	t.Setenv("LIBRARY_CONFIG", path)
	t.Setenv("DB_DSN", "postgres://env")
	t.Setenv("LOAN_PERIOD", "72h")
	t.Setenv("RATE_LIMIT_REQUESTS", "5")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := Load(discardLogger())
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port, "file overrides defaults")
	assert.Equal(t, DriverPGX, cfg.Database.Driver)
	assert.Equal(t, "postgres://env", cfg.Database.DSN, "environment overrides file")
	assert.Equal(t, 0.5, cfg.Loans.FinePerDay)
	assert.Equal(t, 72*time.Hour, cfg.Loans.Period)
	assert.Equal(t, time.Minute, cfg.Limits.Window)
	assert.Equal(t, 5, cfg.Limits.Requests)
	assert.True(t, cfg.TrustProxy)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("FINE_PER_DAY", "lots")
	_, err := Load(discardLogger())
	assert.Error(t, err)

	t.Setenv("FINE_PER_DAY", "")
	t.Setenv("JWT_TTL", "forever")
	_, err = Load(discardLogger())
	assert.Error(t, err)

	t.Setenv("JWT_TTL", "")
	t.Setenv("TRUST_PROXY", "sometimes")
	_, err = Load(discardLogger())
	assert.Error(t, err)
}
