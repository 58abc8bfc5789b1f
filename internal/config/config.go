// Package config loads the server configuration from an optional YAML file,
// a .env file and the process environment, in that order of precedence
// (environment wins).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Database drivers understood by the server.
const (
	DriverSQLite    = "sqlite3"
	DriverPGX       = "pgx"
	DriverPostgres  = "postgres"
	DriverFirestore = "firestore"
)

const devSecret = "development-secret-change-me"

// Config is the complete server configuration.
type Config struct {
	Port   string `yaml:"port"`
	AppEnv string `yaml:"app_env"`
	// TrustProxy takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable it only behind a proxy that sets those headers.
	TrustProxy bool `yaml:"trust_proxy"`

	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Loans    LoanConfig     `yaml:"loans"`
	Limits   RateLimit      `yaml:"rate_limit"`
	Firebase FirebaseConfig `yaml:"firebase"`
	NATS     NATSConfig     `yaml:"nats"`

	ReportTempDir string `yaml:"report_temp_dir"`
}

type DatabaseConfig struct {
	// Driver is one of sqlite3, pgx, postgres or firestore.
	Driver string `yaml:"driver"`
	// DSN is the connection string, or a file path for sqlite3.
	DSN string `yaml:"dsn"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// LoanConfig holds the circulation policy.
type LoanConfig struct {
	Period     time.Duration `yaml:"period"`
	FinePerDay float64       `yaml:"fine_per_day"`
}

// RateLimit caps requests per client: Requests per Window.
type RateLimit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// FirebaseConfig enables the Firestore backend and Firebase ID tokens.
type FirebaseConfig struct {
	CredentialsPath string `yaml:"credentials_path"`
	CredentialsJSON string `yaml:"credentials_json"`
	ProjectID       string `yaml:"project_id"`
}

// Enabled reports whether any Firebase credentials were configured.
func (f FirebaseConfig) Enabled() bool {
	return f.CredentialsPath != "" || f.CredentialsJSON != "" || f.ProjectID != ""
}

type NATSConfig struct {
	// URL of the NATS server; empty disables event publishing.
	URL string `yaml:"url"`
}

// Default returns the development defaults.
func Default() *Config {
	return &Config{
		Port:   "8080",
		AppEnv: "development",
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    "library.db",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Loans: LoanConfig{
			Period:     14 * 24 * time.Hour,
			FinePerDay: 1.0,
		},
		Limits: RateLimit{
			Requests: 100,
			Window:   15 * time.Minute,
		},
		ReportTempDir: os.TempDir(),
	}
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "" || c.AppEnv == "development"
}

// Validate checks the configuration and fills the development JWT secret.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverPGX, DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for driver %s", c.Database.Driver)
		}
	case DriverFirestore:
		if !c.Firebase.Enabled() {
			return errors.New("firestore driver requires firebase credentials or project id")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Auth.JWTSecret == "" {
		if !c.IsDevelopment() {
			return errors.New("JWT_SECRET is required outside development")
		}
		c.Auth.JWTSecret = devSecret
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	if c.Loans.Period <= 0 {
		return errors.New("loan period must be positive")
	}
	if c.Loans.FinePerDay < 0 {
		return errors.New("fine per day must not be negative")
	}
	if c.Limits.Requests <= 0 || c.Limits.Window <= 0 {
		return errors.New("rate limit requests and window must be positive")
	}
	return nil
}

// Load builds the configuration: defaults, then the YAML file named by
// LIBRARY_CONFIG, then .env and the environment.
func Load(logger *slog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file loaded, using environment", "error", err)
	}

	cfg := Default()
	if path := os.Getenv("LIBRARY_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.AppEnv, "APP_ENV")
	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.DSN, "DB_DSN")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Firebase.CredentialsPath, "FIREBASE_CREDENTIALS_PATH")
	setString(&c.Firebase.CredentialsJSON, "FIREBASE_CREDENTIALS_JSON")
	setString(&c.Firebase.ProjectID, "FIREBASE_PROJECT_ID")
	setString(&c.NATS.URL, "NATS_URL")
	setString(&c.ReportTempDir, "REPORT_TEMP_DIR")

	for key, dst := range map[string]*time.Duration{
		"JWT_TTL":           &c.Auth.TokenTTL,
		"LOAN_PERIOD":       &c.Loans.Period,
		"RATE_LIMIT_WINDOW": &c.Limits.Window,
	} {
		if err := setDuration(dst, key); err != nil {
			return err
		}
	}

	if v, ok := os.LookupEnv("FINE_PER_DAY"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("FINE_PER_DAY: %w", err)
		}
		c.Loans.FinePerDay = f
	}
	if v, ok := os.LookupEnv("TRUST_PROXY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TRUST_PROXY: %w", err)
		}
		c.TrustProxy = b
	}
	if v, ok := os.LookupEnv("RATE_LIMIT_REQUESTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_REQUESTS: %w", err)
		}
		c.Limits.Requests = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
