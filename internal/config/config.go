// Package config loads marketlink settings from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/marketlink/internal/core/domain"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// LookupFunc reads one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Config holds process-wide settings
type Config struct {
	DatabaseDriver string
	DatabaseURL    string
	SQLitePath     string
	DBMaxOpenConns int
	DBMaxIdleConns int

	RedisURL string

	EncryptionKey string
	JWTSecret     string

	Port           int
	BaseURL        string
	AllowedOrigins []string

	TokenEndpointTimeout time.Duration
	RefreshSafetyMargin  time.Duration
	RefreshMaxAttempts   uint
	RefreshWindow        time.Duration
	SweepInterval        time.Duration
	RefreshLeaseTTL      time.Duration
	RefreshLeaseWait     time.Duration

	LogLevel  slog.Level
	LogFormat string

	Providers *Providers
}

// Load reads configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads configuration through lookup. Marketplace settings are
// not validated here; a flow validates its own provider before starting.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	env := envReader{lookup: lookup}

	cfg := &Config{
		DatabaseDriver: strings.ToLower(env.get("DATABASE_DRIVER", "")),
		DatabaseURL:    env.get("DATABASE_URL", ""),
		SQLitePath:     env.get("SQLITE_PATH", "data/marketlink.db"),
		DBMaxOpenConns: env.getInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: env.getInt("DB_MAX_IDLE_CONNS", 5),

		RedisURL: env.get("REDIS_URL", ""),

		EncryptionKey: env.get("CREDENTIAL_ENCRYPTION_KEY", ""),
		JWTSecret:     env.get("JWT_SECRET", ""),

		Port:           env.getInt("PORT", 8080),
		BaseURL:        strings.TrimRight(env.get("BASE_URL", ""), "/"),
		AllowedOrigins: splitScopes(env.get("CORS_ALLOWED_ORIGINS", "")),

		TokenEndpointTimeout: env.getSeconds("TOKEN_ENDPOINT_TIMEOUT_SEC", 15),
		RefreshSafetyMargin:  env.getSeconds("REFRESH_SAFETY_MARGIN_SEC", 60),
		RefreshMaxAttempts:   uint(max(env.getInt("REFRESH_MAX_ATTEMPTS", 3), 1)),
		RefreshWindow:        env.getSeconds("REFRESH_WINDOW_SEC", 0),
		SweepInterval:        env.getSeconds("SWEEP_INTERVAL_SEC", 60),
		RefreshLeaseTTL:      env.getSeconds("REFRESH_LEASE_TTL_SEC", 30),
		RefreshLeaseWait:     env.getSeconds("REFRESH_LEASE_WAIT_SEC", 5),

		LogFormat: strings.ToLower(env.get("LOG_FORMAT", "text")),
	}

	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = DriverSQLite
		if cfg.DatabaseURL != "" {
			cfg.DatabaseDriver = DriverPostgres
		}
	}

	var errs []string
	errs = append(errs, env.errs...)
	switch cfg.DatabaseDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required for the postgres driver")
		}
	case DriverSQLite:
	default:
		errs = append(errs, fmt.Sprintf("DATABASE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.DatabaseDriver))
	}
	if cfg.RefreshLeaseTTL < 3*time.Second {
		errs = append(errs, fmt.Sprintf("REFRESH_LEASE_TTL_SEC must be at least 3, got %d", int(cfg.RefreshLeaseTTL.Seconds())))
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat))
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(env.get("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL: %v", err))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrConfiguration, strings.Join(errs, "; "))
	}

	cfg.Providers = LoadProviders(lookup)
	cfg.Providers.DefaultCallbacks(cfg.BaseURL)
	return cfg, nil
}

// RefreshTimeout bounds one shared refresh: the lease wait plus every
// token endpoint attempt, with slack for backoff between attempts.
func (c *Config) RefreshTimeout() time.Duration {
	return c.RefreshLeaseWait + time.Duration(c.RefreshMaxAttempts)*c.TokenEndpointTimeout + 30*time.Second
}

// RequireEncryptionKey reports a configuration error when no key is set.
// Only commands that touch the credential store need one.
func (c *Config) RequireEncryptionKey() error {
	if c.EncryptionKey == "" {
		return fmt.Errorf("%w: CREDENTIAL_ENCRYPTION_KEY is required", domain.ErrConfiguration)
	}
	return nil
}

// RequireJWTSecret reports a configuration error when no secret is set.
func (c *Config) RequireJWTSecret() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("%w: JWT_SECRET is required", domain.ErrConfiguration)
	}
	return nil
}

// Logger builds the process logger from LOG_FORMAT and LOG_LEVEL.
func (c *Config) Logger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// envReader collects parse errors instead of silently using defaults.
type envReader struct {
	lookup LookupFunc
	errs   []string
}

func (e *envReader) get(key, defaultValue string) string {
	if value, ok := e.lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func (e *envReader) getInt(key string, defaultValue int) int {
	value := e.get(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		e.errs = append(e.errs, fmt.Sprintf("%s must be a non-negative integer, got %q", key, value))
		return defaultValue
	}
	return n
}

func (e *envReader) getSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(e.getInt(key, defaultValue)) * time.Second
}
