// Package config loads service configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"bufio"
	"log/slog"
	"os"
	"strings"
)

// Config holds all runtime settings.
type Config struct {
	// Env is the deployment environment ("development" or "production").
	Env string

	// ListenAddr is the HTTP bind address.
	ListenAddr string

	// PolicyDBPath is the SQLite file backing the policy store.
	PolicyDBPath string

	// LogLevel is the minimum slog level ("debug", "info", "warn", "error").
	LogLevel string

	// CORSAllowedOrigins is the comma-separated browser origin allowlist.
	CORSAllowedOrigins []string

	// ResyncSchedule is the cron expression for the background trigger
	// reconciler. Empty disables reconciliation.
	ResyncSchedule string
}

// LoadFromEnv builds a Config from the process environment, applying
// defaults for anything unset.
func LoadFromEnv() *Config {
	return &Config{
		Env:                getEnv("APP_ENV", "development"),
		ListenAddr:         getEnv("LISTEN_ADDR", ":8080"),
		PolicyDBPath:       getEnv("POLICY_DB_PATH", "data/sqlward.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		ResyncSchedule:     getEnv("RESYNC_SCHEDULE", "@every 15m"),
	}
}

// SlogLevel maps the configured log level to a slog.Level. Unknown values
// fall back to Info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

// LoadDotEnv reads KEY=VALUE pairs from the given file into the process
// environment. Existing variables take precedence. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
