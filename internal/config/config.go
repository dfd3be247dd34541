// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"dune-sync/internal/domain"
)

// Defaults applied when neither the environment nor a profile sets a value.
const (
	DefaultHost         = "https://api.dune.com"
	DefaultWebURL       = "https://dune.com"
	DefaultQueriesDir   = "queries"
	DefaultManifestPath = "queries.yml"
	DefaultPollInterval = 5 * time.Second
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultRateLimitRPS = 5
	DefaultRateBurst    = 10
)

// Config holds the runtime configuration for one invocation.
type Config struct {
	APIKey       string        // remote API credential (DUNE_API_KEY)
	Host         string        // API base URL (default https://api.dune.com)
	WebURL       string        // base URL for human-facing result links
	QueriesDir   string        // directory holding *.sql definition files
	ManifestPath string        // YAML manifest listing managed query ids
	PollInterval time.Duration // delay between execution status checks
	PollTimeout  time.Duration // max wait per execution; 0 waits indefinitely
	HTTPTimeout  time.Duration // per-request HTTP timeout
	LogLevel     string        // debug, info, warn, error (default "info")
	LogFormat    string        // text, json, or "" for terminal detection
	LogFile      string        // optional rotating log file; empty logs to stderr

	// Client-side rate limiting
	RateLimitRPS   float64 // sustained requests per second; negative disables
	RateLimitBurst int     // burst capacity

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HasAPIKey reports whether a credential was resolved.
func (c *Config) HasAPIKey() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// RequireAPIKey returns domain.ErrMissingAPIKey when no credential is set.
func (c *Config) RequireAPIKey() error {
	if !c.HasAPIKey() {
		return domain.ErrMissingAPIKey
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Unparseable numeric or duration values are ignored with a warning.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		APIKey:       os.Getenv("DUNE_API_KEY"),
		Host:         os.Getenv("DUNE_API_URL"),
		WebURL:       os.Getenv("DUNE_WEB_URL"),
		QueriesDir:   os.Getenv("DUNE_QUERIES_DIR"),
		ManifestPath: os.Getenv("DUNE_MANIFEST"),
		LogLevel:     os.Getenv("LOG_LEVEL"),
		LogFormat:    strings.ToLower(os.Getenv("LOG_FORMAT")),
		LogFile:      os.Getenv("DUNE_LOG_FILE"),
	}

	cfg.PollInterval = cfg.parseDurationEnv("DUNE_POLL_INTERVAL")
	cfg.PollTimeout = cfg.parseDurationEnv("DUNE_POLL_TIMEOUT")
	cfg.HTTPTimeout = cfg.parseDurationEnv("DUNE_HTTP_TIMEOUT")

	// Rate limiting
	if v := os.Getenv("DUNE_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring DUNE_RATE_LIMIT_RPS=%q: not a number", v))
		}
	}
	if v := os.Getenv("DUNE_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring DUNE_RATE_LIMIT_BURST=%q: not an integer", v))
		}
	}

	// Defaults
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.WebURL == "" {
		cfg.WebURL = DefaultWebURL
	}
	if cfg.QueriesDir == "" {
		cfg.QueriesDir = DefaultQueriesDir
	}
	if cfg.ManifestPath == "" {
		cfg.ManifestPath = DefaultManifestPath
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = DefaultHTTPTimeout
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = DefaultRateLimitRPS
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = DefaultRateBurst
	}

	if cfg.PollTimeout < 0 {
		return nil, domain.ErrConfig("DUNE_POLL_TIMEOUT must not be negative")
	}
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		return nil, domain.ErrConfig("unsupported LOG_FORMAT %q: use 'text' or 'json'", cfg.LogFormat)
	}

	return cfg, nil
}

func (c *Config) parseDurationEnv(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		c.Warnings = append(c.Warnings, fmt.Sprintf("ignoring %s=%q: %v", key, v, err))
		return 0
	}
	return d
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
// An optional leading "export " is accepted.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
