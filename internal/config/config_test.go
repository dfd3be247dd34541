package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dune-sync/internal/domain"
)

func clearDuneEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DUNE_API_KEY", "DUNE_API_URL", "DUNE_WEB_URL", "DUNE_QUERIES_DIR", "DUNE_MANIFEST",
		"DUNE_POLL_INTERVAL", "DUNE_POLL_TIMEOUT", "DUNE_HTTP_TIMEOUT",
		"DUNE_RATE_LIMIT_RPS", "DUNE_RATE_LIMIT_BURST", "LOG_LEVEL", "LOG_FORMAT", "DUNE_LOG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearDuneEnv(t)
	t.Setenv("DUNE_API_KEY", "secret")
	t.Setenv("DUNE_API_URL", "https://api.example.com")
	t.Setenv("DUNE_QUERIES_DIR", "sql")
	t.Setenv("DUNE_MANIFEST", "managed.yml")
	t.Setenv("DUNE_POLL_INTERVAL", "2s")
	t.Setenv("DUNE_POLL_TIMEOUT", "10m")
	t.Setenv("DUNE_RATE_LIMIT_RPS", "1.5")
	t.Setenv("DUNE_RATE_LIMIT_BURST", "3")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("DUNE_LOG_FILE", "/var/log/dunesync.log")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "https://api.example.com", cfg.Host)
	assert.Equal(t, "sql", cfg.QueriesDir)
	assert.Equal(t, "managed.yml", cfg.ManifestPath)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.PollTimeout)
	assert.InDelta(t, 1.5, cfg.RateLimitRPS, 0.0001)
	assert.Equal(t, 3, cfg.RateLimitBurst)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "/var/log/dunesync.log", cfg.LogFile)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearDuneEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Empty(t, cfg.APIKey)
	assert.False(t, cfg.HasAPIKey())
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultWebURL, cfg.WebURL)
	assert.Equal(t, "queries", cfg.QueriesDir)
	assert.Equal(t, "queries.yml", cfg.ManifestPath)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Zero(t, cfg.PollTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.InDelta(t, float64(DefaultRateLimitRPS), cfg.RateLimitRPS, 0.0001)
	assert.Equal(t, DefaultRateBurst, cfg.RateLimitBurst)
}

func TestLoadFromEnv_InvalidValuesWarn(t *testing.T) {
	clearDuneEnv(t)
	t.Setenv("DUNE_POLL_INTERVAL", "soon")
	t.Setenv("DUNE_RATE_LIMIT_BURST", "many")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultRateBurst, cfg.RateLimitBurst)
	assert.Len(t, cfg.Warnings, 2)
}

func TestLoadFromEnv_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "negative_timeout", key: "DUNE_POLL_TIMEOUT", value: "-1s"},
		{name: "bad_log_format", key: "LOG_FORMAT", value: "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearDuneEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadFromEnv()
			require.Error(t, err)
			var ce *domain.ConfigError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestRequireAPIKey(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.RequireAPIKey(), domain.ErrMissingAPIKey)

	cfg.APIKey = "   "
	assert.ErrorIs(t, cfg.RequireAPIKey(), domain.ErrMissingAPIKey)

	cfg.APIKey = "k"
	assert.NoError(t, cfg.RequireAPIKey())
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.level}
			assert.Equal(t, tt.want, cfg.SlogLevel())
		})
	}
}

func TestLoadDotEnv_FileNotFound(t *testing.T) {
	err := LoadDotEnv("/nonexistent/.env")
	if err != nil {
		t.Errorf("expected no error for missing .env, got: %v", err)
	}
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("TEST_KEY=test_value\nexport TEST_EXPORTED=\"quoted\"\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_KEY"); val != "test_value" {
		t.Errorf("TEST_KEY = %q, want %q", val, "test_value")
	}
	if val := os.Getenv("TEST_EXPORTED"); val != "quoted" {
		t.Errorf("TEST_EXPORTED = %q, want %q", val, "quoted")
	}
	_ = os.Unsetenv("TEST_KEY")
	_ = os.Unsetenv("TEST_EXPORTED")
}

func TestLoadDotEnv_SkipsComments(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("# comment\nTEST_COMMENT_KEY=value\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_COMMENT_KEY"); val != "value" {
		t.Errorf("TEST_COMMENT_KEY = %q, want %q", val, "value")
	}
	_ = os.Unsetenv("TEST_COMMENT_KEY")
}

func TestLoadDotEnv_EnvVarPrecedence(t *testing.T) {
	t.Setenv("TEST_PRECEDENCE_KEY", "from_env")

	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("TEST_PRECEDENCE_KEY=from_file\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_PRECEDENCE_KEY"); val != "from_env" {
		t.Errorf("TEST_PRECEDENCE_KEY = %q, want %q", val, "from_env")
	}
}
