package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"short", "abc", "****"},
		{"exactly_10", "1234567890", "****"},
		{"long_key", "dune_0123456789abcdefXYZ", "dune****fXYZ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskSecret(tt.input))
		})
	}
}

func TestMaskConfig(t *testing.T) {
	cfg := &UserConfig{
		CurrentProfile: "default",
		Profiles: map[string]Profile{
			"default": {
				Host:   "https://api.dune.com",
				APIKey: "sk-1234567890abcdef",
			},
		},
	}

	masked := maskConfig(cfg)

	assert.Equal(t, "https://api.dune.com", masked.Profiles["default"].Host)
	assert.Equal(t, "default", masked.CurrentProfile)
	assert.Equal(t, "sk-1****cdef", masked.Profiles["default"].APIKey)

	// Original config not mutated.
	assert.Equal(t, "sk-1234567890abcdef", cfg.Profiles["default"].APIKey)
}

func TestMaskConfig_EmptyProfiles(t *testing.T) {
	masked := maskConfig(&UserConfig{CurrentProfile: "default", Profiles: map[string]Profile{}})
	assert.Empty(t, masked.Profiles)
}

func saveTestProfiles(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, SaveUserConfig(&UserConfig{
		CurrentProfile: "default",
		Profiles: map[string]Profile{
			"default": {
				Host:       "https://api.dune.com",
				APIKey:     "dune_default_123456",
				QueriesDir: "queries",
				Output:     "table",
			},
			"staging": {
				Host: "https://staging.example.com",
			},
		},
	}))
}

func TestConfigShow_TableOutput(t *testing.T) {
	saveTestProfiles(t)

	res := execCLI("config", "show", "--env-file", "")
	require.Equal(t, exitOK, res.code, "stderr: %s", res.stderr)

	assert.Contains(t, res.stdout, "PROFILE")
	assert.Contains(t, res.stdout, "ACTIVE")
	assert.Contains(t, res.stdout, "QUERIES-DIR")
	assert.Contains(t, res.stdout, "https://staging.example.com")
	assert.Contains(t, res.stdout, "dune****3456")
	assert.NotContains(t, res.stdout, "dune_default_123456", "api key should be masked in table output")
}

func TestConfigShow_JSONReveal(t *testing.T) {
	saveTestProfiles(t)

	res := execCLI("config", "show", "--reveal", "-o", "json", "--env-file", "")
	require.Equal(t, exitOK, res.code, "stderr: %s", res.stderr)

	var cfg UserConfig
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &cfg))
	assert.Equal(t, "default", cfg.CurrentProfile)
	assert.Equal(t, "dune_default_123456", cfg.Profiles["default"].APIKey)
}

func TestConfigShow_NoConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	res := execCLI("config", "show", "--env-file", "")
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.stderr, "No configuration found")
}

func TestConfigSetProfile_UpdatesOnlyChangedFields(t *testing.T) {
	saveTestProfiles(t)

	res := execCLI("config", "set-profile", "--name", "default", "--manifest", "sql/queries.yml", "--env-file", "")
	require.Equal(t, exitOK, res.code, "stderr: %s", res.stderr)
	assert.Contains(t, res.stdout, `Profile "default" saved`)

	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	p := cfg.Profiles["default"]
	assert.Equal(t, "sql/queries.yml", p.Manifest)
	assert.Equal(t, "https://api.dune.com", p.Host)
	assert.Equal(t, "dune_default_123456", p.APIKey)
}

func TestConfigSetProfile_Validation(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	res := execCLI("config", "set-profile", "--name", "x", "--host", "localhost:8080", "--env-file", "")
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.stderr, "invalid host")

	res = execCLI("config", "set-profile", "--name", "x", "--output", "yaml", "--env-file", "")
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.stderr, "unsupported output format")

	res = execCLI("config", "set-profile", "--host", "https://api.dune.com", "--env-file", "")
	assert.NotEqual(t, exitOK, res.code)
	assert.Contains(t, res.stderr, "name")

	_, err := LoadUserConfig()
	assert.Error(t, err, "nothing should be saved")
}

func TestConfigUseProfile(t *testing.T) {
	saveTestProfiles(t)

	res := execCLI("config", "use-profile", "staging", "--env-file", "")
	require.Equal(t, exitOK, res.code, "stderr: %s", res.stderr)
	assert.Contains(t, res.stdout, `Active profile set to "staging"`)

	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.CurrentProfile)

	res = execCLI("config", "use-profile", "missing", "--env-file", "")
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.stderr, `profile "missing" not found`)
}
