package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ARCHON_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("ARCHON_API_BASE_URL", "")
	t.Setenv("OPENROUTER_API_BASE_URL", "")
	t.Setenv("DEFAULT_TIMEOUT", "")
	t.Setenv("MAX_RETRIES", "")
	t.Setenv("DEFAULT_TEST_SUITE", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultArchonBaseURL, cfg.ArchonBaseURL)
	assert.Equal(t, DefaultOpenRouterBaseURL, cfg.OpenRouterBaseURL)
	assert.Equal(t, 30, cfg.DefaultTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, "functional", cfg.DefaultTestType)
	assert.Equal(t, "INFO", cfg.LogLevel)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ARCHON_API_KEY", "ak-test")
	t.Setenv("ARCHON_API_BASE_URL", "http://localhost:8080")
	t.Setenv("DEFAULT_TIMEOUT", "5")
	t.Setenv("MAX_RETRIES", "1")
	t.Setenv("DEFAULT_TEST_SUITE", "safety")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ak-test", cfg.ArchonAPIKey)
	assert.Equal(t, "http://localhost:8080", cfg.ArchonBaseURL)
	assert.Equal(t, 5, cfg.DefaultTimeout)
	assert.Equal(t, 1, cfg.MaxRetries)
	assert.Equal(t, "safety", cfg.DefaultTestType)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("DEFAULT_TIMEOUT", "-2")
	_, err := Load()
	require.Error(t, err)

	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "DEFAULT_TIMEOUT", cfgErr.Var)
}

func TestLoadRejectsUnknownTestType(t *testing.T) {
	t.Setenv("DEFAULT_TIMEOUT", "")
	t.Setenv("DEFAULT_TEST_SUITE", "chaos")
	_, err := Load()
	assert.Error(t, err)
}

func TestRequireKeys(t *testing.T) {
	cfg := &Config{}
	require.Error(t, cfg.RequireArchonKey())
	require.Error(t, cfg.RequireOpenRouterKey())

	// Error text names the variable but never echoes a value.
	err := cfg.RequireArchonKey()
	assert.Contains(t, err.Error(), "ARCHON_API_KEY")

	cfg.ArchonAPIKey = "ak-secret"
	cfg.OpenRouterAPIKey = "or-secret"
	assert.NoError(t, cfg.RequireArchonKey())
	assert.NoError(t, cfg.RequireOpenRouterKey())
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"garbage", slog.LevelInfo},
	}

	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		assert.Equal(t, tt.want, cfg.SlogLevel(), "level %q", tt.level)
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("MAX_RETRIES", "lots")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxRetries)
}
