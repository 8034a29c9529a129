// Package config loads runtime settings from the environment, with optional
// .env file support for local development.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/archon-ai/agent-tester/internal/testsuite"
)

const (
	// DefaultArchonBaseURL is the production Archon API endpoint.
	DefaultArchonBaseURL = "https://api.archon.ai"
	// DefaultOpenRouterBaseURL is the OpenRouter API endpoint.
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// Config carries every runtime setting. API keys are kept here and handed to
// clients; they must never appear in log lines or error messages.
type Config struct {
	ArchonAPIKey      string
	ArchonBaseURL     string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string

	// DefaultTimeout is the per-case invocation bound in seconds.
	DefaultTimeout int
	// MaxRetries bounds retry attempts for retryable Archon API calls.
	MaxRetries int
	// DefaultTestType selects the generated suite when none is requested.
	DefaultTestType string

	LogLevel string
}

// Error reports a missing or invalid setting. It names the variable only,
// never its value.
type Error struct {
	Var    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Var, e.Reason)
}

// Load reads settings from the environment. A .env file in the working
// directory is merged in when present; real environment variables win.
func Load() (*Config, error) {
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := &Config{
		ArchonAPIKey:      os.Getenv("ARCHON_API_KEY"),
		ArchonBaseURL:     getEnv("ARCHON_API_BASE_URL", DefaultArchonBaseURL),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL: getEnv("OPENROUTER_API_BASE_URL", DefaultOpenRouterBaseURL),
		DefaultTimeout:    getEnvInt("DEFAULT_TIMEOUT", int(testsuite.DefaultCaseTimeout.Seconds())),
		MaxRetries:        getEnvInt("MAX_RETRIES", 3),
		DefaultTestType:   getEnv("DEFAULT_TEST_SUITE", string(testsuite.TypeFunctional)),
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
	}

	if cfg.DefaultTimeout <= 0 {
		return nil, &Error{Var: "DEFAULT_TIMEOUT", Reason: "must be a positive number of seconds"}
	}
	if cfg.MaxRetries < 0 {
		return nil, &Error{Var: "MAX_RETRIES", Reason: "must not be negative"}
	}
	if _, err := testsuite.ParseTestType(cfg.DefaultTestType); err != nil {
		return nil, &Error{Var: "DEFAULT_TEST_SUITE", Reason: err.Error()}
	}

	return cfg, nil
}

// RequireArchonKey fails when no Archon API key is configured.
func (c *Config) RequireArchonKey() error {
	if c.ArchonAPIKey == "" {
		return &Error{Var: "ARCHON_API_KEY", Reason: "is required (set the environment variable or pass --archon-api-key)"}
	}
	return nil
}

// RequireOpenRouterKey fails when no OpenRouter API key is configured.
func (c *Config) RequireOpenRouterKey() error {
	if c.OpenRouterAPIKey == "" {
		return &Error{Var: "OPENROUTER_API_KEY", Reason: "is required (set the environment variable or pass --openrouter-api-key)"}
	}
	return nil
}

// SlogLevel maps the configured log level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring non-numeric environment variable", "var", key)
		return fallback
	}
	return n
}
