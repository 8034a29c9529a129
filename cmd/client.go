package cmd

import (
	"github.com/spf13/cobra"

	"github.com/archon-ai/agent-tester/internal/archon"
	"github.com/archon-ai/agent-tester/internal/config"
	"github.com/archon-ai/agent-tester/internal/harness"
	"github.com/archon-ai/agent-tester/internal/openrouter"
)

// loadConfig reads the environment configuration and applies key overrides
// from the persistent CLI flags. Flags win over the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if key, _ := cmd.Flags().GetString("archon-api-key"); key != "" {
		cfg.ArchonAPIKey = key
	}
	if key, _ := cmd.Flags().GetString("openrouter-api-key"); key != "" {
		cfg.OpenRouterAPIKey = key
	}
	return cfg, nil
}

// newAgentClient creates the Archon API client from the configuration.
func newAgentClient(cfg *config.Config) *archon.Client {
	return archon.NewClient(
		archon.WithBaseURL(cfg.ArchonBaseURL),
		archon.WithAPIKey(cfg.ArchonAPIKey),
		archon.WithMaxRetries(cfg.MaxRetries),
	)
}

// newModelClient creates the OpenRouter client from the configuration.
func newModelClient(cfg *config.Config) *openrouter.APIClient {
	return openrouter.NewClient(
		openrouter.WithBaseURL(cfg.OpenRouterBaseURL),
		openrouter.WithAPIKey(cfg.OpenRouterAPIKey),
	)
}

// newHarness wires both gateways into a harness writing reports under
// outputDir.
func newHarness(cfg *config.Config, outputDir string) *harness.Harness {
	return harness.New(newAgentClient(cfg), newModelClient(cfg), outputDir)
}
