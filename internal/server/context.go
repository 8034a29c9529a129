package server

import (
	"github.com/archon-ai/agent-tester/internal/harness"
	"github.com/archon-ai/agent-tester/internal/openrouter"
)

// ServerContext holds shared dependencies for MCP tool handlers.
type ServerContext struct {
	Harness *harness.Harness

	// ModelClient backs the LLM judge behind the score_report tool.
	ModelClient openrouter.Client

	// OutputDir is where reports land; report paths supplied to tools are
	// confined to it.
	OutputDir string

	SuitesDir string // external test suites directory (optional)
}
