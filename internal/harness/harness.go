// Package harness wires the gateways, the execution engine, and the report
// generator into one facade. Callers (CLI and MCP tools) go through the
// harness and handle a single error surface.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/archon-ai/agent-tester/internal/archon"
	"github.com/archon-ai/agent-tester/internal/engine"
	"github.com/archon-ai/agent-tester/internal/openrouter"
	"github.com/archon-ai/agent-tester/internal/report"
	"github.com/archon-ai/agent-tester/internal/testsuite"
)

// AgentGateway is the full Archon API surface the harness consumes.
type AgentGateway interface {
	GetAgent(ctx context.Context, agentID string) (*archon.AgentInfo, error)
	ListAgents(ctx context.Context, limit, offset int) ([]archon.AgentInfo, error)
	InvokeAgent(ctx context.Context, agentID string, inputs testsuite.Values) (testsuite.Values, error)
	GetAgentMetrics(ctx context.Context, agentID string) (map[string]any, error)
	UpdateAgentMetadata(ctx context.Context, agentID string, metadata map[string]any) (*archon.AgentInfo, error)
}

// ModelGateway lists the models available for evaluation.
type ModelGateway interface {
	ListModels(ctx context.Context) ([]openrouter.ModelInfo, error)
}

// Error is the single error type escaping the harness. The cause is always
// reachable through errors.Is/As.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("agent-tester: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// Harness owns the registry, the engine, and the report generator for the
// process lifetime.
type Harness struct {
	agents   AgentGateway
	models   ModelGateway
	registry *engine.Registry
	engine   *engine.Engine
	reports  *report.Generator
}

// New creates a harness. Reports are written under outputDir.
func New(agents AgentGateway, models ModelGateway, outputDir string) *Harness {
	registry := engine.NewRegistry()
	return &Harness{
		agents:   agents,
		models:   models,
		registry: registry,
		engine:   engine.New(agents, registry),
		reports:  report.NewGenerator(outputDir),
	}
}

// TestOptions configures one TestAgent call.
type TestOptions struct {
	// TestType selects the generated suite when no suite is given.
	TestType testsuite.TestType
	// SuiteID runs an already-registered suite instead of generating one.
	SuiteID string
	// SuiteFile loads a suite definition file instead of generating one.
	SuiteFile string
	// Workers sets how many cases run concurrently; zero means sequential.
	Workers int
	// Progress is called after each case completes.
	Progress engine.ProgressFunc
}

// TestAgent verifies the agent exists, obtains a suite, executes it, and
// posts summary metrics back to the agent record. An unknown agent fails
// before any run is registered. The returned run is registered and finalized
// even when the run aborted, in which case the error is non-nil as well.
func (h *Harness) TestAgent(ctx context.Context, agentID string, opts TestOptions) (*testsuite.TestRun, error) {
	const op = "test agent"

	agent, err := h.agents.GetAgent(ctx, agentID)
	if err != nil {
		return nil, wrap(op, err)
	}

	suiteID, err := h.resolveSuite(agent, opts)
	if err != nil {
		return nil, wrap(op, err)
	}

	run, runErr := h.engine.ExecuteSuite(ctx, suiteID, agentID, engine.RunOptions{
		Workers:  opts.Workers,
		Progress: opts.Progress,
	})
	if run != nil {
		h.postRunMetadata(ctx, agentID, run)
	}
	if runErr != nil {
		return run, wrap(op, runErr)
	}
	return run, nil
}

// resolveSuite picks the suite to run: pre-registered, loaded from a file,
// or generated from the agent's declared capabilities.
func (h *Harness) resolveSuite(agent *archon.AgentInfo, opts TestOptions) (string, error) {
	if opts.SuiteID != "" {
		suite, err := h.registry.TestSuite(opts.SuiteID)
		if err != nil {
			return "", err
		}
		return suite.ID, nil
	}

	if opts.SuiteFile != "" {
		suite, cases, err := testsuite.LoadSuiteFile(opts.SuiteFile)
		if err != nil {
			return "", err
		}
		for _, tc := range cases {
			h.registry.PutTestCase(tc)
		}
		h.registry.PutTestSuite(suite)
		return suite.ID, nil
	}

	testType := opts.TestType
	if testType == "" {
		testType = testsuite.TypeFunctional
	}
	cases, err := archon.GenerateTestCases(agent, testType)
	if err != nil {
		return "", err
	}
	ids := make([]string, 0, len(cases))
	for _, tc := range cases {
		h.registry.PutTestCase(tc)
		ids = append(ids, tc.ID)
	}
	suite, err := testsuite.NewTestSuite(testsuite.TestSuite{
		Name:        archon.SuiteName(agent, testType),
		Description: archon.SuiteDescription(agent, testType),
		TestCases:   ids,
		Tags:        []string{string(testType), "generated"},
	})
	if err != nil {
		return "", err
	}
	h.registry.PutTestSuite(suite)
	return suite.ID, nil
}

// postRunMetadata records the run summary on the agent. Failure is logged,
// never fatal: the run itself already succeeded or failed on its own terms.
func (h *Harness) postRunMetadata(ctx context.Context, agentID string, run *testsuite.TestRun) {
	metadata := map[string]any{
		"last_test_run": map[string]any{
			"run_id":    run.ID,
			"status":    string(run.Status),
			"summary":   run.Summary,
			"tested_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if _, err := h.agents.UpdateAgentMetadata(ctx, agentID, metadata); err != nil {
		slog.Warn("failed to post run summary to agent metadata",
			"agent_id", agentID,
			"run_id", run.ID,
			"error", err,
		)
	}
}

// GenerateReport renders a registered run in the given format and returns
// the path of the written document.
func (h *Harness) GenerateReport(runID string, format string) (string, error) {
	const op = "generate report"

	f, err := report.ParseFormat(format)
	if err != nil {
		return "", wrap(op, err)
	}
	bundle, err := h.RunBundle(runID)
	if err != nil {
		return "", wrap(op, err)
	}
	path, err := h.reports.Generate(bundle, f)
	if err != nil {
		return "", wrap(op, err)
	}
	return path, nil
}

// RunBundle collects a run together with the suite, cases, and results it
// references.
func (h *Harness) RunBundle(runID string) (report.Bundle, error) {
	run, err := h.registry.TestRun(runID)
	if err != nil {
		return report.Bundle{}, err
	}

	results := h.registry.ResultsForRun(run)
	cases := make(map[string]testsuite.TestCase, len(results))
	for _, res := range results {
		if _, ok := cases[res.TestCaseID]; ok {
			continue
		}
		if tc, err := h.registry.TestCase(res.TestCaseID); err == nil {
			cases[res.TestCaseID] = tc
		}
	}

	// The suite may be gone when the run outlives a re-registration; the
	// report degrades to ids in that case.
	suite, err := h.registry.TestSuite(run.TestSuiteID)
	if err != nil {
		suite = testsuite.TestSuite{ID: run.TestSuiteID, Name: run.TestSuiteID}
	}

	return report.Bundle{
		Run:     run,
		Suite:   suite,
		Cases:   cases,
		Results: results,
	}, nil
}

// GetAgent fetches one agent.
func (h *Harness) GetAgent(ctx context.Context, agentID string) (*archon.AgentInfo, error) {
	agent, err := h.agents.GetAgent(ctx, agentID)
	return agent, wrap("get agent", err)
}

// ListAgents fetches a page of agents.
func (h *Harness) ListAgents(ctx context.Context, limit, offset int) ([]archon.AgentInfo, error) {
	agents, err := h.agents.ListAgents(ctx, limit, offset)
	return agents, wrap("list agents", err)
}

// GetAgentMetrics fetches operational metrics for one agent.
func (h *Harness) GetAgentMetrics(ctx context.Context, agentID string) (map[string]any, error) {
	metrics, err := h.agents.GetAgentMetrics(ctx, agentID)
	return metrics, wrap("get agent metrics", err)
}

// ListModels lists the models available through the model gateway.
func (h *Harness) ListModels(ctx context.Context) ([]openrouter.ModelInfo, error) {
	models, err := h.models.ListModels(ctx)
	return models, wrap("list models", err)
}

// CreateTestCase validates and registers a test case, assigning an id when
// the caller leaves it empty.
func (h *Harness) CreateTestCase(tc testsuite.TestCase) (testsuite.TestCase, error) {
	built, err := testsuite.NewTestCase(tc)
	if err != nil {
		return testsuite.TestCase{}, wrap("create test case", err)
	}
	h.registry.PutTestCase(built)
	return built, nil
}

// CreateTestSuite validates and registers a test suite.
func (h *Harness) CreateTestSuite(s testsuite.TestSuite) (testsuite.TestSuite, error) {
	built, err := testsuite.NewTestSuite(s)
	if err != nil {
		return testsuite.TestSuite{}, wrap("create test suite", err)
	}
	h.registry.PutTestSuite(built)
	return built, nil
}

// GetRun returns a registered run. During execution the stored snapshot
// already reflects live progress.
func (h *Harness) GetRun(runID string) (testsuite.TestRun, error) {
	run, err := h.registry.TestRun(runID)
	return run, wrap("get run", err)
}

// ListRuns returns all runs, most recent first.
func (h *Harness) ListRuns() []testsuite.TestRun {
	return h.registry.TestRuns()
}
