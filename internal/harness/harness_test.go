package harness

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archon-ai/agent-tester/internal/archon"
	"github.com/archon-ai/agent-tester/internal/engine"
	"github.com/archon-ai/agent-tester/internal/openrouter"
	"github.com/archon-ai/agent-tester/internal/testsuite"
	"github.com/archon-ai/agent-tester/internal/testutil"
)

func newTestHarness(t *testing.T, gateway *testutil.MockAgentGateway) *Harness {
	t.Helper()
	return New(gateway, &testutil.MockModelGateway{}, t.TempDir())
}

func TestTestAgentGeneratedSuite(t *testing.T) {
	gateway := &testutil.MockAgentGateway{
		Agents: map[string]archon.AgentInfo{
			"agent-1": {ID: "agent-1", Name: "Helper", Capabilities: []string{"summarization"}},
		},
		DefaultResponse: testsuite.Values{"response": testsuite.StringValue("hello")},
	}
	h := newTestHarness(t, gateway)

	run, err := h.TestAgent(context.Background(), "agent-1", TestOptions{})
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, testsuite.StatusPassed, run.Status)
	// Basic response plus one case per capability.
	assert.Equal(t, 2, run.Summary["total"])
	assert.Equal(t, 2, run.Summary["passed"])

	// Summary metrics were posted back to the agent record.
	require.Contains(t, gateway.UpdatedMetadata, "agent-1")
	lastRun, ok := gateway.UpdatedMetadata["agent-1"]["last_test_run"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, run.ID, lastRun["run_id"])
	assert.Equal(t, "passed", lastRun["status"])
}

func TestTestAgentUnknownAgent(t *testing.T) {
	h := newTestHarness(t, &testutil.MockAgentGateway{})

	_, err := h.TestAgent(context.Background(), "missing", TestOptions{})
	require.Error(t, err)

	var harnessErr *Error
	require.ErrorAs(t, err, &harnessErr)
	var notFound *archon.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	// The verification failed before any run was created.
	assert.Empty(t, h.ListRuns())
}

func TestTestAgentMetadataFailureNotFatal(t *testing.T) {
	gateway := &testutil.MockAgentGateway{
		Agents:    map[string]archon.AgentInfo{"agent-1": {ID: "agent-1", Name: "Helper"}},
		UpdateErr: errors.New("metadata endpoint down"),
	}
	h := newTestHarness(t, gateway)

	run, err := h.TestAgent(context.Background(), "agent-1", TestOptions{})
	require.NoError(t, err)
	assert.Equal(t, testsuite.StatusPassed, run.Status)
}

func TestTestAgentSuiteFile(t *testing.T) {
	suiteFile := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(suiteFile, []byte(`
name: File Suite
test_cases:
  - name: greeting
    inputs:
      prompt: say hi
    evaluation_criteria:
      response_not_empty: the agent answers
`), 0o644))

	gateway := &testutil.MockAgentGateway{
		Agents:          map[string]archon.AgentInfo{"agent-1": {ID: "agent-1", Name: "Helper"}},
		DefaultResponse: testsuite.Values{"response": testsuite.StringValue("hi")},
	}
	h := newTestHarness(t, gateway)

	run, err := h.TestAgent(context.Background(), "agent-1", TestOptions{SuiteFile: suiteFile})
	require.NoError(t, err)
	assert.Equal(t, testsuite.StatusPassed, run.Status)
	assert.Equal(t, 1, run.Summary["total"])

	suite, err := h.registry.TestSuite(run.TestSuiteID)
	require.NoError(t, err)
	assert.Equal(t, "File Suite", suite.Name)
}

func TestTestAgentUnknownSuiteID(t *testing.T) {
	gateway := &testutil.MockAgentGateway{
		Agents: map[string]archon.AgentInfo{"agent-1": {ID: "agent-1", Name: "Helper"}},
	}
	h := newTestHarness(t, gateway)

	_, err := h.TestAgent(context.Background(), "agent-1", TestOptions{SuiteID: "nope"})
	require.Error(t, err)
	var notFound *engine.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, engine.KindTestSuite, notFound.Kind)
}

func TestGenerateReport(t *testing.T) {
	gateway := &testutil.MockAgentGateway{
		Agents:          map[string]archon.AgentInfo{"agent-1": {ID: "agent-1", Name: "Helper"}},
		DefaultResponse: testsuite.Values{"response": testsuite.StringValue("hello")},
	}
	h := newTestHarness(t, gateway)

	run, err := h.TestAgent(context.Background(), "agent-1", TestOptions{})
	require.NoError(t, err)

	path, err := h.GenerateReport(run.ID, "json")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	runDoc := doc["run"].(map[string]any)
	assert.Equal(t, run.ID, runDoc["id"])
	assert.NotNil(t, doc["summary"])
}

func TestGenerateReportUnknownRun(t *testing.T) {
	h := newTestHarness(t, &testutil.MockAgentGateway{})

	_, err := h.GenerateReport("missing-run", "json")
	require.Error(t, err)
	var notFound *engine.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, engine.KindTestRun, notFound.Kind)
}

func TestGenerateReportUnknownFormat(t *testing.T) {
	h := newTestHarness(t, &testutil.MockAgentGateway{})

	_, err := h.GenerateReport("whatever", "pdf")
	require.Error(t, err)
	var harnessErr *Error
	assert.ErrorAs(t, err, &harnessErr)
}

func TestCreateTestCaseValidation(t *testing.T) {
	h := newTestHarness(t, &testutil.MockAgentGateway{})

	_, err := h.CreateTestCase(testsuite.TestCase{Name: "no criteria"})
	require.Error(t, err)

	tc, err := h.CreateTestCase(testsuite.TestCase{
		Name:               "ok",
		Inputs:             testsuite.Values{"prompt": testsuite.StringValue("hi")},
		EvaluationCriteria: testsuite.DefaultCriteria(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tc.ID)

	stored, err := h.registry.TestCase(tc.ID)
	require.NoError(t, err)
	assert.Equal(t, "ok", stored.Name)
}

func TestListModels(t *testing.T) {
	models := &testutil.MockModelGateway{
		Models: []openrouter.ModelInfo{{ID: "meta-llama/llama-3-8b"}},
	}
	h := New(&testutil.MockAgentGateway{}, models, t.TempDir())

	got, err := h.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "meta-llama/llama-3-8b", got[0].ID)
}

func TestTestAgentConcurrentCalls(t *testing.T) {
	gateway := &testutil.MockAgentGateway{
		Agents: map[string]archon.AgentInfo{
			"agent-1": {ID: "agent-1", Name: "Helper", Capabilities: []string{"summarization"}},
			"agent-2": {ID: "agent-2", Name: "Router", Capabilities: []string{"routing", "planning"}},
		},
		DefaultResponse: testsuite.Values{"response": testsuite.StringValue("hello")},
	}
	h := newTestHarness(t, gateway)

	// Each call carries its own workers and progress callback; one run's
	// options must never leak into the other.
	var mu sync.Mutex
	completions := map[string]int{}
	progressFor := func(agentID string) engine.ProgressFunc {
		return func(_, _ int, _ testsuite.TestResult) {
			mu.Lock()
			completions[agentID]++
			mu.Unlock()
		}
	}

	var wg sync.WaitGroup
	runs := make([]*testsuite.TestRun, 2)
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		runs[0], errs[0] = h.TestAgent(context.Background(), "agent-1",
			TestOptions{Progress: progressFor("agent-1")})
	}()
	go func() {
		defer wg.Done()
		runs[1], errs[1] = h.TestAgent(context.Background(), "agent-2",
			TestOptions{Workers: 2, Progress: progressFor("agent-2")})
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// Basic response plus one case per capability.
	assert.Equal(t, 2, runs[0].Summary["total"])
	assert.Equal(t, 3, runs[1].Summary["total"])
	assert.Equal(t, 2, completions["agent-1"])
	assert.Equal(t, 3, completions["agent-2"])
	assert.Len(t, h.ListRuns(), 2)
}

func TestGetRunLiveProgress(t *testing.T) {
	gateway := &testutil.MockAgentGateway{
		Agents:          map[string]archon.AgentInfo{"agent-1": {ID: "agent-1", Name: "Helper"}},
		DefaultResponse: testsuite.Values{"response": testsuite.StringValue("hello")},
	}
	h := newTestHarness(t, gateway)

	var midRun testsuite.TestRun
	var midErr error
	opts := TestOptions{
		Progress: func(completed, total int, _ testsuite.TestResult) {
			if completed == 1 {
				runs := h.ListRuns()
				if len(runs) == 1 {
					midRun, midErr = h.GetRun(runs[0].ID)
				}
			}
		},
	}

	run, err := h.TestAgent(context.Background(), "agent-1", opts)
	require.NoError(t, err)

	require.NoError(t, midErr)
	assert.Equal(t, run.ID, midRun.ID)
	assert.Equal(t, 1, midRun.Summary["total"])
}
