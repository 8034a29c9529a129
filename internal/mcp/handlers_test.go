package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archon-ai/agent-tester/internal/archon"
	"github.com/archon-ai/agent-tester/internal/harness"
	"github.com/archon-ai/agent-tester/internal/openrouter"
	"github.com/archon-ai/agent-tester/internal/server"
	"github.com/archon-ai/agent-tester/internal/testsuite"
	"github.com/archon-ai/agent-tester/internal/testutil"
)

func newServerContext(t *testing.T, gateway *testutil.MockAgentGateway, models *testutil.MockModelGateway) *server.ServerContext {
	t.Helper()
	outputDir := t.TempDir()
	if models == nil {
		models = &testutil.MockModelGateway{}
	}
	return &server.ServerContext{
		Harness:     harness.New(gateway, models, outputDir),
		ModelClient: models,
		OutputDir:   outputDir,
		SuitesDir:   t.TempDir(),
	}
}

func requestWith(args map[string]any) mcp.CallToolRequest {
	request := mcp.CallToolRequest{}
	request.Params.Arguments = args
	return request
}

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	content, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return content.Text
}

func TestHandleTestAgent(t *testing.T) {
	gateway := &testutil.MockAgentGateway{
		Agents:          map[string]archon.AgentInfo{"agent-1": {ID: "agent-1", Name: "Helper"}},
		DefaultResponse: testsuite.Values{"response": testsuite.StringValue("hello")},
	}
	sc := newServerContext(t, gateway, nil)

	result, err := handleTestAgent(context.Background(), requestWith(map[string]any{
		"agent_id": "agent-1",
	}), sc)
	require.NoError(t, err)

	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &summary))
	assert.Equal(t, "agent-1", summary["agent_id"])
	assert.Equal(t, "passed", summary["status"])
	assert.NotEmpty(t, summary["run_id"])
}

func TestHandleTestAgentMissingRequired(t *testing.T) {
	sc := newServerContext(t, &testutil.MockAgentGateway{}, nil)

	result, err := handleTestAgent(context.Background(), requestWith(map[string]any{}), sc)
	require.NoError(t, err)
	assert.Contains(t, textContent(t, result), "agent_id is required")
}

func TestHandleTestAgentUnknownAgent(t *testing.T) {
	sc := newServerContext(t, &testutil.MockAgentGateway{}, nil)

	result, err := handleTestAgent(context.Background(), requestWith(map[string]any{
		"agent_id": "ghost",
	}), sc)
	require.NoError(t, err)
	assert.Contains(t, textContent(t, result), `agent "ghost" not found`)
}

func TestHandleTestAgentWithReport(t *testing.T) {
	gateway := &testutil.MockAgentGateway{
		Agents:          map[string]archon.AgentInfo{"agent-1": {ID: "agent-1", Name: "Helper"}},
		DefaultResponse: testsuite.Values{"response": testsuite.StringValue("hello")},
	}
	sc := newServerContext(t, gateway, nil)

	result, err := handleTestAgent(context.Background(), requestWith(map[string]any{
		"agent_id":      "agent-1",
		"report_format": "markdown",
	}), sc)
	require.NoError(t, err)

	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &summary))
	reportFile, ok := summary["report_file"].(string)
	require.True(t, ok)
	assert.FileExists(t, reportFile)
}

func TestHandleTestAgentRejectsEscapingSuiteFile(t *testing.T) {
	sc := newServerContext(t, &testutil.MockAgentGateway{}, nil)

	result, err := handleTestAgent(context.Background(), requestWith(map[string]any{
		"agent_id":   "agent-1",
		"suite_file": "../../etc/passwd",
	}), sc)
	require.NoError(t, err)
	assert.Contains(t, textContent(t, result), "invalid suite_file")
}

func TestHandleListAgents(t *testing.T) {
	gateway := &testutil.MockAgentGateway{
		Agents: map[string]archon.AgentInfo{
			"a": {ID: "a", Name: "Alpha"},
			"b": {ID: "b", Name: "Beta"},
		},
	}
	sc := newServerContext(t, gateway, nil)

	result, err := handleListAgents(context.Background(), requestWith(map[string]any{
		"limit": float64(1),
	}), sc)
	require.NoError(t, err)

	var agents []map[string]any
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &agents))
	require.Len(t, agents, 1)
	assert.Equal(t, "a", agents[0]["id"])
}

func TestHandleListModels(t *testing.T) {
	models := &testutil.MockModelGateway{
		Models: []openrouter.ModelInfo{{ID: "mistralai/mistral-7b-instruct"}},
	}
	sc := newServerContext(t, &testutil.MockAgentGateway{}, models)

	result, err := handleListModels(context.Background(), mcp.CallToolRequest{}, sc)
	require.NoError(t, err)
	assert.Contains(t, textContent(t, result), "mistralai/mistral-7b-instruct")
}

func TestHandleCreateTestCase(t *testing.T) {
	sc := newServerContext(t, &testutil.MockAgentGateway{}, nil)

	result, err := handleCreateTestCase(context.Background(), requestWith(map[string]any{
		"name":        "greeting",
		"prompt":      "say hi",
		"test_type":   "functional",
		"output_file": "greeting.yaml",
	}), sc)
	require.NoError(t, err)

	var created map[string]any
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &created))
	assert.NotEmpty(t, created["test_case_id"])
	assert.Equal(t, "functional", created["test_type"])

	outputFile, ok := created["output_file"].(string)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(sc.SuitesDir, "greeting.yaml"), outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "greeting")
}

func TestHandleCreateTestCaseMissingRequired(t *testing.T) {
	sc := newServerContext(t, &testutil.MockAgentGateway{}, nil)

	result, err := handleCreateTestCase(context.Background(), requestWith(map[string]any{
		"prompt": "say hi",
	}), sc)
	require.NoError(t, err)
	assert.Contains(t, textContent(t, result), "name is required")

	result, err = handleCreateTestCase(context.Background(), requestWith(map[string]any{
		"name": "greeting",
	}), sc)
	require.NoError(t, err)
	assert.Contains(t, textContent(t, result), "prompt is required")
}

func TestHandleGetRunAndListRuns(t *testing.T) {
	gateway := &testutil.MockAgentGateway{
		Agents:          map[string]archon.AgentInfo{"agent-1": {ID: "agent-1", Name: "Helper"}},
		DefaultResponse: testsuite.Values{"response": testsuite.StringValue("hello")},
	}
	sc := newServerContext(t, gateway, nil)

	run, err := sc.Harness.TestAgent(context.Background(), "agent-1", harness.TestOptions{})
	require.NoError(t, err)

	result, err := handleGetRun(context.Background(), requestWith(map[string]any{
		"run_id": run.ID,
	}), sc)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &doc))
	runDoc := doc["run"].(map[string]any)
	assert.Equal(t, run.ID, runDoc["id"])
	assert.NotEmpty(t, doc["results"])

	result, err = handleListRuns(context.Background(), mcp.CallToolRequest{}, sc)
	require.NoError(t, err)
	assert.Contains(t, textContent(t, result), run.ID)
}

func TestHandleGetRunUnknown(t *testing.T) {
	sc := newServerContext(t, &testutil.MockAgentGateway{}, nil)

	result, err := handleGetRun(context.Background(), requestWith(map[string]any{
		"run_id": "ghost",
	}), sc)
	require.NoError(t, err)
	assert.Contains(t, textContent(t, result), `run "ghost" not found`)
}

func TestHandleGenerateReportUnknownRun(t *testing.T) {
	sc := newServerContext(t, &testutil.MockAgentGateway{}, nil)

	result, err := handleGenerateReport(context.Background(), requestWith(map[string]any{
		"run_id": "ghost",
	}), sc)
	require.NoError(t, err)
	assert.Contains(t, textContent(t, result), "report generation failed")
}

func TestHandleScoreReport(t *testing.T) {
	gateway := &testutil.MockAgentGateway{
		Agents:          map[string]archon.AgentInfo{"agent-1": {ID: "agent-1", Name: "Helper"}},
		DefaultResponse: testsuite.Values{"response": testsuite.StringValue("hello")},
	}
	models := &testutil.MockModelGateway{
		DefaultResponse: "2 out of 2 responses are satisfactory.",
	}
	sc := newServerContext(t, gateway, models)

	run, err := sc.Harness.TestAgent(context.Background(), "agent-1", harness.TestOptions{})
	require.NoError(t, err)
	reportPath, err := sc.Harness.GenerateReport(run.ID, "json")
	require.NoError(t, err)

	rel, err := filepath.Rel(sc.OutputDir, reportPath)
	require.NoError(t, err)

	result, err := handleScoreReport(context.Background(), requestWith(map[string]any{
		"report_file": rel,
		"repetitions": float64(2),
	}), sc)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &doc))
	reviewFile, ok := doc["review_file"].(string)
	require.True(t, ok)
	assert.FileExists(t, reviewFile)

	summary, ok := doc["summary"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, summary["mean_satisfactory"])
	assert.Equal(t, 2, models.Calls)
}

func TestHandleScoreReportRejectsEscapingPath(t *testing.T) {
	sc := newServerContext(t, &testutil.MockAgentGateway{}, nil)

	result, err := handleScoreReport(context.Background(), requestWith(map[string]any{
		"report_file": "../secrets.json",
	}), sc)
	require.NoError(t, err)
	assert.Contains(t, textContent(t, result), "invalid report_file")
}

func TestHandleScoreReportWithoutModelClient(t *testing.T) {
	sc := &server.ServerContext{}

	result, err := handleScoreReport(context.Background(), requestWith(map[string]any{
		"report_file": "report.json",
	}), sc)
	require.NoError(t, err)
	assert.Contains(t, textContent(t, result), "model client is not configured")
}

func TestHandlersWithoutHarness(t *testing.T) {
	sc := &server.ServerContext{}

	result, err := handleTestAgent(context.Background(), requestWith(map[string]any{"agent_id": "a"}), sc)
	require.NoError(t, err)
	assert.Contains(t, textContent(t, result), "harness is not configured")
}

func TestResolveSuiteFilePath(t *testing.T) {
	dir := t.TempDir()

	path, err := resolveSuiteFilePath(dir, "suite.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "suite.yaml"), path)

	_, err = resolveSuiteFilePath(dir, "../outside.yaml")
	require.Error(t, err)

	_, err = resolveSuiteFilePath(dir, "  ")
	require.Error(t, err)
}
