package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/archon-ai/agent-tester/internal/archon"
	"github.com/archon-ai/agent-tester/internal/harness"
	"github.com/archon-ai/agent-tester/internal/server"
	"github.com/archon-ai/agent-tester/internal/testsuite"
)

func registerAgentTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// test_agent
	testTool := mcp.NewTool("test_agent",
		mcp.WithDescription("Run a test suite against an Archon agent and return the run summary. The suite is generated from the agent's capabilities unless a suite file is given."),
		mcp.WithString("agent_id",
			mcp.Required(),
			mcp.Description("ID of the agent to test"),
		),
		mcp.WithString("test_type",
			mcp.Description("Type of generated suite: functional, performance, reliability, safety (default: functional)"),
		),
		mcp.WithString("suite_file",
			mcp.Description("Suite definition file (YAML or JSON) relative to the suites directory, instead of a generated suite"),
		),
		mcp.WithString("report_format",
			mcp.Description("Also generate a report in this format: json, html, markdown, or csv"),
		),
		mcp.WithNumber("workers",
			mcp.Description("Number of test cases to run concurrently (default: 1)"),
		),
	)
	s.AddTool(testTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleTestAgent(ctx, request, sc)
	})

	// list_agents
	listAgentsTool := mcp.NewTool("list_agents",
		mcp.WithDescription("List agents available on the Archon platform"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of agents to return (default: 100)"),
		),
		mcp.WithNumber("offset",
			mcp.Description("Number of agents to skip (default: 0)"),
		),
	)
	s.AddTool(listAgentsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListAgents(ctx, request, sc)
	})

	// list_models
	listModelsTool := mcp.NewTool("list_models",
		mcp.WithDescription("List evaluation models available through OpenRouter"),
	)
	s.AddTool(listModelsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListModels(ctx, request, sc)
	})

	// create_test_case
	createTool := mcp.NewTool("create_test_case",
		mcp.WithDescription("Create and register a custom test case, optionally writing it to a file in the suites directory"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Test case name"),
		),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Prompt sent to the agent as the 'prompt' input"),
		),
		mcp.WithString("description",
			mcp.Description("Human description of what the case checks"),
		),
		mcp.WithString("test_type",
			mcp.Description("Test type: functional, performance, reliability, safety, custom (default: custom)"),
		),
		mcp.WithString("output_file",
			mcp.Description("File to write the case definition to (YAML or JSON), relative to the suites directory"),
		),
	)
	s.AddTool(createTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleCreateTestCase(ctx, request, sc)
	})

	return nil
}

func handleTestAgent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if sc.Harness == nil {
		return mcp.NewToolResultError("harness is not configured"), nil
	}

	args := request.GetArguments()

	agentID, ok := args["agent_id"].(string)
	if !ok || agentID == "" {
		return mcp.NewToolResultError("agent_id is required"), nil
	}

	opts := harness.TestOptions{}
	if tt, ok := args["test_type"].(string); ok && tt != "" {
		parsed, err := testsuite.ParseTestType(tt)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		opts.TestType = parsed
	}
	if sf, ok := args["suite_file"].(string); ok && sf != "" {
		path, err := resolveSuiteFilePath(sc.SuitesDir, sf)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid suite_file: %v", err)), nil
		}
		opts.SuiteFile = path
	}
	if workers, ok := args["workers"].(float64); ok && workers > 0 {
		opts.Workers = int(workers)
	}

	run, err := sc.Harness.TestAgent(ctx, agentID, opts)
	if err != nil {
		var notFound *archon.NotFoundError
		if errors.As(err, &notFound) && run == nil {
			return mcp.NewToolResultError(fmt.Sprintf("agent %q not found", agentID)), nil
		}
		if run == nil {
			return mcp.NewToolResultError(fmt.Sprintf("test run failed: %v", err)), nil
		}
		// The run aborted but was finalized; report it with the failure.
	}

	summary := map[string]any{
		"run_id":        run.ID,
		"agent_id":      run.AgentID,
		"test_suite_id": run.TestSuiteID,
		"status":        run.Status,
		"summary":       run.Summary,
	}
	if err != nil {
		summary["aborted"] = err.Error()
	}

	if format, ok := args["report_format"].(string); ok && format != "" {
		path, reportErr := sc.Harness.GenerateReport(run.ID, format)
		if reportErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run %s completed but report generation failed: %v", run.ID, reportErr)), nil
		}
		summary["report_file"] = path
	}

	return marshalResult(summary)
}

func handleListAgents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if sc.Harness == nil {
		return mcp.NewToolResultError("harness is not configured"), nil
	}

	args := request.GetArguments()
	limit := 100
	offset := 0
	if n, ok := args["limit"].(float64); ok && n > 0 {
		limit = int(n)
	}
	if n, ok := args["offset"].(float64); ok && n > 0 {
		offset = int(n)
	}

	agents, err := sc.Harness.ListAgents(ctx, limit, offset)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list agents: %v", err)), nil
	}
	return marshalResult(agents)
}

func handleListModels(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if sc.Harness == nil {
		return mcp.NewToolResultError("harness is not configured"), nil
	}

	models, err := sc.Harness.ListModels(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list models: %v", err)), nil
	}
	return marshalResult(models)
}

func handleCreateTestCase(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if sc.Harness == nil {
		return mcp.NewToolResultError("harness is not configured"), nil
	}

	args := request.GetArguments()

	name, _ := args["name"].(string)
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	prompt, _ := args["prompt"].(string)
	if prompt == "" {
		return mcp.NewToolResultError("prompt is required"), nil
	}

	testType := testsuite.TypeCustom
	if tt, ok := args["test_type"].(string); ok && tt != "" {
		parsed, err := testsuite.ParseTestType(tt)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		testType = parsed
	}
	description, _ := args["description"].(string)

	tc, err := sc.Harness.CreateTestCase(testsuite.TestCase{
		Name:               name,
		Description:        description,
		Type:               testType,
		Inputs:             testsuite.Values{"prompt": testsuite.StringValue(prompt)},
		EvaluationCriteria: testsuite.DefaultCriteria(),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create test case: %v", err)), nil
	}

	result := map[string]any{
		"test_case_id": tc.ID,
		"name":         tc.Name,
		"test_type":    tc.Type,
	}

	if outputFile, ok := args["output_file"].(string); ok && outputFile != "" {
		path, err := resolveSuiteFilePath(sc.SuitesDir, outputFile)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid output_file: %v", err)), nil
		}
		if err := testsuite.WriteCaseFile(path, tc); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to write test case file: %v", err)), nil
		}
		result["output_file"] = path
	}

	return marshalResult(result)
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
