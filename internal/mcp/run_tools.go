package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/archon-ai/agent-tester/internal/judge"
	"github.com/archon-ai/agent-tester/internal/server"
)

func registerRunTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// get_run
	getRunTool := mcp.NewTool("get_run",
		mcp.WithDescription("Retrieve a test run with its results. Works for in-progress runs: the summary reflects the results recorded so far."),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("ID of the test run"),
		),
	)
	s.AddTool(getRunTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetRun(ctx, request, sc)
	})

	// list_runs
	listRunsTool := mcp.NewTool("list_runs",
		mcp.WithDescription("List all test runs of this process, most recent first"),
	)
	s.AddTool(listRunsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListRuns(ctx, request, sc)
	})

	// generate_report
	reportTool := mcp.NewTool("generate_report",
		mcp.WithDescription("Render a completed test run as a report document"),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("ID of the test run to report on"),
		),
		mcp.WithString("format",
			mcp.Description("Report format: json, html, markdown, or csv (default: json)"),
		),
	)
	s.AddTool(reportTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGenerateReport(ctx, request, sc)
	})

	// score_report
	scoreTool := mcp.NewTool("score_report",
		mcp.WithDescription("Grade a generated JSON report with an LLM judge and write the review next to it"),
		mcp.WithString("report_file",
			mcp.Required(),
			mcp.Description("Path of a JSON report relative to the output directory"),
		),
		mcp.WithString("model",
			mcp.Description("Judging model name (default: "+judge.DefaultModel+")"),
		),
		mcp.WithNumber("repetitions",
			mcp.Description("Number of judging passes (default: 3)"),
		),
	)
	s.AddTool(scoreTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleScoreReport(ctx, request, sc)
	})

	return nil
}

func handleGetRun(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if sc.Harness == nil {
		return mcp.NewToolResultError("harness is not configured"), nil
	}

	args := request.GetArguments()
	runID, _ := args["run_id"].(string)
	if runID == "" {
		return mcp.NewToolResultError("run_id is required"), nil
	}

	bundle, err := sc.Harness.RunBundle(runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run %q not found", runID)), nil
	}

	results := make([]map[string]any, 0, len(bundle.Results))
	for _, res := range bundle.Results {
		entry := map[string]any{
			"id":           res.ID,
			"test_case_id": res.TestCaseID,
			"status":       res.Status,
		}
		if tc, ok := bundle.Cases[res.TestCaseID]; ok {
			entry["test_case_name"] = tc.Name
		}
		if res.DurationMS != nil {
			entry["duration_ms"] = *res.DurationMS
		}
		if len(res.Errors) > 0 {
			entry["errors"] = res.Errors
		}
		results = append(results, entry)
	}

	return marshalResult(map[string]any{
		"run":     bundle.Run,
		"suite":   bundle.Suite.Name,
		"results": results,
	})
}

func handleListRuns(_ context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if sc.Harness == nil {
		return mcp.NewToolResultError("harness is not configured"), nil
	}

	runs := sc.Harness.ListRuns()
	entries := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		entries = append(entries, map[string]any{
			"run_id":        run.ID,
			"agent_id":      run.AgentID,
			"test_suite_id": run.TestSuiteID,
			"status":        run.Status,
			"start_time":    run.StartTime,
			"summary":       run.Summary,
		})
	}
	return marshalResult(entries)
}

func handleGenerateReport(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if sc.Harness == nil {
		return mcp.NewToolResultError("harness is not configured"), nil
	}

	args := request.GetArguments()
	runID, _ := args["run_id"].(string)
	if runID == "" {
		return mcp.NewToolResultError("run_id is required"), nil
	}
	format, _ := args["format"].(string)
	if format == "" {
		format = "json"
	}

	path, err := sc.Harness.GenerateReport(runID, format)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("report generation failed: %v", err)), nil
	}

	return marshalResult(map[string]any{
		"run_id":      runID,
		"format":      format,
		"report_file": path,
	})
}

func handleScoreReport(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if sc.ModelClient == nil {
		return mcp.NewToolResultError("model client is not configured"), nil
	}

	args := request.GetArguments()
	reportFile, _ := args["report_file"].(string)
	if reportFile == "" {
		return mcp.NewToolResultError("report_file is required"), nil
	}
	path, err := resolvePathWithinBase(sc.OutputDir, reportFile)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid report_file: %v", err)), nil
	}

	cfg := judge.Config{}
	if model, ok := args["model"].(string); ok {
		cfg.Model = model
	}
	if reps, ok := args["repetitions"].(float64); ok && reps > 0 {
		cfg.Repetitions = int(reps)
	}

	j := judge.New(sc.ModelClient, cfg)
	review, err := j.ReviewFile(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("judging failed: %v", err)), nil
	}
	reviewFile, err := judge.WriteReviewFile(review, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to write review: %v", err)), nil
	}

	return marshalResult(map[string]any{
		"report_file": path,
		"review_file": reviewFile,
		"summary":     review.Summary,
	})
}
