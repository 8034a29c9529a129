package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/archon-ai/agent-tester/internal/harness"
	"github.com/archon-ai/agent-tester/internal/testsuite"
)

func newTestCmd() *cobra.Command {
	var (
		testType     string
		suiteFile    string
		reportFormat string
		outputDir    string
		workers      int
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "test <agent-id>",
		Short: "Run a test suite against a deployed agent",
		Long: `Execute a test suite against an agent and print a summary.

Without --suite-file a suite is generated from the agent's declared
capabilities; --test-type selects which kind of suite to generate. A report
is written to the output directory when the run finishes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			agentID := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireArchonKey(); err != nil {
				return err
			}

			if !cmd.Flags().Changed("test-type") {
				testType = cfg.DefaultTestType
			}
			tt, err := testsuite.ParseTestType(testType)
			if err != nil {
				return err
			}

			h := newHarness(cfg, outputDir)

			fmt.Printf("Agent: %s\n", agentID)
			if suiteFile != "" {
				fmt.Printf("Test suite: %s\n", suiteFile)
			} else {
				fmt.Printf("Test suite: generated (%s)\n", tt)
			}
			fmt.Println()

			progress := newRunProgress()
			run, runErr := h.TestAgent(ctx, agentID, harness.TestOptions{
				TestType:  tt,
				SuiteFile: suiteFile,
				Workers:   workers,
				Progress:  progress.update,
			})
			progress.finish()
			if run == nil {
				return runErr
			}

			printRunSummary(run)

			path, err := h.GenerateReport(run.ID, reportFormat)
			if err != nil {
				return err
			}
			fmt.Printf("\nReport: %s\n", path)

			slog.Info("test run complete", "run_id", run.ID, "status", run.Status)
			if runErr != nil {
				return runErr
			}
			if run.Status != testsuite.StatusPassed {
				return fmt.Errorf("test run %s finished with status %s", run.ID, run.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&testType, "test-type", string(testsuite.TypeFunctional), "Generated suite type (functional, performance, reliability, safety, custom)")
	cmd.Flags().StringVar(&suiteFile, "suite-file", "", "Suite definition file to run instead of a generated suite")
	cmd.Flags().StringVar(&reportFormat, "report-format", "json", "Report format (json, html, markdown, csv)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "results", "Directory for test reports")
	cmd.Flags().IntVar(&workers, "workers", 1, "Number of test cases to run concurrently")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall timeout for the run (e.g. 10m). 0 means no timeout")

	return cmd
}

// runProgress renders a live bar with pass/fail counts. The engine may call
// the update callback from several workers at once.
type runProgress struct {
	mu     sync.Mutex
	bar    *progressbar.ProgressBar
	passed int
	failed int
}

func newRunProgress() *runProgress {
	return &runProgress{}
}

func (p *runProgress) update(completed, total int, result testsuite.TestResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription(p.describe()),
			progressbar.OptionSetWidth(40),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(os.Stderr, "\n")
			}),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	if result.Status == testsuite.StatusPassed {
		p.passed++
	} else {
		p.failed++
	}
	p.bar.Describe(p.describe())
	p.bar.Set(completed)
}

func (p *runProgress) describe() string {
	return color.CyanString("Running tests ") +
		color.GreenString("[passed: %d", p.passed) +
		" | " +
		color.RedString("failed: %d]", p.failed)
}

func (p *runProgress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Finish()
	}
}

func printRunSummary(run *testsuite.TestRun) {
	fmt.Printf("\nRun ID: %s\n", run.ID)
	fmt.Printf("Status: %s\n", colorStatus(run.Status))
	if run.EndTime != nil {
		fmt.Printf("Duration: %s\n", run.EndTime.Sub(run.StartTime).Round(time.Millisecond))
	}
	fmt.Printf("Results: %d total, %s, %s, %s, %d skipped\n",
		run.Summary["total"],
		color.GreenString("%d passed", run.Summary["passed"]),
		color.RedString("%d failed", run.Summary["failed"]),
		color.RedString("%d errors", run.Summary["error"]),
		run.Summary["skipped"],
	)
}

func colorStatus(s testsuite.Status) string {
	switch s {
	case testsuite.StatusPassed:
		return color.GreenString(string(s))
	case testsuite.StatusFailed, testsuite.StatusError:
		return color.RedString(string(s))
	default:
		return string(s)
	}
}
