// Package engine executes test suites against agents and owns the result
// lifecycle: every started case ends in exactly one terminal status, and a
// run's summary always reflects the results recorded so far.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/archon-ai/agent-tester/internal/archon"
	"github.com/archon-ai/agent-tester/internal/evaluator"
	"github.com/archon-ai/agent-tester/internal/testsuite"
)

// AgentGateway is the slice of the Archon API the engine needs to execute
// test cases.
type AgentGateway interface {
	InvokeAgent(ctx context.Context, agentID string, inputs testsuite.Values) (testsuite.Values, error)
}

// ProgressFunc is called after each case completes during a run.
type ProgressFunc func(completed, total int, result testsuite.TestResult)

// RunOptions configures a single ExecuteSuite call. Options belong to the
// run, not the engine, so concurrent runs over the same engine cannot
// cross-wire each other's worker counts or progress callbacks.
type RunOptions struct {
	// Workers sets how many cases may run concurrently; values below one
	// mean sequential execution.
	Workers int
	// Progress is called after each case completes.
	Progress ProgressFunc
}

// errCaseTimeout marks an invocation that exceeded the case's own timeout,
// as opposed to run-level cancellation.
var errCaseTimeout = errors.New("test case timeout")

// Engine runs test suites. Cases execute sequentially unless the run asks
// for workers, in which case a bounded pool runs them concurrently while
// results keep suite order. The engine itself holds no per-run state and is
// safe for concurrent ExecuteSuite calls.
type Engine struct {
	gateway  AgentGateway
	registry *Registry
}

// New creates an engine backed by the given gateway and registry.
func New(gateway AgentGateway, registry *Registry) *Engine {
	return &Engine{
		gateway:  gateway,
		registry: registry,
	}
}

// ExecuteSuite runs every case of a registered suite against an agent. The
// returned run is always registered and finalized, including on abort; the
// error is non-nil only when the run was aborted because the agent
// disappeared mid-run.
func (e *Engine) ExecuteSuite(ctx context.Context, suiteID, agentID string, opts RunOptions) (*testsuite.TestRun, error) {
	suite, err := e.registry.TestSuite(suiteID)
	if err != nil {
		return nil, err
	}

	run := testsuite.NewTestRun(suite.ID, agentID)
	e.registry.PutTestRun(*run)

	slog.Info("executing test suite",
		"run_id", run.ID,
		"suite", suite.Name,
		"agent_id", agentID,
		"cases", len(suite.TestCases),
	)

	var results []testsuite.TestResult
	var fatal error
	if opts.Workers > 1 && len(suite.TestCases) > 1 {
		results, fatal = e.runParallel(ctx, run, suite, agentID, opts)
	} else {
		results, fatal = e.runSequential(ctx, run, suite, agentID, opts.Progress)
	}

	status := testsuite.AggregateStatus(results)
	if fatal != nil {
		status = testsuite.StatusError
	}
	run.Summary = testsuite.Summarize(results)
	run.Finalize(status)
	e.registry.PutTestRun(*run)

	slog.Info("test suite finished",
		"run_id", run.ID,
		"status", run.Status,
		"passed", run.Summary["passed"],
		"failed", run.Summary["failed"],
		"errors", run.Summary["error"],
	)

	if fatal != nil {
		return run, fatal
	}
	return run, nil
}

func (e *Engine) runSequential(ctx context.Context, run *testsuite.TestRun, suite testsuite.TestSuite, agentID string, progress ProgressFunc) ([]testsuite.TestResult, error) {
	results := make([]testsuite.TestResult, 0, len(suite.TestCases))
	for i, caseID := range suite.TestCases {
		// Check for cancellation between cases; remaining cases stay
		// unexecuted.
		if err := ctx.Err(); err != nil {
			slog.Warn("test run cancelled", "run_id", run.ID, "completed", i, "total", len(suite.TestCases))
			break
		}

		res, fatal := e.executeCase(ctx, agentID, caseID)
		results = append(results, res)
		e.recordResult(run, res, results)

		if progress != nil {
			progress(len(results), len(suite.TestCases), res)
		}

		if fatal != nil {
			slog.Error("aborting test run", "run_id", run.ID, "error", fatal)
			return results, fatal
		}
	}
	return results, nil
}

// runParallel fans cases out to a bounded worker pool. Completed results
// keep suite order; a fatal error cancels outstanding work and leaves queued
// cases unexecuted.
func (e *Engine) runParallel(ctx context.Context, run *testsuite.TestRun, suite testsuite.TestSuite, agentID string, opts RunOptions) ([]testsuite.TestResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type task struct {
		idx    int
		caseID string
	}
	tasks := make(chan task)
	go func() {
		defer close(tasks)
		for i, id := range suite.TestCases {
			select {
			case tasks <- task{idx: i, caseID: id}:
			case <-runCtx.Done():
				return
			}
		}
	}()

	var (
		mu    sync.Mutex
		slots = make([]*testsuite.TestResult, len(suite.TestCases))
		fatal error
		done  int
	)

	workers := opts.Workers
	if workers > len(suite.TestCases) {
		workers = len(suite.TestCases)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tk := range tasks {
				if runCtx.Err() != nil {
					continue
				}
				res, err := e.executeCase(runCtx, agentID, tk.caseID)

				mu.Lock()
				r := res
				slots[tk.idx] = &r
				done++
				if err != nil && fatal == nil {
					fatal = err
					cancel()
				}
				ordered := compact(slots)
				e.registry.PutTestResult(res)
				run.Results = resultIDs(ordered)
				run.Summary = testsuite.Summarize(ordered)
				e.registry.PutTestRun(*run)
				completed := done
				mu.Unlock()

				if opts.Progress != nil {
					opts.Progress(completed, len(suite.TestCases), res)
				}
			}
		}()
	}
	wg.Wait()

	if fatal != nil {
		slog.Error("aborting test run", "run_id", run.ID, "error", fatal)
	}
	return compact(slots), fatal
}

// executeCase runs one case through the invoke-evaluate-finalize pipeline.
// The returned result is always terminal. A non-nil error means the run must
// abort: the agent no longer exists.
func (e *Engine) executeCase(ctx context.Context, agentID, caseID string) (testsuite.TestResult, error) {
	tc, err := e.registry.TestCase(caseID)
	if err != nil {
		res := testsuite.NewTestResult(caseID, agentID, nil)
		res.AddError(err.Error())
		res.Finalize(testsuite.StatusError)
		return *res, nil
	}

	res := testsuite.NewTestResult(tc.ID, agentID, tc.Inputs)
	res.AddLog(fmt.Sprintf("invoking agent %s with a %s timeout", agentID, tc.Timeout()))

	start := time.Now()
	outputs, err := e.invoke(ctx, agentID, tc)
	res.Metrics = map[string]float64{
		"latency_ms": float64(time.Since(start).Milliseconds()),
	}

	switch {
	case err == nil:
		res.ActualOutputs = outputs
		ev, evalErr := safeEvaluate(tc, res)
		switch {
		case evalErr != nil:
			res.AddError(fmt.Sprintf("evaluation failed: %v", evalErr))
			res.Finalize(testsuite.StatusError)
		case ev.Passed:
			res.AddLog(fmt.Sprintf("all %d criteria passed", len(tc.EvaluationCriteria)))
			res.Finalize(testsuite.StatusPassed)
		default:
			for _, reason := range ev.Reasons {
				res.AddError(reason)
			}
			res.Finalize(testsuite.StatusFailed)
		}
		return *res, nil

	case isAgentNotFound(err):
		res.AddError(err.Error())
		res.Finalize(testsuite.StatusError)
		return *res, err

	case errors.Is(err, errCaseTimeout):
		res.AddError(fmt.Sprintf("timeout after %ds", tc.TimeoutSeconds))
		res.Finalize(testsuite.StatusError)
		return *res, nil

	case errors.Is(err, context.Canceled):
		res.AddError("test run cancelled")
		res.Finalize(testsuite.StatusError)
		return *res, nil

	case errors.Is(err, context.DeadlineExceeded):
		res.AddError("test run deadline exceeded")
		res.Finalize(testsuite.StatusError)
		return *res, nil

	default:
		res.AddError(err.Error())
		res.Finalize(testsuite.StatusError)
		return *res, nil
	}
}

// invoke calls the agent under the case's timeout. The reply channel is
// buffered so a response arriving after the deadline is dropped instead of
// leaking the goroutine.
func (e *Engine) invoke(ctx context.Context, agentID string, tc testsuite.TestCase) (testsuite.Values, error) {
	invokeCtx, cancel := context.WithTimeout(ctx, tc.Timeout())
	defer cancel()

	type reply struct {
		outputs testsuite.Values
		err     error
	}
	ch := make(chan reply, 1)
	go func() {
		outputs, err := e.gateway.InvokeAgent(invokeCtx, agentID, tc.Inputs)
		ch <- reply{outputs: outputs, err: err}
	}()

	select {
	case <-invokeCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errCaseTimeout
	case r := <-ch:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			// The gateway saw the case deadline before the select did.
			return nil, errCaseTimeout
		}
		return r.outputs, r.err
	}
}

// safeEvaluate guards criterion evaluation: a panicking rule surfaces as an
// error result instead of killing the run.
func safeEvaluate(tc testsuite.TestCase, res *testsuite.TestResult) (ev evaluator.Evaluation, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("evaluator panicked: %v", rec)
		}
	}()
	ev = evaluator.Evaluate(tc.EvaluationCriteria, res.ActualOutputs, tc.ExpectedOutputs, res.Metrics)
	return ev, nil
}

func (e *Engine) recordResult(run *testsuite.TestRun, res testsuite.TestResult, all []testsuite.TestResult) {
	e.registry.PutTestResult(res)
	run.Results = append(run.Results, res.ID)
	run.Summary = testsuite.Summarize(all)
	e.registry.PutTestRun(*run)
}

func isAgentNotFound(err error) bool {
	var notFound *archon.NotFoundError
	return errors.As(err, &notFound)
}

func compact(slots []*testsuite.TestResult) []testsuite.TestResult {
	out := make([]testsuite.TestResult, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func resultIDs(results []testsuite.TestResult) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	return ids
}
