package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/archon-ai/agent-tester/internal/testsuite"
)

// NotFoundKind identifies which collection a registry lookup missed.
type NotFoundKind string

const (
	KindTestCase   NotFoundKind = "test case"
	KindTestSuite  NotFoundKind = "test suite"
	KindTestRun    NotFoundKind = "test run"
	KindTestResult NotFoundKind = "test result"
)

// NotFoundError reports a registry lookup that found nothing.
type NotFoundError struct {
	Kind NotFoundKind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Registry stores test cases, suites, runs, and results for the lifetime of
// the process, keyed by id. All methods are safe for concurrent use; reads
// return copies so callers can never mutate stored state.
type Registry struct {
	mu      sync.RWMutex
	cases   map[string]testsuite.TestCase
	suites  map[string]testsuite.TestSuite
	runs    map[string]testsuite.TestRun
	results map[string]testsuite.TestResult
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		cases:   make(map[string]testsuite.TestCase),
		suites:  make(map[string]testsuite.TestSuite),
		runs:    make(map[string]testsuite.TestRun),
		results: make(map[string]testsuite.TestResult),
	}
}

// PutTestCase registers a test case, replacing any previous entry with the
// same id. Registration is idempotent.
func (r *Registry) PutTestCase(tc testsuite.TestCase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cases[tc.ID] = tc.Clone()
}

// TestCase returns the test case with the given id.
func (r *Registry) TestCase(id string) (testsuite.TestCase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tc, ok := r.cases[id]
	if !ok {
		return testsuite.TestCase{}, &NotFoundError{Kind: KindTestCase, ID: id}
	}
	return tc.Clone(), nil
}

// TestCases returns all registered test cases sorted by name.
func (r *Registry) TestCases() []testsuite.TestCase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]testsuite.TestCase, 0, len(r.cases))
	for _, tc := range r.cases {
		out = append(out, tc.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PutTestSuite registers a test suite, replacing any previous entry with the
// same id.
func (r *Registry) PutTestSuite(s testsuite.TestSuite) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suites[s.ID] = s.Clone()
}

// TestSuite returns the suite with the given id.
func (r *Registry) TestSuite(id string) (testsuite.TestSuite, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.suites[id]
	if !ok {
		return testsuite.TestSuite{}, &NotFoundError{Kind: KindTestSuite, ID: id}
	}
	return s.Clone(), nil
}

// TestSuites returns all registered suites sorted by name.
func (r *Registry) TestSuites() []testsuite.TestSuite {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]testsuite.TestSuite, 0, len(r.suites))
	for _, s := range r.suites {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PutTestRun stores a run snapshot, replacing any previous entry with the
// same id. The engine calls this as results land so lookups during a run see
// live progress.
func (r *Registry) PutTestRun(run testsuite.TestRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run.Clone()
}

// TestRun returns the run with the given id.
func (r *Registry) TestRun(id string) (testsuite.TestRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return testsuite.TestRun{}, &NotFoundError{Kind: KindTestRun, ID: id}
	}
	return run.Clone(), nil
}

// TestRuns returns all runs, most recent first.
func (r *Registry) TestRuns() []testsuite.TestRun {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]testsuite.TestRun, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out
}

// PutTestResult stores a result, replacing any previous entry with the same
// id.
func (r *Registry) PutTestResult(res testsuite.TestResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[res.ID] = res.Clone()
}

// TestResult returns the result with the given id.
func (r *Registry) TestResult(id string) (testsuite.TestResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.results[id]
	if !ok {
		return testsuite.TestResult{}, &NotFoundError{Kind: KindTestResult, ID: id}
	}
	return res.Clone(), nil
}

// ResultsForRun resolves a run's result ids in order. Unknown ids are
// skipped rather than failing the whole lookup.
func (r *Registry) ResultsForRun(run testsuite.TestRun) []testsuite.TestResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]testsuite.TestResult, 0, len(run.Results))
	for _, id := range run.Results {
		if res, ok := r.results[id]; ok {
			out = append(out, res.Clone())
		}
	}
	return out
}
