package testsuite

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a test result or test run.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusError, StatusSkipped:
		return true
	}
	return false
}

// Valid reports whether the status is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusPassed, StatusFailed, StatusError, StatusSkipped:
		return true
	}
	return false
}

// TestType categorizes what a test case exercises.
type TestType string

const (
	TypeFunctional  TestType = "functional"
	TypePerformance TestType = "performance"
	TypeReliability TestType = "reliability"
	TypeSafety      TestType = "safety"
	TypeCustom      TestType = "custom"
)

// TestTypes lists the known test types in display order.
func TestTypes() []TestType {
	return []TestType{TypeFunctional, TypePerformance, TypeReliability, TypeSafety, TypeCustom}
}

// Valid reports whether the test type is one of the known categories.
func (t TestType) Valid() bool {
	switch t {
	case TypeFunctional, TypePerformance, TypeReliability, TypeSafety, TypeCustom:
		return true
	}
	return false
}

// ParseTestType validates a user-supplied test type string.
func ParseTestType(s string) (TestType, error) {
	t := TestType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown test type %q (expected one of %v)", s, TestTypes())
	}
	return t, nil
}

// DefaultCaseTimeout bounds a single agent invocation unless the test case
// overrides it.
const DefaultCaseTimeout = 30 * time.Second

// TestCase describes a single check to run against an agent.
type TestCase struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Type        TestType `json:"test_type" yaml:"test_type"`

	// Inputs is the payload sent to the agent; ExpectedOutputs holds
	// reference outputs for comparison rules.
	Inputs          Values `json:"inputs" yaml:"inputs"`
	ExpectedOutputs Values `json:"expected_outputs,omitempty" yaml:"expected_outputs,omitempty"`

	// EvaluationCriteria must be non-empty: a case that checks nothing is a
	// configuration mistake, not a vacuous pass.
	EvaluationCriteria Criteria `json:"evaluation_criteria" yaml:"evaluation_criteria"`

	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// TimeoutSeconds bounds the agent invocation for this case.
	TimeoutSeconds int `json:"timeout" yaml:"timeout"`
}

// NewTestCase validates a test case and fills defaults: a generated id when
// none is set, the functional type, and the default timeout.
func NewTestCase(tc TestCase) (TestCase, error) {
	if tc.Name == "" {
		return TestCase{}, fmt.Errorf("test case name must not be empty")
	}
	if len(tc.EvaluationCriteria) == 0 {
		return TestCase{}, fmt.Errorf("test case %q must define at least one evaluation criterion", tc.Name)
	}
	if tc.ID == "" {
		tc.ID = uuid.NewString()
	}
	if tc.Type == "" {
		tc.Type = TypeFunctional
	}
	if !tc.Type.Valid() {
		return TestCase{}, fmt.Errorf("test case %q has unknown test type %q", tc.Name, tc.Type)
	}
	if tc.TimeoutSeconds <= 0 {
		tc.TimeoutSeconds = int(DefaultCaseTimeout / time.Second)
	}
	return tc, nil
}

// Timeout returns the invocation bound as a duration.
func (tc TestCase) Timeout() time.Duration {
	if tc.TimeoutSeconds <= 0 {
		return DefaultCaseTimeout
	}
	return time.Duration(tc.TimeoutSeconds) * time.Second
}

// Clone returns a deep copy of the test case.
func (tc TestCase) Clone() TestCase {
	out := tc
	out.Inputs = tc.Inputs.Clone()
	out.ExpectedOutputs = tc.ExpectedOutputs.Clone()
	out.EvaluationCriteria = tc.EvaluationCriteria.Clone()
	out.Tags = append([]string(nil), tc.Tags...)
	return out
}

// TestResult records one execution of a test case against an agent.
type TestResult struct {
	ID         string `json:"id"`
	TestCaseID string `json:"test_case_id"`
	AgentID    string `json:"agent_id"`
	Status     Status `json:"status"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// DurationMS is derived from start and end when the result finalizes,
	// clamped so it is never negative.
	DurationMS *int64 `json:"duration_ms,omitempty"`

	// Inputs is what was sent; ActualOutputs is what came back, absent when
	// the invocation never produced a payload.
	Inputs        Values `json:"inputs,omitempty"`
	ActualOutputs Values `json:"actual_outputs,omitempty"`

	Metrics map[string]float64 `json:"metrics,omitempty"`

	// Errors collects failure reasons and error messages, one per entry.
	Errors []string `json:"errors,omitempty"`
	Logs   []string `json:"logs,omitempty"`
}

// NewTestResult starts a result for one case execution. The result is born
// running with its start time set.
func NewTestResult(caseID, agentID string, inputs Values) *TestResult {
	return &TestResult{
		ID:         uuid.NewString(),
		TestCaseID: caseID,
		AgentID:    agentID,
		Status:     StatusRunning,
		StartTime:  time.Now().UTC(),
		Inputs:     inputs.Clone(),
	}
}

// Finalize moves the result into a terminal status, stamps the end time, and
// derives the duration. Finalizing an already-terminal result is a no-op so a
// result is finalized at most once.
func (r *TestResult) Finalize(status Status) {
	if r.Status.Terminal() {
		return
	}
	now := time.Now().UTC()
	r.Status = status
	r.EndTime = &now
	ms := now.Sub(r.StartTime).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	r.DurationMS = &ms
}

// AddError appends a failure reason or error message.
func (r *TestResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// AddLog appends an execution log line.
func (r *TestResult) AddLog(msg string) {
	r.Logs = append(r.Logs, msg)
}

// Clone returns a deep copy of the result.
func (r TestResult) Clone() TestResult {
	out := r
	if r.EndTime != nil {
		end := *r.EndTime
		out.EndTime = &end
	}
	if r.DurationMS != nil {
		ms := *r.DurationMS
		out.DurationMS = &ms
	}
	out.Inputs = r.Inputs.Clone()
	out.ActualOutputs = r.ActualOutputs.Clone()
	if r.Metrics != nil {
		out.Metrics = make(map[string]float64, len(r.Metrics))
		for k, v := range r.Metrics {
			out.Metrics[k] = v
		}
	}
	out.Errors = append([]string(nil), r.Errors...)
	out.Logs = append([]string(nil), r.Logs...)
	return out
}

// TestSuite is an ordered collection of test case ids.
type TestSuite struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// TestCases lists case ids in execution order.
	TestCases []string `json:"test_cases" yaml:"test_cases"`
	Tags      []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewTestSuite validates a suite and fills defaults.
func NewTestSuite(s TestSuite) (TestSuite, error) {
	if s.Name == "" {
		return TestSuite{}, fmt.Errorf("test suite name must not be empty")
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.CreatedAt
	}
	return s, nil
}

// Clone returns a deep copy of the suite.
func (s TestSuite) Clone() TestSuite {
	out := s
	out.TestCases = append([]string(nil), s.TestCases...)
	out.Tags = append([]string(nil), s.Tags...)
	return out
}

// TestRun records one execution of a suite against an agent.
type TestRun struct {
	ID          string `json:"id"`
	AgentID     string `json:"agent_id"`
	TestSuiteID string `json:"test_suite_id"`
	Status      Status `json:"status"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Results holds result ids in suite order.
	Results []string `json:"results"`

	// Summary counts results by status plus a total; the per-status counts
	// always sum to the total.
	Summary map[string]int `json:"summary"`
}

// NewTestRun starts a run for a suite and agent. The run is born running
// with an empty summary.
func NewTestRun(suiteID, agentID string) *TestRun {
	return &TestRun{
		ID:          uuid.NewString(),
		AgentID:     agentID,
		TestSuiteID: suiteID,
		Status:      StatusRunning,
		StartTime:   time.Now().UTC(),
		Results:     []string{},
		Summary:     Summarize(nil),
	}
}

// Finalize stamps the end time and moves the run into a terminal status.
func (tr *TestRun) Finalize(status Status) {
	if tr.Status.Terminal() {
		return
	}
	now := time.Now().UTC()
	tr.Status = status
	tr.EndTime = &now
}

// Clone returns a deep copy of the run.
func (tr TestRun) Clone() TestRun {
	out := tr
	if tr.EndTime != nil {
		end := *tr.EndTime
		out.EndTime = &end
	}
	out.Results = append([]string(nil), tr.Results...)
	if tr.Summary != nil {
		out.Summary = make(map[string]int, len(tr.Summary))
		for k, v := range tr.Summary {
			out.Summary[k] = v
		}
	}
	return out
}

// Summarize counts results by status. Every known status appears in the
// mapping, zero-filled, so the per-status counts always sum to "total".
func Summarize(results []TestResult) map[string]int {
	summary := map[string]int{
		"total":               len(results),
		string(StatusPending): 0,
		string(StatusRunning): 0,
		string(StatusPassed):  0,
		string(StatusFailed):  0,
		string(StatusError):   0,
		string(StatusSkipped): 0,
	}
	for _, r := range results {
		summary[string(r.Status)]++
	}
	return summary
}

// AggregateStatus derives a run status from its results: any error makes the
// run an error, otherwise any failure makes it failed, otherwise it passed.
// Skipped results never change the outcome.
func AggregateStatus(results []TestResult) Status {
	status := StatusPassed
	for _, r := range results {
		switch r.Status {
		case StatusError:
			return StatusError
		case StatusFailed:
			status = StatusFailed
		}
	}
	return status
}
