package testsuite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCase() TestCase {
	return TestCase{
		Name:   "greeting",
		Inputs: Values{"prompt": StringValue("Say hello")},
		EvaluationCriteria: Criteria{
			"response_not_empty": TextRule("The agent should provide a non-empty response"),
		},
	}
}

func TestNewTestCaseDefaults(t *testing.T) {
	tc, err := NewTestCase(validCase())
	require.NoError(t, err)

	assert.NotEmpty(t, tc.ID)
	assert.Equal(t, TypeFunctional, tc.Type)
	assert.Equal(t, 30, tc.TimeoutSeconds)
	assert.Equal(t, 30*time.Second, tc.Timeout())
}

func TestNewTestCaseRequiresCriteria(t *testing.T) {
	tc := validCase()
	tc.EvaluationCriteria = nil

	_, err := NewTestCase(tc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evaluation criterion")
}

func TestNewTestCaseRequiresName(t *testing.T) {
	tc := validCase()
	tc.Name = ""

	_, err := NewTestCase(tc)
	assert.Error(t, err)
}

func TestNewTestCaseRejectsUnknownType(t *testing.T) {
	tc := validCase()
	tc.Type = TestType("load")

	_, err := NewTestCase(tc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown test type")
}

func TestNewTestCaseKeepsExplicitValues(t *testing.T) {
	tc := validCase()
	tc.ID = "case-1"
	tc.Type = TypeSafety
	tc.TimeoutSeconds = 5

	got, err := NewTestCase(tc)
	require.NoError(t, err)
	assert.Equal(t, "case-1", got.ID)
	assert.Equal(t, TypeSafety, got.Type)
	assert.Equal(t, 5*time.Second, got.Timeout())
}

func TestParseTestType(t *testing.T) {
	tt, err := ParseTestType("safety")
	require.NoError(t, err)
	assert.Equal(t, TypeSafety, tt)

	_, err = ParseTestType("bogus")
	assert.Error(t, err)
}

func TestResultFinalizeDerivesDuration(t *testing.T) {
	r := NewTestResult("case-1", "agent-1", nil)
	assert.Equal(t, StatusRunning, r.Status)
	assert.Nil(t, r.EndTime)
	assert.Nil(t, r.DurationMS)

	r.StartTime = time.Now().UTC().Add(-250 * time.Millisecond)
	r.Finalize(StatusPassed)

	require.NotNil(t, r.EndTime)
	require.NotNil(t, r.DurationMS)
	assert.Equal(t, StatusPassed, r.Status)
	assert.Equal(t, r.EndTime.Sub(r.StartTime).Milliseconds(), *r.DurationMS)
	assert.GreaterOrEqual(t, *r.DurationMS, int64(250))
}

func TestResultFinalizeOnlyOnce(t *testing.T) {
	r := NewTestResult("case-1", "agent-1", nil)
	r.Finalize(StatusFailed)

	end := *r.EndTime
	r.Finalize(StatusPassed)

	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, end, *r.EndTime)
}

func TestResultDurationNeverNegative(t *testing.T) {
	// A skewed clock must not produce a negative duration.
	r := NewTestResult("case-1", "agent-1", nil)
	r.StartTime = time.Now().UTC().Add(time.Hour)
	r.Finalize(StatusError)

	require.NotNil(t, r.DurationMS)
	assert.Equal(t, int64(0), *r.DurationMS)
}

func TestSummarizeCountsSumToTotal(t *testing.T) {
	results := []TestResult{
		{Status: StatusPassed},
		{Status: StatusPassed},
		{Status: StatusFailed},
		{Status: StatusError},
		{Status: StatusSkipped},
		{Status: StatusRunning},
	}

	summary := Summarize(results)
	assert.Equal(t, 6, summary["total"])
	assert.Equal(t, 2, summary["passed"])
	assert.Equal(t, 1, summary["failed"])
	assert.Equal(t, 1, summary["error"])
	assert.Equal(t, 1, summary["skipped"])
	assert.Equal(t, 1, summary["running"])
	assert.Equal(t, 0, summary["pending"])

	sum := 0
	for k, v := range summary {
		if k != "total" {
			sum += v
		}
	}
	assert.Equal(t, summary["total"], sum)
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	assert.Equal(t, 0, summary["total"])
	assert.Equal(t, 0, summary["passed"])
}

func TestAggregateStatusPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"all passed", []Status{StatusPassed, StatusPassed}, StatusPassed},
		{"failure beats pass", []Status{StatusPassed, StatusFailed, StatusPassed}, StatusFailed},
		{"error beats failure", []Status{StatusFailed, StatusError, StatusPassed}, StatusError},
		{"skipped never overrides", []Status{StatusPassed, StatusSkipped}, StatusPassed},
		{"all skipped", []Status{StatusSkipped, StatusSkipped}, StatusPassed},
		{"empty", nil, StatusPassed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make([]TestResult, 0, len(tt.statuses))
			for _, s := range tt.statuses {
				results = append(results, TestResult{Status: s})
			}
			assert.Equal(t, tt.want, AggregateStatus(results))
		})
	}
}

func TestNewTestSuiteDefaults(t *testing.T) {
	s, err := NewTestSuite(TestSuite{Name: "smoke", TestCases: []string{"a", "b"}})
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.False(t, s.CreatedAt.IsZero())
	assert.Equal(t, s.CreatedAt, s.UpdatedAt)
	assert.Equal(t, []string{"a", "b"}, s.TestCases)
}

func TestNewTestSuiteRequiresName(t *testing.T) {
	_, err := NewTestSuite(TestSuite{})
	assert.Error(t, err)
}

func TestNewTestRun(t *testing.T) {
	run := NewTestRun("suite-1", "agent-1")

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, StatusRunning, run.Status)
	assert.Equal(t, 0, run.Summary["total"])
	assert.Empty(t, run.Results)
	assert.Nil(t, run.EndTime)
}

func TestRunFinalize(t *testing.T) {
	run := NewTestRun("suite-1", "agent-1")
	run.Finalize(StatusError)

	assert.Equal(t, StatusError, run.Status)
	require.NotNil(t, run.EndTime)

	end := *run.EndTime
	run.Finalize(StatusPassed)
	assert.Equal(t, StatusError, run.Status)
	assert.Equal(t, end, *run.EndTime)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusPassed.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusError.Terminal())
	assert.True(t, StatusSkipped.Terminal())
}

func TestCloneIsIndependent(t *testing.T) {
	tc, err := NewTestCase(validCase())
	require.NoError(t, err)

	clone := tc.Clone()
	clone.Inputs["prompt"] = StringValue("changed")
	clone.EvaluationCriteria["extra"] = TextRule("added")

	original, _ := tc.Inputs["prompt"].AsString()
	assert.Equal(t, "Say hello", original)
	assert.Len(t, tc.EvaluationCriteria, 1)
}
