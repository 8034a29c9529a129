package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archon-ai/agent-tester/internal/testsuite"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func TestEvaluatePasses(t *testing.T) {
	criteria := testsuite.Criteria{
		"response_not_empty": testsuite.TextRule("must answer"),
		"mentions_paris": testsuite.SpecRule(testsuite.RuleSpec{
			Field:    "response",
			Contains: strPtr("Paris"),
		}),
	}
	actual := testsuite.Values{"response": testsuite.StringValue("The capital of France is Paris.")}

	ev := Evaluate(criteria, actual, nil, nil)
	assert.True(t, ev.Passed)
	assert.Empty(t, ev.Reasons)
}

func TestEvaluateEmptyResponseFails(t *testing.T) {
	criteria := testsuite.DefaultCriteria()
	actual := testsuite.Values{"response": testsuite.StringValue("")}

	ev := Evaluate(criteria, actual, nil, nil)
	assert.False(t, ev.Passed)
	require.Len(t, ev.Reasons, 1)
	assert.Contains(t, ev.Reasons[0], "response_not_empty")
	assert.Contains(t, ev.Reasons[0], "empty")
}

func TestEvaluateMissingFieldFails(t *testing.T) {
	criteria := testsuite.DefaultCriteria()

	ev := Evaluate(criteria, testsuite.Values{}, nil, nil)
	assert.False(t, ev.Passed)
	require.Len(t, ev.Reasons, 1)
	assert.Contains(t, ev.Reasons[0], "missing")
}

func TestEvaluateCollectsAllFailures(t *testing.T) {
	criteria := testsuite.Criteria{
		"answer_not_empty": testsuite.TextRule("must answer"),
		"mentions_refund": testsuite.SpecRule(testsuite.RuleSpec{
			Contains: strPtr("refund"),
		}),
	}
	actual := testsuite.Values{
		"answer":   testsuite.StringValue("  "),
		"response": testsuite.StringValue("no such word"),
	}

	ev := Evaluate(criteria, actual, nil, nil)
	assert.False(t, ev.Passed)
	require.Len(t, ev.Reasons, 2)
	// Reasons come back in criterion name order.
	assert.Contains(t, ev.Reasons[0], "answer_not_empty")
	assert.Contains(t, ev.Reasons[1], "mentions_refund")
}

func TestEvaluateIsDeterministic(t *testing.T) {
	criteria := testsuite.Criteria{
		"b_not_empty": testsuite.TextRule("b"),
		"a_not_empty": testsuite.TextRule("a"),
		"c_not_empty": testsuite.TextRule("c"),
	}

	first := Evaluate(criteria, testsuite.Values{}, nil, nil)
	second := Evaluate(criteria, testsuite.Values{}, nil, nil)
	assert.Equal(t, first, second)
	require.Len(t, first.Reasons, 3)
	assert.Contains(t, first.Reasons[0], "a_not_empty")
	assert.Contains(t, first.Reasons[2], "c_not_empty")
}

func TestEvaluateExactMatch(t *testing.T) {
	criteria := testsuite.Criteria{"exact_match": testsuite.TextRule("answers must match")}
	expected := testsuite.Values{"answer": testsuite.StringValue("4")}

	ev := Evaluate(criteria, testsuite.Values{"answer": testsuite.StringValue("4")}, expected, nil)
	assert.True(t, ev.Passed)

	ev = Evaluate(criteria, testsuite.Values{"answer": testsuite.StringValue("5")}, expected, nil)
	assert.False(t, ev.Passed)
	assert.Contains(t, ev.Reasons[0], `want "4"`)

	// No expected outputs means the criterion cannot hold.
	ev = Evaluate(criteria, testsuite.Values{"answer": testsuite.StringValue("4")}, nil, nil)
	assert.False(t, ev.Passed)
}

func TestEvaluateUnknownCriterionFails(t *testing.T) {
	criteria := testsuite.Criteria{"sounds_polite": testsuite.TextRule("should be polite")}

	ev := Evaluate(criteria, testsuite.Values{"response": testsuite.StringValue("hi")}, nil, nil)
	assert.False(t, ev.Passed)
	assert.Contains(t, ev.Reasons[0], "no check is registered")
}

func TestEvaluateEquals(t *testing.T) {
	criteria := testsuite.Criteria{
		"greeting": testsuite.SpecRule(testsuite.RuleSpec{Field: "greeting", Equals: strPtr("hello")}),
	}

	ev := Evaluate(criteria, testsuite.Values{"greeting": testsuite.StringValue("hello")}, nil, nil)
	assert.True(t, ev.Passed)

	ev = Evaluate(criteria, testsuite.Values{"greeting": testsuite.StringValue("hey")}, nil, nil)
	assert.False(t, ev.Passed)

	// Wrong-typed field fails the criterion instead of erroring.
	ev = Evaluate(criteria, testsuite.Values{"greeting": testsuite.ListValue("hello")}, nil, nil)
	assert.False(t, ev.Passed)
	assert.Contains(t, ev.Reasons[0], "not a string")
}

func TestEvaluatePattern(t *testing.T) {
	criteria := testsuite.Criteria{
		"urlish": testsuite.SpecRule(testsuite.RuleSpec{Pattern: `https?://\S+`}),
	}

	ev := Evaluate(criteria, testsuite.Values{"response": testsuite.StringValue("see https://example.com")}, nil, nil)
	assert.True(t, ev.Passed)

	ev = Evaluate(criteria, testsuite.Values{"response": testsuite.StringValue("no link")}, nil, nil)
	assert.False(t, ev.Passed)
}

func TestEvaluateInvalidPatternFailsCriterion(t *testing.T) {
	criteria := testsuite.Criteria{
		"broken": testsuite.SpecRule(testsuite.RuleSpec{Pattern: `([unclosed`}),
	}

	ev := Evaluate(criteria, testsuite.Values{"response": testsuite.StringValue("anything")}, nil, nil)
	assert.False(t, ev.Passed)
	assert.Contains(t, ev.Reasons[0], "invalid pattern")
}

func TestEvaluateThresholdAgainstMetric(t *testing.T) {
	criteria := testsuite.Criteria{"latency_ms": testsuite.ThresholdRule(2000)}

	ev := Evaluate(criteria, nil, nil, map[string]float64{"latency_ms": 900})
	assert.True(t, ev.Passed)

	ev = Evaluate(criteria, nil, nil, map[string]float64{"latency_ms": 3500})
	assert.False(t, ev.Passed)
	assert.Contains(t, ev.Reasons[0], "exceeds")

	ev = Evaluate(criteria, nil, nil, nil)
	assert.False(t, ev.Passed)
	assert.Contains(t, ev.Reasons[0], "not recorded")
}

func TestEvaluateMetricBounds(t *testing.T) {
	criteria := testsuite.Criteria{
		"fast_enough": testsuite.SpecRule(testsuite.RuleSpec{
			Metric: "latency_ms",
			Max:    floatPtr(5000),
		}),
	}

	ev := Evaluate(criteria, nil, nil, map[string]float64{"latency_ms": 1200})
	assert.True(t, ev.Passed)

	ev = Evaluate(criteria, nil, nil, map[string]float64{"latency_ms": 9000})
	assert.False(t, ev.Passed)
}

func TestEvaluateNumericField(t *testing.T) {
	criteria := testsuite.Criteria{
		"confidence": testsuite.SpecRule(testsuite.RuleSpec{
			Field: "confidence",
			Min:   floatPtr(0.8),
		}),
	}

	ev := Evaluate(criteria, testsuite.Values{"confidence": testsuite.StringValue("0.93")}, nil, nil)
	assert.True(t, ev.Passed)

	ev = Evaluate(criteria, testsuite.Values{"confidence": testsuite.StringValue("0.4")}, nil, nil)
	assert.False(t, ev.Passed)

	ev = Evaluate(criteria, testsuite.Values{"confidence": testsuite.StringValue("high")}, nil, nil)
	assert.False(t, ev.Passed)
	assert.Contains(t, ev.Reasons[0], "not numeric")
}

func TestEvaluateSpecWithoutChecksFails(t *testing.T) {
	criteria := testsuite.Criteria{
		"empty_rule": testsuite.SpecRule(testsuite.RuleSpec{Field: "response"}),
	}

	ev := Evaluate(criteria, testsuite.Values{"response": testsuite.StringValue("x")}, nil, nil)
	assert.False(t, ev.Passed)
	assert.Contains(t, ev.Reasons[0], "no checks")
}

func TestEvaluateContainsSearchesRenderedValue(t *testing.T) {
	criteria := testsuite.Criteria{
		"mentions_b": testsuite.SpecRule(testsuite.RuleSpec{Field: "items", Contains: strPtr("b")}),
	}

	ev := Evaluate(criteria, testsuite.Values{"items": testsuite.ListValue("a", "b")}, nil, nil)
	assert.True(t, ev.Passed)
}

func TestEvaluateNoCriteria(t *testing.T) {
	// Construction forbids empty criteria; evaluation of an empty set is
	// vacuously true rather than a crash.
	ev := Evaluate(nil, nil, nil, nil)
	assert.True(t, ev.Passed)
	assert.Empty(t, ev.Reasons)
}
