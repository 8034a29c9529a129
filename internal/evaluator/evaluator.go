// Package evaluator applies a test case's evaluation criteria to the outputs
// an agent returned. Evaluation is a pure function: the same criteria and
// outputs always produce the same verdict, and malformed agent output fails
// criteria instead of raising errors.
package evaluator

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/archon-ai/agent-tester/internal/testsuite"
)

// defaultField is inspected when a criterion does not name a field.
const defaultField = "response"

// Evaluation is the verdict for one test case: passed only when every
// criterion held, with one reason per criterion that did not.
type Evaluation struct {
	Passed  bool
	Reasons []string
}

// Evaluate checks every criterion against the agent's outputs and collects
// all failures. Criteria are evaluated in name order so reasons are
// deterministic. A criterion that cannot be interpreted counts as failed,
// never as an error.
func Evaluate(criteria testsuite.Criteria, actual, expected testsuite.Values, metrics map[string]float64) Evaluation {
	names := make([]string, 0, len(criteria))
	for name := range criteria {
		names = append(names, name)
	}
	sort.Strings(names)

	ev := Evaluation{Passed: true}
	for _, name := range names {
		ok, reason := evaluateCriterion(name, criteria[name], actual, expected, metrics)
		if !ok {
			ev.Passed = false
			ev.Reasons = append(ev.Reasons, fmt.Sprintf("criterion %q: %s", name, reason))
		}
	}
	return ev
}

func evaluateCriterion(name string, rule testsuite.Rule, actual, expected testsuite.Values, metrics map[string]float64) (bool, string) {
	switch rule.Kind() {
	case testsuite.RuleText:
		return evaluateNamed(name, actual, expected)
	case testsuite.RuleThreshold:
		return checkUpperBound(name, rule.Threshold(), metrics)
	case testsuite.RuleConfig:
		return evaluateSpec(rule.Spec(), actual, metrics)
	}
	return false, "unsupported rule shape"
}

// evaluateNamed resolves a prose criterion by its name. Unknown names fail
// so a misspelled criterion surfaces in the result instead of silently
// passing.
func evaluateNamed(name string, actual, expected testsuite.Values) (bool, string) {
	switch {
	case strings.HasSuffix(name, "_not_empty"):
		field := strings.TrimSuffix(name, "_not_empty")
		if field == "" {
			field = defaultField
		}
		v, ok := actual[field]
		if !ok {
			return false, fmt.Sprintf("field %q is missing", field)
		}
		if v.IsEmpty() {
			return false, fmt.Sprintf("field %q is empty", field)
		}
		return true, ""

	case name == "exact_match":
		if len(expected) == 0 {
			return false, "no expected outputs defined"
		}
		fields := make([]string, 0, len(expected))
		for f := range expected {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			got, ok := actual[f]
			if !ok {
				return false, fmt.Sprintf("field %q is missing", f)
			}
			if !got.Equal(expected[f]) {
				return false, fmt.Sprintf("field %q = %q, want %q", f, got.String(), expected[f].String())
			}
		}
		return true, ""

	default:
		return false, "no check is registered for this criterion name"
	}
}

func evaluateSpec(spec testsuite.RuleSpec, actual testsuite.Values, metrics map[string]float64) (bool, string) {
	if spec.Metric != "" {
		return checkMetricBounds(spec, metrics)
	}

	field := spec.Field
	if field == "" {
		field = defaultField
	}
	v, ok := actual[field]
	if !ok {
		return false, fmt.Sprintf("field %q is missing", field)
	}

	checked := false
	if spec.Equals != nil {
		checked = true
		s, isStr := v.AsString()
		if !isStr {
			return false, fmt.Sprintf("field %q is not a string", field)
		}
		if s != *spec.Equals {
			return false, fmt.Sprintf("field %q = %q, want %q", field, s, *spec.Equals)
		}
	}
	if spec.Contains != nil {
		checked = true
		if !strings.Contains(v.String(), *spec.Contains) {
			return false, fmt.Sprintf("field %q does not contain %q", field, *spec.Contains)
		}
	}
	if spec.Pattern != "" {
		checked = true
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return false, fmt.Sprintf("invalid pattern %q", spec.Pattern)
		}
		if !re.MatchString(v.String()) {
			return false, fmt.Sprintf("field %q does not match pattern %q", field, spec.Pattern)
		}
	}
	if spec.Min != nil || spec.Max != nil {
		checked = true
		s, isStr := v.AsString()
		if !isStr {
			return false, fmt.Sprintf("field %q is not numeric", field)
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return false, fmt.Sprintf("field %q is not numeric", field)
		}
		if ok, reason := inBounds(fmt.Sprintf("field %q", field), n, spec.Min, spec.Max); !ok {
			return false, reason
		}
	}

	if !checked {
		return false, "rule defines no checks"
	}
	return true, ""
}

// checkUpperBound treats a bare numeric rule as an inclusive upper bound on
// the metric named by the criterion.
func checkUpperBound(metric string, bound float64, metrics map[string]float64) (bool, string) {
	n, ok := metrics[metric]
	if !ok {
		return false, fmt.Sprintf("metric %q was not recorded", metric)
	}
	if n > bound {
		return false, fmt.Sprintf("metric %q = %s exceeds %s", metric, formatNumber(n), formatNumber(bound))
	}
	return true, ""
}

func checkMetricBounds(spec testsuite.RuleSpec, metrics map[string]float64) (bool, string) {
	n, ok := metrics[spec.Metric]
	if !ok {
		return false, fmt.Sprintf("metric %q was not recorded", spec.Metric)
	}
	if spec.Min == nil && spec.Max == nil {
		return false, fmt.Sprintf("rule for metric %q defines no bounds", spec.Metric)
	}
	return inBounds(fmt.Sprintf("metric %q", spec.Metric), n, spec.Min, spec.Max)
}

func inBounds(what string, n float64, min, max *float64) (bool, string) {
	if min != nil && n < *min {
		return false, fmt.Sprintf("%s = %s is below %s", what, formatNumber(n), formatNumber(*min))
	}
	if max != nil && n > *max {
		return false, fmt.Sprintf("%s = %s exceeds %s", what, formatNumber(n), formatNumber(*max))
	}
	return true, ""
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
