package testsuite

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleKind identifies the shape of an evaluation criterion.
type RuleKind int

const (
	// RuleText is a prose description; the check is chosen by criterion name.
	RuleText RuleKind = iota
	// RuleThreshold is a bare number bounding the metric named by the criterion.
	RuleThreshold
	// RuleConfig is a structured rule naming a field or metric and a check.
	RuleConfig
)

// RuleSpec is the structured form of a criterion. Exactly which checks run
// depends on which fields are set; every set check must hold for the
// criterion to pass.
type RuleSpec struct {
	// Field names the output field to inspect. Defaults to "response".
	Field string `json:"field,omitempty" yaml:"field,omitempty"`
	// Equals requires the field to match this string exactly.
	Equals *string `json:"equals,omitempty" yaml:"equals,omitempty"`
	// Contains requires the field to contain this substring.
	Contains *string `json:"contains,omitempty" yaml:"contains,omitempty"`
	// Pattern requires the field to match this regular expression.
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	// Metric names a recorded metric to bound instead of an output field.
	Metric string `json:"metric,omitempty" yaml:"metric,omitempty"`
	// Min and Max bound the named metric inclusively.
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	// Description carries the human explanation for reports.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Rule is one evaluation criterion. The wire form is a union: a plain string
// describes a named check, a bare number bounds a metric, and a mapping
// carries a RuleSpec.
type Rule struct {
	kind      RuleKind
	text      string
	threshold float64
	spec      RuleSpec
}

// Criteria maps criterion names to their rules. A test case passes only when
// every criterion passes.
type Criteria map[string]Rule

// TextRule returns a prose criterion resolved by its name.
func TextRule(description string) Rule {
	return Rule{kind: RuleText, text: description}
}

// ThresholdRule returns a numeric bound for the metric named by the criterion.
func ThresholdRule(bound float64) Rule {
	return Rule{kind: RuleThreshold, threshold: bound}
}

// SpecRule returns a structured criterion.
func SpecRule(spec RuleSpec) Rule {
	return Rule{kind: RuleConfig, spec: spec}
}

// Kind reports the rule shape.
func (r Rule) Kind() RuleKind {
	return r.kind
}

// Text returns the prose description for RuleText rules, or the spec
// description for RuleConfig rules.
func (r Rule) Text() string {
	if r.kind == RuleConfig {
		return r.spec.Description
	}
	return r.text
}

// Threshold returns the numeric bound for RuleThreshold rules.
func (r Rule) Threshold() float64 {
	return r.threshold
}

// Spec returns the structured form for RuleConfig rules.
func (r Rule) Spec() RuleSpec {
	return r.spec
}

// MarshalJSON encodes the rule in its wire shape.
func (r Rule) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case RuleText:
		return json.Marshal(r.text)
	case RuleThreshold:
		return json.Marshal(r.threshold)
	case RuleConfig:
		return json.Marshal(r.spec)
	}
	return nil, fmt.Errorf("unknown rule kind %d", r.kind)
}

// UnmarshalJSON decodes a string, number, or mapping into the union.
func (r *Rule) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return fmt.Errorf("empty rule")
	}
	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return fmt.Errorf("failed to decode rule text: %w", err)
		}
		*r = TextRule(text)
		return nil
	case '{':
		var spec RuleSpec
		if err := json.Unmarshal(data, &spec); err != nil {
			return fmt.Errorf("failed to decode rule spec: %w", err)
		}
		*r = SpecRule(spec)
		return nil
	default:
		var bound float64
		if err := json.Unmarshal(data, &bound); err != nil {
			return fmt.Errorf("rule must be a string, number, or mapping: %w", err)
		}
		*r = ThresholdRule(bound)
		return nil
	}
}

// MarshalYAML encodes the rule in its wire shape.
func (r Rule) MarshalYAML() (any, error) {
	switch r.kind {
	case RuleText:
		return r.text, nil
	case RuleThreshold:
		return r.threshold, nil
	case RuleConfig:
		return r.spec, nil
	}
	return nil, fmt.Errorf("unknown rule kind %d", r.kind)
}

// UnmarshalYAML decodes a scalar or mapping node into the union.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		var spec RuleSpec
		if err := node.Decode(&spec); err != nil {
			return fmt.Errorf("failed to decode rule spec: %w", err)
		}
		*r = SpecRule(spec)
		return nil
	case yaml.ScalarNode:
		var bound float64
		if err := node.Decode(&bound); err == nil && node.Tag != "!!str" {
			*r = ThresholdRule(bound)
			return nil
		}
		var text string
		if err := node.Decode(&text); err != nil {
			return fmt.Errorf("failed to decode rule text: %w", err)
		}
		*r = TextRule(text)
		return nil
	default:
		return fmt.Errorf("rule must be a string, number, or mapping")
	}
}

// DefaultCriteria returns the baseline criterion applied when a custom case
// defines none: the agent must answer with something.
func DefaultCriteria() Criteria {
	return Criteria{
		"response_not_empty": TextRule("The agent should provide a non-empty response"),
	}
}

// Clone returns a copy of the criteria set.
func (c Criteria) Clone() Criteria {
	if c == nil {
		return nil
	}
	out := make(Criteria, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
