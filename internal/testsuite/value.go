package testsuite

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValueKind identifies the shape held by a Value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindList
	KindMap
)

// Value is a single input or output field exchanged with an agent: a string,
// a list of strings, or a nested mapping. Agent payloads mix these shapes
// freely, so the closed union keeps criterion evaluation exhaustive instead
// of falling back to interface{} plumbing.
type Value struct {
	kind ValueKind
	str  string
	list []string
	m    map[string]Value
}

// Values is a named collection of fields: test case inputs, expected
// outputs, and the outputs an agent actually returned.
type Values map[string]Value

// StringValue returns a Value holding a single string.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// ListValue returns a Value holding a list of strings.
func ListValue(items ...string) Value {
	return Value{kind: KindList, list: items}
}

// MapValue returns a Value holding a nested mapping.
func MapValue(fields map[string]Value) Value {
	return Value{kind: KindMap, m: fields}
}

// Kind reports which shape the Value holds.
func (v Value) Kind() ValueKind {
	return v.kind
}

// AsString returns the string form and true when the Value is a string.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsList returns the list form and true when the Value is a list.
func (v Value) AsList() ([]string, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// AsMap returns the mapping form and true when the Value is a map.
func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

// IsEmpty reports whether the Value carries no content: a blank string, an
// empty list, or an empty map. Whitespace-only strings count as empty.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindString:
		return strings.TrimSpace(v.str) == ""
	case KindList:
		return len(v.list) == 0
	case KindMap:
		return len(v.m) == 0
	}
	return true
}

// Equal reports whether two Values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, val := range v.m {
			other, ok := o.m[k]
			if !ok || !val.Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the Value for log lines and failure reasons.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindList:
		return "[" + strings.Join(v.list, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+v.m[k].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return ""
}

func (v Value) toAny() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindList:
		return v.list
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, val := range v.m {
			out[k] = val.toAny()
		}
		return out
	}
	return nil
}

// valueFromAny coerces decoded JSON or YAML into the union. Scalars that are
// not strings (numbers, booleans, null) are rendered to their text form so a
// loosely-typed agent response never fails to decode.
func valueFromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return StringValue("")
	case string:
		return StringValue(t)
	case bool:
		return StringValue(strconv.FormatBool(t))
	case float64:
		return StringValue(strconv.FormatFloat(t, 'f', -1, 64))
	case int:
		return StringValue(strconv.Itoa(t))
	case int64:
		return StringValue(strconv.FormatInt(t, 10))
	case json.Number:
		return StringValue(t.String())
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				items = append(items, s)
				continue
			}
			items = append(items, valueFromAny(item).String())
		}
		return ListValue(items...)
	case []string:
		return ListValue(t...)
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			fields[k] = valueFromAny(item)
		}
		return MapValue(fields)
	case map[any]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			fields[fmt.Sprintf("%v", k)] = valueFromAny(item)
		}
		return MapValue(fields)
	}
	return StringValue(fmt.Sprintf("%v", raw))
}

// MarshalJSON encodes the Value in its natural JSON shape.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.toAny())
}

// UnmarshalJSON decodes any JSON value into the union.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode value: %w", err)
	}
	*v = valueFromAny(raw)
	return nil
}

// MarshalYAML encodes the Value in its natural YAML shape.
func (v Value) MarshalYAML() (any, error) {
	return v.toAny(), nil
}

// UnmarshalYAML decodes any YAML node into the union.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode value: %w", err)
	}
	*v = valueFromAny(raw)
	return nil
}

// Clone returns a deep copy so registry reads never alias caller state.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		items := make([]string, len(v.list))
		copy(items, v.list)
		return Value{kind: KindList, list: items}
	case KindMap:
		fields := make(map[string]Value, len(v.m))
		for k, val := range v.m {
			fields[k] = val.Clone()
		}
		return Value{kind: KindMap, m: fields}
	}
	return v
}

// Clone returns a deep copy of the collection.
func (vs Values) Clone() Values {
	if vs == nil {
		return nil
	}
	out := make(Values, len(vs))
	for k, v := range vs {
		out[k] = v.Clone()
	}
	return out
}
