// File: internal/terraform/outputs.go
// Brief: Typed accessors over a stage's raw output map.

package terraform

import (
	"encoding/json"
	"fmt"
)

// OutputValue is one entry of `terraform output -json`.
type OutputValue struct {
	Value any `json:"value"`
}

// Outputs is the read-only snapshot of a stage's outputs, taken once per
// stage application.
type Outputs map[string]OutputValue

// MissingOutputError names a required output that a stage did not expose.
type MissingOutputError struct {
	Name string
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("missing terraform output %q", e.Name)
}

// ParseOutputs decodes the JSON document printed by `terraform output -json`.
func ParseOutputs(raw []byte) (Outputs, error) {
	var out Outputs
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse terraform outputs: %w", err)
	}
	return out, nil
}

// Required returns the named output as text, failing when the output is
// absent or null.
func (o Outputs) Required(name string) (string, error) {
	entry, ok := o[name]
	if !ok || entry.Value == nil {
		return "", &MissingOutputError{Name: name}
	}
	return stringify(entry.Value), nil
}

// Optional returns the named output as text, or the empty string when the
// output is absent or null.
func (o Outputs) Optional(name string) string {
	entry, ok := o[name]
	if !ok || entry.Value == nil {
		return ""
	}
	return stringify(entry.Value)
}

// StringSlice returns a list-valued output as strings; absent or null
// outputs yield nil.
func (o Outputs) StringSlice(name string) []string {
	entry, ok := o[name]
	if !ok || entry.Value == nil {
		return nil
	}
	items, ok := entry.Value.([]any)
	if !ok {
		return nil
	}
	values := make([]string, 0, len(items))
	for _, item := range items {
		values = append(values, stringify(item))
	}
	return values
}

func stringify(v any) string {
	switch typed := v.(type) {
	case string:
		return typed
	case bool:
		if typed {
			return "true"
		}
		return "false"
	case float64:
		// JSON numbers decode as float64; render integers without a point.
		if typed == float64(int64(typed)) {
			return fmt.Sprintf("%d", int64(typed))
		}
		return fmt.Sprintf("%g", typed)
	default:
		return fmt.Sprintf("%v", v)
	}
}
