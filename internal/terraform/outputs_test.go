package terraform

import (
	"errors"
	"testing"
)

func TestOutputsRequired(t *testing.T) {
	outputs, err := ParseOutputs([]byte(`{
		"state_rg_name": {"value": "rg-state"},
		"port": {"value": 8443},
		"nullish": {"value": null}
	}`))
	if err != nil {
		t.Fatalf("ParseOutputs: %v", err)
	}

	got, err := outputs.Required("state_rg_name")
	if err != nil || got != "rg-state" {
		t.Fatalf("Required(state_rg_name) = %q, %v", got, err)
	}
	got, err = outputs.Required("port")
	if err != nil || got != "8443" {
		t.Fatalf("Required(port) = %q, %v", got, err)
	}

	var missing *MissingOutputError
	if _, err := outputs.Required("absent"); !errors.As(err, &missing) || missing.Name != "absent" {
		t.Fatalf("Required(absent) error = %v, want MissingOutputError{absent}", err)
	}
	if _, err := outputs.Required("nullish"); !errors.As(err, &missing) {
		t.Fatalf("Required(nullish) error = %v, want MissingOutputError", err)
	}
}

func TestOutputsOptional(t *testing.T) {
	outputs := Outputs{
		"key_vault_name": {Value: "kv-dev"},
		"nullish":        {Value: nil},
	}
	if got := outputs.Optional("key_vault_name"); got != "kv-dev" {
		t.Fatalf("Optional(key_vault_name) = %q", got)
	}
	if got := outputs.Optional("absent"); got != "" {
		t.Fatalf("Optional(absent) = %q, want empty", got)
	}
	if got := outputs.Optional("nullish"); got != "" {
		t.Fatalf("Optional(nullish) = %q, want empty", got)
	}
}

func TestOutputsStringSlice(t *testing.T) {
	outputs, err := ParseOutputs([]byte(`{
		"names": {"value": ["azure-openai-key-0", "azure-openai-key-1"]},
		"scalar": {"value": "x"}
	}`))
	if err != nil {
		t.Fatalf("ParseOutputs: %v", err)
	}
	names := outputs.StringSlice("names")
	if len(names) != 2 || names[0] != "azure-openai-key-0" || names[1] != "azure-openai-key-1" {
		t.Fatalf("StringSlice(names) = %v", names)
	}
	if got := outputs.StringSlice("scalar"); got != nil {
		t.Fatalf("StringSlice(scalar) = %v, want nil", got)
	}
	if got := outputs.StringSlice("absent"); got != nil {
		t.Fatalf("StringSlice(absent) = %v, want nil", got)
	}
}
