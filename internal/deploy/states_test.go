package deploy

import (
	"errors"
	"testing"

	"github.com/example/gwops/internal/terraform"
)

func outputsOf(values map[string]any) terraform.Outputs {
	out := make(terraform.Outputs, len(values))
	for name, value := range values {
		out[name] = terraform.OutputValue{Value: value}
	}
	return out
}

func TestBootstrapStateFromOutputs(t *testing.T) {
	state, err := BootstrapStateFromOutputs(outputsOf(map[string]any{
		"state_rg_name":        "rg-state",
		"storage_account_name": "stacct",
		"state_container_name": "tfstate",
		"state_blob_key":       "env/dev/terraform.tfstate",
	}))
	if err != nil {
		t.Fatalf("BootstrapStateFromOutputs: %v", err)
	}
	if state.StatePrefix != "env/dev" {
		t.Fatalf("StatePrefix = %q, want env/dev", state.StatePrefix)
	}
	if state.ResourceGroup != "rg-state" || state.StorageAccount != "stacct" || state.Container != "tfstate" {
		t.Fatalf("state = %+v", state)
	}
}

func TestBootstrapStateMissingOutput(t *testing.T) {
	_, err := BootstrapStateFromOutputs(outputsOf(map[string]any{
		"state_rg_name":        "rg-state",
		"storage_account_name": "stacct",
		"state_container_name": "tfstate",
	}))
	var missing *terraform.MissingOutputError
	if !errors.As(err, &missing) || missing.Name != "state_blob_key" {
		t.Fatalf("err = %v, want missing state_blob_key", err)
	}
}

func TestFoundationStateFromOutputs(t *testing.T) {
	state, err := FoundationStateFromOutputs(outputsOf(map[string]any{
		"location":                     "westeurope",
		"platform_resource_group_name": "rg-platform",
		"platform_acr_name":            "acrdev",
	}))
	if err != nil {
		t.Fatalf("FoundationStateFromOutputs: %v", err)
	}
	if state.KeyVaultName != "" || state.ACAIdentityID != "" {
		t.Fatalf("optional fields must default empty: %+v", state)
	}

	state, err = FoundationStateFromOutputs(outputsOf(map[string]any{
		"location":                     "westeurope",
		"platform_resource_group_name": "rg-platform",
		"platform_acr_name":            "acrdev",
		"key_vault_name":               "kv-dev",
		"aca_managed_identity_id":      nil,
	}))
	if err != nil {
		t.Fatalf("FoundationStateFromOutputs: %v", err)
	}
	if state.KeyVaultName != "kv-dev" || state.ACAIdentityID != "" {
		t.Fatalf("state = %+v", state)
	}
}

func TestObservabilityStateFromOutputs(t *testing.T) {
	_, err := ObservabilityStateFromOutputs(outputsOf(map[string]any{
		"location":              "westeurope",
		"observability_rg_name": "rg-obs",
	}))
	var missing *terraform.MissingOutputError
	if !errors.As(err, &missing) || missing.Name != "log_analytics_workspace_id" {
		t.Fatalf("err = %v, want missing log_analytics_workspace_id", err)
	}

	state, err := ObservabilityStateFromOutputs(outputsOf(map[string]any{
		"location":                   "westeurope",
		"observability_rg_name":      "rg-obs",
		"log_analytics_workspace_id": "/subscriptions/s/law",
		"azure_monitor_workspace_id": "/subscriptions/s/amw",
		"gateway_logs_stream_name":   "Custom-GatewayLogs",
	}))
	if err != nil {
		t.Fatalf("ObservabilityStateFromOutputs: %v", err)
	}
	if state.GatewayLogsStreamName != "Custom-GatewayLogs" || state.AppInsightsConnection != "" {
		t.Fatalf("state = %+v", state)
	}
}

func TestResolvePaths(t *testing.T) {
	paths := ResolvePaths("/repo")
	if paths.Bootstrap != "/repo/infra/terraform/stacks/00-bootstrap" {
		t.Fatalf("Bootstrap = %q", paths.Bootstrap)
	}
	if paths.Workload != "/repo/infra/terraform/stacks/20-workload" {
		t.Fatalf("Workload = %q", paths.Workload)
	}
	if paths.ConfigDir != "/repo/config" {
		t.Fatalf("ConfigDir = %q", paths.ConfigDir)
	}
}
