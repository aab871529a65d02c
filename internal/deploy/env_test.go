package deploy

import (
	"testing"

	"github.com/example/gwops/internal/azure"
)

func testAccount() azure.Account {
	return azure.Account{SubscriptionID: "sub-123", TenantID: "ten-456"}
}

func TestCoreEnv(t *testing.T) {
	env := CoreEnv("dev", testAccount())
	want := map[string]string{
		"TF_VAR_subscription_id":  "sub-123",
		"TF_VAR_tenant_id":        "ten-456",
		"TF_VAR_environment_code": "dev",
		"ARM_SUBSCRIPTION_ID":     "sub-123",
		"ARM_TENANT_ID":           "ten-456",
	}
	for key, value := range want {
		if env[key] != value {
			t.Fatalf("CoreEnv[%s] = %q, want %q", key, env[key], value)
		}
	}
	if len(env) != len(want) {
		t.Fatalf("CoreEnv has %d entries, want %d", len(env), len(want))
	}
}

func TestFoundationEnvStateBlobKey(t *testing.T) {
	bootstrap := BootstrapState{
		ResourceGroup:  "rg-state",
		StorageAccount: "stacct",
		Container:      "tfstate",
		StatePrefix:    "env/dev",
	}
	foundation := FoundationState{
		Location:              "westeurope",
		PlatformResourceGroup: "rg-platform",
		ACRName:               "acrdev",
	}
	env := FoundationEnv("dev", testAccount(), bootstrap, foundation)

	if got := env["TF_VAR_foundation_state_blob_key"]; got != "env/dev/10-platform.tfstate" {
		t.Fatalf("foundation_state_blob_key = %q", got)
	}
	if env["TF_VAR_state_storage_account_name"] != "stacct" || env["TF_VAR_remote_state_storage_account_name"] != "stacct" {
		t.Fatal("state coordinates must be exported under both prefixes")
	}
	if _, ok := env["TF_VAR_key_vault_name"]; ok {
		t.Fatal("empty key vault name must not be exported")
	}

	foundation.KeyVaultName = "kv-dev"
	foundation.ACAIdentityID = "/subscriptions/s/id"
	env = FoundationEnv("dev", testAccount(), bootstrap, foundation)
	if env["TF_VAR_key_vault_name"] != "kv-dev" || env["TF_VAR_aca_managed_identity_id"] != "/subscriptions/s/id" {
		t.Fatalf("optional foundation fields missing: %v", env)
	}
}

func TestFoundationEnvDoesNotMutateInputs(t *testing.T) {
	bootstrap := BootstrapState{ResourceGroup: "rg", StorageAccount: "sa", Container: "c", StatePrefix: "p"}
	first := FoundationEnv("dev", testAccount(), bootstrap, FoundationState{Location: "l", PlatformResourceGroup: "rg-p", ACRName: "acr"})
	first["TF_VAR_location"] = "mutated"

	second := FoundationEnv("dev", testAccount(), bootstrap, FoundationState{Location: "l", PlatformResourceGroup: "rg-p", ACRName: "acr"})
	if second["TF_VAR_location"] != "l" {
		t.Fatalf("env maps must be independent per call, got %q", second["TF_VAR_location"])
	}
}

func TestObservabilityEnvOmitsEmpty(t *testing.T) {
	s := ObservabilityState{
		Location:                "westeurope",
		ResourceGroup:           "rg-obs",
		LogAnalyticsWorkspaceID: "/subscriptions/s/law",
		MonitorWorkspaceID:      "/subscriptions/s/amw",
	}
	env := s.Env()
	if env["TF_VAR_log_analytics_workspace_id"] != "/subscriptions/s/law" {
		t.Fatalf("workspace id missing: %v", env)
	}
	if _, ok := env["TF_VAR_app_insights_connection_string"]; ok {
		t.Fatal("empty connection string must be omitted")
	}
}

func TestFoundryEnvVariableNames(t *testing.T) {
	provisioned := FoundryState{Provisioned: true, StateBlobKey: "env/dev/15-foundry.tfstate"}

	env := FoundryEnv(provisioned, false)
	if env["TF_VAR_use_provisioned_azure_openai"] != "true" {
		t.Fatalf("use_provisioned_azure_openai = %q, want true", env["TF_VAR_use_provisioned_azure_openai"])
	}
	if env["TF_VAR_foundry_state_blob_key"] != "env/dev/15-foundry.tfstate" {
		t.Fatalf("foundry_state_blob_key = %q", env["TF_VAR_foundry_state_blob_key"])
	}

	env = FoundryEnv(provisioned, true)
	if env["TF_VAR_use_provisioned_azure_openai"] != "false" {
		t.Fatalf("skipped foundry must export false, got %q", env["TF_VAR_use_provisioned_azure_openai"])
	}
	if _, ok := env["TF_VAR_foundry_state_blob_key"]; ok {
		t.Fatal("skipped foundry must not export a state blob key")
	}

	env = FoundryEnv(FoundryState{}, false)
	if env["TF_VAR_use_provisioned_azure_openai"] != "false" {
		t.Fatalf("unprovisioned foundry must export false, got %q", env["TF_VAR_use_provisioned_azure_openai"])
	}
}

func TestMergeEnvLaterWins(t *testing.T) {
	merged := mergeEnv(
		map[string]string{"A": "1", "B": "1"},
		map[string]string{"B": "2", "C": "2"},
	)
	if merged["A"] != "1" || merged["B"] != "2" || merged["C"] != "2" {
		t.Fatalf("mergeEnv = %v", merged)
	}
}
