// File: internal/deploy/env.go
// Brief: Explicit per-stage environment maps passed to child processes.

package deploy

import (
	"strconv"

	"github.com/example/gwops/internal/azure"
	"github.com/example/gwops/internal/terraform"
)

// CoreEnv returns the variables every stage needs. The maps are handed
// to child processes only; ambient process environment is never mutated.
func CoreEnv(env string, account azure.Account) map[string]string {
	return map[string]string{
		"TF_VAR_subscription_id":  account.SubscriptionID,
		"TF_VAR_tenant_id":        account.TenantID,
		"TF_VAR_environment_code": env,
		"ARM_SUBSCRIPTION_ID":     account.SubscriptionID,
		"ARM_TENANT_ID":           account.TenantID,
	}
}

// FoundationEnv extends CoreEnv with the platform and remote-state
// coordinates downstream stages consume. Optional foundation fields are
// only exported when present.
func FoundationEnv(env string, account azure.Account, bootstrap BootstrapState, foundation FoundationState) map[string]string {
	vars := CoreEnv(env, account)
	vars["TF_VAR_location"] = foundation.Location
	vars["TF_VAR_platform_resource_group_name"] = foundation.PlatformResourceGroup
	vars["TF_VAR_platform_acr_name"] = foundation.ACRName
	vars["TF_VAR_state_resource_group_name"] = bootstrap.ResourceGroup
	vars["TF_VAR_state_storage_account_name"] = bootstrap.StorageAccount
	vars["TF_VAR_state_container_name"] = bootstrap.Container
	vars["TF_VAR_remote_state_resource_group_name"] = bootstrap.ResourceGroup
	vars["TF_VAR_remote_state_storage_account_name"] = bootstrap.StorageAccount
	vars["TF_VAR_remote_state_container_name"] = bootstrap.Container
	vars["TF_VAR_foundation_state_blob_key"] = terraform.StateKey(bootstrap.StatePrefix, StagePlatform)
	if foundation.KeyVaultName != "" {
		vars["TF_VAR_key_vault_name"] = foundation.KeyVaultName
	}
	if foundation.ACAIdentityID != "" {
		vars["TF_VAR_aca_managed_identity_id"] = foundation.ACAIdentityID
	}
	return vars
}

// FoundryEnv records whether provisioned OpenAI backs the workload and,
// when it does, where the foundry state lives.
func FoundryEnv(foundry FoundryState, skip bool) map[string]string {
	use := foundry.Provisioned && !skip
	vars := map[string]string{
		"TF_VAR_use_provisioned_azure_openai": strconv.FormatBool(use),
	}
	if use {
		vars["TF_VAR_foundry_state_blob_key"] = foundry.StateBlobKey
	}
	return vars
}

// Env returns the observability variables the workload stage exports to
// its containers. Empty fields are omitted so the stage's own defaults
// apply.
func (s ObservabilityState) Env() map[string]string {
	vars := make(map[string]string)
	set := func(key, value string) {
		if value != "" {
			vars[key] = value
		}
	}
	set("TF_VAR_log_analytics_workspace_id", s.LogAnalyticsWorkspaceID)
	set("TF_VAR_app_insights_connection_string", s.AppInsightsConnection)
	set("TF_VAR_app_insights_instrumentation_key", s.AppInsightsKey)
	set("TF_VAR_azure_monitor_workspace_id", s.MonitorWorkspaceID)
	set("TF_VAR_prometheus_remote_write_endpoint", s.PrometheusRemoteWriteURL)
	set("TF_VAR_prometheus_query_endpoint", s.PrometheusQueryURL)
	set("TF_VAR_prometheus_dcr_id", s.PrometheusDCRID)
	set("TF_VAR_gateway_logs_dce_id", s.GatewayLogsDCEID)
	set("TF_VAR_gateway_logs_dcr_id", s.GatewayLogsDCRID)
	set("TF_VAR_gateway_logs_ingest_uri", s.GatewayLogsIngestURI)
	set("TF_VAR_gateway_logs_stream_name", s.GatewayLogsStreamName)
	set("TF_VAR_gateway_logs_table_name", s.GatewayLogsTableName)
	return vars
}

// mergeEnv copies overlays into a fresh map without mutating any input.
func mergeEnv(maps ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}
