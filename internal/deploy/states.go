// File: internal/deploy/states.go
// Brief: Typed cross-stage state built from terraform outputs.

package deploy

import (
	"github.com/example/gwops/internal/terraform"
)

// BootstrapState carries the remote-state coordinates every later stage
// keys its backend off.
type BootstrapState struct {
	ResourceGroup  string
	StorageAccount string
	Container      string
	StatePrefix    string
}

// FoundationState carries the platform resources consumed by the foundry
// and workload stages. KeyVaultName and ACAIdentityID are optional
// outputs and may be empty.
type FoundationState struct {
	Location              string
	PlatformResourceGroup string
	ACRName               string
	KeyVaultName          string
	ACAIdentityID         string
}

// ObservabilityState carries telemetry coordinates the workload exports
// to its containers. Optional outputs degrade to the empty string.
type ObservabilityState struct {
	Location                  string
	ResourceGroup             string
	LogAnalyticsWorkspaceID   string
	AppInsightsConnection     string
	AppInsightsKey            string
	MonitorWorkspaceID        string
	PrometheusRemoteWriteURL  string
	PrometheusQueryURL        string
	PrometheusDCRID           string
	GatewayLogsDCEID          string
	GatewayLogsDCRID          string
	GatewayLogsIngestURI      string
	GatewayLogsStreamName     string
	GatewayLogsTableName      string
}

// FoundryState records whether the optional AI stage was applied and, if
// so, where its state lives.
type FoundryState struct {
	Provisioned  bool
	StateBlobKey string
}

// BootstrapStateFromOutputs builds BootstrapState, deriving the state
// prefix from the bootstrap stage's own blob key.
func BootstrapStateFromOutputs(outputs terraform.Outputs) (BootstrapState, error) {
	resourceGroup, err := outputs.Required("state_rg_name")
	if err != nil {
		return BootstrapState{}, err
	}
	storageAccount, err := outputs.Required("storage_account_name")
	if err != nil {
		return BootstrapState{}, err
	}
	container, err := outputs.Required("state_container_name")
	if err != nil {
		return BootstrapState{}, err
	}
	blobKey, err := outputs.Required("state_blob_key")
	if err != nil {
		return BootstrapState{}, err
	}
	return BootstrapState{
		ResourceGroup:  resourceGroup,
		StorageAccount: storageAccount,
		Container:      container,
		StatePrefix:    terraform.StatePrefixFromBlobKey(blobKey),
	}, nil
}

// FoundationStateFromOutputs builds FoundationState from the platform
// stage's outputs.
func FoundationStateFromOutputs(outputs terraform.Outputs) (FoundationState, error) {
	location, err := outputs.Required("location")
	if err != nil {
		return FoundationState{}, err
	}
	platformRG, err := outputs.Required("platform_resource_group_name")
	if err != nil {
		return FoundationState{}, err
	}
	acrName, err := outputs.Required("platform_acr_name")
	if err != nil {
		return FoundationState{}, err
	}
	return FoundationState{
		Location:              location,
		PlatformResourceGroup: platformRG,
		ACRName:               acrName,
		KeyVaultName:          outputs.Optional("key_vault_name"),
		ACAIdentityID:         outputs.Optional("aca_managed_identity_id"),
	}, nil
}

// ObservabilityStateFromOutputs builds ObservabilityState from the
// observability stage's outputs.
func ObservabilityStateFromOutputs(outputs terraform.Outputs) (ObservabilityState, error) {
	location, err := outputs.Required("location")
	if err != nil {
		return ObservabilityState{}, err
	}
	resourceGroup, err := outputs.Required("observability_rg_name")
	if err != nil {
		return ObservabilityState{}, err
	}
	workspaceID, err := outputs.Required("log_analytics_workspace_id")
	if err != nil {
		return ObservabilityState{}, err
	}
	monitorWorkspaceID, err := outputs.Required("azure_monitor_workspace_id")
	if err != nil {
		return ObservabilityState{}, err
	}
	return ObservabilityState{
		Location:                 location,
		ResourceGroup:            resourceGroup,
		LogAnalyticsWorkspaceID:  workspaceID,
		AppInsightsConnection:    outputs.Optional("app_insights_connection_string"),
		AppInsightsKey:           outputs.Optional("app_insights_instrumentation_key"),
		MonitorWorkspaceID:       monitorWorkspaceID,
		PrometheusRemoteWriteURL: outputs.Optional("azure_monitor_prometheus_remote_write_endpoint"),
		PrometheusQueryURL:       outputs.Optional("azure_monitor_prometheus_query_endpoint"),
		PrometheusDCRID:          outputs.Optional("azure_monitor_prometheus_dcr_id"),
		GatewayLogsDCEID:         outputs.Optional("gateway_logs_dce_id"),
		GatewayLogsDCRID:         outputs.Optional("gateway_logs_dcr_id"),
		GatewayLogsIngestURI:     outputs.Optional("gateway_logs_ingest_uri"),
		GatewayLogsStreamName:    outputs.Optional("gateway_logs_stream_name"),
		GatewayLogsTableName:     outputs.Optional("gateway_logs_table_name"),
	}, nil
}
