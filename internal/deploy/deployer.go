// File: internal/deploy/deployer.go
// Brief: The stage pipeline: bootstrap, platform, observability, foundry, workload.

// Package deploy orchestrates the staged terraform pipeline. Stages run
// strictly in order; each later stage consumes the typed state of the
// ones before it rather than re-reading their outputs ad hoc.
package deploy

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/example/gwops/internal/azure"
	"github.com/example/gwops/internal/envfile"
	"github.com/example/gwops/internal/execx"
	"github.com/example/gwops/internal/images"
	"github.com/example/gwops/internal/secrets"
	"github.com/example/gwops/internal/terraform"
	"github.com/example/gwops/internal/tfvars"
)

// Deployer runs the stage pipeline for one environment.
type Deployer struct {
	Log     *zap.SugaredLogger
	Env     string
	Paths   Paths
	Account azure.Account
	TF      *terraform.Runner
	Vars    *tfvars.Store
	Vault   *azure.KeyVault
}

// FoundryOptions configure the optional AI stage.
type FoundryOptions struct {
	// Enabled is false when the operator passed --no-azure-openai.
	Enabled bool
}

// WorkloadOptions configure the workload stage.
type WorkloadOptions struct {
	DeployE2E    bool
	NoImageBuild bool
	LocalDocker  bool
	SkipFoundry  bool
	Identifier   string

	Foundry       FoundryState
	Observability ObservabilityState
	Builder       *images.Builder
	// SyncEnvCommand, when set, is invoked before apply to push gateway
	// configuration into the vault.
	SyncEnvCommand []string
}

func (d *Deployer) backend(bootstrap BootstrapState, stage string) terraform.Backend {
	return terraform.Backend{
		TenantID:       d.Account.TenantID,
		ResourceGroup:  bootstrap.ResourceGroup,
		StorageAccount: bootstrap.StorageAccount,
		Container:      bootstrap.Container,
		Key:            terraform.StateKey(bootstrap.StatePrefix, stage),
	}
}

func (d *Deployer) bootstrapStatePath() string {
	return filepath.Join(d.Paths.Bootstrap, ".state", d.Env, "bootstrap.tfstate")
}

// DeployBootstrap applies the bootstrap stage against a local backend and
// returns the remote-state coordinates it created.
func (d *Deployer) DeployBootstrap(ctx context.Context) (BootstrapState, error) {
	d.Log.Infof("Stage %s", StageBootstrap)
	varFile, err := d.Vars.Ensure(d.Paths.Bootstrap, d.Env, d.Account.SubscriptionID, d.Account.TenantID)
	if err != nil {
		return BootstrapState{}, err
	}
	env := CoreEnv(d.Env, d.Account)
	if err := d.TF.InitLocal(ctx, d.Paths.Bootstrap, d.bootstrapStatePath(), env); err != nil {
		return BootstrapState{}, err
	}
	if err := d.TF.Apply(ctx, d.Paths.Bootstrap, varFile, env); err != nil {
		return BootstrapState{}, err
	}
	outputs, err := d.TF.Output(ctx, d.Paths.Bootstrap, env)
	if err != nil {
		return BootstrapState{}, err
	}
	return BootstrapStateFromOutputs(outputs)
}

// LoadBootstrapState reads the bootstrap outputs from the local state
// file without applying. A missing state file means the stage never ran.
func (d *Deployer) LoadBootstrapState(ctx context.Context) (BootstrapState, error) {
	statePath := d.bootstrapStatePath()
	if _, err := os.Stat(statePath); err != nil {
		return BootstrapState{}, fmt.Errorf("bootstrap state not found for env %q (%s); run `gwops deploy bootstrap` first", d.Env, statePath)
	}
	env := CoreEnv(d.Env, d.Account)
	if err := d.TF.InitLocal(ctx, d.Paths.Bootstrap, statePath, env); err != nil {
		return BootstrapState{}, err
	}
	outputs, err := d.TF.Output(ctx, d.Paths.Bootstrap, env)
	if err != nil {
		return BootstrapState{}, err
	}
	return BootstrapStateFromOutputs(outputs)
}

// DeployPlatform applies the platform stage against the remote backend.
func (d *Deployer) DeployPlatform(ctx context.Context, bootstrap BootstrapState) (FoundationState, error) {
	d.Log.Infof("Stage %s", StagePlatform)
	varFile, err := d.Vars.Ensure(d.Paths.Foundation, d.Env, d.Account.SubscriptionID, d.Account.TenantID)
	if err != nil {
		return FoundationState{}, err
	}
	env := CoreEnv(d.Env, d.Account)
	if err := d.TF.InitRemote(ctx, d.Paths.Foundation, d.backend(bootstrap, StagePlatform), env); err != nil {
		return FoundationState{}, err
	}
	if err := d.TF.Apply(ctx, d.Paths.Foundation, varFile, env); err != nil {
		return FoundationState{}, err
	}
	outputs, err := d.TF.Output(ctx, d.Paths.Foundation, env)
	if err != nil {
		return FoundationState{}, err
	}
	return FoundationStateFromOutputs(outputs)
}

// LoadFoundationState reads the platform stage's outputs without applying.
func (d *Deployer) LoadFoundationState(ctx context.Context, bootstrap BootstrapState) (FoundationState, error) {
	env := CoreEnv(d.Env, d.Account)
	if err := d.TF.InitRemote(ctx, d.Paths.Foundation, d.backend(bootstrap, StagePlatform), env); err != nil {
		return FoundationState{}, err
	}
	outputs, err := d.TF.Output(ctx, d.Paths.Foundation, env)
	if err != nil {
		return FoundationState{}, err
	}
	return FoundationStateFromOutputs(outputs)
}

// DeployObservability applies the optional observability stage. A missing
// stack directory skips the stage rather than failing.
func (d *Deployer) DeployObservability(ctx context.Context, bootstrap BootstrapState, foundation FoundationState) (ObservabilityState, error) {
	if _, err := os.Stat(d.Paths.Observability); os.IsNotExist(err) {
		d.Log.Infof("Stage %s directory not present (%s); skipping", StageObservability, d.Paths.Observability)
		return ObservabilityState{}, nil
	}

	d.Log.Infof("Stage %s", StageObservability)
	varFile, err := d.Vars.Ensure(d.Paths.Observability, d.Env, d.Account.SubscriptionID, d.Account.TenantID)
	if err != nil {
		return ObservabilityState{}, err
	}
	env := FoundationEnv(d.Env, d.Account, bootstrap, foundation)
	if err := d.TF.InitRemote(ctx, d.Paths.Observability, d.backend(bootstrap, StageObservability), env); err != nil {
		return ObservabilityState{}, err
	}
	if err := d.TF.Apply(ctx, d.Paths.Observability, varFile, env); err != nil {
		return ObservabilityState{}, err
	}
	outputs, err := d.TF.Output(ctx, d.Paths.Observability, env)
	if err != nil {
		return ObservabilityState{}, err
	}
	return ObservabilityStateFromOutputs(outputs)
}

// LoadObservabilityState reads the observability stage's outputs without
// applying. The stage is optional: a missing directory, unreadable state,
// or incomplete outputs each degrade to a zero state with a distinct log
// line instead of aborting the caller.
func (d *Deployer) LoadObservabilityState(ctx context.Context, bootstrap BootstrapState, foundation FoundationState) (ObservabilityState, error) {
	if _, err := os.Stat(d.Paths.Observability); os.IsNotExist(err) {
		d.Log.Infof("Stage %s directory not present (%s); telemetry disabled", StageObservability, d.Paths.Observability)
		return ObservabilityState{}, nil
	}
	env := FoundationEnv(d.Env, d.Account, bootstrap, foundation)
	if err := d.TF.InitRemote(ctx, d.Paths.Observability, d.backend(bootstrap, StageObservability), env); err != nil {
		d.Log.Infof("Observability state unreadable (%v); telemetry disabled", err)
		return ObservabilityState{}, nil
	}
	outputs, err := d.TF.Output(ctx, d.Paths.Observability, env)
	if err != nil {
		d.Log.Infof("Observability outputs unreadable (%v); telemetry disabled", err)
		return ObservabilityState{}, nil
	}
	state, err := ObservabilityStateFromOutputs(outputs)
	if err != nil {
		d.Log.Infof("Observability stage not applied yet (%v); telemetry disabled", err)
		return ObservabilityState{}, nil
	}
	return state, nil
}

// DeployFoundry applies the optional AI stage and reconciles its
// provisioned keys into the platform Key Vault. A disabled flag or a
// missing stack directory skips the stage rather than failing.
func (d *Deployer) DeployFoundry(ctx context.Context, bootstrap BootstrapState, foundation FoundationState, opts FoundryOptions) (FoundryState, error) {
	if !opts.Enabled {
		d.Log.Infof("Stage %s disabled (--no-azure-openai); skipping", StageFoundry)
		return FoundryState{}, nil
	}
	if _, err := os.Stat(d.Paths.Foundry); os.IsNotExist(err) {
		d.Log.Infof("Stage %s directory not present (%s); skipping", StageFoundry, d.Paths.Foundry)
		return FoundryState{}, nil
	}

	d.Log.Infof("Stage %s", StageFoundry)
	varFile, err := d.Vars.Ensure(d.Paths.Foundry, d.Env, d.Account.SubscriptionID, d.Account.TenantID)
	if err != nil {
		return FoundryState{}, err
	}
	// Record the remote-state coordinates so the stage can read platform
	// outputs through a terraform_remote_state data source.
	err = d.Vars.Update(varFile, map[string]any{
		"remote_state_resource_group_name":  bootstrap.ResourceGroup,
		"remote_state_storage_account_name": bootstrap.StorageAccount,
		"remote_state_container_name":       bootstrap.Container,
		"foundation_state_blob_key":         terraform.StateKey(bootstrap.StatePrefix, StagePlatform),
	})
	if err != nil {
		return FoundryState{}, err
	}

	env := FoundationEnv(d.Env, d.Account, bootstrap, foundation)
	if err := d.TF.InitRemote(ctx, d.Paths.Foundry, d.backend(bootstrap, StageFoundry), env); err != nil {
		return FoundryState{}, err
	}
	if err := d.TF.Apply(ctx, d.Paths.Foundry, varFile, env); err != nil {
		return FoundryState{}, err
	}

	if foundation.KeyVaultName == "" {
		return FoundryState{}, fmt.Errorf("platform stage exposed no key_vault_name output; cannot store provisioned keys")
	}
	seeder := &secrets.Seeder{
		Log:      d.Log,
		Store:    d.Vault,
		Upstream: d.foundryUpstream(bootstrap, foundation),
	}
	summary, err := seeder.Seed(ctx, foundation.KeyVaultName, secrets.Options{AllowPlaceholders: false})
	if err != nil {
		return FoundryState{}, err
	}
	if len(summary.Seeded) == 0 && len(summary.Unchanged) == 0 {
		d.Log.Warnf("Foundry stage applied but no provisioned secrets were stored")
	}
	return FoundryState{
		Provisioned:  true,
		StateBlobKey: terraform.StateKey(bootstrap.StatePrefix, StageFoundry),
	}, nil
}

// foundryUpstream reads the foundry stage's provisioned secret names and
// values out of its remote state.
func (d *Deployer) foundryUpstream(bootstrap BootstrapState, foundation FoundationState) secrets.UpstreamLoader {
	return func(ctx context.Context) ([]string, []string, error) {
		env := FoundationEnv(d.Env, d.Account, bootstrap, foundation)
		if err := d.TF.InitRemote(ctx, d.Paths.Foundry, d.backend(bootstrap, StageFoundry), env); err != nil {
			return nil, nil, err
		}
		outputs, err := d.TF.Output(ctx, d.Paths.Foundry, env)
		if err != nil {
			return nil, nil, err
		}
		names := outputs.StringSlice("azure_openai_key_vault_secret_names")
		values := outputs.StringSlice("azure_openai_primary_keys")
		return names, values, nil
	}
}

// FoundryKeyLoader resolves the pipeline state on demand and reads the
// foundry stage's provisioned keys. Any missing stage along the way reads
// as "no provisioned material" to the seeder.
func (d *Deployer) FoundryKeyLoader() secrets.UpstreamLoader {
	return func(ctx context.Context) ([]string, []string, error) {
		if _, err := os.Stat(d.Paths.Foundry); os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("foundry stack not present at %s", d.Paths.Foundry)
		}
		bootstrap, err := d.LoadBootstrapState(ctx)
		if err != nil {
			return nil, nil, err
		}
		foundation, err := d.LoadFoundationState(ctx, bootstrap)
		if err != nil {
			return nil, nil, err
		}
		return d.foundryUpstream(bootstrap, foundation)(ctx)
	}
}

// DetectFoundryState probes whether the foundry stage has been applied
// before, without applying anything. Unreadable state degrades to "not
// provisioned" with a log line rather than failing the caller.
func (d *Deployer) DetectFoundryState(ctx context.Context, bootstrap BootstrapState, foundation FoundationState) FoundryState {
	if _, err := os.Stat(d.Paths.Foundry); os.IsNotExist(err) {
		return FoundryState{}
	}
	env := FoundationEnv(d.Env, d.Account, bootstrap, foundation)
	if err := d.TF.InitRemote(ctx, d.Paths.Foundry, d.backend(bootstrap, StageFoundry), env); err != nil {
		d.Log.Infof("Foundry state unreadable (%v); treating as not provisioned", err)
		return FoundryState{}
	}
	outputs, err := d.TF.Output(ctx, d.Paths.Foundry, env)
	if err != nil {
		d.Log.Infof("Foundry outputs unreadable (%v); treating as not provisioned", err)
		return FoundryState{}
	}
	if len(outputs.StringSlice("azure_openai_key_vault_secret_names")) == 0 {
		return FoundryState{}
	}
	return FoundryState{
		Provisioned:  true,
		StateBlobKey: terraform.StateKey(bootstrap.StatePrefix, StageFoundry),
	}
}

// DeployWorkload applies the workload stage: builds or resolves container
// images, pushes gateway configuration, applies, and surfaces the
// resulting endpoints.
func (d *Deployer) DeployWorkload(ctx context.Context, bootstrap BootstrapState, foundation FoundationState, opts WorkloadOptions) error {
	d.Log.Infof("Stage %s", StageWorkload)
	varFile, err := d.Vars.Ensure(d.Paths.Workload, d.Env, d.Account.SubscriptionID, d.Account.TenantID)
	if err != nil {
		return err
	}

	env := mergeEnv(
		FoundationEnv(d.Env, d.Account, bootstrap, foundation),
		opts.Observability.Env(),
		FoundryEnv(opts.Foundry, opts.SkipFoundry),
	)
	useProvisioned := opts.Foundry.Provisioned && !opts.SkipFoundry
	if opts.DeployE2E {
		if err := applyE2EEnv(env); err != nil {
			return err
		}
	}

	if len(opts.SyncEnvCommand) > 0 {
		if foundation.KeyVaultName == "" {
			return fmt.Errorf("platform stage exposed no key_vault_name output; cannot sync gateway configuration")
		}
		args := append([]string(nil), opts.SyncEnvCommand...)
		args = append(args, "--key-vault", foundation.KeyVaultName)
		if opts.Identifier != "" {
			args = append(args, "--identifier", opts.Identifier)
		}
		args = append(args, "--use-provisioned-openai="+fmt.Sprintf("%t", useProvisioned))
		if _, err := execx.Run(ctx, execx.Command{Args: args, Env: env, Echo: execx.EchoAlways}); err != nil {
			return fmt.Errorf("sync gateway configuration: %w", err)
		}
	}

	var imageRefs map[string]string
	if opts.NoImageBuild {
		imageRefs, err = images.FromTfvars(varFile, opts.DeployE2E)
	} else {
		builder := opts.Builder
		if builder == nil {
			return fmt.Errorf("no image builder configured")
		}
		builder.LocalDocker = opts.LocalDocker
		imageRefs, err = builder.BuildAll(ctx, opts.DeployE2E)
	}
	if err != nil {
		return err
	}
	updates := make(map[string]any, len(imageRefs))
	for component, ref := range imageRefs {
		updates[images.TfvarsKey(component)] = ref
	}
	if err := d.Vars.Update(varFile, updates); err != nil {
		return err
	}

	if err := d.TF.InitRemote(ctx, d.Paths.Workload, d.backend(bootstrap, StageWorkload), env); err != nil {
		return err
	}
	if err := d.TF.Apply(ctx, d.Paths.Workload, varFile, env); err != nil {
		return err
	}

	outputs, err := d.TF.Output(ctx, d.Paths.Workload, env)
	if err != nil {
		return err
	}
	if err := d.emitToolkitOutputs(outputs); err != nil {
		d.Log.Warnf("Failed to record toolkit outputs: %v", err)
	}
	d.printGatewayKeys()
	return nil
}

// applyE2EEnv enables end-to-end test mode, generating shared secrets
// when the operator has not provided them.
func applyE2EEnv(env map[string]string) error {
	env["TF_VAR_gateway_e2e_test_mode"] = "true"

	for ambient, tfvar := range map[string]string{
		"GATEWAY_E2E_CLIENT_SECRET":    "TF_VAR_e2e_client_secret",
		"GATEWAY_E2E_SIMULATOR_SECRET": "TF_VAR_e2e_simulator_secret",
	} {
		value := os.Getenv(ambient)
		if value == "" {
			generated, err := randomHex(24)
			if err != nil {
				return fmt.Errorf("generate e2e secret: %w", err)
			}
			value = generated
		}
		env[tfvar] = value
	}

	port := os.Getenv("SIMULATOR_PORT")
	if port == "" {
		port = "8000"
	}
	env["TF_VAR_simulator_port"] = port
	return nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// emitToolkitOutputs writes the workload outputs as JSON where the gateway
// toolkit's scripts expect them. A missing toolkit checkout is not an
// error.
func (d *Deployer) emitToolkitOutputs(outputs terraform.Outputs) error {
	if _, err := os.Stat(d.Paths.ToolkitRoot); os.IsNotExist(err) {
		d.Log.Debugf("Toolkit directory not present (%s); skipping output export", d.Paths.ToolkitRoot)
		return nil
	}
	values := make(map[string]any, len(outputs))
	for name, entry := range outputs {
		values[name] = entry.Value
	}
	encoded, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(d.Paths.ToolkitRoot, "output-"+d.Env+".json")
	if err := os.WriteFile(path, append(encoded, '\n'), 0o644); err != nil {
		return err
	}
	d.Log.Infof("Wrote toolkit outputs: %s", path)
	return nil
}

// printGatewayKeys surfaces the client keys from the environment's secrets
// file so the operator can call the gateway straight after a deploy.
func (d *Deployer) printGatewayKeys() {
	path := filepath.Join(d.Paths.ConfigDir, "secrets."+d.Env+".env")
	pairs, err := envfile.Read(path)
	if err != nil {
		return
	}
	header := false
	bold := color.New(color.Bold)
	for _, pair := range pairs {
		if !strings.HasPrefix(pair.Key, "GATEWAY_CLIENT_KEY_") {
			continue
		}
		if !header {
			bold.Println("Gateway client keys:")
			header = true
		}
		fmt.Printf("  %s=%s\n", pair.Key, pair.Value)
	}
}
