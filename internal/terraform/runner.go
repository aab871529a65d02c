// File: internal/terraform/runner.go
// Brief: Driver for the external terraform CLI: init, apply, output.

// Package terraform drives the external terraform CLI as a subprocess and
// owns everything the pipeline needs to reason about it: state-blob
// addressing, output accessors, error classification, and the retry
// policies that keep known-transient Azure failures from aborting a run.
package terraform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/example/gwops/internal/execx"
	"github.com/example/gwops/internal/retry"
)

// Backend holds the azurerm backend coordinates for a remote init.
type Backend struct {
	TenantID       string
	ResourceGroup  string
	StorageAccount string
	Container      string
	Key            string
}

// Runner executes terraform commands for one pipeline run. Invocations are
// strictly sequential; the runner blocks until each completes.
type Runner struct {
	log *zap.SugaredLogger

	initPolicy  retry.Policy
	applyPolicy retry.Policy
}

// NewRunner returns a Runner with the production retry policies: backend
// init retries storage RBAC propagation (8 attempts, 2s..30s), apply
// retries request conflicts (5 attempts, 5s..60s).
func NewRunner(log *zap.SugaredLogger) *Runner {
	return &Runner{
		log:         log,
		initPolicy:  retry.Policy{Target: string(KindStorageRbac), MaxAttempts: 8, Min: 2 * time.Second, Max: 30 * time.Second},
		applyPolicy: retry.Policy{Target: string(KindConflict), MaxAttempts: 5, Min: 5 * time.Second, Max: 60 * time.Second},
	}
}

// InitLocal runs `terraform init` against a local backend state file,
// creating the state directory when absent. Used only by the bootstrap
// stage, before any remote state exists.
func (r *Runner) InitLocal(ctx context.Context, dir, statePath string, env map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(statePath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	_, err := execx.Run(ctx, execx.Command{
		Args: []string{
			"terraform", "-chdir=" + dir, "init", "-reconfigure",
			"-backend-config=path=" + statePath,
		},
		Env:  env,
		Echo: execx.EchoAlways,
	})
	return err
}

// InitRemote runs `terraform init` against the azurerm remote backend,
// retrying storage RBAC propagation failures. The original error is
// surfaced untouched once attempts are exhausted.
func (r *Runner) InitRemote(ctx context.Context, dir string, backend Backend, env map[string]string) error {
	return r.initPolicy.Do(ctx, r.log, classifier, func() error {
		_, err := execx.Run(ctx, execx.Command{
			Args: []string{
				"terraform", "-chdir=" + dir, "init", "-reconfigure",
				"-backend-config=use_azuread_auth=true",
				"-backend-config=tenant_id=" + backend.TenantID,
				"-backend-config=resource_group_name=" + backend.ResourceGroup,
				"-backend-config=storage_account_name=" + backend.StorageAccount,
				"-backend-config=container_name=" + backend.Container,
				"-backend-config=key=" + backend.Key,
			},
			Env:  env,
			Echo: execx.EchoAlways,
		})
		return err
	})
}

// Apply runs `terraform apply -auto-approve`, retrying transient request
// conflicts. Fatal quota/validation failures surface immediately even when
// a conflict marker co-occurs.
func (r *Runner) Apply(ctx context.Context, dir, varFile string, env map[string]string) error {
	return r.applyPolicy.Do(ctx, r.log, classifier, func() error {
		_, err := execx.Run(ctx, execx.Command{
			Args: []string{
				"terraform", "-chdir=" + dir, "apply", "-auto-approve",
				"-var-file=" + filepath.Base(varFile),
			},
			Env:  env,
			Echo: execx.EchoAlways,
		})
		return err
	})
}

// Output reads and parses `terraform output -json` for a stage.
func (r *Runner) Output(ctx context.Context, dir string, env map[string]string) (Outputs, error) {
	res, err := execx.Run(ctx, execx.Command{
		Args: []string{"terraform", "-chdir=" + dir, "output", "-json"},
		Env:  env,
		Echo: execx.EchoNever,
	})
	if err != nil {
		return nil, err
	}
	return ParseOutputs([]byte(res.Stdout))
}
