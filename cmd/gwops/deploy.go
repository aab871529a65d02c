// deploy.go defines the `gwops deploy` command tree: one subcommand per stage plus `all`.
package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/gwops/internal/deploy"
	"github.com/example/gwops/internal/images"
)

// deployOptions are the stage-selection flags shared by the deploy
// subcommands.
type deployOptions struct {
	NoAzureOpenAI bool
	DeployE2E     bool
	NoImageBuild  bool
	LocalDocker   bool
	Identifier    string
	BuildScript   string
}

func newDeployCommand(root *rootOptions) *cobra.Command {
	opts := &deployOptions{}
	cmd := &cobra.Command{
		Use:           "deploy",
		Short:         "Apply one stage of the pipeline, or all of them in order",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&opts.NoAzureOpenAI, "no-azure-openai", false, "Skip the Azure OpenAI stage")
	cmd.PersistentFlags().BoolVar(&opts.DeployE2E, "deploy-e2e", false, "Deploy the end-to-end test surface alongside the workload")
	cmd.PersistentFlags().BoolVar(&opts.NoImageBuild, "no-image-build", false, "Reuse image references from tfvars instead of building")
	cmd.PersistentFlags().BoolVar(&opts.LocalDocker, "local-docker", false, "Build images with the local docker daemon")
	cmd.PersistentFlags().StringVar(&opts.Identifier, "identifier", "", "Deployment identifier for vault secret scoping")
	cmd.PersistentFlags().StringVar(&opts.BuildScript, "build-script", "", "Build-and-push script (default scripts/build-and-push.sh under --root)")

	cmd.AddCommand(
		newStageCommand(root, "bootstrap", "Provision the remote-state backend", runBootstrap),
		newStageCommand(root, "platform", "Provision the shared platform resources", runPlatform),
		newStageCommand(root, "observability", "Provision telemetry and log routing", runObservability),
		newFoundryCommand(root, opts),
		newWorkloadCommand(root, opts),
		newAllCommand(root, opts),
	)
	return cmd
}

func newStageCommand(root *rootOptions, use, short string, run func(ctx context.Context, rt *runtime) error) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), root)
			if err != nil {
				return err
			}
			if err := run(cmd.Context(), rt); err != nil {
				return err
			}
			stageDone(use)
			return nil
		},
	}
}

func runBootstrap(ctx context.Context, rt *runtime) error {
	_, err := rt.Deployer.DeployBootstrap(ctx)
	return err
}

func runPlatform(ctx context.Context, rt *runtime) error {
	bootstrap, err := rt.Deployer.LoadBootstrapState(ctx)
	if err != nil {
		return err
	}
	_, err = rt.Deployer.DeployPlatform(ctx, bootstrap)
	return err
}

func runObservability(ctx context.Context, rt *runtime) error {
	bootstrap, err := rt.Deployer.LoadBootstrapState(ctx)
	if err != nil {
		return err
	}
	foundation, err := rt.Deployer.LoadFoundationState(ctx, bootstrap)
	if err != nil {
		return err
	}
	_, err = rt.Deployer.DeployObservability(ctx, bootstrap, foundation)
	return err
}

func newFoundryCommand(root *rootOptions, opts *deployOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "foundry",
		Short:         "Provision the Azure OpenAI resources and store their keys",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), root)
			if err != nil {
				return err
			}
			bootstrap, err := rt.Deployer.LoadBootstrapState(cmd.Context())
			if err != nil {
				return err
			}
			foundation, err := rt.Deployer.LoadFoundationState(cmd.Context(), bootstrap)
			if err != nil {
				return err
			}
			state, err := rt.Deployer.DeployFoundry(cmd.Context(), bootstrap, foundation, deploy.FoundryOptions{
				Enabled: !opts.NoAzureOpenAI,
			})
			if err != nil {
				return err
			}
			if state.Provisioned {
				stageDone("foundry")
			}
			return nil
		},
	}
}

func newWorkloadCommand(root *rootOptions, opts *deployOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "workload",
		Short:         "Build images and apply the gateway workload",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), root)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			bootstrap, err := rt.Deployer.LoadBootstrapState(ctx)
			if err != nil {
				return err
			}
			foundation, err := rt.Deployer.LoadFoundationState(ctx, bootstrap)
			if err != nil {
				return err
			}
			observability, err := rt.Deployer.LoadObservabilityState(ctx, bootstrap, foundation)
			if err != nil {
				return err
			}
			foundry := deploy.FoundryState{}
			if !opts.NoAzureOpenAI {
				foundry = rt.Deployer.DetectFoundryState(ctx, bootstrap, foundation)
			}
			if err := rt.Deployer.DeployWorkload(ctx, bootstrap, foundation, workloadOptions(ctx, root, opts, foundry, observability, rt)); err != nil {
				return err
			}
			stageDone("workload")
			return nil
		},
	}
}

func newAllCommand(root *rootOptions, opts *deployOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "all",
		Short:         "Run every stage in order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), root)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			bootstrap, err := rt.Deployer.DeployBootstrap(ctx)
			if err != nil {
				return err
			}
			foundation, err := rt.Deployer.DeployPlatform(ctx, bootstrap)
			if err != nil {
				return err
			}
			observability, err := rt.Deployer.DeployObservability(ctx, bootstrap, foundation)
			if err != nil {
				return err
			}
			foundry, err := rt.Deployer.DeployFoundry(ctx, bootstrap, foundation, deploy.FoundryOptions{
				Enabled: !opts.NoAzureOpenAI,
			})
			if err != nil {
				return err
			}
			if err := rt.Deployer.DeployWorkload(ctx, bootstrap, foundation, workloadOptions(ctx, root, opts, foundry, observability, rt)); err != nil {
				return err
			}
			stageDone("all")
			return nil
		},
	}
}

func workloadOptions(ctx context.Context, root *rootOptions, opts *deployOptions, foundry deploy.FoundryState, observability deploy.ObservabilityState, rt *runtime) deploy.WorkloadOptions {
	return deploy.WorkloadOptions{
		DeployE2E:     opts.DeployE2E,
		NoImageBuild:  opts.NoImageBuild,
		LocalDocker:   opts.LocalDocker,
		SkipFoundry:   opts.NoAzureOpenAI,
		Identifier:    opts.Identifier,
		Foundry:       foundry,
		Observability: observability,
		Builder: &images.Builder{
			Log:      rt.Log,
			Commands: buildCommands(root.Root, opts.BuildScript),
			Tag:      images.DeriveTag(ctx, root.Root),
		},
		SyncEnvCommand: []string{os.Args[0], "vars", "sync", "--root", root.Root, "--env", root.Env},
	}
}

// buildCommands maps each component to its build-and-push script
// invocation. The scripts print the pushed image reference as their last
// line.
func buildCommands(root, script string) map[string][]string {
	if script == "" {
		script = filepath.Join(root, "scripts", "build-and-push.sh")
	}
	return map[string][]string{
		images.Gateway:       {script, images.Gateway},
		images.Hydrenv:       {script, images.Hydrenv},
		images.ConfigAPI:     {script, images.ConfigAPI},
		images.AOAISimulator: {script, images.AOAISimulator},
	}
}

func stageDone(stage string) {
	color.New(color.FgGreen, color.Bold).Printf("✔ deploy %s complete\n", stage)
}
