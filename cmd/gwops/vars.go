// vars.go defines `gwops vars sync`.
package main

import (
	"github.com/spf13/cobra"

	"github.com/example/gwops/internal/vars"
)

func newVarsCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vars",
		Short:         "Manage per-environment gateway configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newVarsSyncCommand(root))
	return cmd
}

func newVarsSyncCommand(root *rootOptions) *cobra.Command {
	opts := vars.Options{}
	cmd := &cobra.Command{
		Use:           "sync",
		Short:         "Push environment configuration and secrets into the Key Vault",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), root)
			if err != nil {
				return err
			}
			syncer := &vars.Syncer{
				Log:   rt.Log,
				Env:   root.Env,
				Paths: rt.Paths,
				Vault: rt.Vault,
				TF:    rt.TF,
			}
			opts.Upstream = rt.Deployer.FoundryKeyLoader()
			return syncer.Run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.KeyVault, "key-vault", "", "Key Vault to sync into (default: recorded by the last deploy)")
	cmd.Flags().StringVar(&opts.Identifier, "identifier", "", "Deployment identifier for vault secret scoping")
	cmd.Flags().BoolVar(&opts.UseProvisionedOpenAI, "use-provisioned-openai", false, "Mark the OpenAI secrets as backed by provisioned keys")
	cmd.Flags().BoolVar(&opts.Apply, "apply", false, "Re-apply the workload stack after syncing")
	return cmd
}
