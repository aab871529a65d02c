// secrets.go defines `gwops secrets seed`.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/gwops/internal/secrets"
)

func newSecretsCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "secrets",
		Short:         "Reconcile OpenAI secrets in the Key Vault",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newSecretsSeedCommand(root))
	return cmd
}

func newSecretsSeedCommand(root *rootOptions) *cobra.Command {
	var (
		keyVault          string
		names             []string
		allowPlaceholders bool
		placeholderValue  string
	)
	cmd := &cobra.Command{
		Use:           "seed",
		Short:         "Seed the expected OpenAI secrets, with placeholders when no keys exist yet",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyVault == "" {
				return fmt.Errorf("--key-vault is required")
			}
			rt, err := newRuntime(cmd.Context(), root)
			if err != nil {
				return err
			}
			seeder := &secrets.Seeder{Log: rt.Log, Store: rt.Vault, Upstream: rt.Deployer.FoundryKeyLoader()}
			summary, err := seeder.Seed(cmd.Context(), keyVault, secrets.Options{
				ExpectedNames:     names,
				AllowPlaceholders: allowPlaceholders,
				PlaceholderValue:  placeholderValue,
			})
			if err != nil {
				return err
			}
			printSummary(summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyVault, "key-vault", "", "Key Vault to seed (required)")
	cmd.Flags().StringSliceVar(&names, "names", nil, "Secret names to ensure (repeat or comma-separated)")
	cmd.Flags().BoolVar(&allowPlaceholders, "allow-placeholders", false, "Write placeholder values when no provisioned keys exist")
	cmd.Flags().StringVar(&placeholderValue, "placeholder-value", "", "Value written for placeholder secrets (default \""+secrets.PlaceholderValue+"\")")
	return cmd
}

func printSummary(summary secrets.Summary) {
	bold := color.New(color.Bold)
	bold.Println("Secret reconciliation:")
	buckets := []struct {
		label string
		items []string
	}{
		{"seeded", summary.Seeded},
		{"placeholder", summary.Placeholders},
		{"unchanged", summary.Unchanged},
		{"skipped", summary.Skipped},
	}
	for _, bucket := range buckets {
		for _, name := range bucket.items {
			fmt.Printf("  %-11s %s\n", bucket.label, name)
		}
	}
}
