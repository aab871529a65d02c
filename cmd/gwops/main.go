// main.go bootstraps gwops: it builds the root Cobra command and executes with a signal-aware context.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/example/gwops/internal/azure"
	"github.com/example/gwops/internal/deploy"
	"github.com/example/gwops/internal/execx"
	"github.com/example/gwops/internal/logging"
	"github.com/example/gwops/internal/terraform"
	"github.com/example/gwops/internal/tfvars"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	handleError(err)
	if err != nil {
		os.Exit(1)
	}
}

// rootOptions are the persistent settings every subcommand shares.
type rootOptions struct {
	Root     string
	Env      string
	LogLevel string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{
		Root:     ".",
		Env:      "dev",
		LogLevel: "info",
	}
	cmd := &cobra.Command{
		Use:           "gwops",
		Short:         "Staged terraform deployment pipeline for the gateway platform",
		Long:          "gwops drives the gateway platform's terraform stacks in order, carrying state, secrets, and configuration between stages.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Root, "root", opts.Root, "Repository root containing infra/terraform/stacks")
	cmd.PersistentFlags().StringVar(&opts.Env, "env", opts.Env, "Environment code (dev, test, prod, ...)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level for gwops output (debug, info, warn, error)")

	deployCmd := newDeployCommand(opts)
	varsCmd := newVarsCommand(opts)
	secretsCmd := newSecretsCommand(opts)
	cmd.AddCommand(deployCmd, varsCmd, secretsCmd, newVersionCommand())
	bindViper(cmd, deployCmd, varsCmd, secretsCmd)
	return cmd
}

// bindViper lets GWOPS_* environment variables and an optional config file
// supply defaults for any flag the operator did not pass explicitly.
func bindViper(commands ...*cobra.Command) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("GWOPS")
	v.AutomaticEnv()
	configFile := os.Getenv("GWOPS_CONFIG")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("gwops")
		v.AddConfigPath(".")
	}

	cobra.OnInitialize(func() {
		for _, cmd := range commands {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				cobra.CheckErr(err)
			}
			if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
				cobra.CheckErr(err)
			}
		}
		if err := v.ReadInConfig(); err != nil {
			var cfgErr viper.ConfigFileNotFoundError
			if !errors.As(err, &cfgErr) || configFile != "" {
				cobra.CheckErr(err)
			}
		}
		for _, cmd := range commands {
			for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()} {
				fs.VisitAll(func(f *pflag.Flag) {
					if f.Changed || !v.IsSet(f.Name) {
						return
					}
					if val := fmt.Sprintf("%v", v.Get(f.Name)); val != "" {
						_ = f.Value.Set(val)
					}
				})
			}
		}
	})
}

func handleError(err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	message := err.Error()
	var missing *terraform.MissingOutputError
	var exit *execx.ExitError
	switch {
	case errors.As(err, &missing):
		message = fmt.Sprintf("%s\nHint: the stage may need to be re-applied, or its stack does not expose this output yet.", err)
	case errors.As(err, &exit):
		kind := terraform.ClassifyError(err)
		if kind == terraform.KindFatal {
			message = fmt.Sprintf("%s\nHint: the failure is a quota or validation error; retrying will not help.", err)
		}
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}

// runtime bundles the collaborators every pipeline command needs,
// resolved once per invocation.
type runtime struct {
	Log      *zap.SugaredLogger
	Account  azure.Account
	Paths    deploy.Paths
	TF       *terraform.Runner
	Vars     *tfvars.Store
	Vault    *azure.KeyVault
	Deployer *deploy.Deployer
}

func newRuntime(ctx context.Context, opts *rootOptions) (*runtime, error) {
	log, err := logging.New(opts.LogLevel)
	if err != nil {
		return nil, err
	}
	if err := execx.EnsureTools("terraform", "az"); err != nil {
		return nil, err
	}
	account, err := azure.CurrentAccount(ctx)
	if err != nil {
		return nil, err
	}
	log.Infof("Using subscription %s (env %s)", account.SubscriptionID, opts.Env)

	paths := deploy.ResolvePaths(opts.Root)
	tf := terraform.NewRunner(log)
	store := &tfvars.Store{Log: log, Diff: &tfvars.UnifiedDiffLogger{Log: log}}
	vault := azure.NewKeyVault(log)
	return &runtime{
		Log:     log,
		Account: account,
		Paths:   paths,
		TF:      tf,
		Vars:    store,
		Vault:   vault,
		Deployer: &deploy.Deployer{
			Log:     log,
			Env:     opts.Env,
			Paths:   paths,
			Account: account,
			TF:      tf,
			Vars:    store,
			Vault:   vault,
		},
	}, nil
}
