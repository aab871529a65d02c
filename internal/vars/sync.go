// File: internal/vars/sync.go
// Brief: Push gateway configuration and secrets into the vault and tfvars.

// Package vars synchronizes the per-environment gateway configuration:
// secret material from config/secrets.<env>.env goes into the Key Vault,
// the OpenAI secret slots are reconciled, and the workload stack gets an
// environment.auto.tfvars.json recording where everything landed.
package vars

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/example/gwops/internal/azure"
	"github.com/example/gwops/internal/deploy"
	"github.com/example/gwops/internal/envfile"
	"github.com/example/gwops/internal/secrets"
	"github.com/example/gwops/internal/terraform"
)

// autoTfvarsName is the JSON tfvars file terraform picks up automatically
// in the workload stack.
const autoTfvarsName = "environment.auto.tfvars.json"

// Options configure one sync run.
type Options struct {
	// KeyVault overrides vault resolution when set.
	KeyVault string
	// Identifier distinguishes parallel deployments sharing a vault.
	Identifier string
	// UseProvisionedOpenAI marks the OpenAI secrets as backed by real
	// provisioned keys; placeholders are only written when it is false.
	UseProvisionedOpenAI bool
	// Apply re-applies the workload stack after syncing so the new
	// configuration takes effect.
	Apply bool
	// Upstream, when set, supplies provisioned OpenAI key material.
	Upstream secrets.UpstreamLoader
}

// Syncer pushes one environment's configuration.
type Syncer struct {
	Log   *zap.SugaredLogger
	Env   string
	Paths deploy.Paths
	Vault *azure.KeyVault
	TF    *terraform.Runner
}

// ResolveKeyVault picks the vault to sync into: the explicit override
// when given, otherwise the key_vault_name recorded in the workload
// stack's auto tfvars by a previous run.
func ResolveKeyVault(override, workloadDir string) (string, error) {
	if override != "" {
		return override, nil
	}
	raw, err := os.ReadFile(filepath.Join(workloadDir, autoTfvarsName))
	if err != nil {
		return "", fmt.Errorf("no --key-vault given and %s not found in %s; deploy the platform stage or pass --key-vault", autoTfvarsName, workloadDir)
	}
	var recorded struct {
		KeyVaultName string `json:"key_vault_name"`
	}
	if err := json.Unmarshal(raw, &recorded); err != nil {
		return "", fmt.Errorf("parse %s: %w", autoTfvarsName, err)
	}
	if recorded.KeyVaultName == "" {
		return "", fmt.Errorf("%s carries no key_vault_name; pass --key-vault", autoTfvarsName)
	}
	return recorded.KeyVaultName, nil
}

var openAIIndexed = regexp.MustCompile(`^AZURE_OPENAI_[A-Z_]*?(\d+)$`)

// InferOpenAISecretNames derives the vault secret slots from the indexed
// AZURE_OPENAI_* settings: one azure-openai-key-<i> per distinct index,
// sorted numerically.
func InferOpenAISecretNames(settings map[string]string) []string {
	indexes := make(map[int]struct{})
	for key := range settings {
		match := openAIIndexed.FindStringSubmatch(key)
		if match == nil {
			continue
		}
		index, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		indexes[index] = struct{}{}
	}
	ordered := make([]int, 0, len(indexes))
	for index := range indexes {
		ordered = append(ordered, index)
	}
	sort.Ints(ordered)
	names := make([]string, 0, len(ordered))
	for _, index := range ordered {
		names = append(names, fmt.Sprintf("azure-openai-key-%d", index))
	}
	return names
}

// SecretName converts an environment variable name to its vault secret
// name: lowercase with dashes.
func SecretName(envKey string) string {
	return strings.ToLower(strings.ReplaceAll(envKey, "_", "-"))
}

// secretKeyNames returns the raw KEY names of the secrets file in
// first-seen order. The auto tfvars record these verbatim; the vault
// names are derived separately.
func secretKeyNames(pairs []envfile.Pair) []string {
	seen := make(map[string]struct{}, len(pairs))
	names := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if _, ok := seen[p.Key]; ok {
			continue
		}
		seen[p.Key] = struct{}{}
		names = append(names, p.Key)
	}
	return names
}

// Run performs the sync: role assignment, secret push, OpenAI slot
// reconciliation, auto tfvars, and the optional re-apply.
func (s *Syncer) Run(ctx context.Context, opts Options) error {
	vault, err := ResolveKeyVault(opts.KeyVault, s.Paths.Workload)
	if err != nil {
		return err
	}
	s.Log.Infof("Syncing environment %s into Key Vault %s", s.Env, vault)

	settingsPath := filepath.Join(s.Paths.ConfigDir, "appsettings."+s.Env+".env")
	settingsPairs, err := envfile.Read(settingsPath)
	if err != nil {
		return fmt.Errorf("appsettings file not found: %s", settingsPath)
	}
	settings := envfile.ToMap(settingsPairs)

	secretsPath := filepath.Join(s.Paths.ConfigDir, "secrets."+s.Env+".env")
	pairs, err := envfile.Read(secretsPath)
	if err != nil {
		if os.IsNotExist(err) {
			s.Log.Warnf("No secrets file at %s; skipping secret push", secretsPath)
			pairs = nil
		} else {
			return err
		}
	}
	secretKeys := secretKeyNames(pairs)

	if err := s.Vault.EnsureSecretsOfficer(ctx, vault); err != nil {
		return fmt.Errorf("ensure vault access: %w", err)
	}

	pushed := 0
	secretValues := envfile.ToMap(pairs)
	for _, key := range secretKeys {
		value := secretValues[key]
		if value == "" {
			continue
		}
		name := SecretName(key)
		if err := s.Vault.Set(ctx, vault, name, value, map[string]string{"source": "config"}); err != nil {
			return fmt.Errorf("set secret %s: %w", name, err)
		}
		pushed++
	}
	if pushed > 0 {
		s.Log.Infof("Pushed %d configuration secrets", pushed)
	}

	inferred := InferOpenAISecretNames(settings)
	foundryExists := false
	if _, err := os.Stat(s.Paths.Foundry); err == nil {
		foundryExists = true
	}
	if foundryExists || opts.UseProvisionedOpenAI || len(inferred) > 0 {
		seeder := &secrets.Seeder{Log: s.Log, Store: s.Vault, Upstream: opts.Upstream}
		_, err = seeder.Seed(ctx, vault, secrets.Options{
			ExpectedNames:     inferred,
			AllowPlaceholders: true,
		})
		if err != nil {
			return fmt.Errorf("reconcile openai secrets: %w", err)
		}
	} else {
		s.Log.Info("No OpenAI secret slots to reconcile; skipping")
	}

	if err := s.writeAutoTfvars(vault, opts, secretKeys, settings); err != nil {
		return err
	}

	if opts.Apply {
		return s.reapply(ctx)
	}
	return nil
}

// writeAutoTfvars records the sync result where the workload stack reads
// it on its next plan.
func (s *Syncer) writeAutoTfvars(vault string, opts Options, secretKeys []string, appSettings map[string]string) error {
	doc := map[string]any{
		"key_vault_name":               vault,
		"use_provisioned_azure_openai": opts.UseProvisionedOpenAI,
		"secret_keys":                  secretKeys,
		"app_settings":                 appSettings,
	}
	if opts.Identifier != "" {
		doc["identifier"] = opts.Identifier
	}
	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.Paths.Workload, autoTfvarsName)
	if err := os.WriteFile(path, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", autoTfvarsName, err)
	}
	s.Log.Infof("Wrote %s", path)
	return nil
}

// reapply re-runs the workload apply with whichever var file is present.
// The stack must already be initialized from a previous deploy.
func (s *Syncer) reapply(ctx context.Context) error {
	candidates := []string{
		filepath.Join(s.Paths.Workload, s.Env+".tfvars"),
		filepath.Join(s.Paths.Workload, "terraform.tfvars"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return s.TF.Apply(ctx, s.Paths.Workload, candidate, nil)
		}
	}
	return fmt.Errorf("no tfvars file found in %s; run `gwops deploy workload` first", s.Paths.Workload)
}
