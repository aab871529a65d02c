package vars

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/example/gwops/internal/deploy"
	"github.com/example/gwops/internal/envfile"
	"github.com/example/gwops/internal/logging"
)

func TestResolveKeyVault(t *testing.T) {
	dir := t.TempDir()

	if vault, err := ResolveKeyVault("kv-explicit", dir); err != nil || vault != "kv-explicit" {
		t.Fatalf("override: vault=%q err=%v", vault, err)
	}

	if _, err := ResolveKeyVault("", dir); err == nil || !strings.Contains(err.Error(), "--key-vault") {
		t.Fatalf("missing auto tfvars must name the flag, got %v", err)
	}

	recorded, _ := json.Marshal(map[string]any{"key_vault_name": "kv-recorded"})
	if err := os.WriteFile(filepath.Join(dir, autoTfvarsName), recorded, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if vault, err := ResolveKeyVault("", dir); err != nil || vault != "kv-recorded" {
		t.Fatalf("recorded: vault=%q err=%v", vault, err)
	}
}

func TestInferOpenAISecretNames(t *testing.T) {
	settings := map[string]string{
		"AZURE_OPENAI_ENDPOINT_1":   "https://two.example",
		"AZURE_OPENAI_ENDPOINT_0":   "https://one.example",
		"AZURE_OPENAI_DEPLOYMENT_0": "gpt",
		"AZURE_OPENAI_API_VERSION":  "2024-06-01",
		"GATEWAY_MODE":              "weighted",
	}
	got := InferOpenAISecretNames(settings)
	want := []string{"azure-openai-key-0", "azure-openai-key-1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("InferOpenAISecretNames = %v, want %v", got, want)
	}

	if got := InferOpenAISecretNames(map[string]string{"GATEWAY_MODE": "x"}); len(got) != 0 {
		t.Fatalf("no indexed settings must infer nothing, got %v", got)
	}
}

func TestSecretKeyNamesPreserveRawOrder(t *testing.T) {
	pairs := []envfile.Pair{
		{Key: "GATEWAY_CLIENT_KEY_TEAM_B", Value: "b"},
		{Key: "GATEWAY_CLIENT_KEY_TEAM_A", Value: "a"},
		{Key: "EMPTY_ENTRY", Value: ""},
		{Key: "GATEWAY_CLIENT_KEY_TEAM_B", Value: "override"},
	}
	got := secretKeyNames(pairs)
	want := []string{"GATEWAY_CLIENT_KEY_TEAM_B", "GATEWAY_CLIENT_KEY_TEAM_A", "EMPTY_ENTRY"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("secretKeyNames = %v, want %v", got, want)
	}
}

func TestRunRequiresAppSettings(t *testing.T) {
	s := &Syncer{
		Log:   logging.Nop(),
		Env:   "dev",
		Paths: deploy.ResolvePaths(t.TempDir()),
	}
	err := s.Run(context.Background(), Options{KeyVault: "kv-test"})
	if err == nil || !strings.Contains(err.Error(), "appsettings") {
		t.Fatalf("missing appsettings file must fail fast, got %v", err)
	}
}

func TestSecretName(t *testing.T) {
	cases := map[string]string{
		"GATEWAY_CLIENT_KEY_TEAM_A": "gateway-client-key-team-a",
		"AZURE_OPENAI_KEY_0":        "azure-openai-key-0",
	}
	for in, want := range cases {
		if got := SecretName(in); got != want {
			t.Fatalf("SecretName(%q) = %q, want %q", in, got, want)
		}
	}
}
