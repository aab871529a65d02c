// File: internal/azure/keyvault.go
// Brief: Key Vault secret operations with RBAC-propagation retry.

package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/gwops/internal/execx"
	"github.com/example/gwops/internal/retry"
)

// kindKVRbac classifies a Key Vault data-plane 403 caused by a role
// assignment that has not propagated yet.
const kindKVRbac = "keyvault-rbac-propagation"

var kvRbacMarkers = []string{
	"forbiddenbyrbac",
	"caller is not authorized",
}

var secretNotFoundMarkers = []string{
	"secretnotfound",
	"was not found",
}

// KeyVault performs secret operations against a vault through the az CLI.
// Writes are retried while RBAC propagation is still in flight.
type KeyVault struct {
	Log *zap.SugaredLogger

	setPolicy retry.Policy
}

// NewKeyVault returns a client with the production set-retry policy:
// 8 attempts, backoff clamped to [2s, 30s].
func NewKeyVault(log *zap.SugaredLogger) *KeyVault {
	return &KeyVault{
		Log:       log,
		setPolicy: retry.Policy{Target: kindKVRbac, MaxAttempts: 8, Min: 2 * time.Second, Max: 30 * time.Second},
	}
}

// Get reads a secret's value and tags. A missing secret is a distinguished
// outcome (found=false), not an error.
func (k *KeyVault) Get(ctx context.Context, vault, name string) (string, map[string]string, bool, error) {
	res, err := execx.Run(ctx, execx.Command{
		Args: []string{
			"az", "keyvault", "secret", "show",
			"--vault-name", vault, "--name", name,
			"--query", "{value:value, tags:tags}", "-o", "json",
		},
		Echo: execx.EchoNever,
	})
	if err != nil {
		var exit *execx.ExitError
		if errors.As(err, &exit) && containsAnyFold(exit.CombinedOutput(), secretNotFoundMarkers) {
			return "", map[string]string{}, false, nil
		}
		return "", nil, false, err
	}

	var parsed struct {
		Value string            `json:"value"`
		Tags  map[string]string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(res.Stdout), &parsed); err != nil {
		return "", nil, false, fmt.Errorf("parse secret %s: %w", name, err)
	}
	if parsed.Tags == nil {
		parsed.Tags = map[string]string{}
	}
	return parsed.Value, parsed.Tags, true, nil
}

// Set writes a secret with the given tags, retrying transient RBAC
// propagation failures; anything else propagates.
func (k *KeyVault) Set(ctx context.Context, vault, name, value string, tags map[string]string) error {
	args := []string{
		"az", "keyvault", "secret", "set",
		"--vault-name", vault, "--name", name, "--value", value,
	}
	if len(tags) > 0 {
		args = append(args, "--tags")
		keys := make([]string, 0, len(tags))
		for key := range tags {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			args = append(args, key+"="+tags[key])
		}
	}
	return k.setPolicy.Do(ctx, k.Log, classifyKVError, func() error {
		_, err := execx.Run(ctx, execx.Command{Args: args, Echo: execx.EchoOnError})
		return err
	})
}

// EnsureSecretsOfficer grants the signed-in principal the Key Vault
// Secrets Officer role on the vault; an already-existing assignment is
// not an error.
func (k *KeyVault) EnsureSecretsOfficer(ctx context.Context, vault string) error {
	vaultID, err := azQuery(ctx, "keyvault", "show", "-n", vault, "--query", "id")
	if err != nil {
		return fmt.Errorf("resolve vault id: %w", err)
	}
	principalID, err := SignedInObjectID(ctx)
	if err != nil {
		return fmt.Errorf("resolve signed-in principal: %w", err)
	}
	_, err = execx.Run(ctx, execx.Command{
		Args: []string{
			"az", "role", "assignment", "create",
			"--assignee-object-id", principalID,
			"--role", "Key Vault Secrets Officer",
			"--scope", vaultID,
			"--only-show-errors", "-o", "none",
		},
		Echo: execx.EchoNever,
	})
	if err != nil {
		var exit *execx.ExitError
		if errors.As(err, &exit) {
			msg := exit.CombinedOutput()
			if strings.Contains(msg, "Existing role assignment") || strings.Contains(msg, "already exists") {
				return nil
			}
		}
		return err
	}
	return nil
}

func classifyKVError(err error) string {
	var exit *execx.ExitError
	if !errors.As(err, &exit) {
		return ""
	}
	lowered := strings.ToLower(exit.CombinedOutput())
	if containsAnyFold(lowered, kvRbacMarkers) {
		return kindKVRbac
	}
	if strings.Contains(lowered, "forbidden") && strings.Contains(lowered, "keyvault") {
		return kindKVRbac
	}
	return ""
}

func containsAnyFold(text string, markers []string) bool {
	lowered := strings.ToLower(text)
	for _, marker := range markers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
