// File: internal/azure/account.go
// Brief: Identity resolution through the az CLI.

// Package azure is the boundary to the external az CLI: account/identity
// resolution, Key Vault secret operations, and role assignment. It never
// opens its own authenticated transport; identity is delegated to az.
package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/gwops/internal/execx"
)

// Account carries the subscription and tenant the pipeline deploys into,
// resolved once per run.
type Account struct {
	SubscriptionID string
	TenantID       string
}

// CurrentAccount resolves the active az account.
func CurrentAccount(ctx context.Context) (Account, error) {
	subscription, err := azQuery(ctx, "account", "show", "--query", "id")
	if err != nil {
		return Account{}, fmt.Errorf("resolve subscription id: %w", err)
	}
	tenant, err := azQuery(ctx, "account", "show", "--query", "tenantId")
	if err != nil {
		return Account{}, fmt.Errorf("resolve tenant id: %w", err)
	}
	return Account{SubscriptionID: subscription, TenantID: tenant}, nil
}

// SignedInObjectID resolves the AAD object id of the signed-in principal,
// handling both user and service-principal logins.
func SignedInObjectID(ctx context.Context) (string, error) {
	res, err := execx.Run(ctx, execx.Command{
		Args: []string{"az", "account", "show", "--query", "user", "-o", "json"},
		Echo: execx.EchoOnError,
	})
	if err != nil {
		return "", err
	}
	var user struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(res.Stdout), &user); err != nil {
		return "", fmt.Errorf("parse az account user: %w", err)
	}

	if user.Type == "user" {
		return azQuery(ctx, "ad", "signed-in-user", "show", "--query", "id")
	}
	return azQuery(ctx, "ad", "sp", "show", "--id", user.Name, "--query", "id")
}

func azQuery(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"az"}, args...)
	full = append(full, "-o", "tsv")
	res, err := execx.Run(ctx, execx.Command{Args: full, Echo: execx.EchoOnError})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}
