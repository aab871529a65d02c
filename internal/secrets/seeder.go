// File: internal/secrets/seeder.go
// Brief: Provenance-aware reconciliation of desired secrets into a vault.

// Package secrets keeps the Key Vault reconciled with the OpenAI secret
// material the pipeline expects. Real provisioned keys are tagged
// source=foundry; temporary stand-ins are tagged source=pending, and a
// real secret is never downgraded to a placeholder.
package secrets

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/gwops/internal/logging"
)

// PlaceholderValue is written for secrets that have no provisioned
// material yet.
const PlaceholderValue = "pending-foundry"

// FallbackSecretName is seeded when neither provisioned nor expected
// names exist but placeholders are allowed.
const FallbackSecretName = "azure-openai-key-0"

func foundryTags() map[string]string {
	return map[string]string{"source": "foundry"}
}

func placeholderTags() map[string]string {
	return map[string]string{"source": "pending", "provenance": "workload"}
}

// Store is the secret-store boundary. Get distinguishes a missing secret
// (found=false) from a failure.
type Store interface {
	Get(ctx context.Context, vault, name string) (value string, tags map[string]string, found bool, err error)
	Set(ctx context.Context, vault, name, value string, tags map[string]string) error
}

// UpstreamLoader fetches the upstream stage's provisioned secret names and
// values. Implementations read remote terraform state; any failure there
// means "no provisioned material", which the seeder treats as such.
type UpstreamLoader func(ctx context.Context) (names, values []string, err error)

// Summary buckets the reconciliation outcome per secret name.
type Summary struct {
	Seeded       []string
	Placeholders []string
	Unchanged    []string
	Skipped      []string
}

// Options configure one reconciliation pass.
type Options struct {
	ExpectedNames     []string
	AllowPlaceholders bool
	// PlaceholderValue defaults to PlaceholderValue when empty.
	PlaceholderValue string
}

// Seeder reconciles desired secrets into a vault.
type Seeder struct {
	Log      *zap.SugaredLogger
	Store    Store
	Upstream UpstreamLoader
}

// Seed ensures the expected secrets exist in vault, following the
// provenance decision table. Calling it twice with identical inputs and no
// external change reports everything unchanged on the second call.
func (s *Seeder) Seed(ctx context.Context, vault string, opts Options) (Summary, error) {
	summary := Summary{
		Seeded:       []string{},
		Placeholders: []string{},
		Unchanged:    []string{},
		Skipped:      []string{},
	}
	placeholder := opts.PlaceholderValue
	if placeholder == "" {
		placeholder = PlaceholderValue
	}

	var provisionedNames, provisionedValues []string
	if s.Upstream != nil {
		names, values, err := s.Upstream(ctx)
		if err != nil {
			s.log().Infof("Unable to read provisioned secret material: %v", err)
		} else {
			provisionedNames, provisionedValues = names, values
		}
	}

	candidates := provisionedNames
	if len(candidates) == 0 {
		candidates = dedupePreserveOrder(opts.ExpectedNames)
	}
	if len(candidates) == 0 && opts.AllowPlaceholders {
		candidates = []string{FallbackSecretName}
	}
	if len(candidates) == 0 {
		s.log().Info("No secret names to seed; skipping")
		return summary, nil
	}

	hasRealValues := len(provisionedNames) > 0 && len(provisionedNames) == len(provisionedValues)
	if len(provisionedNames) > 0 && !hasRealValues {
		s.log().Warnf("Provisioned secret name/value counts differ (%d names, %d values); treating as unprovisioned",
			len(provisionedNames), len(provisionedValues))
	}

	desiredTags := placeholderTags()
	if hasRealValues {
		desiredTags = foundryTags()
	}

	for i, name := range candidates {
		desiredValue := placeholder
		if hasRealValues {
			desiredValue = provisionedValues[i]
		}
		existingValue, existingTags, found, err := s.Store.Get(ctx, vault, name)
		if err != nil {
			return summary, err
		}
		existingSource := ""
		if found {
			existingSource = existingTags["source"]
		}

		switch {
		case hasRealValues && existingSource == "foundry" && existingValue == desiredValue:
			summary.Unchanged = append(summary.Unchanged, name)
		case !hasRealValues && existingSource == "foundry":
			// Never downgrade a real key to a placeholder.
			summary.Skipped = append(summary.Skipped, name)
		case !hasRealValues && existingSource == "pending" && existingValue == desiredValue:
			summary.Unchanged = append(summary.Unchanged, name)
		default:
			if err := s.Store.Set(ctx, vault, name, desiredValue, desiredTags); err != nil {
				return summary, err
			}
			if hasRealValues {
				summary.Seeded = append(summary.Seeded, name)
			} else {
				summary.Placeholders = append(summary.Placeholders, name)
			}
		}
	}

	switch {
	case hasRealValues:
		s.log().Infof("Seeded %d provisioned secrets into Key Vault %s", len(summary.Seeded), vault)
	case opts.AllowPlaceholders:
		s.log().Warnf("Provisioned keys unavailable; wrote %d placeholder secrets to %s", len(summary.Placeholders), vault)
	default:
		s.log().Info("Placeholders disabled; no secrets written")
	}
	return summary, nil
}

func (s *Seeder) log() *zap.SugaredLogger {
	if s.Log != nil {
		return s.Log
	}
	return logging.Nop()
}

func dedupePreserveOrder(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	ordered := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		ordered = append(ordered, item)
	}
	return ordered
}
