package secrets

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type storedSecret struct {
	value string
	tags  map[string]string
}

type fakeStore struct {
	secrets map[string]storedSecret
	sets    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{secrets: map[string]storedSecret{}}
}

func (f *fakeStore) Get(_ context.Context, _, name string) (string, map[string]string, bool, error) {
	s, ok := f.secrets[name]
	if !ok {
		return "", map[string]string{}, false, nil
	}
	return s.value, s.tags, true, nil
}

func (f *fakeStore) Set(_ context.Context, _, name, value string, tags map[string]string) error {
	f.sets++
	copied := make(map[string]string, len(tags))
	for k, v := range tags {
		copied[k] = v
	}
	f.secrets[name] = storedSecret{value: value, tags: copied}
	return nil
}

func upstream(names, values []string) UpstreamLoader {
	return func(context.Context) ([]string, []string, error) { return names, values, nil }
}

func failingUpstream() UpstreamLoader {
	return func(context.Context) ([]string, []string, error) {
		return nil, nil, errors.New("state blob not found")
	}
}

func TestSeedProvisionedThenIdempotent(t *testing.T) {
	store := newFakeStore()
	seeder := &Seeder{Store: store, Upstream: upstream(
		[]string{"azure-openai-key-0", "azure-openai-key-1"},
		[]string{"k0", "k1"},
	)}

	first, err := seeder.Seed(context.Background(), "kv-dev", Options{})
	if err != nil {
		t.Fatalf("first Seed: %v", err)
	}
	if !reflect.DeepEqual(first.Seeded, []string{"azure-openai-key-0", "azure-openai-key-1"}) {
		t.Fatalf("first Seeded = %v", first.Seeded)
	}
	if tags := store.secrets["azure-openai-key-0"].tags; tags["source"] != "foundry" {
		t.Fatalf("seeded tags = %v, want source=foundry", tags)
	}

	second, err := seeder.Seed(context.Background(), "kv-dev", Options{})
	if err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	want := Summary{
		Seeded:       []string{},
		Placeholders: []string{},
		Unchanged:    []string{"azure-openai-key-0", "azure-openai-key-1"},
		Skipped:      []string{},
	}
	if !reflect.DeepEqual(second, want) {
		t.Fatalf("second Seed = %+v, want %+v", second, want)
	}
	if store.sets != 2 {
		t.Fatalf("store.Set called %d times, want 2", store.sets)
	}
}

func TestSeedNeverDowngradesRealSecret(t *testing.T) {
	store := newFakeStore()
	store.secrets["azure-openai-key-0"] = storedSecret{
		value: "real-key",
		tags:  map[string]string{"source": "foundry"},
	}
	seeder := &Seeder{Store: store, Upstream: failingUpstream()}

	summary, err := seeder.Seed(context.Background(), "kv-dev", Options{
		ExpectedNames:     []string{"azure-openai-key-0"},
		AllowPlaceholders: true,
	})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if !reflect.DeepEqual(summary.Skipped, []string{"azure-openai-key-0"}) {
		t.Fatalf("Skipped = %v", summary.Skipped)
	}
	if got := store.secrets["azure-openai-key-0"].value; got != "real-key" {
		t.Fatalf("store value = %q, must remain the real key", got)
	}
	if store.sets != 0 {
		t.Fatalf("store.Set called %d times, want 0", store.sets)
	}
}

func TestSeedPlaceholderFallbackName(t *testing.T) {
	store := newFakeStore()
	seeder := &Seeder{Store: store}

	summary, err := seeder.Seed(context.Background(), "kv-dev", Options{AllowPlaceholders: true})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if !reflect.DeepEqual(summary.Placeholders, []string{FallbackSecretName}) {
		t.Fatalf("Placeholders = %v", summary.Placeholders)
	}
	stored := store.secrets[FallbackSecretName]
	if stored.value != PlaceholderValue {
		t.Fatalf("placeholder value = %q", stored.value)
	}
	if stored.tags["source"] != "pending" || stored.tags["provenance"] != "workload" {
		t.Fatalf("placeholder tags = %v", stored.tags)
	}
}

func TestSeedPlaceholderUnchangedOnRepeat(t *testing.T) {
	store := newFakeStore()
	seeder := &Seeder{Store: store}
	opts := Options{ExpectedNames: []string{"a", "b", "a"}, AllowPlaceholders: true}

	first, err := seeder.Seed(context.Background(), "kv-dev", opts)
	if err != nil {
		t.Fatalf("first Seed: %v", err)
	}
	if !reflect.DeepEqual(first.Placeholders, []string{"a", "b"}) {
		t.Fatalf("expected names must be deduped in order; got %v", first.Placeholders)
	}

	second, err := seeder.Seed(context.Background(), "kv-dev", opts)
	if err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	if !reflect.DeepEqual(second.Unchanged, []string{"a", "b"}) || len(second.Placeholders) != 0 {
		t.Fatalf("second Seed = %+v, want all unchanged", second)
	}
}

func TestSeedLengthMismatchMeansUnprovisioned(t *testing.T) {
	store := newFakeStore()
	seeder := &Seeder{Store: store, Upstream: upstream(
		[]string{"azure-openai-key-0", "azure-openai-key-1"},
		[]string{"only-one"},
	)}

	summary, err := seeder.Seed(context.Background(), "kv-dev", Options{AllowPlaceholders: true})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if len(summary.Seeded) != 0 {
		t.Fatalf("Seeded = %v, mismatched counts must not seed real values", summary.Seeded)
	}
	if !reflect.DeepEqual(summary.Placeholders, []string{"azure-openai-key-0", "azure-openai-key-1"}) {
		t.Fatalf("Placeholders = %v", summary.Placeholders)
	}
	for _, name := range summary.Placeholders {
		if store.secrets[name].value != PlaceholderValue {
			t.Fatalf("%s = %q, want placeholder", name, store.secrets[name].value)
		}
	}
}

func TestSeedNothingToDo(t *testing.T) {
	store := newFakeStore()
	seeder := &Seeder{Store: store}

	summary, err := seeder.Seed(context.Background(), "kv-dev", Options{AllowPlaceholders: false})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if len(summary.Seeded)+len(summary.Placeholders)+len(summary.Unchanged)+len(summary.Skipped) != 0 {
		t.Fatalf("Seed = %+v, want empty summary", summary)
	}
	if store.sets != 0 {
		t.Fatalf("store.Set called %d times", store.sets)
	}
}
