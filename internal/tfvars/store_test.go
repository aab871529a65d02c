package tfvars

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestEnsureSeedsFromExample(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "terraform.tfvars.dev.example"), `location = "westeurope"
replica_count = 2
`)

	store := &Store{}
	path, err := store.Ensure(dir, "dev", "sub-123", "tenant-456")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if path != filepath.Join(dir, "dev.tfvars") {
		t.Fatalf("Ensure path = %s", path)
	}

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	wantKeys := []string{"location", "replica_count", "subscription_id", "tenant_id", "environment_code"}
	if !reflect.DeepEqual(doc.Keys(), wantKeys) {
		t.Fatalf("Keys = %v, want %v", doc.Keys(), wantKeys)
	}
	for key, want := range map[string]any{
		"subscription_id":  "sub-123",
		"tenant_id":        "tenant-456",
		"environment_code": "dev",
		"location":         "westeurope",
	} {
		if got, _ := doc.Get(key); got != want {
			t.Fatalf("%s = %#v, want %#v", key, got, want)
		}
	}
}

func TestEnsureFailsWithoutExample(t *testing.T) {
	dir := t.TempDir()
	store := &Store{}
	if _, err := store.Ensure(dir, "dev", "sub", "tenant"); err == nil {
		t.Fatal("Ensure succeeded with no tfvars and no example")
	}
}

func TestEnsureBackfillsMissingExampleKeys(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "dev.tfvars.example"), `location = "westeurope"
new_knob = "default"
`)
	writeFile(t, filepath.Join(dir, "dev.tfvars"), `location = "northeurope"
custom = "kept"
`)

	store := &Store{}
	path, err := store.Ensure(dir, "dev", "sub", "tenant")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, _ := doc.Get("location"); got != "northeurope" {
		t.Fatalf("location = %#v, existing value must win over example", got)
	}
	if got, _ := doc.Get("new_knob"); got != "default" {
		t.Fatalf("new_knob = %#v, want backfilled from example", got)
	}
	if got, _ := doc.Get("custom"); got != "kept" {
		t.Fatalf("custom = %#v, want preserved", got)
	}
}

func TestEnsureRegeneratesCorruptTarget(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "dev.tfvars.example"), `location = "westeurope"
`)
	writeFile(t, filepath.Join(dir, "dev.tfvars"), `location = [unclosed
`)

	store := &Store{}
	path, err := store.Ensure(dir, "dev", "sub", "tenant")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load after regenerate: %v", err)
	}
	if got, _ := doc.Get("location"); got != "westeurope" {
		t.Fatalf("location = %#v, want regenerated from example", got)
	}
}

func TestUpdateSkipsNilValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dev.tfvars")
	writeFile(t, path, `keep = "original"
replace = "old"
`)

	store := &Store{}
	err := store.Update(path, map[string]any{
		"replace": "new",
		"keep":    nil,
		"added":   int64(5),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, _ := doc.Get("keep"); got != "original" {
		t.Fatalf("keep = %#v, nil update must not touch it", got)
	}
	if got, _ := doc.Get("replace"); got != "new" {
		t.Fatalf("replace = %#v", got)
	}
	if got, _ := doc.Get("added"); got != int64(5) {
		t.Fatalf("added = %#v", got)
	}
}
