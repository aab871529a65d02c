// File: internal/tfvars/store.go
// Brief: Ensure/update semantics and atomic writes for tfvars files.

package tfvars

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/example/gwops/internal/logging"
)

// Store loads, seeds, merges, and writes per-environment tfvars files.
// Diff is optional; when present it receives a before/after pair ahead of
// every overwrite, and its absence or failure never blocks a write.
type Store struct {
	Log  *zap.SugaredLogger
	Diff DiffLogger
}

// Load parses the tfvars file at path.
func Load(path string) (*Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(src, filepath.Base(path))
}

// Ensure guarantees `<env>.tfvars` exists in stackDir with the three core
// identity keys forced to the supplied values, seeding or backfilling from
// an example file when one is present. It returns the tfvars path.
//
// A missing target with no example is a configuration error. An existing
// target that fails to parse is downgraded to a warning and regenerated
// from the example rather than aborting the pipeline.
func (s *Store) Ensure(stackDir, env, subscriptionID, tenantID string) (string, error) {
	target := filepath.Join(stackDir, env+".tfvars")
	candidates := []string{
		filepath.Join(stackDir, "terraform.tfvars."+env+".example"),
		filepath.Join(stackDir, env+".tfvars.example"),
	}
	example := ""
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			example = candidate
			break
		}
	}

	var base *Document
	if _, err := os.Stat(target); os.IsNotExist(err) {
		if example == "" {
			return "", fmt.Errorf("no tfvars present for env %q and no example tfvars found in %s", env, stackDir)
		}
		src, err := os.ReadFile(example)
		if err != nil {
			return "", fmt.Errorf("read example tfvars: %w", err)
		}
		if err := os.WriteFile(target, src, 0o644); err != nil {
			return "", fmt.Errorf("seed tfvars: %w", err)
		}
		s.log().Infof("Seeded tfvars: %s (from %s)", target, filepath.Base(example))
		base, err = Load(target)
		if err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	} else {
		current, err := Load(target)
		if err != nil {
			s.log().Warnf("Failed to parse existing tfvars %s (%v); regenerating from example", filepath.Base(target), err)
			current = NewDocument()
		}
		if example != "" {
			// Backfill keys the example has gained without overwriting
			// values already present.
			base, err = Load(example)
			if err != nil {
				return "", fmt.Errorf("read example tfvars: %w", err)
			}
			for _, key := range current.Keys() {
				value, _ := current.Get(key)
				base.Set(key, value)
			}
		} else {
			base = current
		}
	}

	base.Set("subscription_id", subscriptionID)
	base.Set("tenant_id", tenantID)
	base.Set("environment_code", env)

	if err := s.write(target, base); err != nil {
		return "", err
	}
	return target, nil
}

// Update loads the document at path, applies the non-nil entries of
// updates, and writes it back.
func (s *Store) Update(path string, updates map[string]any) error {
	doc, err := Load(path)
	if err != nil {
		return err
	}
	doc.Merge(updates)
	return s.write(path, doc)
}

// write renders the document and replaces path via a temp file and atomic
// rename, so a concurrently running terraform never observes a partial
// file. The previous version, when parseable, feeds the diff logger.
func (s *Store) write(path string, doc *Document) error {
	var before *Document
	if _, err := os.Stat(path); err == nil {
		if prev, err := Load(path); err == nil {
			before = prev
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write tfvars: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(Render(doc)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write tfvars: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write tfvars: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write tfvars: %w", err)
	}

	if before != nil && s.Diff != nil {
		s.Diff.LogDiff(path, before, doc)
	}
	return nil
}

func (s *Store) log() *zap.SugaredLogger {
	if s.Log != nil {
		return s.Log
	}
	return logging.Nop()
}
