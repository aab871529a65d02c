// File: internal/tfvars/diff.go
// Brief: Best-effort unified diff logging for tfvars rewrites.

package tfvars

import (
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"
)

// DiffLogger is an optional collaborator that reports the structural
// difference between the previous and new versions of a document before it
// is written. Implementations are purely observational.
type DiffLogger interface {
	LogDiff(path string, before, after *Document)
}

// UnifiedDiffLogger renders a unified diff of the two documents' canonical
// text forms.
type UnifiedDiffLogger struct {
	Log *zap.SugaredLogger
}

func (l *UnifiedDiffLogger) LogDiff(path string, before, after *Document) {
	if l == nil || l.Log == nil || before == nil || after == nil {
		return
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(Render(before)),
		B:        difflib.SplitLines(Render(after)),
		FromFile: filepath.Base(path) + " (previous)",
		ToFile:   filepath.Base(path),
		Context:  2,
	})
	if err != nil || strings.TrimSpace(text) == "" {
		return
	}
	l.Log.Infof("Updated tfvars %s:\n%s", filepath.Base(path), text)
}
