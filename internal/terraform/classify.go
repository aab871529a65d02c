// File: internal/terraform/classify.go
// Brief: Classification of captured terraform/Azure output into error kinds.

package terraform

import (
	"errors"
	"strings"

	"github.com/example/gwops/internal/execx"
)

// Kind is the closed set of error classifications used to decide retry
// eligibility. Classification never alters the error itself.
type Kind string

const (
	// KindStorageRbac marks a storage data-plane 403 caused by RBAC grants
	// that have not propagated yet.
	KindStorageRbac Kind = "storage-rbac-propagation"
	// KindConflict marks a transient 409 RequestConflict on apply.
	KindConflict Kind = "request-conflict"
	// KindFatal marks quota/validation failures that must never be retried.
	KindFatal Kind = "fatal"
	// KindUnclassified is everything else; treated as non-retryable.
	KindUnclassified Kind = "unclassified"
)

// Marker substrings are data, not control flow, so the classifier stays
// unit-testable without invoking any external tool. All matching is
// case-insensitive.
var (
	storageRbacMarkers = []string{
		"authorizationpermissionmismatch",
		"this request is not authorized to perform this operation",
		"status 403",
	}
	fatalMarkers = []string{
		"invalidresourceproperties",
		"invalid resource properties",
		"not supported by the model",
		"insufficientquota",
		"insufficient quota",
		"quota limit",
	}
	conflictMarkers = []string{
		"requestconflict",
		"another operation is being performed on the parent resource",
		"status code 409",
		"response 409",
	}
	// A hard validation error alongside a conflict marker means the 409 is
	// not transient.
	conflictExclusions = []string{
		"response 400",
		"invalidresource",
		"insufficientquota",
	}
)

// Classify maps the captured combined output of a failed invocation to an
// error kind. Fatal markers win over conflict markers even when both are
// present.
func Classify(output string) Kind {
	lowered := strings.ToLower(output)
	switch {
	case containsAny(lowered, storageRbacMarkers):
		return KindStorageRbac
	case containsAny(lowered, fatalMarkers):
		return KindFatal
	case containsAny(lowered, conflictMarkers) && !containsAny(lowered, conflictExclusions):
		return KindConflict
	default:
		return KindUnclassified
	}
}

// ClassifyError classifies the captured output carried by a subprocess exit
// error. Anything else is unclassified.
func ClassifyError(err error) Kind {
	var exit *execx.ExitError
	if errors.As(err, &exit) {
		return Classify(exit.CombinedOutput())
	}
	return KindUnclassified
}

func classifier(err error) string {
	return string(ClassifyError(err))
}

func containsAny(lowered string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
