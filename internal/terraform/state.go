// File: internal/terraform/state.go
// Brief: Deterministic remote-state blob addressing per stage.

package terraform

import "strings"

// StateKey derives the backend state blob key for a stage. The key is a
// pure function of (prefix, stage).
func StateKey(prefix, stage string) string {
	normalized := strings.TrimRight(prefix, "/")
	if normalized == "" {
		return stage + ".tfstate"
	}
	return normalized + "/" + stage + ".tfstate"
}

// StatePrefixFromBlobKey recovers the state prefix from the bootstrap
// stage's own blob key, which by convention ends in "/terraform.tfstate".
// Keys derived by StateKey end in "<stage>.tfstate" instead and pass
// through unchanged; the asymmetry is intentional — bootstrap state is
// discovered by convention before any other state exists.
func StatePrefixFromBlobKey(blobKey string) string {
	const suffix = "/terraform.tfstate"
	if strings.HasSuffix(blobKey, suffix) {
		return blobKey[:len(blobKey)-len(suffix)]
	}
	return blobKey
}
