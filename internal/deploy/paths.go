// File: internal/deploy/paths.go
// Brief: Stack directory layout and stage names.

package deploy

import "path/filepath"

// Stage names double as directory basenames and remote-state key stems.
const (
	StageBootstrap     = "00-bootstrap"
	StageObservability = "05-observability"
	StagePlatform      = "10-platform"
	StageFoundry       = "15-foundry"
	StageWorkload      = "20-workload"
)

// Paths locates every stack directory for one repository root.
type Paths struct {
	Root          string
	Stacks        string
	Bootstrap     string
	Observability string
	Foundation    string
	Foundry       string
	Workload      string
	ConfigDir     string
	ToolkitRoot   string
}

// ResolvePaths derives the fixed layout under root.
func ResolvePaths(root string) Paths {
	stacks := filepath.Join(root, "infra", "terraform", "stacks")
	return Paths{
		Root:          root,
		Stacks:        stacks,
		Bootstrap:     filepath.Join(stacks, StageBootstrap),
		Observability: filepath.Join(stacks, StageObservability),
		Foundation:    filepath.Join(stacks, StagePlatform),
		Foundry:       filepath.Join(stacks, StageFoundry),
		Workload:      filepath.Join(stacks, StageWorkload),
		ConfigDir:     filepath.Join(root, "config"),
		ToolkitRoot:   filepath.Join(root, "apim-genai-gateway-toolkit", "infra"),
	}
}
