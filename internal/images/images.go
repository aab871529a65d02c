// File: internal/images/images.go
// Brief: Image reference resolution: build commands, tags, tfvars fallback.

// Package images resolves the container image references the workload
// stage applies with. Images come either from invoking the external
// build-and-push commands (their last stdout line is the pushed
// reference) or from previously recorded values in the workload tfvars.
// The build pipeline itself is an external collaborator.
package images

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/gwops/internal/execx"
)

// Component names as they appear in build command configuration and
// tfvars keys.
const (
	Gateway       = "gateway"
	Hydrenv       = "hydrenv"
	ConfigAPI     = "gateway-config-api"
	AOAISimulator = "aoai-api-simulator"
)

var tfvarsKeyByComponent = map[string]string{
	Gateway:       "gateway_image",
	Hydrenv:       "hydrenv_image",
	ConfigAPI:     "config_api_image",
	AOAISimulator: "simulator_image",
}

// TfvarsKey returns the tfvars variable a component's image reference is
// recorded under.
func TfvarsKey(component string) string {
	return tfvarsKeyByComponent[component]
}

// DeriveTag derives an image tag from the repository's git state:
// `<short-commit>-<utc-timestamp>[-dirty]`, falling back to a bare
// timestamp when git is unavailable.
func DeriveTag(ctx context.Context, root string) string {
	timestamp := time.Now().UTC().Format("20060102150405")
	if _, err := exec.LookPath("git"); err != nil {
		return timestamp
	}
	res, err := execx.Run(ctx, execx.Command{
		Args: []string{"git", "-C", root, "rev-parse", "--short=12", "HEAD"},
		Echo: execx.EchoNever,
	})
	if err != nil {
		return timestamp
	}
	commit := strings.TrimSpace(res.Stdout)

	suffix := ""
	for _, diffArgs := range [][]string{
		{"git", "-C", root, "diff", "--quiet", "--no-ext-diff", "--cached"},
		{"git", "-C", root, "diff", "--quiet", "--no-ext-diff"},
	} {
		if _, err := execx.Run(ctx, execx.Command{Args: diffArgs, Echo: execx.EchoNever}); err != nil {
			suffix = "-dirty"
			break
		}
	}
	return commit + "-" + timestamp + suffix
}

// Builder invokes the configured external build commands.
type Builder struct {
	Log *zap.SugaredLogger
	// Commands maps a component to the argv of its build command.
	Commands map[string][]string
	// Tag is passed to every build command; empty lets the script pick.
	Tag string
	// LocalDocker appends --local-docker to every build invocation.
	LocalDocker bool
}

// commandArgs assembles the argv for one component's build invocation.
func (b *Builder) commandArgs(component string) ([]string, error) {
	argv, ok := b.Commands[component]
	if !ok || len(argv) == 0 {
		return nil, fmt.Errorf("no build command configured for %q", component)
	}
	args := append([]string(nil), argv...)
	if b.Tag != "" {
		args = append(args, "--tag", b.Tag)
	}
	if b.LocalDocker {
		args = append(args, "--local-docker")
	}
	return args, nil
}

// Build runs the component's build command and returns the image
// reference it printed as its last non-empty stdout line.
func (b *Builder) Build(ctx context.Context, component string) (string, error) {
	args, err := b.commandArgs(component)
	if err != nil {
		return "", err
	}
	res, err := execx.Run(ctx, execx.Command{Args: args, Echo: execx.EchoAlways})
	if err != nil {
		return "", err
	}
	image := lastNonEmptyLine(res.Stdout)
	if image == "" {
		return "", fmt.Errorf("failed to parse image from build output of %q", strings.Join(args, " "))
	}
	if b.Log != nil {
		b.Log.Infof("Built %s", image)
	}
	return image, nil
}

// BuildAll builds the core components, plus the E2E test images when
// requested.
func (b *Builder) BuildAll(ctx context.Context, e2e bool) (map[string]string, error) {
	components := []string{Gateway, Hydrenv}
	if e2e {
		components = append(components, ConfigAPI, AOAISimulator)
	}
	images := make(map[string]string, len(components))
	for _, component := range components {
		image, err := b.Build(ctx, component)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", component, err)
		}
		images[component] = image
	}
	return images, nil
}

// FromTfvars reads previously recorded image references out of the
// workload tfvars file. Missing values are a configuration error since
// the caller explicitly disabled building.
func FromTfvars(path string, e2e bool) (map[string]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tfvars file not found: %s", path)
	}

	components := []string{Gateway, Hydrenv}
	if e2e {
		components = append(components, ConfigAPI, AOAISimulator)
	}
	images := make(map[string]string, len(components))
	var missing []string
	for _, component := range components {
		value := readQuotedAssignment(string(content), tfvarsKeyByComponent[component])
		if value == "" {
			missing = append(missing, component)
			continue
		}
		images[component] = value
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required image values in tfvars (needed because image build is disabled): %s",
			strings.Join(missing, ", "))
	}
	return images, nil
}

func readQuotedAssignment(content, key string) string {
	re := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(key) + `\s*=\s*"([^"]+)"`)
	match := re.FindStringSubmatch(content)
	if match == nil {
		return ""
	}
	return match[1]
}

func lastNonEmptyLine(output string) string {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
