// File: internal/execx/execx.go
// Brief: Subprocess runner that streams output live while capturing it.

// Package execx runs external tools (terraform, az, image builders) for the
// deployment pipeline. Output is read line-by-line on one goroutine per
// stream so a full pipe buffer never deadlocks a long apply, while the full
// text is still buffered for error classification and on-error replay.
package execx

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Echo controls when captured output is mirrored to the caller's writers.
type Echo string

const (
	EchoAlways  Echo = "always"
	EchoOnError Echo = "on-error"
	EchoNever   Echo = "never"
)

// Command describes one external invocation.
type Command struct {
	Args []string
	Dir  string
	// Env is merged over the parent process environment. The pipeline never
	// mutates ambient environment state; every stage passes its bindings
	// through here.
	Env  map[string]string
	Echo Echo

	// Stdout and Stderr receive echoed output; they default to the process
	// streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Result holds the captured output of a completed command.
type Result struct {
	Stdout string
	Stderr string
}

// ExitError reports a command that ran and exited non-zero, carrying the
// captured output for classification.
type ExitError struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited with status %d", strings.Join(e.Args, " "), e.ExitCode)
}

// CombinedOutput returns stderr followed by stdout, the text error
// classifiers inspect.
func (e *ExitError) CombinedOutput() string {
	return e.Stderr + e.Stdout
}

// Run executes cmd, streaming and capturing both output streams. A non-zero
// exit yields an *ExitError with the captured text.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	if len(cmd.Args) == 0 {
		return nil, fmt.Errorf("execx: empty command")
	}
	outW := cmd.Stdout
	if outW == nil {
		outW = os.Stdout
	}
	errW := cmd.Stderr
	if errW == nil {
		errW = os.Stderr
	}

	proc := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	proc.Dir = cmd.Dir
	proc.Env = mergedEnv(cmd.Env)

	stdout, err := proc.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := proc.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Args[0], err)
	}

	var outBuf, errBuf strings.Builder
	var group errgroup.Group
	group.Go(func() error { return drain(stdout, &outBuf, outW, cmd.Echo) })
	group.Go(func() error { return drain(stderr, &errBuf, errW, cmd.Echo) })
	readErr := group.Wait()
	waitErr := proc.Wait()

	res := &Result{Stdout: outBuf.String(), Stderr: errBuf.String()}
	if waitErr != nil {
		if cmd.Echo == EchoOnError {
			replay(outW, res.Stdout)
			replay(errW, res.Stderr)
		}
		code := -1
		if ee, ok := waitErr.(*exec.ExitError); ok {
			code = ee.ExitCode()
		}
		return res, &ExitError{Args: cmd.Args, ExitCode: code, Stdout: res.Stdout, Stderr: res.Stderr}
	}
	if readErr != nil {
		return res, readErr
	}
	return res, nil
}

// EnsureTools fails fast when a required external command is not on PATH.
func EnsureTools(names ...string) error {
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			return fmt.Errorf("missing dependency: %s", name)
		}
	}
	return nil
}

func drain(r io.Reader, buf *strings.Builder, w io.Writer, echo Echo) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			buf.WriteString(line)
			if echo == EchoAlways || echo == "" {
				fmt.Fprint(w, line)
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func replay(w io.Writer, text string) {
	if text != "" {
		fmt.Fprint(w, text)
	}
}

func mergedEnv(extra map[string]string) []string {
	env := os.Environ()
	if len(extra) == 0 {
		return env
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
