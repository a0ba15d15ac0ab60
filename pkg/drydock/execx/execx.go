// Package execx runs the external tools drydock drives: package managers,
// the container engine, and host utilities. Every invocation is bounded by
// a timeout and captures stderr so failures can name the command that
// broke, not just report that something did.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jamesainslie/drydock/pkg/drydock/logging"
)

// ErrToolMissing is returned when a required external tool is not on PATH.
var ErrToolMissing = errors.New("required tool not found")

// stderrTailLimit bounds how much captured stderr ends up in error text.
const stderrTailLimit = 4096

// Spec describes one external command invocation.
type Spec struct {
	Name string
	Args []string

	// Dir is the working directory; empty means inherit.
	Dir string

	// Env entries are appended to the inherited environment.
	Env []string

	// Stdin feeds the command's standard input when non-nil.
	Stdin io.Reader

	// Timeout bounds this invocation. Zero relies solely on the caller's
	// context.
	Timeout time.Duration
}

// Result carries the captured output of a completed command.
type Result struct {
	Stdout string
	Stderr string
}

// CommandError reports a failed external command with enough context for
// an operator to re-run it by hand.
type CommandError struct {
	Name   string
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	cmd := strings.Join(append([]string{e.Name}, e.Args...), " ")
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", cmd, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", cmd, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Runner abstracts external command execution so pipeline stages can be
// tested without a package manager or container engine present.
type Runner interface {
	// LookPath resolves a tool name to an executable path.
	LookPath(tool string) (string, error)

	// Run executes the command described by spec, blocking until it
	// exits, the context is done, or the spec timeout fires.
	Run(ctx context.Context, spec Spec) (Result, error)
}

// System is the Runner backed by the real host.
type System struct {
	log *logging.Logger
}

// NewSystem returns a Runner that executes commands on the host.
func NewSystem() *System {
	return &System{log: logging.Get("exec")}
}

// LookPath resolves a tool via PATH.
func (s *System) LookPath(tool string) (string, error) {
	path, err := exec.LookPath(tool)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrToolMissing, tool)
	}
	return path, nil
}

// Run executes the command, capturing stdout and stderr. Failures return a
// *CommandError carrying the trailing stderr.
func (s *System) Run(ctx context.Context, spec Spec) (Result, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Stdin = spec.Stdin
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.log.Debug("run", "cmd", spec.Name, "args", strings.Join(spec.Args, " "), "dir", spec.Dir)

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", elapsed.Round(time.Millisecond), err)
		}
		cmdErr := &CommandError{
			Name:   spec.Name,
			Args:   spec.Args,
			Stderr: tail(stderr.String()),
			Err:    err,
		}
		s.log.Warn("command failed", "cmd", spec.Name, "elapsed", elapsed.Round(time.Millisecond), "err", err)
		return res, cmdErr
	}

	s.log.Debug("command done", "cmd", spec.Name, "elapsed", elapsed.Round(time.Millisecond))
	return res, nil
}

// Preflight resolves every named tool up front, before any side effect.
// The first missing tool aborts with an error naming it.
func Preflight(r Runner, tools ...string) error {
	for _, tool := range tools {
		if _, err := r.LookPath(tool); err != nil {
			return err
		}
	}
	return nil
}

// tail trims stderr for inclusion in error text, keeping the end, which is
// where package managers and engines put the actual reason.
func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= stderrTailLimit {
		return s
	}
	return "..." + s[len(s)-stderrTailLimit:]
}
