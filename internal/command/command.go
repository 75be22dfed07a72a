// Package command runs external tools and reports each invocation as a Result.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Command describes one external invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is the outcome of a command that ran to completion.
// ExitCode 0 is success; anything else is a failure with the captured output.
type Result struct {
	ExitCode int
	Output   []byte
}

// OK reports whether the command exited with status 0.
func (r Result) OK() bool { return r.ExitCode == 0 }

// Err returns nil for a successful result and an *ExitError otherwise.
func (r Result) Err(c Command) error {
	if r.OK() {
		return nil
	}
	return &ExitError{Command: c.Name, ExitCode: r.ExitCode, Output: strings.TrimSpace(string(r.Output))}
}

// ExitError reports a command that exited with a non-zero status.
type ExitError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Command, e.ExitCode, e.Output)
}

// Runner resolves and executes external commands.
// Run returns an error only when the command could not be started;
// a command that ran and failed is reported through Result.
type Runner interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, c Command) (Result, error)
}

// ExecRunner runs commands as subprocesses.
type ExecRunner struct {
	Logger *slog.Logger
}

var _ Runner = (*ExecRunner)(nil)

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{Logger: logger}
}

// LookPath resolves name on PATH, or checks it directly when it contains a separator.
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run executes c and blocks until it exits. Stdout and stderr are captured together.
func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	r.Logger.Debug("command: running", slog.String("cmd", c.String()), slog.String("dir", c.Dir))

	err := cmd.Run()
	res := Result{Output: out.Bytes()}
	if len(res.Output) > 0 {
		r.Logger.Debug("command: output", slog.String("cmd", c.Name), slog.String("output", string(res.Output)))
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		// -1 when the process was killed by a signal.
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		res.ExitCode = -1
		return res, fmt.Errorf("command: start %s: %w", c.Name, err)
	}
}
