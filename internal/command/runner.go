// Package command runs external tools and reports how they exited.
package command

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/ctxlog"
)

// Command describes one invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env, when non-nil, is the complete environment of the process.
	Env map[string]string
	// Output, when set, also receives stdout and stderr as they are written.
	Output io.Writer
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is what a finished command produced.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Runner executes commands. A command that exits non-zero, or cannot be
// started, is reported as a *builderr.CommandError.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner executes commands on the local host.
type ExecRunner struct{}

// Run implements Runner using os/exec.
func (ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	logger := ctxlog.FromContext(ctx)
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if c.Env != nil {
		cmd.Env = environ(c.Env)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if c.Output != nil {
		out := &lockedWriter{w: c.Output}
		cmd.Stdout = io.MultiWriter(&stdout, out)
		cmd.Stderr = io.MultiWriter(&stderr, out)
	}

	logger.Debug("Running command.", "command", c.String(), "dir", c.Dir)
	start := time.Now()
	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Duration: time.Since(start)}
	if err == nil {
		logger.Debug("Command finished.", "command", c.String(), "duration", res.Duration)
		return res, nil
	}

	res.ExitCode = 1
	var exitErr *exec.ExitError
	var execErr *exec.Error
	switch {
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case errors.As(err, &execErr):
		res.ExitCode = 127
	}
	logger.Debug("Command failed.", "command", c.String(), "exit_code", res.ExitCode, "error", err)
	return res, &builderr.CommandError{
		Name:     c.Name,
		Args:     c.Args,
		ExitCode: res.ExitCode,
		Stderr:   stderr.String(),
		Err:      err,
	}
}

// lockedWriter serializes writes from the stdout and stderr copiers, which
// os/exec runs on separate goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func environ(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
