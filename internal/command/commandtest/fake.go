// Package commandtest provides a scripted command.Runner for tests.
package commandtest

import (
	"context"
	"strings"
	"sync"

	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/command"
)

// Response is the scripted outcome of a command line.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner records every command and answers from Responses, keyed by the
// command line ("git log -1 --format=%h"). Unknown commands succeed with no
// output.
type Runner struct {
	mu        sync.Mutex
	Responses map[string]Response
	Calls     []command.Command
}

// New creates a runner with the given responses.
func New(responses map[string]Response) *Runner {
	if responses == nil {
		responses = map[string]Response{}
	}
	return &Runner{Responses: responses}
}

// Run implements command.Runner.
func (r *Runner) Run(ctx context.Context, c command.Command) (command.Result, error) {
	r.mu.Lock()
	r.Calls = append(r.Calls, c)
	resp := r.Responses[c.String()]
	r.mu.Unlock()

	res := command.Result{Stdout: []byte(resp.Stdout), Stderr: []byte(resp.Stderr), ExitCode: resp.ExitCode}
	if resp.ExitCode != 0 {
		return res, &builderr.CommandError{Name: c.Name, Args: c.Args, ExitCode: resp.ExitCode, Stderr: resp.Stderr}
	}
	return res, nil
}

// Lines returns the recorded command lines in call order.
func (r *Runner) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		out[i] = c.String()
	}
	return out
}

// Ran reports whether a command line starting with prefix was recorded.
func (r *Runner) Ran(prefix string) bool {
	for _, line := range r.Lines() {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
