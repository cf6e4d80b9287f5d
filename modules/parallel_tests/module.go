package parallel_tests

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/command"
	"github.com/vk/bozogo/internal/ctxlog"
	"github.com/vk/bozogo/internal/hclconfig"
	"github.com/vk/bozogo/internal/registry"
	"github.com/vk/bozogo/internal/stage"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments of a parallel_tests step. The command runs
// once per project with the project appended to Args.
type Input struct {
	Command     string   `hcl:"command"`
	Args        []string `hcl:"args,optional"`
	Projects    []string `hcl:"projects"`
	MaxParallel int      `hcl:"max_parallel,optional"`
}

// Runner runs one test command per project concurrently.
type Runner struct {
	Runner command.Runner
	Input  Input
	Dir    string
}

// Test runs every project and waits for all of them. Failures do not cancel
// the remaining projects; they are combined into a single error.
func (r *Runner) Test(ctx context.Context, ev stage.Event) error {
	logger := ctxlog.FromContext(ctx)
	env := ev.Run.Environ()

	var g errgroup.Group
	if r.Input.MaxParallel > 0 {
		g.SetLimit(r.Input.MaxParallel)
	}

	var mu sync.Mutex
	var errs error
	for _, project := range r.Input.Projects {
		g.Go(func() error {
			cmd := command.Command{
				Name: r.Input.Command,
				Args: append(append([]string(nil), r.Input.Args...), project),
				Dir:  r.Dir,
				Env:  env,
			}
			logger.Info("Running tests.", "project", project)
			if _, err := r.Runner.Run(ctx, cmd); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", project, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if errs != nil {
		logger.Error("Test projects failed.", "failed", len(multierr.Errors(errs)), "total", len(r.Input.Projects))
	}
	return errs
}

// New builds the hook table for a parallel_tests step.
func New(ctx context.Context, decl hclconfig.StepDecl, deps registry.Deps) (stage.HookTable, error) {
	var in Input
	if err := decl.Decode(deps.EvalCtx, &in); err != nil {
		return nil, err
	}
	if len(in.Projects) == 0 {
		return nil, builderr.Configf("%s: projects must list at least one project", decl.Range)
	}
	r := &Runner{Runner: deps.Runner, Input: in, Dir: deps.WorkDir}
	return stage.HookTable{stage.Work(stage.Test): r.Test}, nil
}

// Register registers the step kind with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("parallel_tests", &registry.RegisteredKind{
		Roles: []string{"test"},
		New:   New,
	})
}
