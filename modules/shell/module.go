package shell

import (
	"context"

	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/command"
	"github.com/vk/bozogo/internal/ctxlog"
	"github.com/vk/bozogo/internal/hclconfig"
	"github.com/vk/bozogo/internal/registry"
	"github.com/vk/bozogo/internal/stage"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments of a shell step.
type Input struct {
	Command string   `hcl:"command"`
	Args    []string `hcl:"args,optional"`
	Dir     string   `hcl:"dir,optional"`
	// On lists extra hooks the command runs on, e.g. ["before_test"].
	On []string `hcl:"on,optional"`
}

// New builds the hook table for a shell step. Declared under a phase it
// performs that phase's work; declared as a hook it runs on the hooks in On.
func New(ctx context.Context, decl hclconfig.StepDecl, deps registry.Deps) (stage.HookTable, error) {
	var in Input
	if err := decl.Decode(deps.EvalCtx, &in); err != nil {
		return nil, err
	}
	dir := in.Dir
	if dir == "" {
		dir = deps.WorkDir
	}

	run := func(ctx context.Context, ev stage.Event) error {
		cmd := command.Command{Name: in.Command, Args: in.Args, Dir: dir, Env: ev.Run.Environ(), Output: deps.Out}
		ctxlog.FromContext(ctx).Info("Running shell step.", "step", ev.Executor, "hook", ev.Hook, "command", cmd.String())
		_, err := deps.Runner.Run(ctx, cmd)
		return err
	}

	table := stage.HookTable{}
	if decl.Role != hclconfig.RoleHook {
		phase, err := stage.ParsePhase(decl.Role)
		if err != nil {
			return nil, err
		}
		table[stage.Work(phase)] = run
	} else if len(in.On) == 0 {
		return nil, builderr.Configf("%s: shell hook needs at least one entry in 'on'", decl.Range)
	}
	for _, name := range in.On {
		h, err := stage.ParseHook(name)
		if err != nil {
			return nil, builderr.WrapConfig(err, "%s: invalid 'on' entry", decl.Range)
		}
		table[h] = run
	}
	return table, nil
}

// Register registers the step kind with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("shell", &registry.RegisteredKind{
		Roles: []string{"dependencies", "compile", "package", "test", "publish", hclconfig.RoleHook},
		New:   New,
	})
}
