package git_tag

import (
	"context"
	"strings"

	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/command"
	"github.com/vk/bozogo/internal/ctxlog"
	"github.com/vk/bozogo/internal/hclconfig"
	"github.com/vk/bozogo/internal/registry"
	"github.com/vk/bozogo/internal/stage"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments of a git_tag_release hook.
type Input struct {
	Prefix string `hcl:"prefix,optional"`
	Remote string `hcl:"remote,optional"`
}

// Tagger tags the released commit after a successful publish.
type Tagger struct {
	Runner command.Runner
	Dir    string
	Prefix string
	Remote string
}

func (t *Tagger) git(ctx context.Context, ev stage.Event, args ...string) (command.Result, error) {
	return t.Runner.Run(ctx, command.Command{Name: "git", Args: args, Dir: t.Dir, Env: ev.Run.Environ()})
}

// AfterPublish creates and pushes the release tag. Outside a build server it
// does nothing.
func (t *Tagger) AfterPublish(ctx context.Context, ev stage.Event) error {
	logger := ctxlog.FromContext(ctx)
	if !ev.Run.BuildServer {
		logger.Info("Not on a build server, skipping release tag.", "step", ev.Executor)
		return nil
	}
	if ev.Run.Version == "" {
		return builderr.Configf("cannot tag a release without a version")
	}
	tag := t.Prefix + ev.Run.Version

	res, err := t.git(ctx, ev, "tag", "-l", tag)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(res.Stdout)) != "" {
		return builderr.Configf("The tag %s already exists", tag)
	}
	if _, err := t.git(ctx, ev, "tag", tag); err != nil {
		return err
	}
	push := []string{"push", "--tags"}
	if t.Remote != "" {
		push = append(push, t.Remote)
	}
	if _, err := t.git(ctx, ev, push...); err != nil {
		return err
	}
	logger.Info("Release tagged.", "tag", tag)
	return nil
}

// New builds the hook table for a git_tag_release step.
func New(ctx context.Context, decl hclconfig.StepDecl, deps registry.Deps) (stage.HookTable, error) {
	var in Input
	if err := decl.Decode(deps.EvalCtx, &in); err != nil {
		return nil, err
	}
	if in.Prefix == "" {
		in.Prefix = "rel-"
	}
	t := &Tagger{Runner: deps.Runner, Dir: deps.WorkDir, Prefix: in.Prefix, Remote: in.Remote}
	return stage.HookTable{stage.After(stage.Publish): t.AfterPublish}, nil
}

// Register registers the step kind with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("git_tag_release", &registry.RegisteredKind{
		Roles: []string{hclconfig.RoleHook},
		New:   New,
	})
}
