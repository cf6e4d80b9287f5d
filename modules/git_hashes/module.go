package git_hashes

import (
	"context"
	"strings"

	"github.com/vk/bozogo/internal/command"
	"github.com/vk/bozogo/internal/ctxlog"
	"github.com/vk/bozogo/internal/hclconfig"
	"github.com/vk/bozogo/internal/registry"
	"github.com/vk/bozogo/internal/stage"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Environment variables set by the step. BuildNumberVar is only read, for
// pre-release versions.
const (
	HashVar        = "GIT_HASH"
	FullHashVar    = "GIT_HASH_FULL"
	VersionVar     = "BUILD_VERSION"
	BuildNumberVar = "BUILD_NUMBER"
)

// Input defines the arguments of a git_commit_hashes hook.
type Input struct {
	// PreRelease publishes under "<BUILD_NUMBER>.0.0" instead of the
	// manifest version.
	PreRelease bool `hcl:"pre_release,optional"`
}

// BuildVersion is the version a build publishes under.
func BuildVersion(rc *stage.RunContext, preRelease bool) string {
	if n := rc.Getenv(BuildNumberVar); preRelease && n != "" {
		return n + ".0.0"
	}
	return rc.Version
}

// Hooks returns a table that records the current commit and the build
// version once dependencies are in place.
func Hooks(runner command.Runner, dir string, in Input) stage.HookTable {
	return stage.HookTable{
		stage.After(stage.Dependencies): func(ctx context.Context, ev stage.Event) error {
			for _, v := range []struct{ name, format string }{
				{HashVar, "%h"},
				{FullHashVar, "%H"},
			} {
				res, err := runner.Run(ctx, command.Command{
					Name: "git",
					Args: []string{"log", "-1", "--format=" + v.format},
					Dir:  dir,
					Env:  ev.Run.Environ(),
				})
				if err != nil {
					return err
				}
				ev.Run.Setenv(v.name, strings.TrimSpace(string(res.Stdout)))
			}
			ev.Run.Setenv(VersionVar, BuildVersion(ev.Run, in.PreRelease))
			ctxlog.FromContext(ctx).Info("Commit recorded.", "hash", ev.Run.Getenv(HashVar), "build_version", ev.Run.Getenv(VersionVar))
			return nil
		},
	}
}

// New builds the hook table for a git_commit_hashes step.
func New(ctx context.Context, decl hclconfig.StepDecl, deps registry.Deps) (stage.HookTable, error) {
	var in Input
	if err := decl.Decode(deps.EvalCtx, &in); err != nil {
		return nil, err
	}
	return Hooks(deps.Runner, deps.WorkDir, in), nil
}

// Register registers the step kind with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("git_commit_hashes", &registry.RegisteredKind{
		Roles: []string{hclconfig.RoleHook},
		New:   New,
	})
}
