package jenkins

import (
	"context"

	"github.com/vk/bozogo/internal/ctxlog"
	"github.com/vk/bozogo/internal/hclconfig"
	"github.com/vk/bozogo/internal/registry"
	"github.com/vk/bozogo/internal/stage"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// EnvVar is set on Jenkins build agents.
const EnvVar = "JENKINS_HOME"

// exported maps the Jenkins variable to the name later steps read.
var exported = [][2]string{
	{"BUILD_URL", "BUILD_URL"},
	{"BUILD_NUMBER", "BUILD_NUMBER"},
	{"JOB_NAME", "BUILD_NAME"},
}

// BeforeBuild copies the Jenkins build identity into the run environment.
func BeforeBuild(ctx context.Context, ev stage.Event) error {
	if _, ok := ev.Run.LookupEnv(EnvVar); !ok {
		ctxlog.FromContext(ctx).Debug("Not running on Jenkins, skipping.", "step", ev.Executor)
		return nil
	}
	for _, pair := range exported {
		if v, ok := ev.Run.LookupEnv(pair[0]); ok {
			ev.Run.Setenv(pair[1], v)
		}
	}
	ctxlog.FromContext(ctx).Info("Jenkins build detected.", "build_name", ev.Run.Getenv("BUILD_NAME"), "build_number", ev.Run.Getenv("BUILD_NUMBER"))
	return nil
}

// New builds the hook table for a jenkins step.
func New(ctx context.Context, decl hclconfig.StepDecl, deps registry.Deps) (stage.HookTable, error) {
	var in struct{}
	if err := decl.Decode(deps.EvalCtx, &in); err != nil {
		return nil, err
	}
	return stage.HookTable{stage.Before(stage.Build): BeforeBuild}, nil
}

// Register registers the step kind with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("jenkins", &registry.RegisteredKind{
		Roles: []string{hclconfig.RoleHook},
		New:   New,
	})
}
