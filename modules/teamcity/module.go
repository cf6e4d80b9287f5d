package teamcity

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/vk/bozogo/internal/hclconfig"
	"github.com/vk/bozogo/internal/registry"
	"github.com/vk/bozogo/internal/stage"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// EnvVar is set by TeamCity build agents.
const EnvVar = "TEAMCITY_VERSION"

var escaper = strings.NewReplacer(
	"|", "||",
	"'", "|'",
	"\n", "|n",
	"\r", "|r",
	"[", "|[",
	"]", "|]",
)

// Message formats a service message with a single unnamed argument.
func Message(name, value string) string {
	return fmt.Sprintf("##teamcity[%s '%s']", name, escaper.Replace(value))
}

// MessageAttrs formats a service message with named attributes, in the
// order given as alternating key, value pairs.
func MessageAttrs(name string, kv ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "##teamcity[%s", name)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %s='%s'", kv[i], escaper.Replace(kv[i+1]))
	}
	b.WriteString("]")
	return b.String()
}

var progress = map[stage.Phase]string{
	stage.Dependencies: "Resolving dependencies",
	stage.Compile:      "Compiling",
	stage.Package:      "Packaging",
	stage.Test:         "Running tests",
	stage.Publish:      "Publishing",
}

// Hooks returns the hook table writing service messages to out. Nothing is
// written unless the run happens on a TeamCity agent.
func Hooks(out io.Writer) stage.HookTable {
	emit := func(ev stage.Event, line string) {
		if _, ok := ev.Run.LookupEnv(EnvVar); ok {
			fmt.Fprintln(out, line)
		}
	}
	table := stage.HookTable{
		stage.Before(stage.Build): func(ctx context.Context, ev stage.Event) error {
			if ev.Run.Version != "" {
				emit(ev, Message("buildNumber", ev.Run.Version))
			}
			return nil
		},
		stage.OnFailure: func(ctx context.Context, ev stage.Event) error {
			emit(ev, MessageAttrs("buildProblem", "description", ev.Failure.Error()))
			return nil
		},
	}
	for p, label := range progress {
		table[stage.Before(p)] = func(ctx context.Context, ev stage.Event) error {
			emit(ev, Message("progressStart", label))
			return nil
		}
		table[stage.After(p)] = func(ctx context.Context, ev stage.Event) error {
			emit(ev, Message("progressFinish", label))
			return nil
		}
	}
	return table
}

// New builds the hook table for a teamcity step.
func New(ctx context.Context, decl hclconfig.StepDecl, deps registry.Deps) (stage.HookTable, error) {
	var in struct{}
	if err := decl.Decode(deps.EvalCtx, &in); err != nil {
		return nil, err
	}
	return Hooks(deps.Out), nil
}

// Register registers the step kind with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("teamcity", &registry.RegisteredKind{
		Roles: []string{hclconfig.RoleHook},
		New:   New,
	})
}
