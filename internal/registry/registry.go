package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/command"
	"github.com/vk/bozogo/internal/hclconfig"
	"github.com/vk/bozogo/internal/stage"
)

// Module is the interface that all step packages implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Deps are the shared services handed to every step factory.
type Deps struct {
	Runner command.Runner
	// Out receives user-facing output such as reports and service messages.
	Out io.Writer
	// EvalCtx evaluates step bodies. It carries the run's final version.
	EvalCtx *hcl.EvalContext
	WorkDir string
	// MaxConfigDepth limits group nesting in configuration trees steps
	// build. Zero means unlimited.
	MaxConfigDepth int
}

// Factory builds an executor's hook table from its declaration.
type Factory func(ctx context.Context, decl hclconfig.StepDecl, deps Deps) (stage.HookTable, error)

// RegisteredKind holds the compiled parts of a step kind.
type RegisteredKind struct {
	// Roles lists the manifest roles the kind may be declared under.
	Roles []string
	New   Factory
}

// Registry holds the registered step kinds for a single application instance.
type Registry struct {
	kinds map[string]*RegisteredKind
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{kinds: make(map[string]*RegisteredKind)}
}

// RegisterKind adds a step kind. Registering the same name twice is a
// programming error and panics.
func (r *Registry) RegisterKind(name string, kind *RegisteredKind) {
	if _, exists := r.kinds[name]; exists {
		panic(fmt.Sprintf("step kind '%s' already registered", name))
	}
	slog.Debug("Registering step kind.", "kind", name, "roles", kind.Roles)
	r.kinds[name] = kind
}

// Kinds returns the registered kind names, sorted.
func (r *Registry) Kinds() []string {
	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build creates the hook table for one declaration.
func (r *Registry) Build(ctx context.Context, decl hclconfig.StepDecl, deps Deps) (stage.HookTable, error) {
	kind, ok := r.kinds[decl.Kind]
	if !ok {
		return nil, builderr.Configf("%s: unknown step kind %q - known kinds: %s", decl.Range, decl.Kind, strings.Join(r.Kinds(), ", "))
	}
	if !slices.Contains(kind.Roles, decl.Role) {
		return nil, builderr.Configf("%s: step kind %q cannot be declared as %s - allowed: %s", decl.Range, decl.Kind, decl.Role, strings.Join(kind.Roles, ", "))
	}
	table, err := kind.New(ctx, decl, deps)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", decl.Name, err)
	}
	if err := validateTable(decl, table); err != nil {
		return nil, err
	}
	return table, nil
}

// Assemble builds every step of m and registers it with d, in manifest order.
func (r *Registry) Assemble(ctx context.Context, m *hclconfig.Manifest, deps Deps, d *stage.Dispatcher) error {
	for _, decl := range m.Steps {
		table, err := r.Build(ctx, decl, deps)
		if err != nil {
			return err
		}
		if err := d.Register(decl.Name, table); err != nil {
			return fmt.Errorf("register %s: %w", decl.Name, err)
		}
	}
	return nil
}
