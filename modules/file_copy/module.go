package file_copy

import (
	"context"
	"path/filepath"

	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/ctxlog"
	"github.com/vk/bozogo/internal/fsutil"
	"github.com/vk/bozogo/internal/hclconfig"
	"github.com/vk/bozogo/internal/registry"
	"github.com/vk/bozogo/internal/stage"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments of a file_copy step.
type Input struct {
	Directories []string `hcl:"directories"`
	Destination string   `hcl:"destination"`
}

// Copier publishes directories by copying them under a destination.
type Copier struct {
	Directories []string
	Destination string
}

// Publish checks every source and target, then copies. Nothing is copied
// when any check fails.
func (c *Copier) Publish(ctx context.Context, ev stage.Event) error {
	logger := ctxlog.FromContext(ctx)
	targets := make([]string, len(c.Directories))
	for i, dir := range c.Directories {
		if !fsutil.Exists(dir) {
			return builderr.Configf("Source directory %s does not exist", dir)
		}
		targets[i] = filepath.Join(c.Destination, filepath.Base(dir))
		if fsutil.Exists(targets[i]) {
			return builderr.Configf("Target %s already exists", targets[i])
		}
	}
	for i, dir := range c.Directories {
		if err := fsutil.CopyDir(dir, targets[i]); err != nil {
			return err
		}
		logger.Info("Directory published.", "source", dir, "target", targets[i])
	}
	return nil
}

// New builds the hook table for a file_copy step.
func New(ctx context.Context, decl hclconfig.StepDecl, deps registry.Deps) (stage.HookTable, error) {
	var in Input
	if err := decl.Decode(deps.EvalCtx, &in); err != nil {
		return nil, err
	}
	if len(in.Directories) == 0 {
		return nil, builderr.Configf("%s: no directories specified to copy", decl.Range)
	}
	if in.Destination == "" {
		return nil, builderr.Configf("%s: no destination specified", decl.Range)
	}
	abs := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(deps.WorkDir, p)
	}
	c := &Copier{Destination: abs(in.Destination)}
	for _, d := range in.Directories {
		c.Directories = append(c.Directories, abs(d))
	}
	return stage.HookTable{stage.Work(stage.Publish): c.Publish}, nil
}

// Register registers the step kind with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("file_copy", &registry.RegisteredKind{
		Roles: []string{"publish"},
		New:   New,
	})
}
