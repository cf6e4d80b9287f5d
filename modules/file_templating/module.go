package file_templating

import (
	"context"
	"path/filepath"

	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/config"
	"github.com/vk/bozogo/internal/ctxlog"
	"github.com/vk/bozogo/internal/fsutil"
	"github.com/vk/bozogo/internal/hclconfig"
	"github.com/vk/bozogo/internal/registry"
	"github.com/vk/bozogo/internal/render"
	"github.com/vk/bozogo/internal/stage"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments of a file_templating hook.
type Input struct {
	ConfigPath    string   `hcl:"config_path,optional"`
	ConfigFiles   []string `hcl:"config_files,optional"`
	TemplateFiles []string `hcl:"template_files"`
	ExcludeFiles  []string `hcl:"exclude_files,optional"`
}

// New builds the hook table. Templates are rendered before compilation so
// the compiled output picks up the generated files.
func New(ctx context.Context, decl hclconfig.StepDecl, deps registry.Deps) (stage.HookTable, error) {
	var in Input
	if err := decl.Decode(deps.EvalCtx, &in); err != nil {
		return nil, err
	}
	if len(in.TemplateFiles) == 0 {
		return nil, builderr.Configf("%s: template_files must list at least one pattern", decl.Range)
	}
	if in.ConfigPath == "" {
		in.ConfigPath = "config"
	}
	root := deps.WorkDir
	abs := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}

	return stage.HookTable{
		stage.Before(stage.Compile): func(ctx context.Context, ev stage.Event) error {
			logger := ctxlog.FromContext(ctx)
			evalCtx := hclconfig.NewEvalContext(hclconfig.VariablesFrom(ev.Run))
			c := NewCoordinator(hclconfig.NewTree(evalCtx, config.WithMaxDepth(deps.MaxConfigDepth)))

			for _, f := range EnvironmentFiles(abs(in.ConfigPath), ev.Run.Environment, ev.Run.Machine) {
				if err := c.ConfigFile(ctx, f); err != nil {
					return err
				}
			}
			for _, f := range in.ConfigFiles {
				if err := c.RequiredConfigFile(ctx, abs(f)); err != nil {
					return err
				}
			}

			templates, err := fsutil.GlobAll(root, in.TemplateFiles, in.ExcludeFiles)
			if err != nil {
				return builderr.WrapConfig(err, "invalid template pattern")
			}
			logger.Debug("Templates discovered.", "count", len(templates), "config_files", len(c.Tree().Loads()))
			return c.RenderFiles(ctx, render.New(c.Tree(), evalCtx), templates)
		},
	}, nil
}

// Register registers the step kind with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("file_templating", &registry.RegisteredKind{
		Roles: []string{hclconfig.RoleHook},
		New:   New,
	})
}
