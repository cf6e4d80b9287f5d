package file_templating

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/config"
	"github.com/vk/bozogo/internal/ctxlog"
	"github.com/vk/bozogo/internal/render"
)

// Coordinator loads configuration layers into a tree and renders template
// files against it.
type Coordinator struct {
	tree *config.Tree
}

// NewCoordinator creates a coordinator that loads into tree.
func NewCoordinator(tree *config.Tree) *Coordinator {
	return &Coordinator{tree: tree}
}

// Tree returns the configuration tree being built.
func (c *Coordinator) Tree() *config.Tree {
	return c.tree
}

// ConfigFile loads path if it exists and silently skips it otherwise.
func (c *Coordinator) ConfigFile(ctx context.Context, path string) error {
	err := c.tree.Load(ctx, path)
	if errors.Is(err, fs.ErrNotExist) {
		ctxlog.FromContext(ctx).Debug("Optional config file not found.", "path", path)
		return nil
	}
	return err
}

// RequiredConfigFile loads path, failing with a ConfigurationError when it
// does not exist.
func (c *Coordinator) RequiredConfigFile(ctx context.Context, path string) error {
	err := c.tree.Load(ctx, path)
	if errors.Is(err, fs.ErrNotExist) {
		return builderr.Configf("Required config file %s could not be found", path)
	}
	return err
}

// EnvironmentFiles returns the conventional layers under dir: default.hcl,
// then <environment>.hcl, then <machine>.hcl. Empty names are skipped.
func EnvironmentFiles(dir, environment, machine string) []string {
	files := []string{filepath.Join(dir, "default.hcl")}
	for _, name := range []string{environment, machine} {
		if name != "" {
			files = append(files, filepath.Join(dir, name+".hcl"))
		}
	}
	return files
}

// TargetPath is the file a template renders to: the template path without
// its last extension.
func TargetPath(template string) string {
	return strings.TrimSuffix(template, filepath.Ext(template))
}

// RenderFiles renders every template with r and writes the result next to it.
// Every template needs an extension to strip; if one lacks it nothing is
// rendered.
func (c *Coordinator) RenderFiles(ctx context.Context, r render.Renderer, templates []string) error {
	logger := ctxlog.FromContext(ctx)
	for _, tmpl := range templates {
		if base := filepath.Base(tmpl); filepath.Ext(base) == "" || filepath.Ext(base) == base {
			return builderr.Configf("template %s has no extension to strip; its output would overwrite it", tmpl)
		}
	}
	for _, tmpl := range templates {
		src, err := os.ReadFile(tmpl)
		if err != nil {
			return err
		}
		out, err := r.Render(ctx, tmpl, src)
		if err != nil {
			return err
		}
		target := TargetPath(tmpl)
		info, err := os.Stat(tmpl)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, out, info.Mode().Perm()); err != nil {
			return err
		}
		logger.Info("Rendered template.", "template", tmpl, "target", target)
	}
	return nil
}
