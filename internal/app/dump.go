package app

import (
	"context"
	"errors"
	"io"
	"io/fs"

	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/config"
	"github.com/vk/bozogo/internal/ctxlog"
	"github.com/vk/bozogo/internal/hclconfig"
	"gopkg.in/yaml.v3"
)

// DumpConfig loads the configuration file at path into an empty tree and
// writes the resulting snapshot to w as YAML. With a query configured only
// the value at that dotted path is written.
func (a *App) DumpConfig(ctx context.Context, path string, w io.Writer) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	rc, err := a.newRunContext(ctx)
	if err != nil {
		return err
	}
	tree := hclconfig.NewTree(hclconfig.NewEvalContext(hclconfig.VariablesFrom(rc)),
		config.WithMaxDepth(a.config.MaxConfigDepth))
	if err := tree.Load(ctx, path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return builderr.Configf("config file %s could not be found", path)
		}
		return err
	}

	var doc any = tree.Snapshot()
	if a.config.Query != "" {
		if doc, err = config.ResolveDotted(tree, a.config.Query); err != nil {
			return err
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
