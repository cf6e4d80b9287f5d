package app

import (
	"context"
	"errors"
	"io/fs"
	"maps"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-envparse"
	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/ctxlog"
	"github.com/vk/bozogo/internal/hclconfig"
	"github.com/vk/bozogo/internal/registry"
	"github.com/vk/bozogo/internal/stage"
)

// Load builds the run context, reads the build manifest and registers its
// steps with a fresh dispatcher. Calling it again is a no-op.
func (a *App) Load(ctx context.Context) error {
	if a.Dispatcher() != nil {
		return nil
	}
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := ctxlog.FromContext(ctx)

	rc, err := a.newRunContext(ctx)
	if err != nil {
		return err
	}

	manifest, err := hclconfig.LoadManifest(ctx, a.config.BuildFile, hclconfig.NewEvalContext(hclconfig.VariablesFrom(rc)))
	if err != nil {
		return err
	}
	rc.Version = manifest.Version

	deps := registry.Deps{
		Runner:  a.runner,
		Out:     a.outW,
		EvalCtx: hclconfig.NewEvalContext(hclconfig.VariablesFrom(rc)),
		WorkDir: rc.WorkDir,

		MaxConfigDepth: a.config.MaxConfigDepth,
	}
	d := stage.NewDispatcher(stage.WithObserver(a.metrics))
	if err := a.registry.Assemble(ctx, manifest, deps, d); err != nil {
		return err
	}

	a.mu.Lock()
	a.run, a.manifest, a.dispatcher = rc, manifest, d
	a.mu.Unlock()
	logger.Info("Build loaded.",
		"manifest", manifest.Path,
		"version", rc.Version,
		"environment", rc.Environment,
		"machine", rc.Machine,
		"build_server", rc.BuildServer,
		"steps", d.Executors(),
	)
	return nil
}

// newRunContext seeds a run context from the process environment and the
// configured env files. Env files only fill variables that are not already
// set.
func (a *App) newRunContext(ctx context.Context) (*stage.RunContext, error) {
	env := maps.Clone(a.env)
	for _, path := range a.config.EnvFiles {
		vals, err := readEnvFile(path)
		if err != nil {
			return nil, err
		}
		for k, v := range vals {
			if _, set := env[k]; !set {
				env[k] = v
			}
		}
		ctxlog.FromContext(ctx).Debug("Env file loaded.", "path", path, "vars", len(vals))
	}

	rc := stage.NewRunContext(env)
	rc.Environment = a.config.Environment
	rc.Machine = a.config.Machine
	if rc.Machine == "" {
		if host, err := os.Hostname(); err == nil {
			rc.Machine = host
		}
	}
	rc.BuildServer = stage.DetectBuildServer(env)

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	rc.WorkDir = wd
	if a.config.BuildFile != "" {
		abs, err := filepath.Abs(a.config.BuildFile)
		if err != nil {
			return nil, err
		}
		rc.WorkDir = filepath.Dir(abs)
	}
	return rc, nil
}

func readEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, builderr.Configf("env file %s could not be found", path)
		}
		return nil, err
	}
	defer f.Close()

	vals, err := envparse.Parse(f)
	if err != nil {
		return nil, builderr.WrapConfig(err, "failed to parse env file %s", path)
	}
	return vals, nil
}
