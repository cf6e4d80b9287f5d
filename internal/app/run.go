package app

import (
	"context"

	"github.com/vk/bozogo/internal/ctxlog"
)

// Run executes the build described by the app's configuration. With
// DumpConfig set it prints that file's configuration instead.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.DumpConfig != "" {
		return a.DumpConfig(ctx, a.config.DumpConfig, a.outW)
	}

	if a.config.StatusPort > 0 {
		if err := a.startStatusServer(ctx); err != nil {
			return err
		}
		defer a.closeStatusServer(ctx)
	}

	if err := a.Load(ctx); err != nil {
		return err
	}

	a.metrics.running.Set(1)
	d := a.Dispatcher()
	err := d.Run(ctx, a.RunContext(), a.config.Target)
	a.logger.Debug("App.Run method finished.", "status", d.State().Status)
	return err
}
