package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/vk/bozogo/internal/command"
	"github.com/vk/bozogo/internal/ctxlog"
	"github.com/vk/bozogo/internal/hclconfig"
	"github.com/vk/bozogo/internal/registry"
	"github.com/vk/bozogo/internal/stage"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	registry   *registry.Registry
	runner     command.Runner
	env        map[string]string
	metrics    *metrics
	httpServer *http.Server

	// mu guards the fields Load publishes; the status server reads them
	// while a build runs.
	mu         sync.RWMutex
	run        *stage.RunContext
	manifest   *hclconfig.Manifest
	dispatcher *stage.Dispatcher
}

// Option customizes an App.
type Option func(*App)

// WithRunner replaces the command runner used by steps.
func WithRunner(r command.Runner) Option {
	return func(a *App) { a.runner = r }
}

// WithEnv replaces the process environment the run starts from.
func WithEnv(env map[string]string) Option {
	return func(a *App) { a.env = env }
}

// WithModules replaces the compiled-in step modules.
func WithModules(modules ...registry.Module) Option {
	return func(a *App) {
		a.registry = registry.New()
		for _, mod := range modules {
			mod.Register(a.registry)
		}
	}
}

// NewApp is the constructor for the main application. It returns an App with
// its own isolated logger and registry. Nothing is loaded until Load or Run.
func NewApp(ctx context.Context, outW io.Writer, cfg *Config, opts ...Option) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	a := &App{
		outW:    outW,
		logger:  logger,
		config:  cfg,
		runner:  command.ExecRunner{},
		metrics: newMetrics(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.registry == nil {
		a.registry = registry.New()
		for _, mod := range coreModules {
			mod.Register(a.registry)
		}
	}
	if a.env == nil {
		a.env = environ(os.Environ())
	}
	a.ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("App created.", "kinds", a.registry.Kinds())
	return a
}

// Registry returns the application's registry.
func (a *App) Registry() *registry.Registry { return a.registry }

// Dispatcher returns the dispatcher assembled by Load, or nil before it.
func (a *App) Dispatcher() *stage.Dispatcher {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dispatcher
}

// RunContext returns the run context built by Load, or nil before it.
func (a *App) RunContext() *stage.RunContext {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.run
}

// Manifest returns the loaded build manifest, or nil before Load.
func (a *App) Manifest() *hclconfig.Manifest {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.manifest
}

func environ(pairs []string) map[string]string {
	env := make(map[string]string, len(pairs))
	for _, e := range pairs {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}
	return env
}
