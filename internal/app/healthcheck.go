package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vk/bozogo/internal/ctxlog"
	"github.com/vk/bozogo/internal/stage"
)

// TimingView is one phase timing as served by /status.
type TimingView struct {
	Phase   stage.Phase `json:"phase"`
	Seconds float64     `json:"seconds"`
}

// StatusView is the body served by /status.
type StatusView struct {
	Status    stage.Status `json:"status"`
	Phase     stage.Phase  `json:"phase,omitempty"`
	Target    stage.Phase  `json:"target,omitempty"`
	Version   string       `json:"version,omitempty"`
	Executors []string     `json:"executors"`
	Timings   []TimingView `json:"timings"`
	Failure   string       `json:"failure,omitempty"`
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctxlog.FromContext(a.ctx).Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// Status reports the dispatcher's current state. Safe to call while a build
// is running.
func (a *App) Status() StatusView {
	view := StatusView{Status: stage.NotStarted, Executors: []string{}, Timings: []TimingView{}}
	a.mu.RLock()
	d, rc := a.dispatcher, a.run
	a.mu.RUnlock()
	if d == nil {
		return view
	}
	state := d.State()
	view.Status, view.Phase, view.Target = state.Status, state.Phase, state.Target
	view.Executors = d.Executors()
	if rc != nil {
		view.Version = rc.Version
	}
	for _, t := range d.Timings() {
		view.Timings = append(view.Timings, TimingView{Phase: t.Phase, Seconds: t.Duration.Seconds()})
	}
	if state.Failure != nil {
		view.Failure = state.Failure.Error()
	}
	return view
}

func (a *App) statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(a.Status()); err != nil {
		ctxlog.FromContext(a.ctx).Error("Failed to encode status.", "error", err)
	}
}

func (a *App) statusMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/status", a.statusHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(a.metrics.registry, promhttp.HandlerOpts{}))
	return mux
}

// startStatusServer serves /health, /status and /metrics on the configured
// port until closeStatusServer is called.
func (a *App) startStatusServer(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	addr := fmt.Sprintf(":%d", a.config.StatusPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("status server: %w", err)
	}
	a.httpServer = &http.Server{Handler: a.statusMux(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Status server starting.", "address", fmt.Sprintf("http://localhost%s/status", addr))
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server failed unexpectedly.", "error", err)
		}
	}()
	return nil
}

func (a *App) closeStatusServer(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if a.httpServer == nil {
		logger.Debug("Status server was not running.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	logger.Debug("Shutting down status server...")
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logger.Error("Status server shutdown failed.", "error", err)
		return err
	}
	a.httpServer = nil
	return nil
}
