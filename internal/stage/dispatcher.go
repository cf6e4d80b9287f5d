package stage

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/ctxlog"
	"go.uber.org/multierr"
)

// ErrAlreadyRan is returned when Run is called on a dispatcher that has left
// the NotStarted state.
var ErrAlreadyRan = errors.New("dispatcher has already run")

// Status is the dispatcher's position in its run state machine.
type Status string

const (
	NotStarted Status = "not_started"
	Running    Status = "running"
	Succeeded  Status = "succeeded"
	Failed     Status = "failed"
)

// State is a point-in-time view of a run.
type State struct {
	Status   Status    `json:"status" yaml:"status"`
	Phase    Phase     `json:"phase,omitempty" yaml:"phase,omitempty"`
	Target   Phase     `json:"target,omitempty" yaml:"target,omitempty"`
	Started  time.Time `json:"started,omitempty" yaml:"started,omitempty"`
	Finished time.Time `json:"finished,omitempty" yaml:"finished,omitempty"`
	Failure  *Failure  `json:"-" yaml:"-"`
}

// Timing is how long one phase took, measured from its before hook to the
// end of its after hook (or the hook that failed).
type Timing struct {
	Phase    Phase         `json:"phase" yaml:"phase"`
	Started  time.Time     `json:"started" yaml:"started"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Observer is notified as phases and runs finish.
type Observer interface {
	PhaseFinished(phase Phase, d time.Duration, err error)
	RunFinished(state State)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithObserver attaches an observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observers = append(d.observers, o) }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

type executor struct {
	name  string
	hooks HookTable
}

// Dispatcher holds the ordered executor registry and drives a run.
type Dispatcher struct {
	mu        sync.RWMutex
	executors []executor
	state     State
	timings   []Timing
	observers []Observer
	now       func() time.Time
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		state: State{Status: NotStarted},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register appends an executor. Hooks are invoked in registration order.
func (d *Dispatcher) Register(name string, hooks HookTable) error {
	if name == "" {
		return errors.New("executor name must not be empty")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.executors {
		if e.name == name {
			return fmt.Errorf("executor %q is already registered", name)
		}
	}
	if hooks == nil {
		hooks = HookTable{}
	}
	d.executors = append(d.executors, executor{name: name, hooks: hooks})
	return nil
}

// Executors returns the registered executor names in registration order.
func (d *Dispatcher) Executors() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, len(d.executors))
	for i, e := range d.executors {
		names[i] = e.name
	}
	return names
}

// State returns the current run state. Safe to call while Run is in progress.
func (d *Dispatcher) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Timings returns the phase timings recorded so far, build last.
func (d *Dispatcher) Timings() []Timing {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.timings)
}

// Plan returns the inner phases a run through target would enter.
func (d *Dispatcher) Plan(target Phase) []Phase {
	if target == Build {
		target = Publish
	}
	return plan(target, d.hasHook(Work(Package)))
}

// Run executes the lifecycle through target. The returned error is a
// *Failure describing the hook that stopped the run, or ErrAlreadyRan.
func (d *Dispatcher) Run(ctx context.Context, rc *RunContext, target Phase) error {
	logger := ctxlog.FromContext(ctx)
	phases := d.Plan(target)

	started := d.now()
	d.mu.Lock()
	if d.state.Status != NotStarted {
		d.mu.Unlock()
		return ErrAlreadyRan
	}
	d.state = State{Status: Running, Phase: Build, Target: target, Started: started}
	d.mu.Unlock()

	logger.Info("Build started.", "target", target, "phases", phases)

	if f := d.invoke(ctx, rc, Build, Before(Build)); f != nil {
		return d.fail(ctx, rc, f, started)
	}
	for _, p := range phases {
		if f := d.runPhase(ctx, rc, p); f != nil {
			return d.fail(ctx, rc, f, started)
		}
	}
	d.setPhase(Build)
	if f := d.invoke(ctx, rc, Build, After(Build)); f != nil {
		return d.fail(ctx, rc, f, started)
	}

	state := d.finish(Succeeded, nil, started)
	logger.Info("Build succeeded.", "duration", state.Finished.Sub(started))
	return nil
}

func (d *Dispatcher) runPhase(ctx context.Context, rc *RunContext, p Phase) *Failure {
	logger := ctxlog.FromContext(ctx)
	d.setPhase(p)
	started := d.now()
	logger.Info("Phase started.", "phase", p)

	var failure *Failure
	for _, h := range []Hook{Before(p), Work(p), After(p)} {
		if failure = d.invoke(ctx, rc, p, h); failure != nil {
			break
		}
	}

	elapsed := d.record(p, started)
	var err error
	if failure != nil {
		err = failure
	}
	for _, o := range d.observers {
		o.PhaseFinished(p, elapsed, err)
	}
	if failure == nil {
		logger.Info("Phase finished.", "phase", p, "duration", elapsed)
	}
	return failure
}

// invoke fires hook h on every executor that defines it. The first error
// stops the walk.
func (d *Dispatcher) invoke(ctx context.Context, rc *RunContext, p Phase, h Hook) *Failure {
	for _, e := range d.snapshot() {
		fn, ok := e.hooks[h]
		if !ok {
			continue
		}
		hctx := ctxlog.With(ctx, "executor", e.name)
		ctxlog.FromContext(hctx).Debug("Invoking hook.", "hook", h)
		ev := Event{Run: rc, Phase: p, Hook: h, Executor: e.name}
		if err := call(hctx, fn, ev); err != nil {
			return &Failure{Phase: p, Hook: h, Executor: e.name, Err: err}
		}
	}
	return nil
}

// fail fires on_failure on every executor that defines it. Errors raised by
// those hooks are logged and never replace the original failure.
func (d *Dispatcher) fail(ctx context.Context, rc *RunContext, f *Failure, started time.Time) error {
	logger := ctxlog.FromContext(ctx)
	logger.Error("Build failed.", "phase", f.Phase, "hook", f.Hook, "executor", f.Executor, "kind", builderr.Classify(f.Err), "error", f.Err)

	var errs error
	for _, e := range d.snapshot() {
		fn, ok := e.hooks[OnFailure]
		if !ok {
			continue
		}
		ev := Event{Run: rc, Phase: f.Phase, Hook: OnFailure, Executor: e.name, Failure: f}
		if err := call(ctxlog.With(ctx, "executor", e.name), fn, ev); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", e.name, err))
		}
	}
	if errs != nil {
		logger.Warn("on_failure hooks reported errors.", "count", len(multierr.Errors(errs)), "error", errs)
	}

	d.finish(Failed, f, started)
	return f
}

func (d *Dispatcher) finish(status Status, f *Failure, started time.Time) State {
	elapsed := d.record(Build, started)
	d.mu.Lock()
	d.state.Status = status
	d.state.Failure = f
	d.state.Finished = started.Add(elapsed)
	state := d.state
	d.mu.Unlock()
	for _, o := range d.observers {
		o.RunFinished(state)
	}
	return state
}

func (d *Dispatcher) record(p Phase, started time.Time) time.Duration {
	elapsed := d.now().Sub(started)
	d.mu.Lock()
	d.timings = append(d.timings, Timing{Phase: p, Started: started, Duration: elapsed})
	d.mu.Unlock()
	return elapsed
}

func (d *Dispatcher) setPhase(p Phase) {
	d.mu.Lock()
	d.state.Phase = p
	d.mu.Unlock()
}

func (d *Dispatcher) snapshot() []executor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.executors)
}

func (d *Dispatcher) hasHook(h Hook) bool {
	for _, e := range d.snapshot() {
		if e.hooks.Has(h) {
			return true
		}
	}
	return false
}

// call runs fn, turning a panic into an error so on_failure still fires.
func call(ctx context.Context, fn HookFunc, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Error("Hook panicked.", "hook", ev.Hook, "executor", ev.Executor, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic in %s: %v", ev.Hook, r)
		}
	}()
	return fn(ctx, ev)
}
