package notify

import (
	"context"
	"sync"
	"time"

	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/ctxlog"
	"github.com/vk/bozogo/internal/hclconfig"
	"github.com/vk/bozogo/internal/registry"
	"github.com/vk/bozogo/internal/stage"
)

// Module implements the registry.Module interface for this package. Dial
// defaults to DialSocketIO.
type Module struct {
	Dial Dialer
}

// Input defines the arguments of a notify hook.
type Input struct {
	URL                string `hcl:"url"`
	Namespace          string `hcl:"namespace,optional"`
	Event              string `hcl:"event,optional"`
	Timeout            string `hcl:"timeout,optional"`
	InsecureSkipVerify bool   `hcl:"insecure_skip_verify,optional"`
}

func (in Input) connectTimeout() (time.Duration, error) {
	if in.Timeout == "" {
		return 15 * time.Second, nil
	}
	d, err := time.ParseDuration(in.Timeout)
	if err != nil {
		return 0, builderr.WrapConfig(err, "invalid notify timeout %q", in.Timeout)
	}
	return d, nil
}

// Build statuses sent to listeners.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Notifier reports build status changes. Delivery problems are logged and
// never fail the build.
type Notifier struct {
	dial  Dialer
	input Input

	mu      sync.Mutex
	emitter Emitter
}

func payload(ev stage.Event, status string) map[string]any {
	p := map[string]any{
		"status":      status,
		"version":     ev.Run.Version,
		"environment": ev.Run.Environment,
		"machine":     ev.Run.Machine,
	}
	if hash := ev.Run.Getenv("GIT_HASH"); hash != "" {
		p["commit"] = hash
	}
	if ev.Failure != nil {
		p["phase"] = string(ev.Failure.Phase)
		p["error"] = ev.Failure.Err.Error()
	}
	return p
}

func (n *Notifier) send(ctx context.Context, ev stage.Event, status string, last bool) error {
	logger := ctxlog.FromContext(ctx)
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.emitter == nil {
		e, err := n.dial(ctx, n.input)
		if err != nil {
			logger.Warn("Build notification skipped.", "status", status, "error", err)
			return nil
		}
		n.emitter = e
	}
	if err := n.emitter.Emit(ctx, n.input.Event, payload(ev, status)); err != nil {
		logger.Warn("Build notification failed.", "status", status, "error", err)
	}
	if last {
		if err := n.emitter.Close(); err != nil {
			logger.Debug("Closing notification client failed.", "error", err)
		}
		n.emitter = nil
	}
	return nil
}

// Hooks returns the notifier's hook table.
func (n *Notifier) Hooks() stage.HookTable {
	return stage.HookTable{
		stage.Before(stage.Build): func(ctx context.Context, ev stage.Event) error {
			return n.send(ctx, ev, StatusPending, false)
		},
		stage.After(stage.Build): func(ctx context.Context, ev stage.Event) error {
			return n.send(ctx, ev, StatusSuccess, true)
		},
		stage.OnFailure: func(ctx context.Context, ev stage.Event) error {
			return n.send(ctx, ev, StatusFailure, true)
		},
	}
}

// NewNotifier creates a notifier that connects with dial on first use.
func NewNotifier(dial Dialer, in Input) *Notifier {
	if in.Event == "" {
		in.Event = "build"
	}
	return &Notifier{dial: dial, input: in}
}

// Register registers the step kind with the registry.
func (m *Module) Register(r *registry.Registry) {
	dial := m.Dial
	if dial == nil {
		dial = DialSocketIO
	}
	r.RegisterKind("notify", &registry.RegisteredKind{
		Roles: []string{hclconfig.RoleHook},
		New: func(ctx context.Context, decl hclconfig.StepDecl, deps registry.Deps) (stage.HookTable, error) {
			var in Input
			if err := decl.Decode(deps.EvalCtx, &in); err != nil {
				return nil, err
			}
			if _, err := in.connectTimeout(); err != nil {
				return nil, err
			}
			return NewNotifier(dial, in).Hooks(), nil
		},
	})
}
