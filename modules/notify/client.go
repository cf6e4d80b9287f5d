package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/vk/bozogo/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Emitter sends build events to a listener.
type Emitter interface {
	Emit(ctx context.Context, event string, payload map[string]any) error
	Close() error
}

// Dialer connects an Emitter.
type Dialer func(ctx context.Context, in Input) (Emitter, error)

type socketEmitter struct {
	io *socket.Socket
}

func (s *socketEmitter) Emit(ctx context.Context, event string, payload map[string]any) error {
	if !s.io.Connected() {
		return fmt.Errorf("socket.io client is not connected")
	}
	s.io.Emit(event, payload)
	return nil
}

func (s *socketEmitter) Close() error {
	s.io.Disconnect()
	return nil
}

// DialSocketIO connects to a socket.io server over websockets and waits for
// the connection to be confirmed.
func DialSocketIO(ctx context.Context, in Input) (Emitter, error) {
	logger := ctxlog.FromContext(ctx).With("step", "notify", "url", in.URL)

	parsed, err := url.Parse(in.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	timeout, err := in.connectTimeout()
	if err != nil {
		return nil, err
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsed.Path)
	if in.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host), opts)
	io := manager.Socket(in.Namespace, opts)

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Connected to notification server.", "sid", io.Id())
		report(connected, nil)
	})
	io.Once(types.EventName("connect_error"), func(args ...any) {
		report(connected, connectError(args))
	})
	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return &socketEmitter{io: io}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, ctx.Err()
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}
}

// connectError turns the arguments of a connect_error event into an error.
func connectError(args []any) error {
	if len(args) == 0 || args[0] == nil {
		return fmt.Errorf("connect_error without details")
	}
	if err, ok := args[0].(error); ok {
		return err
	}
	return fmt.Errorf("%v", args[0])
}

// report delivers the first connection outcome; later events are dropped so
// the client's event goroutine never blocks.
func report(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}
