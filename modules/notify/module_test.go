package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bozogo/internal/command/commandtest"
	"github.com/vk/bozogo/internal/registry"
	"github.com/vk/bozogo/internal/testutil"
	"github.com/vk/bozogo/modules/notify"
	"github.com/vk/bozogo/modules/shell"
)

type sent struct {
	event   string
	payload map[string]any
}

type fakeEmitter struct {
	mu     sync.Mutex
	sent   []sent
	closed int
}

func (f *fakeEmitter) Emit(ctx context.Context, event string, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{event: event, payload: payload})
	return nil
}

func (f *fakeEmitter) Close() error {
	f.closed++
	return nil
}

func (f *fakeEmitter) statuses() []any {
	var out []any
	for _, s := range f.sent {
		out = append(out, s.payload["status"])
	}
	return out
}

const manifest = `
version = "3.1.0"

hook "notify" {
  url   = "http://localhost:3000/socket.io/"
  event = "build-status"
}

compile "shell" {
  command = "make"
}
`

func TestNotify_SendsPendingThenSuccess(t *testing.T) {
	emitter := &fakeEmitter{}
	var dialed notify.Input
	dial := func(ctx context.Context, in notify.Input) (notify.Emitter, error) {
		dialed = in
		return emitter, nil
	}

	result := testutil.RunBuild(t, testutil.Build{
		Manifest:    manifest,
		Environment: "staging",
		Modules:     []registry.Module{&notify.Module{Dial: dial}, &shell.Module{}},
	})
	require.NoError(t, result.Err)

	assert.Equal(t, "http://localhost:3000/socket.io/", dialed.URL)
	assert.Equal(t, []any{notify.StatusPending, notify.StatusSuccess}, emitter.statuses())
	assert.Equal(t, "build-status", emitter.sent[0].event)
	assert.Equal(t, "3.1.0", emitter.sent[0].payload["version"])
	assert.Equal(t, "staging", emitter.sent[0].payload["environment"])
	assert.Equal(t, 1, emitter.closed)
}

func TestNotify_SendsFailure(t *testing.T) {
	emitter := &fakeEmitter{}
	dial := func(ctx context.Context, in notify.Input) (notify.Emitter, error) { return emitter, nil }

	result := testutil.RunBuild(t, testutil.Build{
		Manifest:  manifest,
		Responses: map[string]commandtest.Response{"make": {ExitCode: 2}},
		Modules:   []registry.Module{&notify.Module{Dial: dial}, &shell.Module{}},
	})
	require.Error(t, result.Err)

	assert.Equal(t, []any{notify.StatusPending, notify.StatusFailure}, emitter.statuses())
	last := emitter.sent[1].payload
	assert.Equal(t, "compile", last["phase"])
	assert.Contains(t, last["error"], "exited with code 2")
}

func TestNotify_UnreachableServerDoesNotFailBuild(t *testing.T) {
	dial := func(ctx context.Context, in notify.Input) (notify.Emitter, error) {
		return nil, errors.New("connection refused")
	}
	result := testutil.RunBuild(t, testutil.Build{
		Manifest: manifest,
		Modules:  []registry.Module{&notify.Module{Dial: dial}, &shell.Module{}},
	})
	require.NoError(t, result.Err)
	assert.Contains(t, result.Output, "Build notification skipped.")
}

func TestNotify_InvalidTimeout(t *testing.T) {
	result := testutil.RunBuild(t, testutil.Build{
		Manifest: `hook "notify" {
  url     = "http://localhost:3000"
  timeout = "soon"
}`,
		Modules: []registry.Module{&notify.Module{}},
	})
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), `invalid notify timeout "soon"`)
}
