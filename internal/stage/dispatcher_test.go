package stage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects "<executor>.<hook>" entries in call order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) table(name string, hooks ...Hook) HookTable {
	t := HookTable{}
	for _, h := range hooks {
		t[h] = func(ctx context.Context, ev Event) error {
			r.add(ev.Executor + "." + string(ev.Hook))
			return nil
		}
	}
	return t
}

func TestDispatcher_RunsHooksInPhaseThenRegistrationOrder(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher()
	require.NoError(t, d.Register("e1", rec.table("e1", Before(Build), Before(Compile), Work(Compile), After(Build))))
	require.NoError(t, d.Register("e2", rec.table("e2", Work(Compile), Work(Test))))
	require.NoError(t, d.Register("e3", rec.table("e3", After(Compile), Before(Test))))

	err := d.Run(context.Background(), NewRunContext(nil), Publish)
	require.NoError(t, err)

	want := []string{
		"e1.before_build",
		"e1.before_compile",
		"e1.compile",
		"e2.compile",
		"e3.after_compile",
		"e3.before_test",
		"e2.test",
		"e1.after_build",
	}
	if diff := cmp.Diff(want, rec.calls); diff != "" {
		t.Errorf("hook order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Succeeded, d.State().Status)
}

func TestDispatcher_FailureStopsRunAndFiresOnFailure(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")
	d := NewDispatcher()

	e1 := rec.table("e1", After(Build), OnFailure, Work(Test))
	e2 := rec.table("e2", OnFailure)
	e2[Work(Compile)] = func(ctx context.Context, ev Event) error {
		rec.add("e2.compile")
		return boom
	}
	var seen *Failure
	e3 := rec.table("e3", After(Compile))
	e3[OnFailure] = func(ctx context.Context, ev Event) error {
		seen = ev.Failure
		rec.add("e3.on_failure")
		return errors.New("cleanup failed")
	}
	require.NoError(t, d.Register("e1", e1))
	require.NoError(t, d.Register("e2", e2))
	require.NoError(t, d.Register("e3", e3))

	err := d.Run(context.Background(), NewRunContext(nil), Publish)
	require.Error(t, err)
	require.ErrorIs(t, err, boom)

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, Compile, f.Phase)
	assert.Equal(t, Work(Compile), f.Hook)
	assert.Equal(t, "e2", f.Executor)
	assert.Same(t, f, seen)

	want := []string{"e2.compile", "e1.on_failure", "e2.on_failure", "e3.on_failure"}
	if diff := cmp.Diff(want, rec.calls); diff != "" {
		t.Errorf("hook order mismatch (-want +got):\n%s", diff)
	}
	state := d.State()
	assert.Equal(t, Failed, state.Status)
	assert.Equal(t, Compile, state.Phase)
	assert.Same(t, f, state.Failure)
}

func TestDispatcher_FailureInBeforeHookSkipsRestOfBoundary(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher()
	e2 := rec.table("e2", OnFailure)
	e2[Before(Compile)] = func(ctx context.Context, ev Event) error {
		rec.add("e2.before_compile")
		return errors.New("not configured")
	}
	require.NoError(t, d.Register("e1", rec.table("e1", Before(Compile), After(Compile), OnFailure)))
	require.NoError(t, d.Register("e2", e2))
	require.NoError(t, d.Register("e3", rec.table("e3", Before(Compile), Work(Compile), OnFailure)))

	require.Error(t, d.Run(context.Background(), NewRunContext(nil), Publish))
	want := []string{"e1.before_compile", "e2.before_compile", "e1.on_failure", "e2.on_failure", "e3.on_failure"}
	if diff := cmp.Diff(want, rec.calls); diff != "" {
		t.Errorf("hook order mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatcher_PanicBecomesFailure(t *testing.T) {
	d := NewDispatcher()
	var onFailure bool
	require.NoError(t, d.Register("bad", HookTable{
		Work(Dependencies): func(ctx context.Context, ev Event) error { panic("nil map") },
		OnFailure: func(ctx context.Context, ev Event) error {
			onFailure = true
			return nil
		},
	}))

	err := d.Run(context.Background(), NewRunContext(nil), Publish)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in dependencies: nil map")
	assert.True(t, onFailure)
}

func TestDispatcher_PackagePhaseOnlyWithPackager(t *testing.T) {
	t.Run("no packager skips package hooks", func(t *testing.T) {
		rec := &recorder{}
		d := NewDispatcher()
		require.NoError(t, d.Register("e", rec.table("e", Before(Package), After(Package), Work(Test))))
		require.NoError(t, d.Run(context.Background(), NewRunContext(nil), Publish))
		assert.Equal(t, []string{"e.test"}, rec.calls)
		assert.Equal(t, []Phase{Dependencies, Compile, Test, Publish}, d.Plan(Publish))
	})

	t.Run("packager enters package phase", func(t *testing.T) {
		rec := &recorder{}
		d := NewDispatcher()
		require.NoError(t, d.Register("e", rec.table("e", Before(Package), After(Package))))
		require.NoError(t, d.Register("p", rec.table("p", Work(Package))))
		require.NoError(t, d.Run(context.Background(), NewRunContext(nil), Publish))
		assert.Equal(t, []string{"e.before_package", "p.package", "e.after_package"}, rec.calls)
	})
}

func TestDispatcher_TargetPhaseStopsEarly(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher()
	require.NoError(t, d.Register("e", rec.table("e", Work(Dependencies), Work(Compile), Work(Test), Work(Publish), After(Build))))

	require.NoError(t, d.Run(context.Background(), NewRunContext(nil), Compile))
	assert.Equal(t, []string{"e.dependencies", "e.compile", "e.after_build"}, rec.calls)
}

func TestDispatcher_RunOnlyOnce(t *testing.T) {
	d := NewDispatcher()
	require.NoError(t, d.Run(context.Background(), NewRunContext(nil), Publish))
	require.ErrorIs(t, d.Run(context.Background(), NewRunContext(nil), Publish), ErrAlreadyRan)
}

func TestDispatcher_RegisterRejectsDuplicates(t *testing.T) {
	d := NewDispatcher()
	require.NoError(t, d.Register("e", nil))
	require.Error(t, d.Register("e", nil))
	require.Error(t, d.Register("", nil))
	assert.Equal(t, []string{"e"}, d.Executors())
}

type fakeObserver struct {
	phases []Phase
	final  State
}

func (o *fakeObserver) PhaseFinished(p Phase, d time.Duration, err error) {
	o.phases = append(o.phases, p)
}

func (o *fakeObserver) RunFinished(s State) { o.final = s }

func TestDispatcher_TimingsAndObserver(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	obs := &fakeObserver{}
	d := NewDispatcher(WithClock(clock), WithObserver(obs))

	require.NoError(t, d.Run(context.Background(), NewRunContext(nil), Compile))

	timings := d.Timings()
	require.Len(t, timings, 3)
	assert.Equal(t, Dependencies, timings[0].Phase)
	assert.Equal(t, time.Second, timings[0].Duration)
	assert.Equal(t, Compile, timings[1].Phase)
	assert.Equal(t, Build, timings[2].Phase)
	assert.Equal(t, []Phase{Dependencies, Compile}, obs.phases)
	assert.Equal(t, Succeeded, obs.final.Status)
}

func TestRunContext_EnvIsShared(t *testing.T) {
	env := map[string]string{"HOME": "/root"}
	rc := NewRunContext(env)
	d := NewDispatcher()
	require.NoError(t, d.Register("hash", HookTable{
		After(Dependencies): func(ctx context.Context, ev Event) error {
			ev.Run.Setenv("GIT_HASH", "abc123")
			return nil
		},
	}))
	var got string
	require.NoError(t, d.Register("reader", HookTable{
		Work(Publish): func(ctx context.Context, ev Event) error {
			got = ev.Run.Getenv("GIT_HASH")
			return nil
		},
	}))

	require.NoError(t, d.Run(context.Background(), rc, Publish))
	assert.Equal(t, "abc123", got)
	_, leaked := env["GIT_HASH"]
	assert.False(t, leaked)
	assert.Equal(t, "/root", rc.Environ()["HOME"])
}

func TestParseHook(t *testing.T) {
	for _, ok := range []string{"before_build", "after_publish", "compile", "on_failure", "Before_Test"} {
		_, err := ParseHook(ok)
		assert.NoError(t, err, ok)
	}
	for _, bad := range []string{"build", "before_deploy", "deploy", ""} {
		_, err := ParseHook(bad)
		assert.Error(t, err, bad)
	}
}

func TestDetectBuildServer(t *testing.T) {
	assert.False(t, DetectBuildServer(map[string]string{}))
	assert.True(t, DetectBuildServer(map[string]string{"TEAMCITY_VERSION": "2023.1"}))
	assert.True(t, DetectBuildServer(map[string]string{"JENKINS_HOME": "/var/jenkins"}))
}
