// Package testutil provides a harness that runs a build manifest end to end
// with a scripted command runner.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/bozogo/internal/app"
	"github.com/vk/bozogo/internal/command/commandtest"
	"github.com/vk/bozogo/internal/registry"
	"github.com/vk/bozogo/internal/stage"
)

// Build describes one harness run.
type Build struct {
	// Manifest is the content of build.hcl.
	Manifest string
	// Files are extra files relative to the build directory.
	Files       map[string]string
	Modules     []registry.Module
	Responses   map[string]commandtest.Response
	Env         map[string]string
	Environment string
	Machine     string
	Target      stage.Phase

	// MaxConfigDepth limits group nesting; zero is unlimited.
	MaxConfigDepth int
}

// HarnessResult holds the outcomes of a harness run.
type HarnessResult struct {
	Dir    string
	Output string
	Err    error
	App    *app.App
	Runner *commandtest.Runner
}

// RunBuild writes the build's files to a temporary directory and runs it.
func RunBuild(t *testing.T, b Build) *HarnessResult {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{"build.hcl": b.Manifest}
	for name, content := range b.Files {
		files[name] = content
	}
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	env := b.Env
	if env == nil {
		env = map[string]string{}
	}
	machine := b.Machine
	if machine == "" {
		machine = "test-machine"
	}
	cfg, err := app.NewConfig(app.Config{
		BuildFile:   filepath.Join(dir, "build.hcl"),
		Target:      b.Target,
		Environment: b.Environment,
		Machine:     machine,

		MaxConfigDepth: b.MaxConfigDepth,
	})
	require.NoError(t, err)

	runner := commandtest.New(b.Responses)
	opts := []app.Option{app.WithRunner(runner), app.WithEnv(env)}
	if len(b.Modules) > 0 {
		opts = append(opts, app.WithModules(b.Modules...))
	}
	testApp, out := app.SetupAppTest(t, cfg, opts...)
	runErr := testApp.Run(context.Background())

	return &HarnessResult{
		Dir:    dir,
		Output: out.String(),
		Err:    runErr,
		App:    testApp,
		Runner: runner,
	}
}
