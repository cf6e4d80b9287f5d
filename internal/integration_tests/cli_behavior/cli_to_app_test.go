package integration_tests

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bozogo/internal/app"
	"github.com/vk/bozogo/internal/cli"
	"github.com/vk/bozogo/internal/command/commandtest"
	"github.com/vk/bozogo/internal/stage"
)

// Test for: parsed flags drive the run context and the target phase
func TestCLI_FlagsReachTheBuild(t *testing.T) {
	// --- Arrange ---
	dir := t.TempDir()
	manifest := filepath.Join(dir, "build.hcl")
	require.NoError(t, os.WriteFile(manifest, []byte(`
version = "${environment}-${machine}"

dependencies "shell" {
  command = "fetch"
}

compile "shell" {
  command = "make"
}
`), 0o600))
	envFile := filepath.Join(dir, "ci.env")
	require.NoError(t, os.WriteFile(envFile, []byte("REGISTRY=registry.local\n"), 0o600))

	cfg, shouldExit, err := cli.Parse([]string{
		"-f", manifest,
		"-e", "qa",
		"--machine", "agent-3",
		"--env-file", envFile,
		"dependencies",
	}, &app.SafeBuffer{})
	require.NoError(t, err)
	require.False(t, shouldExit)

	runner := commandtest.New(nil)
	testApp, _ := app.SetupAppTest(t, cfg, app.WithRunner(runner), app.WithEnv(map[string]string{}))

	// --- Act ---
	runErr := testApp.Run(context.Background())

	// --- Assert ---
	require.NoError(t, runErr)
	assert.Equal(t, []string{"fetch"}, runner.Lines())
	rc := testApp.RunContext()
	assert.Equal(t, "qa-agent-3", rc.Version)
	assert.Equal(t, "registry.local", rc.Getenv("REGISTRY"))
	assert.Equal(t, dir, rc.WorkDir)
	assert.Equal(t, stage.Dependencies, testApp.Status().Target)
}
