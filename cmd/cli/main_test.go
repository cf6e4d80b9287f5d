package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bozogo/internal/builderr"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestRun_ShouldExit(t *testing.T) {
	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:")
}

func TestRun_ParseError(t *testing.T) {
	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err)
	assert.Equal(t, builderr.ExitConfiguration, exitCode(&bytes.Buffer{}, err))
}

func TestRun_MissingBuildFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "build.hcl")

	err := run(context.Background(), &bytes.Buffer{}, []string{"-f", missing})

	require.Error(t, err)
	stderr := &bytes.Buffer{}
	assert.Equal(t, builderr.ExitConfiguration, exitCode(stderr, err))
	assert.Contains(t, stderr.String(), "could not be found")
}

func TestRun_InvalidManifest(t *testing.T) {
	path := writeFile(t, t.TempDir(), "build.hcl", "compile \"shell\" {\n  command = [\n")

	err := run(context.Background(), &bytes.Buffer{}, []string{"-f", path, "--machine", "m1"})

	require.Error(t, err)
	assert.Equal(t, builderr.ExitConfiguration, builderr.ExitCode(err))
}

func TestRun_DumpConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "default.hcl", `
group "database" {
  host = "localhost"
  port = 5432
}
`)
	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"--dump-config", path, "--log-level", "error"})

	require.NoError(t, err)
	assert.Contains(t, out.String(), "database:")
	assert.Contains(t, out.String(), "host: localhost")
	assert.Contains(t, out.String(), "port: 5432")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, builderr.ExitOK},
		{"configuration", builderr.Configf("bad"), builderr.ExitConfiguration},
		{"command", &builderr.CommandError{Name: "make", ExitCode: 2}, builderr.ExitCommand},
		{"defect", errors.New("boom"), builderr.ExitDefect},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, exitCode(&bytes.Buffer{}, tc.err))
		})
	}
}
