package integration_tests

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bozogo/internal/command/commandtest"
	"github.com/vk/bozogo/internal/stage"
	"github.com/vk/bozogo/internal/testutil"
)

// Test for: a complete build records the commit, renders templates with it
// and runs every phase in order.
func TestCoreExecution_FullBuild(t *testing.T) {
	// --- Arrange ---
	build := testutil.Build{
		Manifest: `
version = "2.0.${env_or("BUILD_NUMBER", "0")}"

hook "git_commit_hashes" {}

hook "file_templating" {
  template_files = ["**/*.tmpl"]
}

dependencies "shell" {
  command = "restore"
}

compile "shell" {
  command = "make"
  args    = ["all", "VERSION=${version}"]
}

test "parallel_tests" {
  command  = "runtests"
  projects = ["core", "web"]
}

publish "shell" {
  command = "upload"
}
`,
		Files: map[string]string{
			"config/default.hcl": `
group "database" {
  host = "localhost"
  port = 5432
}
`,
			"config/staging.hcl": `
group "database" {
  host = "db.staging"
}
`,
			"app.config.tmpl": "host=${database.host}:${database.port}\ncommit=${env.GIT_HASH}\nenv=${environment}\n",
		},
		Env:         map[string]string{"BUILD_NUMBER": "17"},
		Environment: "staging",
		Responses: map[string]commandtest.Response{
			"git log -1 --format=%h": {Stdout: "abc123\n"},
			"git log -1 --format=%H": {Stdout: "abc123def456\n"},
		},
	}

	// --- Act ---
	result := testutil.RunBuild(t, build)

	// --- Assert ---
	require.NoError(t, result.Err)

	lines := result.Runner.Lines()
	require.Len(t, lines, 7)
	assert.Equal(t, []string{"restore", "git log -1 --format=%h", "git log -1 --format=%H", "make all VERSION=2.0.17"}, lines[:4])
	assert.ElementsMatch(t, []string{"runtests core", "runtests web"}, lines[4:6])
	assert.Equal(t, "upload", lines[6])

	rendered, err := os.ReadFile(filepath.Join(result.Dir, "app.config"))
	require.NoError(t, err)
	assert.Equal(t, "host=db.staging:5432\ncommit=abc123\nenv=staging\n", string(rendered))

	rc := result.App.RunContext()
	assert.Equal(t, "abc123def456", rc.Getenv("GIT_HASH_FULL"))
	assert.Equal(t, "2.0.17", rc.Version)
	assert.Equal(t, stage.Succeeded, result.App.Status().Status)
}

// Test for: the target phase bounds the run.
func TestCoreExecution_StopsAtTarget(t *testing.T) {
	// --- Arrange ---
	build := testutil.Build{
		Manifest: `
compile "shell" {
  command = "make"
}
test "shell" {
  command = "make"
  args    = ["test"]
}
publish "shell" {
  command = "upload"
}
`,
		Target: stage.Compile,
	}

	// --- Act ---
	result := testutil.RunBuild(t, build)

	// --- Assert ---
	require.NoError(t, result.Err)
	assert.Equal(t, []string{"make"}, result.Runner.Lines())
	assert.Equal(t, stage.Compile, result.App.Status().Target)
}
