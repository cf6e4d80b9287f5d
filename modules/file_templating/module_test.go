package file_templating_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/registry"
	"github.com/vk/bozogo/internal/testutil"
	"github.com/vk/bozogo/modules/file_templating"
)

const layeredConfig = `
group "app" {
  name = "x"
  env  = "default"
}
`

func TestFileTemplating_RendersWithLayeredConfig(t *testing.T) {
	result := testutil.RunBuild(t, testutil.Build{
		Manifest: `
hook "file_templating" {
  template_files = ["**/*.tmpl"]
  exclude_files  = ["vendor/**"]
  config_files   = ["extra/override.toml"]
}
`,
		Files: map[string]string{
			"config/default.hcl":       layeredConfig,
			"config/staging.hcl":       "group \"app\" {\n  env = environment\n}\n",
			"extra/override.toml":      "[app.db]\nhost = \"db.internal\"\n",
			"web/app.config.tmpl":      "name=${app.name} env=${app.env} db=${app.db.host}",
			"vendor/ignored.conf.tmpl": "${nope}",
		},
		Environment: "staging",
		Modules:     []registry.Module{&file_templating.Module{}},
	})
	require.NoError(t, result.Err)

	out, err := os.ReadFile(filepath.Join(result.Dir, "web", "app.config"))
	require.NoError(t, err)
	assert.Equal(t, "name=x env=staging db=db.internal", string(out))
	assert.NoFileExists(t, filepath.Join(result.Dir, "vendor", "ignored.conf"))
}

func TestFileTemplating_MissingKeyFailsWithDiagnostic(t *testing.T) {
	result := testutil.RunBuild(t, testutil.Build{
		Manifest: `hook "file_templating" {
  template_files = ["*.tmpl"]
}`,
		Files: map[string]string{
			"config/default.hcl": layeredConfig,
			"app.config.tmpl":    "${app.missing}",
		},
		Modules: []registry.Module{&file_templating.Module{}},
	})
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "app does not contain a value or group called 'missing' - known keys: name, env")
	assert.Equal(t, builderr.ExitConfiguration, builderr.ExitCode(result.Err))
}

func TestFileTemplating_RequiredConfigFileMissing(t *testing.T) {
	result := testutil.RunBuild(t, testutil.Build{
		Manifest: `hook "file_templating" {
  template_files = ["*.tmpl"]
  config_files   = ["secrets.hcl"]
}`,
		Modules: []registry.Module{&file_templating.Module{}},
	})
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "Required config file")
	assert.Contains(t, result.Err.Error(), "secrets.hcl could not be found")
}

func TestFileTemplating_HonoursMaxConfigDepth(t *testing.T) {
	build := testutil.Build{
		Manifest: `
hook "file_templating" {
  template_files = ["*.tmpl"]
}
`,
		Files: map[string]string{
			"config/default.hcl": "group \"app\" {\n  group \"db\" {\n    host = \"h\"\n  }\n}\n",
			"db.conf.tmpl":       "${app.db.host}",
		},
		Modules: []registry.Module{&file_templating.Module{}},
	}

	build.MaxConfigDepth = 1
	shallow := testutil.RunBuild(t, build)
	require.Error(t, shallow.Err)
	assert.Equal(t, builderr.ExitConfiguration, builderr.ExitCode(shallow.Err))
	assert.Contains(t, shallow.Err.Error(), "exceeds the maximum nesting depth of 1")

	build.MaxConfigDepth = 2
	deep := testutil.RunBuild(t, build)
	require.NoError(t, deep.Err)
	out, err := os.ReadFile(filepath.Join(deep.Dir, "db.conf"))
	require.NoError(t, err)
	assert.Equal(t, "h", string(out))
}
