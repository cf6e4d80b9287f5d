package git_tag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/command/commandtest"
	"github.com/vk/bozogo/internal/registry"
	"github.com/vk/bozogo/internal/testutil"
	"github.com/vk/bozogo/modules/git_tag"
)

const manifest = `
version = "1.2.3"
hook "git_tag_release" {}
`

func TestGitTag_TagsReleaseOnBuildServer(t *testing.T) {
	result := testutil.RunBuild(t, testutil.Build{
		Manifest: manifest,
		Env:      map[string]string{"CI": "true"},
		Modules:  []registry.Module{&git_tag.Module{}},
	})
	require.NoError(t, result.Err)
	assert.Equal(t, []string{"git tag -l rel-1.2.3", "git tag rel-1.2.3", "git push --tags"}, result.Runner.Lines())
}

func TestGitTag_ExistingTagIsConfigurationError(t *testing.T) {
	result := testutil.RunBuild(t, testutil.Build{
		Manifest:  manifest,
		Env:       map[string]string{"CI": "true"},
		Responses: map[string]commandtest.Response{"git tag -l rel-1.2.3": {Stdout: "rel-1.2.3\n"}},
		Modules:   []registry.Module{&git_tag.Module{}},
	})
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "The tag rel-1.2.3 already exists")
	assert.Equal(t, builderr.KindConfiguration, builderr.Classify(result.Err))
	assert.False(t, result.Runner.Ran("git push"))
}

func TestGitTag_SkippedOffBuildServer(t *testing.T) {
	result := testutil.RunBuild(t, testutil.Build{
		Manifest: manifest,
		Modules:  []registry.Module{&git_tag.Module{}},
	})
	require.NoError(t, result.Err)
	assert.Empty(t, result.Runner.Lines())
}

func TestGitTag_CustomPrefixAndRemote(t *testing.T) {
	result := testutil.RunBuild(t, testutil.Build{
		Manifest: `
version = "2.0.0"
hook "git_tag_release" {
  prefix = "v"
  remote = "origin"
}
`,
		Env:     map[string]string{"TEAMCITY_VERSION": "2023.11"},
		Modules: []registry.Module{&git_tag.Module{}},
	})
	require.NoError(t, result.Err)
	assert.Equal(t, []string{"git tag -l v2.0.0", "git tag v2.0.0", "git push --tags origin"}, result.Runner.Lines())
}
