package jenkins_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bozogo/internal/registry"
	"github.com/vk/bozogo/internal/testutil"
	"github.com/vk/bozogo/modules/jenkins"
)

func TestJenkins_CopiesBuildIdentity(t *testing.T) {
	result := testutil.RunBuild(t, testutil.Build{
		Manifest: `hook "jenkins" {}`,
		Env: map[string]string{
			"JENKINS_HOME": "/var/jenkins",
			"JOB_NAME":     "shop-ci",
			"BUILD_NUMBER": "42",
			"BUILD_URL":    "https://ci/job/shop-ci/42/",
		},
		Modules: []registry.Module{&jenkins.Module{}},
	})
	require.NoError(t, result.Err)

	rc := result.App.RunContext()
	assert.Equal(t, "shop-ci", rc.Getenv("BUILD_NAME"))
	assert.Equal(t, "42", rc.Getenv("BUILD_NUMBER"))
	assert.True(t, rc.BuildServer)
}

func TestJenkins_SkipsOutsideJenkins(t *testing.T) {
	result := testutil.RunBuild(t, testutil.Build{
		Manifest: `hook "jenkins" {}`,
		Env:      map[string]string{"JOB_NAME": "local"},
		Modules:  []registry.Module{&jenkins.Module{}},
	})
	require.NoError(t, result.Err)
	_, ok := result.App.RunContext().LookupEnv("BUILD_NAME")
	assert.False(t, ok)
}
