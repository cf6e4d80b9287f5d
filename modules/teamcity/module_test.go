package teamcity

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bozogo/internal/stage"
)

func TestMessage_Escapes(t *testing.T) {
	assert.Equal(t, "##teamcity[progressStart 'it|'s |[x|] a||b|n']", Message("progressStart", "it's [x] a|b\n"))
	assert.Equal(t, "##teamcity[buildProblem description='bad |'x|'']", MessageAttrs("buildProblem", "description", "bad 'x'"))
}

func run(t *testing.T, env map[string]string, extra stage.HookTable) (string, error) {
	t.Helper()
	var out bytes.Buffer
	d := stage.NewDispatcher()
	require.NoError(t, d.Register("teamcity", Hooks(&out)))
	if extra != nil {
		require.NoError(t, d.Register("extra", extra))
	}
	rc := stage.NewRunContext(env)
	rc.Version = "1.2.3"
	err := d.Run(context.Background(), rc, stage.Compile)
	return out.String(), err
}

func TestHooks_OnTeamCity(t *testing.T) {
	out, err := run(t, map[string]string{EnvVar: "2023.11"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"##teamcity[buildNumber '1.2.3']",
		"##teamcity[progressStart 'Resolving dependencies']",
		"##teamcity[progressFinish 'Resolving dependencies']",
		"##teamcity[progressStart 'Compiling']",
		"##teamcity[progressFinish 'Compiling']",
	}, strings.Split(strings.TrimSpace(out), "\n"))
}

func TestHooks_ReportsFailure(t *testing.T) {
	out, err := run(t, map[string]string{EnvVar: "2023.11"}, stage.HookTable{
		stage.Work(stage.Compile): func(ctx context.Context, ev stage.Event) error { return errors.New("csc failed") },
	})
	require.Error(t, err)
	assert.Contains(t, out, "##teamcity[buildProblem description='compile phase failed in compile (extra): csc failed']")
	assert.NotContains(t, out, "progressFinish 'Compiling'")
}

func TestHooks_SilentOffTeamCity(t *testing.T) {
	out, err := run(t, map[string]string{}, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
