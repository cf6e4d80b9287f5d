package stage

import (
	"maps"
	"sync"
)

// RunContext carries the per-run values hooks share: environment variables,
// the computed version, and build-server detection. Hooks may add variables
// (for example a commit hash) for later hooks to read.
type RunContext struct {
	Environment string
	Machine     string
	Version     string
	BuildServer bool
	WorkDir     string

	mu  sync.RWMutex
	env map[string]string
}

// NewRunContext creates a context seeded with a copy of env.
func NewRunContext(env map[string]string) *RunContext {
	rc := &RunContext{env: make(map[string]string, len(env))}
	maps.Copy(rc.env, env)
	return rc
}

// Getenv returns the value of key, or "" when unset.
func (rc *RunContext) Getenv(key string) string {
	v, _ := rc.LookupEnv(key)
	return v
}

// LookupEnv returns the value of key and whether it is set.
func (rc *RunContext) LookupEnv(key string) (string, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	v, ok := rc.env[key]
	return v, ok
}

// Setenv sets key for the rest of the run.
func (rc *RunContext) Setenv(key, value string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.env[key] = value
}

// Environ returns a copy of every variable.
func (rc *RunContext) Environ() map[string]string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return maps.Clone(rc.env)
}

// DetectBuildServer reports whether env looks like a CI build agent.
func DetectBuildServer(env map[string]string) bool {
	for _, key := range []string{"TEAMCITY_VERSION", "JENKINS_HOME", "CI"} {
		if env[key] != "" {
			return true
		}
	}
	return false
}
