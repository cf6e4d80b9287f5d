package stage

import (
	"fmt"
	"strings"
)

// Phase names a stage of the build pipeline.
type Phase string

const (
	Build        Phase = "build"
	Dependencies Phase = "dependencies"
	Compile      Phase = "compile"
	Package      Phase = "package"
	Test         Phase = "test"
	Publish      Phase = "publish"
)

// Sequence lists the inner phases in execution order. Build wraps them all.
var Sequence = []Phase{Dependencies, Compile, Package, Test, Publish}

// ParsePhase validates a phase name.
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	if p == Build {
		return p, nil
	}
	for _, known := range Sequence {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown phase %q: expected one of build, dependencies, compile, package, test, publish", s)
}

// Hook names a point in the lifecycle at which executors are invoked.
type Hook string

// OnFailure is fired on every executor that defines it once a hook fails.
const OnFailure Hook = "on_failure"

// Before returns the hook fired when phase p is entered.
func Before(p Phase) Hook { return Hook("before_" + string(p)) }

// After returns the hook fired when phase p completes normally.
func After(p Phase) Hook { return Hook("after_" + string(p)) }

// Work returns the hook that carries phase p's delegated work. The build
// phase has no work hook.
func Work(p Phase) Hook { return Hook(p) }

// ParseHook validates a hook name against the naming convention:
// before_<phase>, after_<phase>, <phase> (inner phases only) or on_failure.
func ParseHook(s string) (Hook, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == string(OnFailure) {
		return OnFailure, nil
	}
	for _, prefix := range []string{"before_", "after_"} {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			if _, err := ParsePhase(rest); err != nil {
				return "", fmt.Errorf("invalid hook %q: %w", s, err)
			}
			return Hook(s), nil
		}
	}
	if p, err := ParsePhase(s); err == nil && p != Build {
		return Work(p), nil
	}
	return "", fmt.Errorf("invalid hook %q: expected before_<phase>, after_<phase>, <phase> or on_failure", s)
}

// plan returns the inner phases to enter when running through target.
func plan(target Phase, hasPackager bool) []Phase {
	var phases []Phase
	for _, p := range Sequence {
		if p == Package && !hasPackager {
			if target == Package {
				break
			}
			continue
		}
		phases = append(phases, p)
		if p == target {
			break
		}
	}
	return phases
}
