package stage

import (
	"context"
	"fmt"
)

// Event describes a single hook invocation.
type Event struct {
	Run      *RunContext
	Phase    Phase
	Hook     Hook
	Executor string
	// Failure is set only for on_failure invocations.
	Failure *Failure
}

// HookFunc is the function an executor registers for a hook.
type HookFunc func(ctx context.Context, ev Event) error

// HookTable is an executor's capability table. A hook missing from the table
// is skipped without error.
type HookTable map[Hook]HookFunc

// Has reports whether the table defines hook h.
func (t HookTable) Has(h Hook) bool {
	_, ok := t[h]
	return ok
}

// Failure records where a run stopped and why.
type Failure struct {
	Phase    Phase
	Hook     Hook
	Executor string
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s phase failed in %s (%s): %v", f.Phase, f.Hook, f.Executor, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}
