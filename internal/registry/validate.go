package registry

import (
	"fmt"

	"github.com/vk/bozogo/internal/hclconfig"
	"github.com/vk/bozogo/internal/stage"
)

// validateTable checks a built hook table against its declaration: every
// hook name must follow the naming convention, and a step declared under a
// phase role must provide that phase's work hook.
func validateTable(decl hclconfig.StepDecl, table stage.HookTable) error {
	for h := range table {
		if _, err := stage.ParseHook(string(h)); err != nil {
			return fmt.Errorf("step %s: %w", decl.Name, err)
		}
	}
	if decl.Role == hclconfig.RoleHook {
		return nil
	}
	phase, err := stage.ParsePhase(decl.Role)
	if err != nil {
		return fmt.Errorf("step %s: %w", decl.Name, err)
	}
	if !table.Has(stage.Work(phase)) {
		return fmt.Errorf("step %s: kind %q declared as %s does not provide %s work", decl.Name, decl.Kind, phase, phase)
	}
	return nil
}
