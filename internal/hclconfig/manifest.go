package hclconfig

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/ctxlog"
)

// RoleHook declares a step that only contributes hooks. The other roles are
// the names of the phases whose work the step performs.
const RoleHook = "hook"

var manifestRoles = []string{"dependencies", "compile", "package", "test", "publish", RoleHook}

// StepDecl is one step block from the build manifest.
type StepDecl struct {
	// Role is a phase name or RoleHook.
	Role string
	// Kind selects the registered step implementation.
	Kind string
	// Name identifies the step in logs and failures, e.g. "compile.shell".
	Name  string
	Body  hcl.Body
	Range hcl.Range
}

// Decode decodes the step's body into target using gohcl struct tags.
func (d StepDecl) Decode(evalCtx *hcl.EvalContext, target any) error {
	if diags := gohcl.DecodeBody(d.Body, evalCtx, target); diags.HasErrors() {
		return builderr.WrapConfig(diags, "invalid %s step %q", d.Role, d.Kind)
	}
	return nil
}

// Manifest is the decoded build file.
type Manifest struct {
	Path    string
	Version string
	Steps   []StepDecl
}

var manifestSchema = func() *hcl.BodySchema {
	s := &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{{Name: "version"}},
	}
	for _, role := range manifestRoles {
		s.Blocks = append(s.Blocks, hcl.BlockHeaderSchema{Type: role, LabelNames: []string{"kind"}})
	}
	return s
}()

// LoadManifest reads the build file at path. Step bodies are left undecoded;
// the registry decodes them once the run's variables are final.
func LoadManifest(ctx context.Context, path string, evalCtx *hcl.EvalContext) (*Manifest, error) {
	logger := ctxlog.FromContext(ctx)
	src, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, builderr.WrapConfig(err, "build file %s could not be found", path)
		}
		return nil, fmt.Errorf("read build file %s: %w", path, err)
	}

	file, diags := hclparse.NewParser().ParseHCL(src, path)
	if diags.HasErrors() {
		return nil, builderr.WrapConfig(diags, "failed to parse build file %s", path)
	}
	content, diags := file.Body.Content(manifestSchema)
	if diags.HasErrors() {
		return nil, builderr.WrapConfig(diags, "failed to decode build file %s", path)
	}

	m := &Manifest{Path: path}
	if attr, ok := content.Attributes["version"]; ok {
		if diags := gohcl.DecodeExpression(attr.Expr, evalCtx, &m.Version); diags.HasErrors() {
			return nil, builderr.WrapConfig(diags, "invalid version in %s", path)
		}
	}

	seen := make(map[string]int)
	for _, block := range content.Blocks {
		name := block.Type + "." + block.Labels[0]
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s#%d", name, n)
		}
		m.Steps = append(m.Steps, StepDecl{
			Role:  block.Type,
			Kind:  block.Labels[0],
			Name:  name,
			Body:  block.Body,
			Range: block.DefRange,
		})
	}

	logger.Debug("Build manifest loaded.", "path", path, "version", m.Version, "steps", len(m.Steps))
	return m, nil
}
