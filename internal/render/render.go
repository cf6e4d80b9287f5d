// Package render evaluates HCL string templates against a configuration
// tree. Every reference in a template is resolved through config.Resolve,
// so a missing key fails with the tree's own diagnostic.
package render

import (
	"context"
	"fmt"
	"maps"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/config"
	"github.com/vk/bozogo/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Renderer turns template source into output.
type Renderer interface {
	Render(ctx context.Context, name string, src []byte) ([]byte, error)
}

// Template renders HCL templates such as "host=${db.host}".
type Template struct {
	tree *config.Tree
	base *hcl.EvalContext
}

// New creates a renderer reading from tree. Variables and functions in base
// are available to templates; a root name defined in base shadows a
// configuration group of the same name.
func New(tree *config.Tree, base *hcl.EvalContext) *Template {
	if base == nil {
		base = &hcl.EvalContext{}
	}
	return &Template{tree: tree, base: base}
}

// Render evaluates src. name is used in diagnostics.
func (r *Template) Render(ctx context.Context, name string, src []byte) ([]byte, error) {
	expr, diags := hclsyntax.ParseTemplate(src, name, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, builderr.WrapConfig(diags, "failed to parse template %s", name)
	}

	refs := make(map[string]any)
	for _, tr := range expr.Variables() {
		if _, ok := r.base.Variables[tr.RootName()]; ok {
			continue
		}
		path, err := traversalPath(tr)
		if err != nil {
			return nil, err
		}
		v, err := r.tree.Resolve(path...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tr.SourceRange(), err)
		}
		insert(refs, path, v)
	}
	ctxlog.FromContext(ctx).Debug("Rendering template.", "name", name, "references", len(refs))

	vars := maps.Clone(r.base.Variables)
	if vars == nil {
		vars = make(map[string]cty.Value, len(refs))
	}
	for k, v := range refs {
		cv, err := toCty(v)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
		vars[k] = cv
	}

	val, diags := expr.Value(&hcl.EvalContext{Variables: vars, Functions: r.base.Functions})
	if diags.HasErrors() {
		return nil, builderr.WrapConfig(diags, "failed to render template %s", name)
	}
	str, err := convert.Convert(val, cty.String)
	if err != nil || str.IsNull() {
		return nil, builderr.Configf("template %s did not produce a string", name)
	}
	return []byte(str.AsString()), nil
}

// traversalPath turns root.attr["key"] chains into path segments.
func traversalPath(tr hcl.Traversal) ([]string, error) {
	path := []string{tr.RootName()}
	for _, step := range tr[1:] {
		switch s := step.(type) {
		case hcl.TraverseAttr:
			path = append(path, s.Name)
		case hcl.TraverseIndex:
			if s.Key.Type() != cty.String || !s.Key.IsKnown() || s.Key.IsNull() {
				return nil, builderr.Configf("%s: configuration paths only accept string keys", s.SrcRange)
			}
			path = append(path, s.Key.AsString())
		default:
			return nil, builderr.Configf("%s: unsupported reference", tr.SourceRange())
		}
	}
	return path, nil
}

func insert(m map[string]any, path []string, v any) {
	for _, seg := range path[:len(path)-1] {
		next, ok := m[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[seg] = next
		}
		m = next
	}
	m[path[len(path)-1]] = v
}

func toCty(v any) (cty.Value, error) {
	if m, ok := v.(map[string]any); ok {
		attrs := make(map[string]cty.Value, len(m))
		for k, child := range m {
			cv, err := toCty(child)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[k] = cv
		}
		return cty.ObjectVal(attrs), nil
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, err
	}
	return gocty.ToCtyValue(v, ty)
}
