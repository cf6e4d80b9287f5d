package hclconfig

import (
	"context"
	"fmt"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/config"
	"github.com/vk/bozogo/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

const (
	blockGroup = "group"
	blockWhen  = "when"
	attrCond   = "condition"
)

// Interpreter executes HCL configuration files against a config.Tree.
type Interpreter struct {
	evalCtx *hcl.EvalContext
}

// NewInterpreter creates an interpreter that evaluates expressions in evalCtx.
func NewInterpreter(evalCtx *hcl.EvalContext) *Interpreter {
	return &Interpreter{evalCtx: evalCtx}
}

// Exec parses src and applies its statements to t.
func (i *Interpreter) Exec(ctx context.Context, t *config.Tree, filename string, src []byte) error {
	file, diags := hclsyntax.ParseConfig(src, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return builderr.WrapConfig(diags, "failed to parse %s", filename)
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return fmt.Errorf("unexpected body type %T in %s", file.Body, filename)
	}
	ctxlog.FromContext(ctx).Debug("Executing configuration file.", "file", filename, "attributes", len(body.Attributes), "blocks", len(body.Blocks))
	return i.execBody(t, body, false)
}

// statement is either an attribute or a block, positioned in its file.
type statement struct {
	attr  *hclsyntax.Attribute
	block *hclsyntax.Block
}

func (s statement) start() int {
	if s.attr != nil {
		return s.attr.SrcRange.Start.Byte
	}
	return s.block.TypeRange.Start.Byte
}

// statements returns body's contents in source order. hclsyntax keeps
// attributes in a map, so order is recovered from byte offsets.
func statements(body *hclsyntax.Body) []statement {
	out := make([]statement, 0, len(body.Attributes)+len(body.Blocks))
	for _, a := range body.Attributes {
		out = append(out, statement{attr: a})
	}
	for _, b := range body.Blocks {
		out = append(out, statement{block: b})
	}
	slices.SortFunc(out, func(a, b statement) int { return a.start() - b.start() })
	return out
}

func (i *Interpreter) execBody(t *config.Tree, body *hclsyntax.Body, inWhen bool) error {
	for _, s := range statements(body) {
		var err error
		switch {
		case s.attr != nil:
			if inWhen && s.attr.Name == attrCond {
				continue
			}
			err = i.execAttribute(t, s.attr)
		case s.block.Type == blockGroup:
			err = i.execGroup(t, s.block)
		case s.block.Type == blockWhen:
			err = i.execWhen(t, s.block)
		default:
			err = builderr.Configf("%s: unsupported block %q, expected %q or %q", s.block.TypeRange, s.block.Type, blockGroup, blockWhen)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (i *Interpreter) execAttribute(t *config.Tree, attr *hclsyntax.Attribute) error {
	val, diags := attr.Expr.Value(i.evalCtx)
	if diags.HasErrors() {
		return builderr.WrapConfig(diags, "cannot evaluate %q", attr.Name)
	}
	scalar, err := toScalar(val)
	if err != nil {
		return builderr.WrapConfig(err, "%s: invalid value for %q", attr.SrcRange, attr.Name)
	}
	if err := t.Set(attr.Name, scalar); err != nil {
		return fmt.Errorf("%s: %w", attr.SrcRange, err)
	}
	return nil
}

func (i *Interpreter) execGroup(t *config.Tree, block *hclsyntax.Block) error {
	if len(block.Labels) != 1 {
		return builderr.Configf("%s: group block needs exactly one name label, got %d", block.TypeRange, len(block.Labels))
	}
	return t.Group(block.Labels[0], func(t *config.Tree) error {
		return i.execBody(t, block.Body, false)
	})
}

func (i *Interpreter) execWhen(t *config.Tree, block *hclsyntax.Block) error {
	if len(block.Labels) != 0 {
		return builderr.Configf("%s: when block takes no labels", block.TypeRange)
	}
	cond, ok := block.Body.Attributes[attrCond]
	if !ok {
		return builderr.Configf("%s: when block requires a %q attribute", block.TypeRange, attrCond)
	}
	val, diags := cond.Expr.Value(i.evalCtx)
	if diags.HasErrors() {
		return builderr.WrapConfig(diags, "cannot evaluate when condition")
	}
	var matched bool
	if err := gocty.FromCtyValue(val, &matched); err != nil {
		return builderr.WrapConfig(err, "%s: when condition must be a bool", cond.SrcRange)
	}
	if !matched {
		return nil
	}
	return i.execBody(t, block.Body, true)
}

// toScalar converts an evaluated value into one of the tree's scalar types.
// Whole numbers become int64, other numbers float64.
func toScalar(v cty.Value) (any, error) {
	if !v.IsKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	if v.IsNull() {
		return nil, fmt.Errorf("value is null")
	}
	switch v.Type() {
	case cty.String:
		return v.AsString(), nil
	case cty.Bool:
		return v.True(), nil
	case cty.Number:
		var n int64
		if err := gocty.FromCtyValue(v, &n); err == nil {
			return n, nil
		}
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, err
		}
		return f, nil
	}
	return nil, fmt.Errorf("%s is not a scalar; use a group for nested values", v.Type().FriendlyName())
}
