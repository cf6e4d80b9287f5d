package hclconfig

import (
	"maps"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/bozogo/internal/config"
	"github.com/vk/bozogo/internal/stage"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// Variables are the values exposed to configuration expressions.
type Variables struct {
	Env         map[string]string
	Environment string
	Machine     string
	Version     string
	BuildServer bool
}

// VariablesFrom captures the expression variables of a run.
func VariablesFrom(rc *stage.RunContext) Variables {
	return Variables{
		Env:         rc.Environ(),
		Environment: rc.Environment,
		Machine:     rc.Machine,
		Version:     rc.Version,
		BuildServer: rc.BuildServer,
	}
}

// NewEvalContext builds the evaluation context for configuration and manifest
// expressions.
func NewEvalContext(vars Variables) *hcl.EvalContext {
	env := cty.MapValEmpty(cty.String)
	if len(vars.Env) > 0 {
		m := make(map[string]cty.Value, len(vars.Env))
		for k, v := range vars.Env {
			m[k] = cty.StringVal(v)
		}
		env = cty.MapVal(m)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env":          env,
			"environment":  cty.StringVal(vars.Environment),
			"machine":      cty.StringVal(vars.Machine),
			"version":      cty.StringVal(vars.Version),
			"build_server": cty.BoolVal(vars.BuildServer),
		},
		Functions: functions(vars.Env),
	}
}

func functions(env map[string]string) map[string]function.Function {
	env = maps.Clone(env)
	return map[string]function.Function{
		"upper":     stdlib.UpperFunc,
		"lower":     stdlib.LowerFunc,
		"trimspace": stdlib.TrimSpaceFunc,
		"format":    stdlib.FormatFunc,
		"join":      stdlib.JoinFunc,
		"split":     stdlib.SplitFunc,
		"replace":   stdlib.ReplaceFunc,
		"coalesce":  stdlib.CoalesceFunc,
		"lookup":    stdlib.LookupFunc,
		"contains":  stdlib.ContainsFunc,
		"length":    stdlib.LengthFunc,
		"min":       stdlib.MinFunc,
		"max":       stdlib.MaxFunc,
		"env_or":    envOrFunc(env),
	}
}

// envOrFunc returns env_or(name, fallback): the variable's value, or fallback
// when it is unset or empty.
func envOrFunc(env map[string]string) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "name", Type: cty.String},
			{Name: "fallback", Type: cty.String},
		},
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			if v := env[args[0].AsString()]; v != "" {
				return cty.StringVal(v), nil
			}
			return args[1], nil
		},
	})
}

// NewTree creates a configuration tree that loads .hcl files with evalCtx
// and .toml files as static layers.
func NewTree(evalCtx *hcl.EvalContext, opts ...config.Option) *config.Tree {
	opts = append([]config.Option{
		config.WithInterpreter(".hcl", NewInterpreter(evalCtx)),
		config.WithInterpreter(".toml", TOMLInterpreter{}),
	}, opts...)
	return config.NewTree(opts...)
}
