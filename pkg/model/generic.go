package model

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/matzehuels/normfold/pkg/graph"
)

// Generic evaluates an expression over its servers, which are visible in the
// expression by name. Evaluation errors yield NaN.
type Generic struct {
	Source  string
	program *vm.Program
}

// NewGeneric compiles source for servers with the given names.
func NewGeneric(source string, names []string) (*Generic, error) {
	env := make(map[string]any, len(names))
	for _, name := range names {
		env[name] = 0.0
	}
	program, err := expr.Compile(source, exprOpts(env)...)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", source, err)
	}
	return &Generic{Source: source, program: program}, nil
}

func (gn *Generic) Evaluate(g *graph.Graph, n *graph.Node) float64 {
	env := make(map[string]any, len(n.Servers()))
	for i, e := range n.Servers() {
		env[g.Name(e.Server)] = g.ServerValue(n, i)
	}
	out, err := expr.Run(gn.program, env)
	if err != nil {
		return math.NaN()
	}
	v, ok := out.(float64)
	if !ok {
		return math.NaN()
	}
	return v
}

func exprOpts(env map[string]any) []expr.Option {
	return []expr.Option{
		expr.Env(env),
		expr.AsFloat64(),
		mathFunc("exp", math.Exp),
		mathFunc("log", math.Log),
		mathFunc("sqrt", math.Sqrt),
		mathFunc("sin", math.Sin),
		mathFunc("cos", math.Cos),
		expr.Function("pow", func(params ...any) (any, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("pow: want 2 arguments, got %d", len(params))
			}
			return math.Pow(toFloat(params[0]), toFloat(params[1])), nil
		}),
	}
}

func mathFunc(name string, fn func(float64) float64) expr.Option {
	return expr.Function(name, func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("%s: want 1 argument, got %d", name, len(params))
		}
		return fn(toFloat(params[0])), nil
	})
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	}
	return math.NaN()
}
