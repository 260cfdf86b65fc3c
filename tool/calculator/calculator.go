// Package calculator provides an arithmetic expression tool.
package calculator

import (
	"fmt"
	"math"

	"github.com/Knetic/govaluate"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/tool"
)

// Name is the tool name exposed to models.
const Name = "calculator"

var constants = map[string]any{
	"pi": math.Pi,
	"e":  math.E,
}

var functions = map[string]govaluate.ExpressionFunction{
	"sqrt":  unary(math.Sqrt),
	"abs":   unary(math.Abs),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"round": unary(math.Round),
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"log":   unary(math.Log),
	"log10": unary(math.Log10),
	"exp":   unary(math.Exp),
	"pow": func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("pow expects 2 arguments, got %d", len(args))
		}
		x, ok1 := args[0].(float64)
		y, ok2 := args[1].(float64)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("pow expects numeric arguments")
		}
		return math.Pow(x, y), nil
	},
}

func unary(fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		x, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("expected numeric argument, got %T", args[0])
		}
		return fn(x), nil
	}
}

// Args are the arguments accepted by the tool.
type Args struct {
	Expression string         `json:"expression" description:"Mathematical expression, e.g. '2 + 2' or 'sqrt(x) * pi'"`
	Params     map[string]any `json:"params,omitempty" description:"Values for variables used in the expression"`
}

// Evaluate computes expression with the given variables.
func Evaluate(expression string, params map[string]any) (any, error) {
	exp, err := govaluate.NewEvaluableExpressionWithFunctions(expression, functions)
	if err != nil {
		return nil, tool.NewToolError(Name, err.Error(), tool.CodeValidation)
	}

	vars := make(map[string]any, len(params)+len(constants))
	for k, v := range constants {
		vars[k] = v
	}
	for k, v := range params {
		vars[k] = v
	}

	return exp.Evaluate(vars)
}

// New returns the calculator tool.
func New() tool.Tool {
	return tool.NewTypedTool(Name,
		"Evaluate a mathematical expression. Supports + - * / % **, comparisons, pi, e and sqrt, abs, floor, ceil, round, sin, cos, tan, log, log10, exp, pow.",
		func(_ *core.ToolContext, args Args) (any, error) {
			result, err := Evaluate(args.Expression, args.Params)
			if err != nil {
				return nil, err
			}
			return map[string]any{"result": result}, nil
		})
}
