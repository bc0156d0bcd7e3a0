package executors

import (
	"context"

	"github.com/rendis/stepflow/internal/expressions"
)

// ExprExecutor evaluates an expr-lang expression. Parameters:
//   - expression (string, required): the expression to evaluate
//   - vars (object, optional): extra variables exposed to the expression
//
// Dependency results are exposed under "steps".
type ExprExecutor struct {
	engine *expressions.ExprEngine
}

// NewExprExecutor creates the expr.eval built-in.
func NewExprExecutor() *ExprExecutor {
	return &ExprExecutor{engine: expressions.NewExprEngine()}
}

func (e *ExprExecutor) Name() string        { return "expr.eval" }
func (e *ExprExecutor) Description() string { return "Evaluates an expr-lang expression" }

func (e *ExprExecutor) Execute(ctx context.Context, input Input) (*Output, error) {
	expression, err := stringParam(input.Params, "expression")
	if err != nil {
		return nil, err
	}
	vars, err := mapParam(input.Params, "vars")
	if err != nil {
		return nil, err
	}

	env := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		env[k] = v
	}
	env["steps"] = input.Steps

	out, err := e.engine.Evaluate(ctx, expression, env)
	if err != nil {
		return nil, err
	}
	return &Output{Data: map[string]any{"value": out}}, nil
}
