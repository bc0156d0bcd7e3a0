package executors

import (
	"context"

	"github.com/rendis/stepflow/internal/expressions"
)

// JQExecutor runs a jq program over step data. Parameters:
//   - expression (string, required): the jq program
//   - input (object, optional): the input document; when absent, the
//     dependency results map is used as input
type JQExecutor struct {
	engine *expressions.GoJQEngine
}

// NewJQExecutor creates the transform.jq built-in.
func NewJQExecutor() *JQExecutor {
	return &JQExecutor{engine: expressions.NewGoJQEngine()}
}

func (e *JQExecutor) Name() string        { return "transform.jq" }
func (e *JQExecutor) Description() string { return "Transforms JSON data with a jq program" }

func (e *JQExecutor) Execute(ctx context.Context, input Input) (*Output, error) {
	expression, err := stringParam(input.Params, "expression")
	if err != nil {
		return nil, err
	}
	doc, err := mapParam(input.Params, "input")
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = input.Steps
	}
	if doc == nil {
		doc = map[string]any{}
	}

	out, err := e.engine.Evaluate(ctx, expression, doc)
	if err != nil {
		return nil, err
	}
	return &Output{Data: map[string]any{"value": out}}, nil
}
