package expressions

import "context"

// Engine evaluates expressions against step data.
// Three implementations: CEL (step conditions), GoJQ (transforms), Expr (logic).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
