package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/stepflow/pkg/schema"
)

func TestNewExprEngine(t *testing.T) {
	e := NewExprEngine()
	assert.Equal(t, "expr", e.Name())
}

func TestExpr_Arithmetic(t *testing.T) {
	e := NewExprEngine()

	out, err := e.Evaluate(context.Background(), "a + b", map[string]any{"a": 2, "b": 3})
	require.NoError(t, err)
	assert.Equal(t, 5, out)
}

func TestExpr_StringOperations(t *testing.T) {
	e := NewExprEngine()

	out, err := e.Evaluate(context.Background(), `upper(name)`, map[string]any{"name": "stepflow"})
	require.NoError(t, err)
	assert.Equal(t, "STEPFLOW", out)
}

func TestExpr_NestedAccess(t *testing.T) {
	e := NewExprEngine()

	out, err := e.Evaluate(context.Background(), "steps.fetch.count * 2", map[string]any{
		"steps": map[string]any{
			"fetch": map[string]any{"count": 7},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 14, out)
}

func TestExpr_UndefinedVariablesAllowed(t *testing.T) {
	e := NewExprEngine()

	out, err := e.Evaluate(context.Background(), "missing == nil", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestExpr_CompileError(t *testing.T) {
	e := NewExprEngine()

	_, err := e.Evaluate(context.Background(), "1 +", nil)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestExpr_EmptyExpression(t *testing.T) {
	e := NewExprEngine()

	_, err := e.Evaluate(context.Background(), "", nil)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestExpr_CacheReuse(t *testing.T) {
	e := NewExprEngine()

	for i := 0; i < 3; i++ {
		out, err := e.Evaluate(context.Background(), "n + 1", map[string]any{"n": i})
		require.NoError(t, err)
		assert.Equal(t, i+1, out)
	}
}
