package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/stepflow/pkg/schema"
)

func TestNewGoJQEngine(t *testing.T) {
	e := NewGoJQEngine()
	assert.Equal(t, "jq", e.Name())
}

func TestJQ_FieldAccess(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), ".name", map[string]any{"name": "stepflow"})
	require.NoError(t, err)
	assert.Equal(t, "stepflow", out)
}

func TestJQ_NumbersNormalized(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), ".count + 1", map[string]any{"count": 41})
	require.NoError(t, err)
	assert.EqualValues(t, 42, out)
}

func TestJQ_ArrayTransform(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), "[.items[] | .id]", map[string]any{
		"items": []any{
			map[string]any{"id": "a"},
			map[string]any{"id": "b"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, out)
}

func TestJQ_MultipleOutputs(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), ".items[]", map[string]any{
		"items": []any{"x", "y"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y"}, out)
}

func TestJQ_ParseError(t *testing.T) {
	e := NewGoJQEngine()

	_, err := e.Evaluate(context.Background(), ".[invalid", nil)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestJQ_RuntimeError(t *testing.T) {
	e := NewGoJQEngine()

	_, err := e.Evaluate(context.Background(), `.name | ascii_downcase`, map[string]any{"name": 1})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeExecution))
}

func TestJQ_EnvironBlocked(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), "$ENV | length", map[string]any{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, out, "environment access is sandboxed away")
}
