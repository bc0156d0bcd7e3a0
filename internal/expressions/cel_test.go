package expressions

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/stepflow/pkg/schema"
)

func TestNewCELEngine(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	assert.NotNil(t, e)
	assert.Equal(t, "cel", e.Name())
}

func TestCELEngine_ImplementsEngine(t *testing.T) {
	var _ Engine = (*CELEngine)(nil)
}

// --- Basic evaluation ---

func TestCEL_BooleanLiteral(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	out, err := e.Evaluate(context.Background(), "true", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestCEL_IntegerArithmetic(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	out, err := e.Evaluate(context.Background(), "1 + 2", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), out)
}

// --- Condition guards ---

func TestCEL_StepResultAccess(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	data := map[string]any{
		"steps": map[string]any{
			"fetch": map[string]any{"count": 5, "ok": true},
		},
	}

	t.Run("boolean field", func(t *testing.T) {
		out, err := e.Evaluate(context.Background(), "steps.fetch.ok", data)
		require.NoError(t, err)
		assert.Equal(t, true, out)
	})

	t.Run("numeric comparison", func(t *testing.T) {
		out, err := e.Evaluate(context.Background(), "steps.fetch.count > 3", data)
		require.NoError(t, err)
		assert.Equal(t, true, out)
	})
}

func TestCEL_ParamsAccess(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	out, err := e.Evaluate(context.Background(), `params.env == "prod"`, map[string]any{
		"params": map[string]any{"env": "prod"},
	})
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestCEL_MissingScopeDefaultsToEmptyMap(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	out, err := e.Evaluate(context.Background(), `has(steps.anything)`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, false, out)
}

// --- EvaluateBool ---

func TestCEL_EvaluateBool(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	ok, err := e.EvaluateBool(context.Background(), "2 > 1", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.EvaluateBool(context.Background(), "1 > 2", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCEL_EvaluateBool_NonBooleanRejected(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.EvaluateBool(context.Background(), `"not a bool"`, nil)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

// --- Errors ---

func TestCEL_CompileError(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), "1 +++ 2", nil)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestCEL_EmptyExpression(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), "", nil)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestCEL_UnknownVariableRejected(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), "secrets.token", nil)
	require.Error(t, err, "only steps, params, and workflow are in scope")
}

// --- Caching ---

func TestCEL_ConcurrentEvaluation(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, evalErr := e.Evaluate(context.Background(), "params.n > 0", map[string]any{
				"params": map[string]any{"n": 1},
			})
			assert.NoError(t, evalErr)
			assert.Equal(t, true, out)
		}()
	}
	wg.Wait()
}
