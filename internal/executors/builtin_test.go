package executors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/stepflow/pkg/schema"
)

// --- noop ---

func TestNoop_EchoesParams(t *testing.T) {
	ex := &noopExecutor{}
	out, err := ex.Execute(context.Background(), Input{
		Params: map[string]any{"k": "v"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, out.Data["params"])
}

// --- delay.wait ---

func TestDelay_Waits(t *testing.T) {
	ex := &delayExecutor{}
	start := time.Now()
	out, err := ex.Execute(context.Background(), Input{
		Params: map[string]any{"duration": "20ms"},
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.GreaterOrEqual(t, out.Data["waited_ms"], int64(20))
}

func TestDelay_HonorsCancellation(t *testing.T) {
	ex := &delayExecutor{}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := ex.Execute(ctx, Input{
		Params: map[string]any{"duration": "5s"},
	})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeCancelled))
}

func TestDelay_RejectsBadDuration(t *testing.T) {
	ex := &delayExecutor{}

	_, err := ex.Execute(context.Background(), Input{Params: map[string]any{"duration": "soon"}})
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	_, err = ex.Execute(context.Background(), Input{Params: map[string]any{}})
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

// --- expr.eval ---

func TestExprExecutor_Evaluates(t *testing.T) {
	ex := NewExprExecutor()
	out, err := ex.Execute(context.Background(), Input{
		Params: map[string]any{
			"expression": "x * 2",
			"vars":       map[string]any{"x": 21},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 42, out.Data["value"])
}

func TestExprExecutor_SeesStepResults(t *testing.T) {
	ex := NewExprExecutor()
	out, err := ex.Execute(context.Background(), Input{
		Params: map[string]any{"expression": `steps.fetch.count + 1`},
		Steps: map[string]any{
			"fetch": map[string]any{"count": 9},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 10, out.Data["value"])
}

func TestExprExecutor_MissingExpression(t *testing.T) {
	ex := NewExprExecutor()
	_, err := ex.Execute(context.Background(), Input{Params: map[string]any{}})
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

// --- transform.jq ---

func TestJQExecutor_TransformsInput(t *testing.T) {
	ex := NewJQExecutor()
	out, err := ex.Execute(context.Background(), Input{
		Params: map[string]any{
			"expression": ".items | length",
			"input": map[string]any{
				"items": []any{"a", "b", "c"},
			},
		},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, out.Data["value"])
}

func TestJQExecutor_DefaultsToStepResults(t *testing.T) {
	ex := NewJQExecutor()
	out, err := ex.Execute(context.Background(), Input{
		Params: map[string]any{"expression": ".fetch.name"},
		Steps: map[string]any{
			"fetch": map[string]any{"name": "stepflow"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "stepflow", out.Data["value"])
}

// --- http.request ---

func TestHTTPExecutor_Request(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ex := NewHTTPExecutor(srv.Client())
	out, err := ex.Execute(context.Background(), Input{
		Params: map[string]any{
			"url":     srv.URL,
			"method":  "post",
			"body":    `{"hello":"world"}`,
			"headers": map[string]any{"X-Test": "yes"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, out.Data["status_code"])
	assert.Equal(t, `{"ok":true}`, out.Data["body"])
}

func TestHTTPExecutor_MissingURL(t *testing.T) {
	ex := NewHTTPExecutor(nil)
	_, err := ex.Execute(context.Background(), Input{Params: map[string]any{}})
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestHTTPExecutor_ConnectionError(t *testing.T) {
	ex := NewHTTPExecutor(&http.Client{Timeout: 100 * time.Millisecond})
	_, err := ex.Execute(context.Background(), Input{
		Params: map[string]any{"url": "http://127.0.0.1:1/unreachable"},
	})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeExecution))
}
