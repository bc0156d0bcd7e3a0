package executors

import (
	"context"
	"time"

	"github.com/rendis/stepflow/pkg/schema"
)

// RegisterBuiltins registers the built-in executors on the registry.
func RegisterBuiltins(r *Registry) error {
	builtins := []Executor{
		&noopExecutor{},
		&delayExecutor{},
		NewExprExecutor(),
		NewJQExecutor(),
		NewHTTPExecutor(nil),
	}
	for _, ex := range builtins {
		if _, err := r.Register(ex); err != nil {
			return err
		}
	}
	return nil
}

// --- noop ---

// noopExecutor completes immediately and echoes its parameters.
type noopExecutor struct{}

func (e *noopExecutor) Name() string        { return "noop" }
func (e *noopExecutor) Description() string { return "Completes immediately, echoing its parameters" }

func (e *noopExecutor) Execute(_ context.Context, input Input) (*Output, error) {
	return &Output{Data: map[string]any{"params": input.Params}}, nil
}

// --- delay.wait ---

// delayExecutor sleeps for the configured duration, honoring cancellation.
type delayExecutor struct{}

func (e *delayExecutor) Name() string        { return "delay.wait" }
func (e *delayExecutor) Description() string { return "Waits for the given duration" }

func (e *delayExecutor) Execute(ctx context.Context, input Input) (*Output, error) {
	raw, err := stringParam(input.Params, "duration")
	if err != nil {
		return nil, err
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "invalid duration %q: %s", raw, err.Error()).WithCause(err)
	}

	start := time.Now()
	select {
	case <-time.After(d):
	case <-ctx.Done():
		return nil, schema.NewError(schema.ErrCodeCancelled, "wait interrupted").WithCause(ctx.Err())
	}
	return &Output{Data: map[string]any{"waited_ms": time.Since(start).Milliseconds()}}, nil
}

// --- param helpers ---

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", schema.NewErrorf(schema.ErrCodeValidation, "missing required parameter %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", schema.NewErrorf(schema.ErrCodeValidation, "parameter %q must be a string, got %T", key, v)
	}
	return s, nil
}

func optStringParam(params map[string]any, key, def string) (string, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", schema.NewErrorf(schema.ErrCodeValidation, "parameter %q must be a string, got %T", key, v)
	}
	return s, nil
}

func mapParam(params map[string]any, key string) (map[string]any, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "parameter %q must be an object, got %T", key, v)
	}
	return m, nil
}
