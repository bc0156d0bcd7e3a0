package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, WorkflowID(ctx))
	assert.Empty(t, StepID(ctx))

	ctx = WithWorkflowID(ctx, "wf-1")
	ctx = WithStepID(ctx, "step-a")
	assert.Equal(t, "wf-1", WorkflowID(ctx))
	assert.Equal(t, "step-a", StepID(ctx))
}

func TestCorrelationHandler_InjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithStepID(WithWorkflowID(context.Background(), "wf-1"), "step-a")
	logger.InfoContext(ctx, "step completed")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "wf-1", record["workflow_id"])
	assert.Equal(t, "step-a", record["step_id"])
	assert.Equal(t, "step completed", record["msg"])
}

func TestCorrelationHandler_NoIDsNoAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	logger.InfoContext(context.Background(), "plain")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	_, hasWF := record["workflow_id"]
	assert.False(t, hasWF)
}

func TestLogWith(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithWorkflowID(context.Background(), "wf-9")
	LogWith(ctx, logger).Info("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "wf-9", record["workflow_id"])
}
