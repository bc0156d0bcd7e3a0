package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/stepflow/internal/engine"
	"github.com/rendis/stepflow/internal/executors"
	"github.com/rendis/stepflow/internal/expressions"
	"github.com/rendis/stepflow/internal/scheduler"
	"github.com/rendis/stepflow/internal/store"
	"github.com/rendis/stepflow/internal/validation"
)

// --- Helpers ---

func newTestServer(t *testing.T) (*StepflowServer, *store.MemoryStore) {
	t.Helper()

	st := store.NewMemoryStore()
	registry := executors.NewRegistry()
	require.NoError(t, executors.RegisterBuiltins(registry))

	validator, err := validation.NewValidator()
	require.NoError(t, err)
	conditions, err := expressions.NewCELEngine()
	require.NoError(t, err)

	orch := engine.New(st, registry, validator, conditions, nil, nil, engine.Config{})
	t.Cleanup(orch.Shutdown)

	logger := slog.New(slog.DiscardHandler)
	sched := scheduler.NewScheduler(st, nil, logger)

	srv := NewStepflowServer(StepflowServerDeps{
		Orchestrator: orch,
		Store:        st,
		Registry:     registry,
		Scheduler:    sched,
		Logger:       logger,
	})
	return srv, st
}

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func unmarshalResult(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	text := extractText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target))
}

func noopDefinition() map[string]any {
	return map[string]any{
		"name": "pipeline",
		"steps": []any{
			map[string]any{"id": "a", "executor_type": "noop"},
			map[string]any{"id": "b", "executor_type": "noop", "depends_on": []any{"a"}},
		},
	}
}

func createWorkflow(t *testing.T, s *StepflowServer) string {
	t.Helper()
	req := buildRequest("stepflow.create", map[string]any{"definition": noopDefinition()})
	result, err := s.handleCreate(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))

	var out struct {
		WorkflowID string `json:"workflow_id"`
	}
	unmarshalResult(t, result, &out)
	require.NotEmpty(t, out.WorkflowID)
	return out.WorkflowID
}

// --- Create ---

func TestCreateTool(t *testing.T) {
	s, st := newTestServer(t)

	id := createWorkflow(t, s)

	wf, err := st.GetWorkflow(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "pipeline", wf.Name)
}

func TestCreateTool_MissingDefinition(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleCreate(context.Background(), buildRequest("stepflow.create", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestCreateTool_InvalidDefinition(t *testing.T) {
	s, _ := newTestServer(t)

	req := buildRequest("stepflow.create", map[string]any{
		"definition": map[string]any{
			"steps": []any{
				map[string]any{"id": "a", "executor_type": "noop", "depends_on": []any{"ghost"}},
			},
		},
	})
	result, err := s.handleCreate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), "VALIDATION_ERROR")
}

// --- Execute ---

func TestExecuteTool(t *testing.T) {
	s, _ := newTestServer(t)
	id := createWorkflow(t, s)

	req := buildRequest("stepflow.execute", map[string]any{"workflow_id": id})
	result, err := s.handleExecute(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))

	text := extractText(t, result)
	assert.Contains(t, text, `"status":"completed"`)
	assert.Contains(t, text, id)
}

func TestExecuteTool_MissingID(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleExecute(context.Background(), buildRequest("stepflow.execute", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestExecuteTool_NotFound(t *testing.T) {
	s, _ := newTestServer(t)

	req := buildRequest("stepflow.execute", map[string]any{"workflow_id": "missing"})
	result, err := s.handleExecute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), "NOT_FOUND")
}

// --- Cancel / Pause ---

func TestCancelTool_PendingWorkflow(t *testing.T) {
	s, st := newTestServer(t)
	id := createWorkflow(t, s)

	req := buildRequest("stepflow.cancel", map[string]any{"workflow_id": id})
	result, err := s.handleCancel(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	wf, err := st.GetWorkflow(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", string(wf.Status))
}

func TestPauseTool_NotRunning(t *testing.T) {
	s, _ := newTestServer(t)
	id := createWorkflow(t, s)

	req := buildRequest("stepflow.pause", map[string]any{"workflow_id": id})
	result, err := s.handlePause(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError, "pausing a workflow that is not running is a conflict")
}

// --- Monitor / Optimize ---

func TestMonitorTool(t *testing.T) {
	s, _ := newTestServer(t)
	id := createWorkflow(t, s)

	_, err := s.handleExecute(context.Background(), buildRequest("stepflow.execute", map[string]any{"workflow_id": id}))
	require.NoError(t, err)

	req := buildRequest("stepflow.monitor", map[string]any{"workflow_id": id})
	result, err := s.handleMonitor(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)

	var report struct {
		Progress       float64 `json:"progress_pct"`
		TotalSteps     int     `json:"total_steps"`
		CompletedSteps int     `json:"completed_steps"`
	}
	unmarshalResult(t, result, &report)
	assert.Equal(t, 100.0, report.Progress)
	assert.Equal(t, 2, report.TotalSteps)
	assert.Equal(t, 2, report.CompletedSteps)
}

func TestOptimizeTool(t *testing.T) {
	s, _ := newTestServer(t)
	id := createWorkflow(t, s)

	_, err := s.handleExecute(context.Background(), buildRequest("stepflow.execute", map[string]any{"workflow_id": id}))
	require.NoError(t, err)

	req := buildRequest("stepflow.optimize", map[string]any{"workflow_id": id})
	result, err := s.handleOptimize(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)

	var report struct {
		RunsAnalyzed int `json:"runs_analyzed"`
	}
	unmarshalResult(t, result, &report)
	assert.Equal(t, 1, report.RunsAnalyzed)
}

// --- Schedule ---

func TestScheduleTool(t *testing.T) {
	s, st := newTestServer(t)
	id := createWorkflow(t, s)

	req := buildRequest("stepflow.schedule", map[string]any{
		"workflow_id": id,
		"cron":        "*/10 * * * *",
	})
	result, err := s.handleSchedule(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))

	var out struct {
		JobID string `json:"job_id"`
	}
	unmarshalResult(t, result, &out)

	job, err := st.GetScheduledJob(context.Background(), out.JobID)
	require.NoError(t, err)
	assert.Equal(t, id, job.WorkflowID)
	assert.True(t, job.Enabled)
	require.NotNil(t, job.NextRunAt)
}

func TestScheduleTool_InvalidCron(t *testing.T) {
	s, _ := newTestServer(t)
	id := createWorkflow(t, s)

	req := buildRequest("stepflow.schedule", map[string]any{
		"workflow_id": id,
		"cron":        "whenever",
	})
	result, err := s.handleSchedule(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestScheduleTool_UnknownWorkflow(t *testing.T) {
	s, _ := newTestServer(t)

	req := buildRequest("stepflow.schedule", map[string]any{
		"workflow_id": "missing",
		"cron":        "* * * * *",
	})
	result, err := s.handleSchedule(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// --- Query ---

func TestQueryTool_Workflows(t *testing.T) {
	s, _ := newTestServer(t)
	createWorkflow(t, s)
	createWorkflow(t, s)

	req := buildRequest("stepflow.query", map[string]any{"resource": "workflows"})
	result, err := s.handleQuery(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out struct {
		Workflows []json.RawMessage `json:"workflows"`
	}
	unmarshalResult(t, result, &out)
	assert.Len(t, out.Workflows, 2)

	// Status filter.
	req = buildRequest("stepflow.query", map[string]any{
		"resource": "workflows",
		"filter":   map[string]any{"status": "completed"},
	})
	result, err = s.handleQuery(context.Background(), req)
	require.NoError(t, err)
	unmarshalResult(t, result, &out)
	assert.Empty(t, out.Workflows)
}

func TestQueryTool_Events(t *testing.T) {
	s, _ := newTestServer(t)
	id := createWorkflow(t, s)

	req := buildRequest("stepflow.query", map[string]any{
		"resource": "events",
		"filter":   map[string]any{"workflow_id": id},
	})
	result, err := s.handleQuery(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out struct {
		Events []struct {
			Type string `json:"event_type"`
		} `json:"events"`
	}
	unmarshalResult(t, result, &out)
	require.NotEmpty(t, out.Events)
	assert.Equal(t, "workflow.created", out.Events[0].Type)
}

func TestQueryTool_EventsRequireWorkflowID(t *testing.T) {
	s, _ := newTestServer(t)

	req := buildRequest("stepflow.query", map[string]any{"resource": "events"})
	result, err := s.handleQuery(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestQueryTool_UnknownResource(t *testing.T) {
	s, _ := newTestServer(t)

	req := buildRequest("stepflow.query", map[string]any{"resource": "secrets"})
	result, err := s.handleQuery(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// --- Executors ---

func TestExecutorsTool(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleExecutors(context.Background(), buildRequest("stepflow.executors", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := extractText(t, result)
	assert.Contains(t, text, "noop")
	assert.Contains(t, text, "http.request")
	assert.Contains(t, text, "transform.jq")
}

// --- Server wiring ---

func TestServer_RegistersAllTools(t *testing.T) {
	s, _ := newTestServer(t)
	assert.NotNil(t, s.MCPServer())
	assert.Len(t, s.tools(), 9)
}

func TestExtractInt(t *testing.T) {
	assert.Equal(t, 5, extractInt(nil, "limit", 5))
	assert.Equal(t, 5, extractInt(map[string]any{}, "limit", 5))
	assert.Equal(t, 7, extractInt(map[string]any{"limit": float64(7)}, "limit", 5))
	assert.Equal(t, 7, extractInt(map[string]any{"limit": 7}, "limit", 5))
	assert.Equal(t, 7, extractInt(map[string]any{"limit": "7"}, "limit", 5))
	assert.Equal(t, 5, extractInt(map[string]any{"limit": "x"}, "limit", 5))
}
