package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rendis/stepflow/internal/store"
	"github.com/rendis/stepflow/pkg/schema"
)

// handleCreate registers a workflow from a definition object.
func (s *StepflowServer) handleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	defRaw := mcp.ParseStringMap(req, "definition", nil)
	if defRaw == nil {
		return mcp.NewToolResultError("definition is required"), nil
	}

	// Marshal then unmarshal the definition to get a proper WorkflowDefinition.
	defBytes, marshalErr := json.Marshal(defRaw)
	if marshalErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid definition: %v", marshalErr)), nil
	}
	var def schema.WorkflowDefinition
	if unmarshalErr := json.Unmarshal(defBytes, &def); unmarshalErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid definition: %v", unmarshalErr)), nil
	}

	id, err := s.orchestrator.CreateWorkflow(ctx, &def)
	if err != nil {
		return toolError(err), nil
	}

	return marshalResult(map[string]any{
		"workflow_id": id,
		"status":      schema.WorkflowStatusPending,
	})
}

// handleExecute runs a pending or paused workflow to completion.
func (s *StepflowServer) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}

	result, execErr := s.orchestrator.Execute(ctx, workflowID)
	if execErr != nil {
		return toolError(execErr), nil
	}
	return marshalResult(result)
}

// handleCancel requests cooperative cancellation of a workflow.
func (s *StepflowServer) handleCancel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}

	if cancelErr := s.orchestrator.Cancel(ctx, workflowID); cancelErr != nil {
		return toolError(cancelErr), nil
	}
	return marshalResult(map[string]any{
		"ok":          true,
		"workflow_id": workflowID,
	})
}

// handlePause asks a running workflow to stop after its current round.
func (s *StepflowServer) handlePause(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}

	if pauseErr := s.orchestrator.Pause(ctx, workflowID); pauseErr != nil {
		return toolError(pauseErr), nil
	}
	return marshalResult(map[string]any{
		"ok":          true,
		"workflow_id": workflowID,
	})
}

// handleMonitor returns a progress snapshot for a workflow.
func (s *StepflowServer) handleMonitor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}

	report, monErr := s.orchestrator.Monitor(ctx, workflowID)
	if monErr != nil {
		return toolError(monErr), nil
	}
	return marshalResult(report)
}

// handleOptimize returns the advisory optimization report for a workflow.
func (s *StepflowServer) handleOptimize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}

	report, optErr := s.orchestrator.Optimize(ctx, workflowID)
	if optErr != nil {
		return toolError(optErr), nil
	}
	return marshalResult(report)
}

// handleSchedule creates a cron job that re-runs a stored workflow definition.
func (s *StepflowServer) handleSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}
	cronExpr, err := req.RequireString("cron")
	if err != nil {
		return mcp.NewToolResultError("cron is required"), nil
	}
	enabled := req.GetString("enabled", "true") != "false"

	// The workflow must exist and the cron expression must parse before
	// anything is persisted.
	if _, wfErr := s.store.GetWorkflow(ctx, workflowID); wfErr != nil {
		return toolError(wfErr), nil
	}

	now := time.Now().UTC()
	nextRun, parseErr := s.scheduler.CalculateNextRun(cronExpr, now)
	if parseErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid cron expression: %v", parseErr)), nil
	}

	job := &store.ScheduledJob{
		ID:             uuid.NewString(),
		WorkflowID:     workflowID,
		CronExpression: cronExpr,
		Enabled:        enabled,
		NextRunAt:      &nextRun,
		CreatedAt:      now,
	}
	if createErr := s.store.CreateScheduledJob(ctx, job); createErr != nil {
		return toolError(createErr), nil
	}

	return marshalResult(map[string]any{
		"job_id":      job.ID,
		"workflow_id": workflowID,
		"next_run_at": nextRun,
		"enabled":     enabled,
	})
}

// handleQuery lists workflows, events, or execution records based on filters.
func (s *StepflowServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resource, err := req.RequireString("resource")
	if err != nil {
		return mcp.NewToolResultError("resource is required"), nil
	}

	filter := mcp.ParseStringMap(req, "filter", nil)

	switch resource {
	case "workflows":
		return s.queryWorkflows(ctx, filter)
	case "events":
		return s.queryEvents(ctx, filter)
	case "records":
		return s.queryRecords(ctx, filter)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown resource type: %s", resource)), nil
	}
}

// handleExecutors lists the registered executor types.
func (s *StepflowServer) handleExecutors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(map[string]any{"executors": s.registry.List()})
}

// --- Query helpers ---

func (s *StepflowServer) queryWorkflows(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	wf := store.WorkflowFilter{
		Limit: extractInt(filter, "limit", 50),
	}
	if status, ok := filter["status"].(string); ok && status != "" {
		ws := schema.WorkflowStatus(status)
		wf.Status = &ws
	}
	if since, ok := filter["since"].(string); ok && since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			wf.Since = &t
		}
	}

	workflows, err := s.store.ListWorkflows(ctx, wf)
	if err != nil {
		return toolError(err), nil
	}
	return marshalResult(map[string]any{"workflows": workflows})
}

func (s *StepflowServer) queryEvents(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	workflowID, _ := filter["workflow_id"].(string)
	if workflowID == "" {
		return mcp.NewToolResultError("event query requires 'workflow_id' in filter"), nil
	}
	since := int64(extractInt(filter, "since_sequence", 0))

	events, err := s.store.GetEvents(ctx, workflowID, since)
	if err != nil {
		return toolError(err), nil
	}
	return marshalResult(map[string]any{"events": events})
}

func (s *StepflowServer) queryRecords(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	workflowID, _ := filter["workflow_id"].(string)
	if workflowID == "" {
		return mcp.NewToolResultError("record query requires 'workflow_id' in filter"), nil
	}
	limit := extractInt(filter, "limit", 20)

	records, err := s.store.ListExecutionRecords(ctx, workflowID, limit)
	if err != nil {
		return toolError(err), nil
	}
	return marshalResult(map[string]any{"records": records})
}

// --- Internal helpers ---

// extractInt safely extracts an integer from a filter map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// toolError converts an engine error into a tool result. FlowError messages
// already carry the structured code prefix.
func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
