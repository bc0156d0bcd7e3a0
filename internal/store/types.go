package store

import (
	"encoding/json"
	"time"

	"github.com/rendis/stepflow/pkg/schema"
)

// Workflow is the persisted representation of a workflow.
type Workflow struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name,omitempty"`
	Description string                    `json:"description,omitempty"`
	Definition  schema.WorkflowDefinition `json:"definition"`
	Status      schema.WorkflowStatus     `json:"status"`
	Error       json.RawMessage           `json:"error,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`
	StartedAt   *time.Time                `json:"started_at,omitempty"`
	CompletedAt *time.Time                `json:"completed_at,omitempty"`
	UpdatedAt   time.Time                 `json:"updated_at"`
}

// Event is an immutable entry in the workflow event log.
type Event struct {
	ID         int64           `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	StepID     string          `json:"step_id,omitempty"`
	Type       string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Sequence   int64           `json:"sequence"`
}

// StepState is the materialized view of a step's current execution state.
// Round is the scheduler round in which the step was dispatched (-1 until
// dispatched); it feeds the optimizer's parallelization analysis.
type StepState struct {
	WorkflowID  string            `json:"workflow_id"`
	StepID      string            `json:"step_id"`
	Status      schema.StepStatus `json:"status"`
	Result      json.RawMessage   `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	Round       int               `json:"round"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	DurationMs  int64             `json:"duration_ms,omitempty"`
}

// ExecutionRecord is the append-only summary of one finished run.
// StepResults maps step id to its result or error payload.
type ExecutionRecord struct {
	ID             int64                 `json:"id"`
	WorkflowID     string                `json:"workflow_id"`
	Status         schema.WorkflowStatus `json:"status"`
	DurationMs     int64                 `json:"duration_ms"`
	StepsCompleted int                   `json:"steps_completed"`
	StepResults    json.RawMessage       `json:"step_results,omitempty"`
	RecordedAt     time.Time             `json:"recorded_at"`
}

// ScheduledJob is a cron-triggered re-run of a stored workflow definition.
type ScheduledJob struct {
	ID             string     `json:"id"`
	WorkflowID     string     `json:"workflow_id"`
	CronExpression string     `json:"cron_expression"`
	Enabled        bool       `json:"enabled"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty"`
	LastRunStatus  string     `json:"last_run_status,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// --- Filter and update types ---

// WorkflowFilter specifies criteria for listing workflows.
type WorkflowFilter struct {
	Status *schema.WorkflowStatus `json:"status,omitempty"`
	Since  *time.Time             `json:"since,omitempty"`
	Limit  int                    `json:"limit,omitempty"`
	Offset int                    `json:"offset,omitempty"`
}

// WorkflowUpdate specifies mutable fields of a workflow.
type WorkflowUpdate struct {
	Status      *schema.WorkflowStatus `json:"status,omitempty"`
	Error       json.RawMessage        `json:"error,omitempty"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}

// ScheduledJobUpdate specifies mutable fields of a scheduled job.
type ScheduledJobUpdate struct {
	Enabled       *bool      `json:"enabled,omitempty"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	NextRunAt     *time.Time `json:"next_run_at,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
}

// ScheduledJobFilter specifies criteria for listing scheduled jobs.
type ScheduledJobFilter struct {
	Enabled *bool `json:"enabled,omitempty"`
	Limit   int   `json:"limit,omitempty"`
}
