package schema

// Event types appended to the workflow event log on state transitions.
const (
	EventWorkflowCreated   = "workflow.created"
	EventWorkflowStarted   = "workflow.started"
	EventWorkflowCompleted = "workflow.completed"
	EventWorkflowFailed    = "workflow.failed"
	EventWorkflowCancelled = "workflow.cancelled"
	EventWorkflowPaused    = "workflow.paused"
	EventWorkflowResumed   = "workflow.resumed"

	EventStepScheduled = "step.scheduled"
	EventStepStarted   = "step.started"
	EventStepCompleted = "step.completed"
	EventStepFailed    = "step.failed"
	EventStepSkipped   = "step.skipped"
)
