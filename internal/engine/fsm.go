package engine

import (
	"context"

	"github.com/rendis/stepflow/internal/store"
	"github.com/rendis/stepflow/pkg/schema"
)

// EventAppender is satisfied by the Store; FSMs emit events on transitions.
type EventAppender interface {
	AppendEvent(ctx context.Context, event *store.Event) error
}

// ValidWorkflowTransitions defines the allowed state transitions for workflows.
var ValidWorkflowTransitions = map[schema.WorkflowStatus][]schema.WorkflowStatus{
	schema.WorkflowStatusPending:   {schema.WorkflowStatusRunning, schema.WorkflowStatusCancelled},
	schema.WorkflowStatusRunning:   {schema.WorkflowStatusPaused, schema.WorkflowStatusCompleted, schema.WorkflowStatusFailed, schema.WorkflowStatusCancelled},
	schema.WorkflowStatusPaused:    {schema.WorkflowStatusRunning, schema.WorkflowStatusCancelled, schema.WorkflowStatusFailed},
	schema.WorkflowStatusCompleted: {},
	schema.WorkflowStatusFailed:    {},
	schema.WorkflowStatusCancelled: {},
}

// ValidStepTransitions defines the allowed state transitions for steps.
// Step state moves one direction only; terminal states have no exits.
var ValidStepTransitions = map[schema.StepStatus][]schema.StepStatus{
	schema.StepStatusPending:   {schema.StepStatusScheduled, schema.StepStatusSkipped},
	schema.StepStatusScheduled: {schema.StepStatusRunning, schema.StepStatusSkipped},
	schema.StepStatusRunning:   {schema.StepStatusCompleted, schema.StepStatusFailed},
	schema.StepStatusCompleted: {},
	schema.StepStatusFailed:    {},
	schema.StepStatusSkipped:   {},
}

// WorkflowFSM validates workflow lifecycle transitions and emits events.
type WorkflowFSM struct {
	appender EventAppender
}

// NewWorkflowFSM creates a WorkflowFSM that emits events via the given appender.
func NewWorkflowFSM(appender EventAppender) *WorkflowFSM {
	return &WorkflowFSM{appender: appender}
}

// Transition validates a workflow state transition and emits the
// corresponding event. The caller persists the new status to the store.
func (f *WorkflowFSM) Transition(ctx context.Context, workflowID string, from, to schema.WorkflowStatus) error {
	if !validTransition(ValidWorkflowTransitions, from, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid workflow transition: %s -> %s", from, to).
			WithDetails(map[string]any{"workflow_id": workflowID, "from": string(from), "to": string(to)})
	}

	if eventType := workflowEventType(from, to); eventType != "" {
		event := &store.Event{WorkflowID: workflowID, Type: eventType}
		if err := f.appender.AppendEvent(ctx, event); err != nil {
			return schema.NewErrorf(schema.ErrCodeStore, "emit workflow event: %s", err.Error()).WithCause(err)
		}
	}
	return nil
}

func workflowEventType(from, to schema.WorkflowStatus) string {
	switch to {
	case schema.WorkflowStatusRunning:
		if from == schema.WorkflowStatusPaused {
			return schema.EventWorkflowResumed
		}
		return schema.EventWorkflowStarted
	case schema.WorkflowStatusCompleted:
		return schema.EventWorkflowCompleted
	case schema.WorkflowStatusFailed:
		return schema.EventWorkflowFailed
	case schema.WorkflowStatusCancelled:
		return schema.EventWorkflowCancelled
	case schema.WorkflowStatusPaused:
		return schema.EventWorkflowPaused
	default:
		return ""
	}
}

// StepFSM validates step lifecycle transitions and emits events.
type StepFSM struct {
	appender EventAppender
}

// NewStepFSM creates a StepFSM that emits events via the given appender.
func NewStepFSM(appender EventAppender) *StepFSM {
	return &StepFSM{appender: appender}
}

// Transition validates a step state transition and emits the corresponding event.
func (f *StepFSM) Transition(ctx context.Context, workflowID, stepID string, from, to schema.StepStatus) error {
	if !validTransition(ValidStepTransitions, from, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid step transition: %s -> %s", from, to).
			WithStep(stepID).
			WithDetails(map[string]any{"workflow_id": workflowID, "from": string(from), "to": string(to)})
	}

	if eventType := stepEventType(to); eventType != "" {
		event := &store.Event{WorkflowID: workflowID, StepID: stepID, Type: eventType}
		if err := f.appender.AppendEvent(ctx, event); err != nil {
			return schema.NewErrorf(schema.ErrCodeStore, "emit step event: %s", err.Error()).
				WithStep(stepID).WithCause(err)
		}
	}
	return nil
}

func stepEventType(to schema.StepStatus) string {
	switch to {
	case schema.StepStatusScheduled:
		return schema.EventStepScheduled
	case schema.StepStatusRunning:
		return schema.EventStepStarted
	case schema.StepStatusCompleted:
		return schema.EventStepCompleted
	case schema.StepStatusFailed:
		return schema.EventStepFailed
	case schema.StepStatusSkipped:
		return schema.EventStepSkipped
	default:
		return ""
	}
}

func validTransition[S comparable](table map[S][]S, from, to S) bool {
	for _, a := range table[from] {
		if a == to {
			return true
		}
	}
	return false
}

// CanSkip reports whether a step in the given state may move to skipped.
func CanSkip(s schema.StepStatus) bool {
	return validTransition(ValidStepTransitions, s, schema.StepStatusSkipped)
}
