package engine

import (
	"context"
	"time"

	"github.com/rendis/stepflow/pkg/schema"
)

// ProgressReport is a read-only snapshot of a workflow's execution state.
type ProgressReport struct {
	WorkflowID     string                `json:"workflow_id"`
	Status         schema.WorkflowStatus `json:"status"`
	Progress       float64               `json:"progress_pct"`
	TotalSteps     int                   `json:"total_steps"`
	CompletedSteps int                   `json:"completed_steps"`
	Steps          []StepProgress        `json:"steps"`
	StuckSteps     []string              `json:"stuck_steps,omitempty"`
	GeneratedAt    time.Time             `json:"generated_at"`
}

// StepProgress is the monitor view of one step.
type StepProgress struct {
	StepID     string            `json:"step_id"`
	Status     schema.StepStatus `json:"status"`
	Round      int               `json:"round"`
	DurationMs int64             `json:"duration_ms,omitempty"`
	Stuck      bool              `json:"stuck,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Monitor builds a progress snapshot from the store. It never blocks on the
// scheduler: it reads persisted state only, so polling an in-flight run is
// safe at any time.
func (o *Orchestrator) Monitor(ctx context.Context, workflowID string) (*ProgressReport, error) {
	wf, err := o.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	states, err := o.store.ListStepStates(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	report := &ProgressReport{
		WorkflowID:  workflowID,
		Status:      wf.Status,
		TotalSteps:  len(wf.Definition.Steps),
		GeneratedAt: now,
	}

	for _, st := range states {
		sp := StepProgress{
			StepID:     st.StepID,
			Status:     st.Status,
			Round:      st.Round,
			DurationMs: st.DurationMs,
			Error:      st.Error,
		}
		switch st.Status {
		case schema.StepStatusCompleted:
			report.CompletedSteps++
		case schema.StepStatusRunning:
			if st.StartedAt != nil {
				elapsed := now.Sub(*st.StartedAt)
				sp.DurationMs = elapsed.Milliseconds()
				if elapsed > o.cfg.StuckThreshold {
					sp.Stuck = true
					report.StuckSteps = append(report.StuckSteps, st.StepID)
				}
			}
		}
		report.Steps = append(report.Steps, sp)
	}

	if report.TotalSteps > 0 {
		report.Progress = float64(report.CompletedSteps) / float64(report.TotalSteps) * 100
	}
	return report, nil
}
