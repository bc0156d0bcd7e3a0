package engine

import (
	"github.com/rendis/stepflow/pkg/schema"
)

// ReadySet returns the ids of pending steps whose every dependency has
// completed, in definition order. It is a pure function of its inputs:
// calling it again without a state change yields the same result.
//
// Skipped or failed dependencies never satisfy a step; such steps stay
// pending and eventually surface through deadlock detection.
func ReadySet(def *schema.WorkflowDefinition, statuses map[string]schema.StepStatus) []string {
	var ready []string
	for i := range def.Steps {
		step := &def.Steps[i]
		if statuses[step.ID] != schema.StepStatusPending {
			continue
		}
		ok := true
		for _, dep := range step.DependsOn {
			if statuses[dep] != schema.StepStatusCompleted {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, step.ID)
		}
	}
	return ready
}

// Unresolved returns the ids of non-terminal steps, in definition order.
func Unresolved(def *schema.WorkflowDefinition, statuses map[string]schema.StepStatus) []string {
	var out []string
	for i := range def.Steps {
		if !statuses[def.Steps[i].ID].Terminal() {
			out = append(out, def.Steps[i].ID)
		}
	}
	return out
}

// FailedSteps returns the ids of failed steps, in definition order.
func FailedSteps(def *schema.WorkflowDefinition, statuses map[string]schema.StepStatus) []string {
	var out []string
	for i := range def.Steps {
		if statuses[def.Steps[i].ID] == schema.StepStatusFailed {
			out = append(out, def.Steps[i].ID)
		}
	}
	return out
}

// DeadlockError builds the workflow-level error raised when the ready set is
// empty but non-terminal steps remain. It names the stuck steps and
// distinguishes those waiting on failed or skipped dependencies from the
// rest (mutual waits, i.e. dependency cycles).
func DeadlockError(def *schema.WorkflowDefinition, statuses map[string]schema.StepStatus) *schema.FlowError {
	failed := FailedSteps(def, statuses)

	var blockedByFailure, blockedByCycle []string
	for _, id := range Unresolved(def, statuses) {
		if dependsOnDead(def, statuses, id) {
			blockedByFailure = append(blockedByFailure, id)
		} else {
			blockedByCycle = append(blockedByCycle, id)
		}
	}

	msg := "no runnable steps remain"
	switch {
	case len(blockedByFailure) > 0 && len(blockedByCycle) > 0:
		msg += ": steps blocked by failed dependencies and by a dependency cycle"
	case len(blockedByFailure) > 0:
		msg += ": steps blocked by failed or skipped dependencies"
	case len(blockedByCycle) > 0:
		msg += ": dependency cycle detected"
	}

	return schema.NewError(schema.ErrCodeDeadlock, msg).WithDetails(map[string]any{
		"failed_steps":       failed,
		"blocked_by_failure": blockedByFailure,
		"blocked_steps":      blockedByCycle,
	})
}

// dependsOnDead reports whether the step transitively depends on a failed or
// skipped step.
func dependsOnDead(def *schema.WorkflowDefinition, statuses map[string]schema.StepStatus, id string) bool {
	seen := make(map[string]bool)
	var walk func(string) bool
	walk = func(cur string) bool {
		if seen[cur] {
			return false
		}
		seen[cur] = true
		step := def.StepByID(cur)
		if step == nil {
			return false
		}
		for _, dep := range step.DependsOn {
			switch statuses[dep] {
			case schema.StepStatusFailed, schema.StepStatusSkipped:
				return true
			}
			if walk(dep) {
				return true
			}
		}
		return false
	}
	return walk(id)
}
