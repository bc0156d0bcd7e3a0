package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rendis/stepflow/internal/store"
	"github.com/rendis/stepflow/pkg/schema"
)

// bottleneckShare is the fraction of total runtime above which a step is
// reported as a bottleneck.
const bottleneckShare = 0.5

// optimizerRecordWindow caps how many past runs the optimizer inspects.
const optimizerRecordWindow = 20

// flakyThreshold is the per-step failure rate, across the record window,
// above which a step is called out as flaky.
const flakyThreshold = 0.5

// OptimizationReport is the advisory output of the optimizer. It suggests,
// it never mutates: acting on a recommendation is the caller's decision.
type OptimizationReport struct {
	WorkflowID      string                `json:"workflow_id"`
	RunsAnalyzed    int                   `json:"runs_analyzed"`
	TotalDurationMs int64                 `json:"total_duration_ms"`
	AvgRunMs        int64                 `json:"avg_run_ms,omitempty"`
	Bottlenecks     []Bottleneck          `json:"bottlenecks,omitempty"`
	MissedParallel  []ParallelizationHint `json:"missed_parallelization,omitempty"`
	FlakySteps      []StepFailureRate     `json:"flaky_steps,omitempty"`
	Recommendations []string              `json:"recommendations,omitempty"`
	GeneratedAt     time.Time             `json:"generated_at"`
}

// StepFailureRate summarizes how often a step failed across recorded runs.
type StepFailureRate struct {
	StepID   string  `json:"step_id"`
	Failures int     `json:"failures"`
	Runs     int     `json:"runs"`
	Rate     float64 `json:"rate"`
}

// Bottleneck flags a step with a disproportionate share of total step time.
type Bottleneck struct {
	StepID     string  `json:"step_id"`
	DurationMs int64   `json:"duration_ms"`
	Share      float64 `json:"share"`
}

// ParallelizationHint flags two independent steps that executed in
// different rounds even though no dependency path connects them.
type ParallelizationHint struct {
	StepA  string `json:"step_a"`
	StepB  string `json:"step_b"`
	RoundA int    `json:"round_a"`
	RoundB int    `json:"round_b"`
}

// Optimize analyzes step timings and past execution records, reporting
// bottleneck steps and missed parallelization opportunities.
func (o *Orchestrator) Optimize(ctx context.Context, workflowID string) (*OptimizationReport, error) {
	wf, err := o.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	states, err := o.store.ListStepStates(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	records, err := o.store.ListExecutionRecords(ctx, workflowID, optimizerRecordWindow)
	if err != nil {
		return nil, err
	}

	report := &OptimizationReport{
		WorkflowID:   workflowID,
		RunsAnalyzed: len(records),
		GeneratedAt:  time.Now().UTC(),
	}
	o.foldRecordHistory(report, wf, records)

	byID := make(map[string]*store.StepState, len(states))
	var total int64
	for _, st := range states {
		byID[st.StepID] = st
		if st.Status == schema.StepStatusCompleted || st.Status == schema.StepStatusFailed {
			total += st.DurationMs
		}
	}
	report.TotalDurationMs = total

	// Bottlenecks: steps with a disproportionate share of total step time.
	if total > 0 {
		for i := range wf.Definition.Steps {
			st := byID[wf.Definition.Steps[i].ID]
			if st == nil || st.DurationMs == 0 {
				continue
			}
			share := float64(st.DurationMs) / float64(total)
			if share >= bottleneckShare {
				report.Bottlenecks = append(report.Bottlenecks, Bottleneck{
					StepID:     st.StepID,
					DurationMs: st.DurationMs,
					Share:      share,
				})
				report.Recommendations = append(report.Recommendations, fmt.Sprintf(
					"step %q accounts for %.0f%% of total step time; consider splitting it or speeding up its executor (%s)",
					st.StepID, share*100, wf.Definition.Steps[i].ExecutorType))
			}
		}
	}

	// Missed parallelization: independent steps dispatched in different
	// rounds. Independence means no dependency path in either direction.
	reach := reachability(&wf.Definition)
	steps := wf.Definition.Steps
	for i := 0; i < len(steps); i++ {
		for j := i + 1; j < len(steps); j++ {
			a, b := byID[steps[i].ID], byID[steps[j].ID]
			if a == nil || b == nil || a.Round < 0 || b.Round < 0 || a.Round == b.Round {
				continue
			}
			if reach[steps[i].ID][steps[j].ID] || reach[steps[j].ID][steps[i].ID] {
				continue
			}
			report.MissedParallel = append(report.MissedParallel, ParallelizationHint{
				StepA:  steps[i].ID,
				StepB:  steps[j].ID,
				RoundA: a.Round,
				RoundB: b.Round,
			})
		}
	}
	if len(report.MissedParallel) > 0 {
		report.Recommendations = append(report.Recommendations, fmt.Sprintf(
			"%d pairs of independent steps ran in different rounds; removing transitive dependency chains between them would allow them to run concurrently",
			len(report.MissedParallel)))
	}

	return report, nil
}

// foldRecordHistory aggregates the record window: average run duration and
// per-step failure rates recovered from each record's step-results payload.
func (o *Orchestrator) foldRecordHistory(report *OptimizationReport, wf *store.Workflow, records []*store.ExecutionRecord) {
	if len(records) == 0 {
		return
	}

	var totalMs int64
	failures := make(map[string]int)
	runs := make(map[string]int)
	for _, rec := range records {
		totalMs += rec.DurationMs
		if len(rec.StepResults) == 0 {
			continue
		}
		var results map[string]struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(rec.StepResults, &results); err != nil {
			continue
		}
		for id, entry := range results {
			runs[id]++
			if entry.Status == string(schema.StepStatusFailed) {
				failures[id]++
			}
		}
	}
	report.AvgRunMs = totalMs / int64(len(records))

	for i := range wf.Definition.Steps {
		id := wf.Definition.Steps[i].ID
		if failures[id] == 0 {
			continue
		}
		rate := float64(failures[id]) / float64(runs[id])
		report.FlakySteps = append(report.FlakySteps, StepFailureRate{
			StepID:   id,
			Failures: failures[id],
			Runs:     runs[id],
			Rate:     rate,
		})
		if runs[id] >= 2 && rate >= flakyThreshold {
			report.Recommendations = append(report.Recommendations, fmt.Sprintf(
				"step %q failed in %d of %d recorded runs; inspect its executor or wrap it with a retry policy",
				id, failures[id], runs[id]))
		}
	}
}

// reachability computes, per step, the set of steps reachable by following
// dependency edges. A visited set makes it safe on cyclic definitions.
func reachability(def *schema.WorkflowDefinition) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(def.Steps))
	for i := range def.Steps {
		id := def.Steps[i].ID
		seen := make(map[string]bool)
		var walk func(string)
		walk = func(cur string) {
			step := def.StepByID(cur)
			if step == nil {
				return
			}
			for _, dep := range step.DependsOn {
				if seen[dep] {
					continue
				}
				seen[dep] = true
				walk(dep)
			}
		}
		walk(id)
		out[id] = seen
	}
	return out
}
