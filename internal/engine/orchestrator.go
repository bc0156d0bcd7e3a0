package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/stepflow/internal/executors"
	"github.com/rendis/stepflow/internal/logging"
	"github.com/rendis/stepflow/internal/metrics"
	"github.com/rendis/stepflow/internal/store"
	"github.com/rendis/stepflow/internal/validation"
	"github.com/rendis/stepflow/pkg/schema"
)

// Config tunes the orchestrator.
type Config struct {
	// PoolSize caps concurrent step execution across all runs.
	PoolSize int
	// RunTimeout is the default whole-run deadline applied when the
	// definition does not set one. Zero means no deadline. Expiry behaves
	// like cancellation: in-flight steps finish, nothing new is dispatched.
	RunTimeout time.Duration
	// StuckThreshold marks a running step as stuck in monitor reports.
	StuckThreshold time.Duration
}

func (c Config) withDefaults() Config {
	if c.PoolSize <= 0 {
		c.PoolSize = 8
	}
	if c.StuckThreshold <= 0 {
		c.StuckThreshold = 5 * time.Minute
	}
	return c
}

// Orchestrator drives workflows through the round-barrier scheduling loop.
// It is the only writer of workflow and step state.
type Orchestrator struct {
	store      store.Store
	registry   *executors.Registry
	validator  *validation.Validator
	conditions ConditionEvaluator
	pool       *WorkerPool
	wfFSM      *WorkflowFSM
	stepFSM    *StepFSM
	collector  *metrics.Collector
	logger     *slog.Logger
	cfg        Config

	mu   sync.Mutex
	runs map[string]*run
}

// ConditionEvaluator evaluates per-step condition guards.
type ConditionEvaluator interface {
	EvaluateBool(ctx context.Context, expression string, data map[string]any) (bool, error)
}

// run holds the cooperative control flags of one in-flight execution.
// Both flags are observed at round boundaries only: in-flight steps always
// finish and their results are recorded.
type run struct {
	cancelled atomic.Bool
	paused    atomic.Bool
	reason    atomic.Value // string
}

// RunResult summarizes one finished (or paused) execution.
type RunResult struct {
	WorkflowID string                `json:"workflow_id"`
	Status     schema.WorkflowStatus `json:"status"`
	Err        *schema.FlowError     `json:"error,omitempty"`
	StartedAt  time.Time             `json:"started_at"`
	Duration   time.Duration         `json:"duration"`
	Rounds     int                   `json:"rounds"`
	Steps      []*store.StepState    `json:"steps"`
}

// New creates an Orchestrator.
func New(st store.Store, registry *executors.Registry, validator *validation.Validator,
	conditions ConditionEvaluator, collector *metrics.Collector, logger *slog.Logger, cfg Config) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Orchestrator{
		store:      st,
		registry:   registry,
		validator:  validator,
		conditions: conditions,
		pool:       NewWorkerPool(cfg.PoolSize),
		wfFSM:      NewWorkflowFSM(st),
		stepFSM:    NewStepFSM(st),
		collector:  collector,
		logger:     logger,
		cfg:        cfg,
	}
}

// Registry returns the executor registry.
func (o *Orchestrator) Registry() *executors.Registry { return o.registry }

// Store returns the backing store.
func (o *Orchestrator) Store() store.Store { return o.store }

// Shutdown stops the worker pool, waiting for in-flight steps.
func (o *Orchestrator) Shutdown() { o.pool.Shutdown() }

// --- Create ---

// CreateWorkflow validates the definition, persists it with a generated id,
// and seeds pending step states. Validation rejects duplicate step ids and
// dependencies on nonexistent steps; it deliberately does NOT reject cycles,
// which surface at runtime as a deadlock.
func (o *Orchestrator) CreateWorkflow(ctx context.Context, def *schema.WorkflowDefinition) (string, error) {
	if err := o.validator.ValidateDefinition(def); err != nil {
		return "", err
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	wf := &store.Workflow{
		ID:          id,
		Name:        def.Name,
		Description: def.Description,
		Definition:  *def,
		Status:      schema.WorkflowStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.store.CreateWorkflow(ctx, wf); err != nil {
		return "", err
	}

	for i := range def.Steps {
		st := &store.StepState{
			WorkflowID: id,
			StepID:     def.Steps[i].ID,
			Status:     schema.StepStatusPending,
			Round:      -1,
		}
		if err := o.store.UpsertStepState(ctx, st); err != nil {
			return "", err
		}
	}

	_ = o.store.AppendEvent(ctx, &store.Event{WorkflowID: id, Type: schema.EventWorkflowCreated})

	ctx = logging.WithWorkflowID(ctx, id)
	o.logger.InfoContext(ctx, "workflow created", slog.String("name", def.Name), slog.Int("steps", len(def.Steps)))
	return id, nil
}

// --- Execute ---

// Execute runs the workflow to a terminal (or paused) state and returns the
// outcome. Only pending and paused workflows can be executed; a paused
// workflow resumes from its persisted step table.
func (o *Orchestrator) Execute(ctx context.Context, workflowID string) (*RunResult, error) {
	wf, err := o.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	switch wf.Status {
	case schema.WorkflowStatusPending, schema.WorkflowStatusPaused:
	case schema.WorkflowStatusRunning:
		return nil, schema.NewErrorf(schema.ErrCodeConflict, "workflow %q is already running", workflowID)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeConflict, "workflow %q is %s", workflowID, wf.Status)
	}

	r := &run{}
	o.mu.Lock()
	if _, exists := o.runs[workflowID]; exists {
		o.mu.Unlock()
		return nil, schema.NewErrorf(schema.ErrCodeConflict, "workflow %q is already running", workflowID)
	}
	if o.runs == nil {
		o.runs = make(map[string]*run)
	}
	o.runs[workflowID] = r
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.runs, workflowID)
		o.mu.Unlock()
	}()

	ctx = logging.WithWorkflowID(ctx, workflowID)

	if err := o.wfFSM.Transition(ctx, workflowID, wf.Status, schema.WorkflowStatusRunning); err != nil {
		return nil, err
	}
	start := time.Now().UTC()
	update := store.WorkflowUpdate{Status: statusPtr(schema.WorkflowStatusRunning)}
	if wf.StartedAt == nil {
		update.StartedAt = &start
	}
	if err := o.store.UpdateWorkflow(ctx, workflowID, update); err != nil {
		return nil, err
	}
	o.collector.WorkflowStarted()
	o.logger.InfoContext(ctx, "workflow started")

	return o.runLoop(ctx, wf, r, start)
}

// runLoop is the round-barrier scheduler: each iteration computes the ready
// set, dispatches it concurrently, and waits for every dispatched step to
// reach a terminal state before computing the next round.
func (o *Orchestrator) runLoop(ctx context.Context, wf *store.Workflow, r *run, start time.Time) (*RunResult, error) {
	def := &wf.Definition

	states, err := o.loadStates(ctx, wf)
	if err != nil {
		return nil, err
	}

	var deadline time.Time
	if timeout := o.runTimeout(def); timeout > 0 {
		deadline = start.Add(timeout)
	}

	round := nextRound(states)
	rounds := 0

	for {
		if ctx.Err() != nil || r.cancelled.Load() {
			return o.finishCancelled(ctx, wf, r, states, start, rounds)
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			r.reason.Store("run deadline exceeded")
			return o.finishCancelled(ctx, wf, r, states, start, rounds)
		}

		statuses := statusMap(states)
		ready := ReadySet(def, statuses)
		if len(ready) == 0 {
			if len(Unresolved(def, statuses)) == 0 {
				// Every step is terminal: the run completed. Failed leaves
				// without dependents do not fail the workflow; their errors
				// stay on the step states and the execution record.
				if failed := FailedSteps(def, statuses); len(failed) > 0 {
					o.logger.WarnContext(ctx, "workflow completed with failed steps", slog.Any("failed_steps", failed))
				}
				return o.finishCompleted(ctx, wf, states, start, rounds)
			}
			return o.finishDeadlocked(ctx, wf, states, statuses, start, rounds)
		}

		completedResults := resultValues(states)
		var wg sync.WaitGroup
		for _, stepID := range ready {
			step := def.StepByID(stepID)
			st := states[stepID]
			if err := o.markScheduled(ctx, st, round); err != nil {
				// Leaving the step pending would recompute the identical
				// ready set forever; a scheduling error fails the step.
				o.logger.ErrorContext(ctx, "schedule step", slog.String("step_id", stepID), slog.Any("error", err))
				o.failStep(ctx, st, step, time.Time{}, err)
				continue
			}

			wg.Add(1)
			if submitErr := o.pool.Submit(ctx, func(ctx context.Context) error {
				defer wg.Done()
				o.executeStep(ctx, wf, step, st, completedResults)
				return nil
			}); submitErr != nil {
				wg.Done()
				o.skipStep(ctx, st)
			}
		}
		wg.Wait()
		rounds++
		round++

		if r.paused.Load() {
			return o.finishPaused(ctx, wf, start, rounds, states)
		}
	}
}

// executeStep drives one step from scheduled to a terminal state. Failures
// are recorded on the step, never propagated: a failed step must not abort
// the round or independent branches.
func (o *Orchestrator) executeStep(ctx context.Context, wf *store.Workflow, step *schema.StepDefinition, st *store.StepState, completed map[string]any) {
	ctx = logging.WithStepID(ctx, step.ID)

	// Condition guard: false means skipped, not failed.
	if step.Condition != "" {
		scope := map[string]any{
			"steps":    completed,
			"params":   step.Parameters,
			"workflow": map[string]any{"id": wf.ID, "name": wf.Name},
		}
		ok, err := o.conditions.EvaluateBool(ctx, step.Condition, scope)
		if err != nil {
			o.failStep(ctx, st, step, time.Time{}, err)
			return
		}
		if !ok {
			o.logger.InfoContext(ctx, "step condition false, skipping")
			o.skipStep(ctx, st)
			return
		}
	}

	ex, err := o.registry.Get(step.ExecutorType)
	if err != nil {
		// Missing executor type is a step-level failure, not a crash.
		o.failStep(ctx, st, step, time.Time{}, err)
		return
	}

	if err := o.stepFSM.Transition(ctx, st.WorkflowID, st.StepID, st.Status, schema.StepStatusRunning); err != nil {
		o.failStep(ctx, st, step, time.Time{}, err)
		return
	}
	started := time.Now().UTC()
	st.Status = schema.StepStatusRunning
	st.StartedAt = &started
	o.persistStep(ctx, st)

	stepCtx := ctx
	var cancel context.CancelFunc
	if step.Timeout != "" {
		if d, perr := time.ParseDuration(step.Timeout); perr == nil && d > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
	}

	input := executors.Input{
		WorkflowID: wf.ID,
		StepID:     step.ID,
		Params:     step.Parameters,
		Steps:      dependencyResults(step, completed),
	}

	out, execErr := ex.Execute(stepCtx, input)
	if execErr != nil {
		if stepCtx.Err() == context.DeadlineExceeded {
			execErr = schema.NewErrorf(schema.ErrCodeTimeout, "step timed out after %s", step.Timeout).
				WithStep(step.ID).WithCause(execErr)
		}
		o.failStep(ctx, st, step, started, execErr)
		return
	}

	ended := time.Now().UTC()
	var result json.RawMessage
	if out != nil && out.Data != nil {
		if b, merr := json.Marshal(out.Data); merr == nil {
			result = b
		}
	}

	if err := o.stepFSM.Transition(ctx, st.WorkflowID, st.StepID, schema.StepStatusRunning, schema.StepStatusCompleted); err != nil {
		o.logger.ErrorContext(ctx, "complete step transition", slog.Any("error", err))
	}
	st.Status = schema.StepStatusCompleted
	st.Result = result
	st.CompletedAt = &ended
	st.DurationMs = ended.Sub(started).Milliseconds()
	o.persistStep(ctx, st)
	o.collector.StepFinished(step.ExecutorType, string(schema.StepStatusCompleted), ended.Sub(started))
	o.logger.InfoContext(ctx, "step completed", slog.Int64("duration_ms", st.DurationMs))
}

// failStep records a step failure. started may be zero when the step never
// reached running (condition error, unknown executor type, scheduling error).
func (o *Orchestrator) failStep(ctx context.Context, st *store.StepState, step *schema.StepDefinition, started time.Time, cause error) {
	now := time.Now().UTC()

	// Walk the FSM to failed through whatever states remain.
	if st.Status == schema.StepStatusPending {
		if err := o.stepFSM.Transition(ctx, st.WorkflowID, st.StepID, st.Status, schema.StepStatusScheduled); err == nil {
			st.Status = schema.StepStatusScheduled
		}
	}
	if st.Status == schema.StepStatusScheduled {
		if err := o.stepFSM.Transition(ctx, st.WorkflowID, st.StepID, st.Status, schema.StepStatusRunning); err == nil {
			st.Status = schema.StepStatusRunning
		}
	}
	if err := o.stepFSM.Transition(ctx, st.WorkflowID, st.StepID, st.Status, schema.StepStatusFailed); err != nil {
		o.logger.ErrorContext(ctx, "fail step transition", slog.Any("error", err))
	}

	st.Status = schema.StepStatusFailed
	st.Error = cause.Error()
	st.CompletedAt = &now
	if !started.IsZero() {
		if st.StartedAt == nil {
			st.StartedAt = &started
		}
		st.DurationMs = now.Sub(started).Milliseconds()
	}
	o.persistStep(ctx, st)
	o.collector.StepFinished(step.ExecutorType, string(schema.StepStatusFailed), time.Duration(st.DurationMs)*time.Millisecond)
	o.logger.WarnContext(ctx, "step failed", slog.String("error", cause.Error()))
}

// skipStep transitions a pending or scheduled step to skipped.
func (o *Orchestrator) skipStep(ctx context.Context, st *store.StepState) {
	if !CanSkip(st.Status) {
		return
	}
	if err := o.stepFSM.Transition(ctx, st.WorkflowID, st.StepID, st.Status, schema.StepStatusSkipped); err != nil {
		o.logger.ErrorContext(ctx, "skip step transition", slog.Any("error", err))
		return
	}
	now := time.Now().UTC()
	st.Status = schema.StepStatusSkipped
	st.CompletedAt = &now
	o.persistStep(ctx, st)
}

func (o *Orchestrator) markScheduled(ctx context.Context, st *store.StepState, round int) error {
	if err := o.stepFSM.Transition(ctx, st.WorkflowID, st.StepID, st.Status, schema.StepStatusScheduled); err != nil {
		return err
	}
	st.Status = schema.StepStatusScheduled
	st.Round = round
	o.persistStep(ctx, st)
	return nil
}

// --- Finish paths ---

func (o *Orchestrator) finishCompleted(ctx context.Context, wf *store.Workflow, states map[string]*store.StepState, start time.Time, rounds int) (*RunResult, error) {
	return o.finalize(ctx, wf, states, start, rounds, schema.WorkflowStatusCompleted, nil)
}

func (o *Orchestrator) finishDeadlocked(ctx context.Context, wf *store.Workflow, states map[string]*store.StepState, statuses map[string]schema.StepStatus, start time.Time, rounds int) (*RunResult, error) {
	dErr := DeadlockError(&wf.Definition, statuses)
	o.logger.WarnContext(ctx, "workflow deadlocked", slog.Any("details", dErr.Details))
	return o.finalize(ctx, wf, states, start, rounds, schema.WorkflowStatusFailed, dErr)
}

func (o *Orchestrator) finishCancelled(ctx context.Context, wf *store.Workflow, r *run, states map[string]*store.StepState, start time.Time, rounds int) (*RunResult, error) {
	// This path is reached with the caller's context already cancelled; the
	// terminal writes must still land or the workflow is stranded in running.
	ctx = context.WithoutCancel(ctx)
	reason, _ := r.reason.Load().(string)
	if reason == "" {
		reason = "cancelled by caller"
	}
	for _, st := range states {
		o.skipStep(ctx, st)
	}
	cErr := schema.NewError(schema.ErrCodeCancelled, reason)
	return o.finalize(ctx, wf, states, start, rounds, schema.WorkflowStatusCancelled, cErr)
}

func (o *Orchestrator) finishPaused(ctx context.Context, wf *store.Workflow, start time.Time, rounds int, states map[string]*store.StepState) (*RunResult, error) {
	if err := o.wfFSM.Transition(ctx, wf.ID, schema.WorkflowStatusRunning, schema.WorkflowStatusPaused); err != nil {
		return nil, err
	}
	if err := o.store.UpdateWorkflow(ctx, wf.ID, store.WorkflowUpdate{Status: statusPtr(schema.WorkflowStatusPaused)}); err != nil {
		return nil, err
	}
	o.collector.WorkflowFinished(string(schema.WorkflowStatusPaused), time.Since(start), rounds)
	o.logger.InfoContext(ctx, "workflow paused", slog.Int("rounds", rounds))
	return &RunResult{
		WorkflowID: wf.ID,
		Status:     schema.WorkflowStatusPaused,
		StartedAt:  start,
		Duration:   time.Since(start),
		Rounds:     rounds,
		Steps:      sortedStates(states),
	}, nil
}

// finalize moves the workflow to its terminal status, appends the execution
// record, and builds the run result.
func (o *Orchestrator) finalize(ctx context.Context, wf *store.Workflow, states map[string]*store.StepState, start time.Time, rounds int, status schema.WorkflowStatus, cause *schema.FlowError) (*RunResult, error) {
	if err := o.wfFSM.Transition(ctx, wf.ID, schema.WorkflowStatusRunning, status); err != nil {
		return nil, err
	}

	ended := time.Now().UTC()
	update := store.WorkflowUpdate{Status: &status, CompletedAt: &ended}
	if cause != nil {
		if b, err := json.Marshal(cause); err == nil {
			update.Error = b
		}
	}
	if err := o.store.UpdateWorkflow(ctx, wf.ID, update); err != nil {
		return nil, err
	}

	o.appendRecord(ctx, wf.ID, status, states, start, ended)
	o.collector.WorkflowFinished(string(status), ended.Sub(start), rounds)
	o.logger.InfoContext(ctx, "workflow finished",
		slog.String("status", string(status)), slog.Int("rounds", rounds),
		slog.Int64("duration_ms", ended.Sub(start).Milliseconds()))

	return &RunResult{
		WorkflowID: wf.ID,
		Status:     status,
		Err:        cause,
		StartedAt:  start,
		Duration:   ended.Sub(start),
		Rounds:     rounds,
		Steps:      sortedStates(states),
	}, nil
}

// appendRecord writes the append-only summary consumed by monitor/optimizer.
func (o *Orchestrator) appendRecord(ctx context.Context, workflowID string, status schema.WorkflowStatus, states map[string]*store.StepState, start, ended time.Time) {
	completed := 0
	results := make(map[string]any, len(states))
	for id, st := range states {
		entry := map[string]any{"status": string(st.Status)}
		switch st.Status {
		case schema.StepStatusCompleted:
			completed++
			if len(st.Result) > 0 {
				entry["result"] = json.RawMessage(st.Result)
			}
		case schema.StepStatusFailed:
			entry["error"] = st.Error
		}
		results[id] = entry
	}
	payload, _ := json.Marshal(results)

	rec := &store.ExecutionRecord{
		WorkflowID:     workflowID,
		Status:         status,
		DurationMs:     ended.Sub(start).Milliseconds(),
		StepsCompleted: completed,
		StepResults:    payload,
		RecordedAt:     ended,
	}
	if err := o.store.AppendExecutionRecord(ctx, rec); err != nil {
		o.logger.ErrorContext(ctx, "append execution record", slog.Any("error", err))
	}
}

// --- Cancel / Pause ---

// Cancel requests cooperative cancellation. For an in-flight run, in-flight
// steps finish and their results are recorded; nothing new is dispatched.
// A pending or paused workflow is cancelled directly.
func (o *Orchestrator) Cancel(ctx context.Context, workflowID string) error {
	o.mu.Lock()
	if r, ok := o.runs[workflowID]; ok {
		r.reason.Store("cancelled by caller")
		r.cancelled.Store(true)
		o.mu.Unlock()
		o.logger.InfoContext(logging.WithWorkflowID(ctx, workflowID), "cancellation requested")
		return nil
	}
	o.mu.Unlock()

	wf, err := o.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	if err := o.wfFSM.Transition(ctx, workflowID, wf.Status, schema.WorkflowStatusCancelled); err != nil {
		return err
	}

	states, err := o.store.ListStepStates(ctx, workflowID)
	if err != nil {
		return err
	}
	for _, st := range states {
		o.skipStep(ctx, st)
	}

	ended := time.Now().UTC()
	return o.store.UpdateWorkflow(ctx, workflowID, store.WorkflowUpdate{
		Status:      statusPtr(schema.WorkflowStatusCancelled),
		CompletedAt: &ended,
	})
}

// Pause asks an in-flight run to stop dispatching after the current round.
func (o *Orchestrator) Pause(ctx context.Context, workflowID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.runs[workflowID]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeConflict, "workflow %q is not running", workflowID)
	}
	r.paused.Store(true)
	return nil
}

// CloneAndExecute creates a fresh workflow from a stored definition and runs
// it. Used by the cron scheduler.
func (o *Orchestrator) CloneAndExecute(ctx context.Context, workflowID string) (*RunResult, error) {
	wf, err := o.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	def := wf.Definition
	id, err := o.CreateWorkflow(ctx, &def)
	if err != nil {
		return nil, err
	}
	return o.Execute(ctx, id)
}

// --- Helpers ---

// loadStates reads the step table, seeding pending entries for any steps
// missing from it.
func (o *Orchestrator) loadStates(ctx context.Context, wf *store.Workflow) (map[string]*store.StepState, error) {
	listed, err := o.store.ListStepStates(ctx, wf.ID)
	if err != nil {
		return nil, err
	}
	states := make(map[string]*store.StepState, len(wf.Definition.Steps))
	for _, st := range listed {
		states[st.StepID] = st
	}
	for i := range wf.Definition.Steps {
		id := wf.Definition.Steps[i].ID
		if _, ok := states[id]; !ok {
			st := &store.StepState{WorkflowID: wf.ID, StepID: id, Status: schema.StepStatusPending, Round: -1}
			if err := o.store.UpsertStepState(ctx, st); err != nil {
				return nil, err
			}
			states[id] = st
		}
	}
	return states, nil
}

func (o *Orchestrator) persistStep(ctx context.Context, st *store.StepState) {
	if err := o.store.UpsertStepState(ctx, st); err != nil {
		o.logger.ErrorContext(ctx, "persist step state", slog.String("step_id", st.StepID), slog.Any("error", err))
	}
}

func (o *Orchestrator) runTimeout(def *schema.WorkflowDefinition) time.Duration {
	if def.Timeout != "" {
		if d, err := time.ParseDuration(def.Timeout); err == nil && d > 0 {
			return d
		}
	}
	return o.cfg.RunTimeout
}

func statusMap(states map[string]*store.StepState) map[string]schema.StepStatus {
	out := make(map[string]schema.StepStatus, len(states))
	for id, st := range states {
		out[id] = st.Status
	}
	return out
}

// resultValues decodes the results of completed steps.
func resultValues(states map[string]*store.StepState) map[string]any {
	out := make(map[string]any)
	for id, st := range states {
		if st.Status != schema.StepStatusCompleted {
			continue
		}
		var v any
		if len(st.Result) > 0 {
			if err := json.Unmarshal(st.Result, &v); err != nil {
				v = string(st.Result)
			}
		}
		out[id] = v
	}
	return out
}

// dependencyResults narrows the completed-results map to the step's own
// dependencies.
func dependencyResults(step *schema.StepDefinition, completed map[string]any) map[string]any {
	if len(step.DependsOn) == 0 {
		return nil
	}
	out := make(map[string]any, len(step.DependsOn))
	for _, dep := range step.DependsOn {
		if v, ok := completed[dep]; ok {
			out[dep] = v
		}
	}
	return out
}

// nextRound returns the round index to dispatch next, so a resumed run
// continues numbering where it stopped.
func nextRound(states map[string]*store.StepState) int {
	max := -1
	for _, st := range states {
		if st.Round > max {
			max = st.Round
		}
	}
	return max + 1
}

func sortedStates(states map[string]*store.StepState) []*store.StepState {
	out := make([]*store.StepState, 0, len(states))
	for _, st := range states {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepID < out[j].StepID })
	return out
}

func statusPtr(s schema.WorkflowStatus) *schema.WorkflowStatus { return &s }
