package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rendis/stepflow/pkg/schema"
)

// MemoryStore is an in-memory Store used for tests and ephemeral runs.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[string]*Workflow
	events    map[string][]*Event // keyed by workflow id, in sequence order
	steps     map[string]map[string]*StepState
	records   map[string][]*ExecutionRecord
	jobs      map[string]*ScheduledJob
	eventID   int64
	recordID  int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows: make(map[string]*Workflow),
		events:    make(map[string][]*Event),
		steps:     make(map[string]map[string]*StepState),
		records:   make(map[string][]*ExecutionRecord),
		jobs:      make(map[string]*ScheduledJob),
	}
}

var _ Store = (*MemoryStore)(nil)

// --- Workflows ---

func (m *MemoryStore) CreateWorkflow(_ context.Context, wf *Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workflows[wf.ID]; ok {
		return schema.NewErrorf(schema.ErrCodeConflict, "workflow %q already exists", wf.ID)
	}
	cp := *wf
	m.workflows[wf.ID] = &cp
	return nil
}

func (m *MemoryStore) GetWorkflow(_ context.Context, id string) (*Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wf, ok := m.workflows[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q not found", id)
	}
	cp := *wf
	return &cp, nil
}

func (m *MemoryStore) UpdateWorkflow(_ context.Context, id string, update WorkflowUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, ok := m.workflows[id]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q not found", id)
	}
	if update.Status != nil {
		wf.Status = *update.Status
	}
	if update.Error != nil {
		wf.Error = update.Error
	}
	if update.StartedAt != nil {
		wf.StartedAt = update.StartedAt
	}
	if update.CompletedAt != nil {
		wf.CompletedAt = update.CompletedAt
	}
	wf.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) ListWorkflows(_ context.Context, filter WorkflowFilter) ([]*Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Workflow
	for _, wf := range m.workflows {
		if filter.Status != nil && wf.Status != *filter.Status {
			continue
		}
		if filter.Since != nil && wf.CreatedAt.Before(*filter.Since) {
			continue
		}
		cp := *wf
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryStore) DeleteWorkflow(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workflows[id]; !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q not found", id)
	}
	delete(m.workflows, id)
	delete(m.events, id)
	delete(m.steps, id)
	delete(m.records, id)
	return nil
}

// --- Event log ---

func (m *MemoryStore) AppendEvent(_ context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventID++
	cp := *event
	cp.ID = m.eventID
	cp.Sequence = int64(len(m.events[event.WorkflowID]) + 1)
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now().UTC()
	}
	m.events[event.WorkflowID] = append(m.events[event.WorkflowID], &cp)
	return nil
}

func (m *MemoryStore) GetEvents(_ context.Context, workflowID string, since int64) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Event
	for _, ev := range m.events[workflowID] {
		if ev.Sequence > since {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- Step state ---

func (m *MemoryStore) UpsertStepState(_ context.Context, state *StepState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byStep, ok := m.steps[state.WorkflowID]
	if !ok {
		byStep = make(map[string]*StepState)
		m.steps[state.WorkflowID] = byStep
	}
	cp := *state
	byStep[state.StepID] = &cp
	return nil
}

func (m *MemoryStore) GetStepState(_ context.Context, workflowID, stepID string) (*StepState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.steps[workflowID][stepID]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "step %q not found in workflow %q", stepID, workflowID).WithStep(stepID)
	}
	cp := *st
	return &cp, nil
}

func (m *MemoryStore) ListStepStates(_ context.Context, workflowID string) ([]*StepState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*StepState
	for _, st := range m.steps[workflowID] {
		cp := *st
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepID < out[j].StepID })
	return out, nil
}

// --- Execution records ---

func (m *MemoryStore) AppendExecutionRecord(_ context.Context, rec *ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordID++
	cp := *rec
	cp.ID = m.recordID
	if cp.RecordedAt.IsZero() {
		cp.RecordedAt = time.Now().UTC()
	}
	m.records[rec.WorkflowID] = append(m.records[rec.WorkflowID], &cp)
	return nil
}

func (m *MemoryStore) ListExecutionRecords(_ context.Context, workflowID string, limit int) ([]*ExecutionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.records[workflowID]
	out := make([]*ExecutionRecord, 0, len(recs))
	// newest first
	for i := len(recs) - 1; i >= 0; i-- {
		cp := *recs[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// --- Scheduled jobs ---

func (m *MemoryStore) CreateScheduledJob(_ context.Context, job *ScheduledJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return schema.NewErrorf(schema.ErrCodeConflict, "scheduled job %q already exists", job.ID)
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *MemoryStore) GetScheduledJob(_ context.Context, id string) (*ScheduledJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "scheduled job %q not found", id)
	}
	cp := *job
	return &cp, nil
}

func (m *MemoryStore) UpdateScheduledJob(_ context.Context, id string, update ScheduledJobUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "scheduled job %q not found", id)
	}
	if update.Enabled != nil {
		job.Enabled = *update.Enabled
	}
	if update.LastRunAt != nil {
		job.LastRunAt = update.LastRunAt
	}
	if update.NextRunAt != nil {
		job.NextRunAt = update.NextRunAt
	}
	if update.LastRunStatus != "" {
		job.LastRunStatus = update.LastRunStatus
	}
	return nil
}

func (m *MemoryStore) ListScheduledJobs(_ context.Context, filter ScheduledJobFilter) ([]*ScheduledJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*ScheduledJob
	for _, job := range m.jobs {
		if filter.Enabled != nil && job.Enabled != *filter.Enabled {
			continue
		}
		cp := *job
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryStore) DeleteScheduledJob(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "scheduled job %q not found", id)
	}
	delete(m.jobs, id)
	return nil
}

// Migrate is a no-op for the in-memory store.
func (m *MemoryStore) Migrate(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
