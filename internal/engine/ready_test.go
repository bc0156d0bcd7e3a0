package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/stepflow/pkg/schema"
)

func diamondDef() *schema.WorkflowDefinition {
	return &schema.WorkflowDefinition{
		Name: "diamond",
		Steps: []schema.StepDefinition{
			{ID: "a", ExecutorType: "noop"},
			{ID: "b", ExecutorType: "noop", DependsOn: []string{"a"}},
			{ID: "c", ExecutorType: "noop", DependsOn: []string{"a"}},
			{ID: "d", ExecutorType: "noop", DependsOn: []string{"b", "c"}},
		},
	}
}

func allPending(def *schema.WorkflowDefinition) map[string]schema.StepStatus {
	out := make(map[string]schema.StepStatus, len(def.Steps))
	for i := range def.Steps {
		out[def.Steps[i].ID] = schema.StepStatusPending
	}
	return out
}

// --- ReadySet ---

func TestReadySet_RootsOnly(t *testing.T) {
	def := diamondDef()
	ready := ReadySet(def, allPending(def))
	assert.Equal(t, []string{"a"}, ready)
}

func TestReadySet_FanOutAfterRoot(t *testing.T) {
	def := diamondDef()
	statuses := allPending(def)
	statuses["a"] = schema.StepStatusCompleted

	ready := ReadySet(def, statuses)
	assert.Equal(t, []string{"b", "c"}, ready, "independent steps become ready together, in definition order")
}

func TestReadySet_JoinWaitsForAllDeps(t *testing.T) {
	def := diamondDef()
	statuses := allPending(def)
	statuses["a"] = schema.StepStatusCompleted
	statuses["b"] = schema.StepStatusCompleted
	statuses["c"] = schema.StepStatusRunning

	assert.Empty(t, ReadySet(def, statuses), "join step must wait for every dependency")

	statuses["c"] = schema.StepStatusCompleted
	assert.Equal(t, []string{"d"}, ReadySet(def, statuses))
}

func TestReadySet_Pure(t *testing.T) {
	def := diamondDef()
	statuses := allPending(def)
	statuses["a"] = schema.StepStatusCompleted

	first := ReadySet(def, statuses)
	second := ReadySet(def, statuses)
	assert.Equal(t, first, second, "same inputs must yield the same ready set")
	assert.Equal(t, schema.StepStatusPending, statuses["b"], "resolver must not mutate its inputs")
}

func TestReadySet_FailedDepNeverSatisfies(t *testing.T) {
	def := diamondDef()
	statuses := allPending(def)
	statuses["a"] = schema.StepStatusFailed

	assert.Empty(t, ReadySet(def, statuses))
}

func TestReadySet_SkippedDepNeverSatisfies(t *testing.T) {
	def := diamondDef()
	statuses := allPending(def)
	statuses["a"] = schema.StepStatusSkipped

	assert.Empty(t, ReadySet(def, statuses))
}

func TestReadySet_CycleYieldsNothing(t *testing.T) {
	def := &schema.WorkflowDefinition{
		Steps: []schema.StepDefinition{
			{ID: "x", ExecutorType: "noop", DependsOn: []string{"y"}},
			{ID: "y", ExecutorType: "noop", DependsOn: []string{"x"}},
		},
	}
	assert.Empty(t, ReadySet(def, allPending(def)))
}

// --- Unresolved ---

func TestUnresolved(t *testing.T) {
	def := diamondDef()
	statuses := allPending(def)
	statuses["a"] = schema.StepStatusCompleted
	statuses["b"] = schema.StepStatusFailed
	statuses["c"] = schema.StepStatusRunning

	assert.Equal(t, []string{"c", "d"}, Unresolved(def, statuses))
}

// --- DeadlockError ---

func TestDeadlockError_Cycle(t *testing.T) {
	def := &schema.WorkflowDefinition{
		Steps: []schema.StepDefinition{
			{ID: "x", ExecutorType: "noop", DependsOn: []string{"y"}},
			{ID: "y", ExecutorType: "noop", DependsOn: []string{"x"}},
		},
	}
	err := DeadlockError(def, allPending(def))
	require.NotNil(t, err)
	assert.Equal(t, schema.ErrCodeDeadlock, err.Code)
	assert.Contains(t, err.Message, "dependency cycle")
	assert.Equal(t, []string{"x", "y"}, err.Details["blocked_steps"])
	assert.Empty(t, err.Details["blocked_by_failure"])
	assert.Empty(t, err.Details["failed_steps"])
}

func TestDeadlockError_BlockedByFailure(t *testing.T) {
	def := diamondDef()
	statuses := allPending(def)
	statuses["a"] = schema.StepStatusFailed

	err := DeadlockError(def, statuses)
	require.NotNil(t, err)
	assert.Equal(t, schema.ErrCodeDeadlock, err.Code)
	assert.Contains(t, err.Message, "failed or skipped dependencies")
	assert.Equal(t, []string{"a"}, err.Details["failed_steps"])
	assert.Equal(t, []string{"b", "c", "d"}, err.Details["blocked_by_failure"], "transitive dependents are blocked too")
	assert.Empty(t, err.Details["blocked_steps"])
}

func TestDeadlockError_MixedCauses(t *testing.T) {
	def := &schema.WorkflowDefinition{
		Steps: []schema.StepDefinition{
			{ID: "dead", ExecutorType: "noop"},
			{ID: "waiting", ExecutorType: "noop", DependsOn: []string{"dead"}},
			{ID: "x", ExecutorType: "noop", DependsOn: []string{"y"}},
			{ID: "y", ExecutorType: "noop", DependsOn: []string{"x"}},
		},
	}
	statuses := allPending(def)
	statuses["dead"] = schema.StepStatusFailed

	err := DeadlockError(def, statuses)
	require.NotNil(t, err)
	assert.Equal(t, []string{"waiting"}, err.Details["blocked_by_failure"])
	assert.Equal(t, []string{"x", "y"}, err.Details["blocked_steps"])
}

// --- FailedSteps ---

func TestFailedSteps(t *testing.T) {
	def := diamondDef()
	statuses := allPending(def)
	assert.Empty(t, FailedSteps(def, statuses))

	statuses["b"] = schema.StepStatusFailed
	statuses["d"] = schema.StepStatusFailed
	assert.Equal(t, []string{"b", "d"}, FailedSteps(def, statuses))
}
