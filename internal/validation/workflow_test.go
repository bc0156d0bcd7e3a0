package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/stepflow/pkg/schema"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func validDef() *schema.WorkflowDefinition {
	return &schema.WorkflowDefinition{
		Name: "deploy",
		Steps: []schema.StepDefinition{
			{ID: "build", ExecutorType: "shell.run"},
			{ID: "test", ExecutorType: "shell.run", DependsOn: []string{"build"}},
			{ID: "ship", ExecutorType: "http.request", DependsOn: []string{"test"}, Timeout: "30s"},
		},
	}
}

func TestValidate_ValidDefinition(t *testing.T) {
	v := newValidator(t)
	assert.NoError(t, v.ValidateDefinition(validDef()))
}

func TestValidate_NilDefinition(t *testing.T) {
	v := newValidator(t)
	err := v.ValidateDefinition(nil)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestValidate_NoSteps(t *testing.T) {
	v := newValidator(t)
	err := v.ValidateDefinition(&schema.WorkflowDefinition{})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestValidate_MissingStepID(t *testing.T) {
	v := newValidator(t)
	err := v.ValidateDefinition(&schema.WorkflowDefinition{
		Steps: []schema.StepDefinition{{ExecutorType: "noop"}},
	})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestValidate_MissingExecutorType(t *testing.T) {
	v := newValidator(t)
	err := v.ValidateDefinition(&schema.WorkflowDefinition{
		Steps: []schema.StepDefinition{{ID: "a"}},
	})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestValidate_DuplicateStepIDs(t *testing.T) {
	v := newValidator(t)
	err := v.ValidateDefinition(&schema.WorkflowDefinition{
		Steps: []schema.StepDefinition{
			{ID: "a", ExecutorType: "noop"},
			{ID: "a", ExecutorType: "noop"},
		},
	})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
	assert.Contains(t, err.Error(), "duplicate")
}

func TestValidate_DanglingDependency(t *testing.T) {
	v := newValidator(t)
	err := v.ValidateDefinition(&schema.WorkflowDefinition{
		Steps: []schema.StepDefinition{
			{ID: "a", ExecutorType: "noop", DependsOn: []string{"ghost"}},
		},
	})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
	assert.Contains(t, err.Error(), "ghost")
}

func TestValidate_CyclesAccepted(t *testing.T) {
	v := newValidator(t)

	// Cycles are not a creation-time error; they surface at runtime as a
	// deadlock.
	err := v.ValidateDefinition(&schema.WorkflowDefinition{
		Steps: []schema.StepDefinition{
			{ID: "x", ExecutorType: "noop", DependsOn: []string{"y"}},
			{ID: "y", ExecutorType: "noop", DependsOn: []string{"x"}},
		},
	})
	assert.NoError(t, err)
}

func TestValidate_SelfDependencyAccepted(t *testing.T) {
	v := newValidator(t)
	err := v.ValidateDefinition(&schema.WorkflowDefinition{
		Steps: []schema.StepDefinition{
			{ID: "a", ExecutorType: "noop", DependsOn: []string{"a"}},
		},
	})
	assert.NoError(t, err, "a self-loop is a cycle; it deadlocks at runtime")
}

func TestValidate_BadTimeoutFormat(t *testing.T) {
	v := newValidator(t)

	def := validDef()
	def.Timeout = "five minutes"
	err := v.ValidateDefinition(def)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	def = validDef()
	def.Steps[0].Timeout = "10"
	err = v.ValidateDefinition(def)
	require.Error(t, err)
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	v := newValidator(t)
	err := v.ValidateDefinition(&schema.WorkflowDefinition{
		Steps: []schema.StepDefinition{
			{ID: "", ExecutorType: ""},
		},
	})
	require.Error(t, err)

	var fe *schema.FlowError
	require.ErrorAs(t, err, &fe)
	assert.NotEmpty(t, fe.Details["violations"])
}
