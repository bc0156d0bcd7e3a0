package executors

import "context"

// Executor is a pluggable unit of work dispatched by the scheduler.
// Implementations must be safe for concurrent use: the scheduler may run
// the same executor for several steps within one round.
type Executor interface {
	Name() string
	Description() string
	Execute(ctx context.Context, input Input) (*Output, error)
}

// Input is the data handed to an executor at dispatch time. Params is the
// step's parameter map, passed through verbatim from the definition.
// Steps holds the results of completed dependency steps keyed by step ID.
type Input struct {
	WorkflowID string         `json:"workflow_id"`
	StepID     string         `json:"step_id"`
	Params     map[string]any `json:"params"`
	Steps      map[string]any `json:"steps,omitempty"`
}

// Output is the result of a successful execution.
type Output struct {
	Data map[string]any `json:"data,omitempty"`
}

// Info is a summary of a registered executor for listing.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
