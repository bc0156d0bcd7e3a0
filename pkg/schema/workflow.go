package schema

// WorkflowDefinition is the user-submitted description of a workflow.
// Step order is significant: the scheduler dispatches ready steps in
// declaration order within each round.
type WorkflowDefinition struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Steps       []StepDefinition `json:"steps"`
	// Timeout is an optional whole-run deadline (Go duration string).
	// Expiry behaves like cancellation.
	Timeout  string         `json:"timeout,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// StepDefinition describes one unit of work inside a workflow.
type StepDefinition struct {
	ID           string         `json:"id"`
	Name         string         `json:"name,omitempty"`
	ExecutorType string         `json:"executor_type"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	DependsOn    []string       `json:"depends_on,omitempty"`
	// Condition is an optional CEL expression evaluated just before
	// dispatch. A false result skips the step.
	Condition string `json:"condition,omitempty"`
	// Timeout bounds this step's execution (Go duration string).
	Timeout string `json:"timeout,omitempty"`
}

// StepByID returns the step with the given id, or nil.
func (d *WorkflowDefinition) StepByID(id string) *StepDefinition {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return &d.Steps[i]
		}
	}
	return nil
}

// DisplayName returns the human-facing name of the step, falling back
// to its id.
func (s *StepDefinition) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}
