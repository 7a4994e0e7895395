package harness

import "github.com/roach88/flowtree/internal/ir"

// Outcome of a successful step in a TraceEvent.
const OutcomeOK = "ok"

// TraceEvent records one executed step.
type TraceEvent struct {
	Step int            `json:"step"`
	Op   string         `json:"op"`
	Args map[string]any `json:"args"`

	// Outcome is OutcomeOK or the engine / FlowResult error code.
	Outcome string `json:"outcome"`

	// Message is the confirmation text of deletes and flow-level operations.
	Message string `json:"message,omitempty"`

	// ID is the document id assigned by insert_message.
	ID string `json:"id,omitempty"`

	// Count is the removed count of delete_messages_by_flow.
	Count *int `json:"count,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step expectation, invariant check and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step.
	Trace []TraceEvent `json:"trace"`

	// Final is the tree after the last step, in identifier order.
	Final []ir.Message `json:"final"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Final:  []ir.Message{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Lines renders the final tree as "identifier=content" lines.
func (r *Result) Lines() []string {
	out := make([]string, len(r.Final))
	for i, m := range r.Final {
		out[i] = m.Identifier.String() + "=" + m.Content.String()
	}
	return out
}
