package harness

import "github.com/roach88/polystore/internal/algebra"

// Result is the outcome of one scenario.
type Result struct {
	Scenario  string `json:"scenario"`
	Target    string `json:"target"`
	RequestID string `json:"request_id"`

	// Pass is true when every assertion holds.
	Pass bool `json:"pass"`

	// Explain is the converted plan, empty when planning failed.
	Explain string `json:"explain,omitempty"`

	// Conventions lists the conventions of the converted plan in walk order.
	Conventions []string `json:"conventions,omitempty"`

	// Code and Error describe a planning failure.
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`

	// Errors holds the failed assertions.
	Errors []string `json:"errors,omitempty"`

	plan algebra.Node
}

// NewResult returns a passing result for a scenario.
func NewResult(s *Scenario) *Result {
	return &Result{
		Scenario: s.Name,
		Target:   s.Target,
		Pass:     true,
		Errors:   []string{},
	}
}

// AddError records a failed assertion and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Plan returns the converted tree, or nil when planning failed.
func (r *Result) Plan() algebra.Node {
	return r.plan
}
