package planner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/polystore/internal/algebra"
)

// ErrorCode categorizes planning failures.
type ErrorCode string

const (
	// ErrCodeUnsupported means no rule chain converts a node to the target.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED"

	// ErrCodeCancelled means the context was cancelled between node
	// conversions.
	ErrCodeCancelled ErrorCode = "CANCELLED"

	// ErrCodeBudgetExceeded means the planning call applied more rules than
	// its budget allows.
	ErrCodeBudgetExceeded ErrorCode = "BUDGET_EXCEEDED"

	// ErrCodeRuleFailed means a matching rule returned an error or a node in
	// the wrong convention.
	ErrCodeRuleFailed ErrorCode = "RULE_FAILED"
)

// PlanningError reports a failed conversion.
type PlanningError struct {
	Code ErrorCode

	// NodeKind is the kind of the node that could not be converted.
	NodeKind algebra.Op

	// Target is the convention the node was asked for.
	Target algebra.Convention

	// Entity names the entities scanned below the node, comma separated.
	Entity string

	// Rule is set for RULE_FAILED.
	Rule string

	Message string

	// Cause is the underlying error, if any.
	Cause error

	// depth is the conversion depth the error was raised at. Deeper errors
	// are more specific.
	depth int
}

func (e *PlanningError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: cannot convert %s", e.Code, e.NodeKind)
	if e.Entity != "" {
		fmt.Fprintf(&b, " of %s", e.Entity)
	}
	fmt.Fprintf(&b, " to %s", e.Target)
	if e.Rule != "" {
		fmt.Fprintf(&b, " (rule %s)", e.Rule)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *PlanningError) Unwrap() error {
	return e.Cause
}

// aborts reports whether the error ends the whole planning call.
func (e *PlanningError) aborts() bool {
	return e.Code == ErrCodeCancelled || e.Code == ErrCodeBudgetExceeded
}

// IsUnsupported reports whether err is an UNSUPPORTED planning error.
func IsUnsupported(err error) bool {
	return hasCode(err, ErrCodeUnsupported)
}

// IsCancelled reports whether planning stopped because its context ended.
func IsCancelled(err error) bool {
	return hasCode(err, ErrCodeCancelled)
}

// IsBudgetExceeded reports whether planning ran out of rule applications.
func IsBudgetExceeded(err error) bool {
	return hasCode(err, ErrCodeBudgetExceeded)
}

func hasCode(err error, code ErrorCode) bool {
	var pe *PlanningError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

func newPlanningError(code ErrorCode, n algebra.Node, target algebra.Convention, depth int, format string, args ...any) *PlanningError {
	return &PlanningError{
		Code:     code,
		NodeKind: n.Op(),
		Target:   target,
		Entity:   scannedEntities(n),
		Message:  fmt.Sprintf(format, args...),
		depth:    depth,
	}
}

// scannedEntities lists the tables read under n in visit order.
func scannedEntities(n algebra.Node) string {
	var names []string
	seen := map[string]bool{}
	algebra.Walk(n, func(x algebra.Node) bool {
		if s, ok := x.(*algebra.Scan); ok && !seen[s.Entity().Name] {
			seen[s.Entity().Name] = true
			names = append(names, s.Entity().Name)
		}
		return true
	})
	return strings.Join(names, ",")
}
