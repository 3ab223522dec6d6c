package rex

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/polystore/internal/types"
)

// ProgramValidationError reports why a program could not be built.
// Index is the failing output field, or -1 when the failure concerns the
// program as a whole (arity or condition).
type ProgramValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ProgramValidationError) Error() string {
	if e.Index < 0 {
		return "invalid program: " + e.Reason
	}
	return fmt.Sprintf("invalid program: field %d (%s): %s", e.Index, e.Field, e.Reason)
}

// IsProgramValidation reports whether err is a ProgramValidationError.
func IsProgramValidation(err error) bool {
	var pe *ProgramValidationError
	return errors.As(err, &pe)
}

// Program is an ordered list of projections, one per output field, plus an
// optional boolean condition, all evaluated against one input row.
// Programs are only built by CreateProgram and never change afterwards.
type Program struct {
	input     types.RowType
	projects  []Node
	condition Node
	output    types.RowType
}

// CreateProgram validates and builds a program.
//
// The number of projections must equal the number of output fields, every
// input reference must be in range and typed like its input field, each
// projection must be assignable to its output field and the condition, if
// any, must be boolean.
func CreateProgram(input types.RowType, projects []Node, condition Node, output types.RowType, b *Builder) (*Program, error) {
	if b == nil {
		b = NewBuilder()
	}
	if len(projects) != output.Arity() {
		return nil, &ProgramValidationError{
			Index:  -1,
			Reason: fmt.Sprintf("arity mismatch: output row type has %d fields but %d projections", output.Arity(), len(projects)),
		}
	}

	for i, p := range projects {
		field := output.Field(i)
		t, err := b.TypeOf(p, input)
		if err != nil {
			return nil, &ProgramValidationError{Index: i, Field: field.Name, Reason: err.Error()}
		}
		if !t.AssignableTo(field.Type) {
			return nil, &ProgramValidationError{
				Index:  i,
				Field:  field.Name,
				Reason: fmt.Sprintf("%s of type %s is not assignable to %s", p, t, field.Type),
			}
		}
	}

	if condition != nil {
		t, err := b.TypeOf(condition, input)
		if err != nil {
			return nil, &ProgramValidationError{Index: -1, Reason: "condition: " + err.Error()}
		}
		if !isBooleanish(t) {
			return nil, &ProgramValidationError{Index: -1, Reason: fmt.Sprintf("condition must be BOOLEAN, got %s", t)}
		}
	}

	return &Program{
		input:     input,
		projects:  append([]Node(nil), projects...),
		condition: condition,
		output:    output,
	}, nil
}

// IdentityProgram returns the program that passes every input field through.
func IdentityProgram(row types.RowType) *Program {
	projects := make([]Node, row.Arity())
	for i, f := range row.Fields {
		projects[i] = InputRef{Index: i, T: f.Type}
	}
	return &Program{input: row, projects: projects, output: row}
}

// Input returns the input row type.
func (p *Program) Input() types.RowType { return p.input }

// Output returns the output row type.
func (p *Program) Output() types.RowType { return p.output }

// Projects returns a copy of the projections.
func (p *Program) Projects() []Node { return append([]Node(nil), p.projects...) }

// Condition returns the filter condition, or nil.
func (p *Program) Condition() Node { return p.condition }

// IsIdentity reports whether the program passes its input through unchanged.
func (p *Program) IsIdentity() bool {
	if p.condition != nil || len(p.projects) != p.input.Arity() {
		return false
	}
	for i, n := range p.projects {
		r, ok := n.(InputRef)
		if !ok || r.Index != i {
			return false
		}
	}
	return p.output.Equal(p.input)
}

// IsProjectOnly reports whether every projection is a bare input reference.
func (p *Program) IsProjectOnly() bool {
	for _, n := range p.projects {
		if _, ok := n.(InputRef); !ok {
			return false
		}
	}
	return true
}

// Merge returns the program equivalent to running bottom and then top over
// bottom's output.
func Merge(bottom, top *Program, b *Builder) (*Program, error) {
	if !top.input.Equal(bottom.output) {
		return nil, fmt.Errorf("merge programs: top input %s does not match bottom output %s", top.input, bottom.output)
	}
	projects := make([]Node, len(top.projects))
	for i, n := range top.projects {
		projects[i] = Substitute(n, bottom.projects)
	}
	var topCond Node
	if top.condition != nil {
		topCond = Substitute(top.condition, bottom.projects)
	}
	if b == nil {
		b = NewBuilder()
	}
	cond, err := b.And(bottom.condition, topCond)
	if err != nil {
		return nil, fmt.Errorf("merge programs: %w", err)
	}
	return CreateProgram(bottom.input, projects, cond, top.output, b)
}

// String renders the program as "[proj, ...] WHERE cond".
func (p *Program) String() string {
	parts := make([]string, len(p.projects))
	for i, n := range p.projects {
		parts[i] = p.output.Field(i).Name + "=" + n.String()
	}
	s := "[" + strings.Join(parts, ", ") + "]"
	if p.condition != nil {
		s += " WHERE " + p.condition.String()
	}
	return s
}
