// Package document provides the convention of document stores.
//
// Each adapter gets its own convention DOCUMENT_<name>. Scans run in the
// store, and so do calcs that only pick fields and filter on field equality.
// A converter rule hands the documents to ENUMERABLE. Compile renders a
// planned subtree as a canonical JSON find specification.
package document

import (
	"fmt"

	"github.com/roach88/polystore/internal/adapter"
	"github.com/roach88/polystore/internal/algebra"
	"github.com/roach88/polystore/internal/entity"
	"github.com/roach88/polystore/internal/planner"
	"github.com/roach88/polystore/internal/rex"
)

// Adapter is a document-store adapter.
type Adapter struct {
	info entity.Adapter
	conv algebra.Convention
}

// New returns the adapter for a document-type catalog record.
func New(info entity.Adapter) (adapter.Adapter, error) {
	if info.Type != entity.AdapterDocument {
		return nil, fmt.Errorf("document adapter requires type %q, got %q", entity.AdapterDocument, info.Type)
	}
	conv := algebra.Document(info.Name)
	if info.Convention != "" && info.Convention != string(conv) {
		return nil, fmt.Errorf("document adapter %q must use convention %s, got %s", info.Name, conv, info.Convention)
	}
	return &Adapter{info: info, conv: conv}, nil
}

func (a *Adapter) Info() entity.Adapter { return a.info }
func (a *Adapter) Convention() algebra.Convention { return a.conv }

func (a *Adapter) Rules() []planner.Rule {
	return []planner.Rule{
		adapter.ScanRule(a.info, a.conv),
		&planner.ConverterRule{
			Description: "DocumentFindRule(" + a.info.Name + ")",
			Source:      planner.Operand{Op: algebra.OpCalc, In: algebra.None},
			Target:      a.conv,
			Predicate: func(call *planner.Call) bool {
				return Pushable(call.Node.(*algebra.Calc).Program())
			},
			Fn: func(call *planner.Call) (algebra.Node, error) {
				return adapter.ConvertInputsTo(call, a.conv)
			},
		},
		adapter.ConverterRule(a.conv, algebra.Enumerable),
	}
}

// Pushable reports whether a find can evaluate p: every projection is a
// field reference and the condition is a conjunction of field = literal
// tests on non-float literals.
func Pushable(p *rex.Program) bool {
	if !p.IsProjectOnly() {
		return false
	}
	if p.Condition() == nil {
		return true
	}
	_, err := equalities(p.Condition())
	return err == nil
}

type equality struct {
	field int
	value any
}

func equalities(cond rex.Node) ([]equality, error) {
	c, ok := cond.(rex.Call)
	if !ok {
		return nil, fmt.Errorf("condition %s is not a call", cond)
	}
	switch c.Op {
	case rex.OpAnd:
		var out []equality
		for _, o := range c.Operands {
			eqs, err := equalities(o)
			if err != nil {
				return nil, err
			}
			out = append(out, eqs...)
		}
		return out, nil
	case rex.OpEquals:
		ref, lit, ok := refAndLiteral(c.Operands[0], c.Operands[1])
		if !ok {
			ref, lit, ok = refAndLiteral(c.Operands[1], c.Operands[0])
		}
		if !ok {
			return nil, fmt.Errorf("%s does not compare a field with a literal", c)
		}
		if _, isFloat := lit.Value.(float64); isFloat {
			return nil, fmt.Errorf("%s compares with a floating point literal", c)
		}
		return []equality{{field: ref.Index, value: lit.Value}}, nil
	}
	return nil, fmt.Errorf("operator %s cannot be pushed into a find", c.Op)
}

func refAndLiteral(a, b rex.Node) (rex.InputRef, rex.Literal, bool) {
	ref, ok := a.(rex.InputRef)
	if !ok {
		return rex.InputRef{}, rex.Literal{}, false
	}
	lit, ok := b.(rex.Literal)
	return ref, lit, ok
}
