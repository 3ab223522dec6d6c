package planner

import (
	"context"

	"github.com/roach88/polystore/internal/algebra"
	"github.com/roach88/polystore/internal/rex"
	"github.com/roach88/polystore/internal/snapshot"
)

// Operand selects the nodes a rule applies to.
type Operand struct {
	// Op is the node kind. Empty matches every kind.
	Op algebra.Op

	// In is the convention the node must be in. Empty means None.
	In algebra.Convention
}

func (o Operand) matches(n algebra.Node) bool {
	if o.Op != "" && o.Op != n.Op() {
		return false
	}
	return o.In.String() == n.Convention().String()
}

// Rule converts a node from one convention to another.
//
// Rules with Out == None are normalization rules: they rewrite a logical node
// into another logical node (Project into Calc, say) that further rules can
// match.
type Rule interface {
	Name() string
	Operand() Operand
	Out() algebra.Convention

	// Matches is consulted after the operand matched. It may read the
	// snapshot but must not modify anything.
	Matches(call *Call) bool

	// Convert builds the replacement node. Inputs are converted through
	// call.ConvertInput; the input tree is never modified.
	Convert(call *Call) (algebra.Node, error)
}

// ConverterRule is a declarative Rule.
type ConverterRule struct {
	Description string
	Source      Operand
	Target      algebra.Convention

	// Predicate narrows the operand match. Nil accepts every node.
	Predicate func(call *Call) bool

	Fn func(call *Call) (algebra.Node, error)
}

func (r *ConverterRule) Name() string { return r.Description }
func (r *ConverterRule) Operand() Operand { return r.Source }
func (r *ConverterRule) Out() algebra.Convention { return r.Target }

func (r *ConverterRule) Matches(call *Call) bool {
	return r.Predicate == nil || r.Predicate(call)
}

func (r *ConverterRule) Convert(call *Call) (algebra.Node, error) {
	return r.Fn(call)
}

// Call is one attempt to apply a rule to a node.
type Call struct {
	// Node is the node being converted.
	Node algebra.Node

	// Snapshot is the catalog view of the whole planning call.
	Snapshot *snapshot.Snapshot

	// Target is the convention the caller asked for this node.
	Target algebra.Convention

	run   *run
	depth int
}

// ConvertInput converts n, normally one of Node's inputs, to conv using the
// registered rules.
func (c *Call) ConvertInput(n algebra.Node, conv algebra.Convention) (algebra.Node, error) {
	return c.run.convert(n, conv, c.depth+1)
}

// ConvertInputs converts every input of Node to conv.
func (c *Call) ConvertInputs(conv algebra.Convention) ([]algebra.Node, error) {
	inputs := c.Node.Inputs()
	for i, in := range inputs {
		out, err := c.ConvertInput(in, conv)
		if err != nil {
			return nil, err
		}
		inputs[i] = out
	}
	return inputs, nil
}

// Builder returns the expression builder for the planning call.
func (c *Call) Builder() *rex.Builder {
	if c.run == nil {
		return rex.NewBuilder()
	}
	return c.run.builder
}

// Context returns the context of the planning call.
func (c *Call) Context() context.Context {
	return c.run.ctx
}

// RequestID returns the id of the planning call.
func (c *Call) RequestID() string {
	return c.run.requestID
}
