// Package algebra defines the relational algebra tree the planner rewrites.
//
// Every node carries a TraitSet whose Convention says which execution model it
// is planned for. Logical trees are built in the None convention; a fully
// planned tree contains no None node. Nodes are immutable: WithInputs and
// WithTraits return new nodes and rewriting is always a bottom-up rebuild.
// Each node has exactly one parent.
package algebra

import (
	"slices"
	"sync/atomic"

	"github.com/roach88/polystore/internal/types"
)

// Op identifies a node kind.
type Op string

const (
	OpScan            Op = "Scan"
	OpProject         Op = "Project"
	OpFilter          Op = "Filter"
	OpCalc            Op = "Calc"
	OpDocumentProject Op = "DocumentProject"
	OpJoin            Op = "Join"
	OpSort            Op = "Sort"
	OpValues          Op = "Values"
	OpConverter       Op = "Converter"
)

// Node is a sealed algebra node.
type Node interface {
	algNode()

	// ID is unique per constructed node. Rebuilt nodes get fresh ids.
	ID() int64
	Op() Op
	RowType() types.RowType
	Inputs() []Node
	Traits() TraitSet
	Convention() Convention

	// WithInputs returns a copy of the node over new inputs, which must have
	// the same count and row types as the current ones.
	WithInputs(inputs []Node) Node

	// WithTraits returns a copy of the node with a new trait set.
	WithTraits(ts TraitSet) Node

	// Attributes describe the node for Explain, in display order.
	Attributes() []Attribute
}

// Attribute is one key=value pair shown by Explain.
type Attribute struct {
	Key   string
	Value string
}

var nextID atomic.Int64

func newID() int64 {
	return nextID.Add(1)
}

// base holds the fields shared by every node kind.
type base struct {
	id      int64
	traits  TraitSet
	inputs  []Node
	rowType types.RowType
}

func newBase(ts TraitSet, row types.RowType, inputs ...Node) base {
	return base{id: newID(), traits: ts, inputs: inputs, rowType: row}
}

func (base) algNode() {}

func (b *base) ID() int64 { return b.id }
func (b *base) RowType() types.RowType { return b.rowType }
func (b *base) Inputs() []Node { return slices.Clone(b.inputs) }
func (b *base) Traits() TraitSet { return b.traits }
func (b *base) Convention() Convention { return b.traits.Convention() }

// rebuilt returns a copy of b with a fresh id and the given inputs.
func (b base) rebuilt(inputs []Node) base {
	if len(inputs) != len(b.inputs) {
		panic("algebra: WithInputs called with wrong number of inputs")
	}
	b.id = newID()
	b.inputs = slices.Clone(inputs)
	return b
}

func (b base) retraited(ts TraitSet) base {
	b.id = newID()
	b.traits = ts
	return b
}

// Input returns the single input of n. It panics if n has no inputs.
func Input(n Node) Node {
	return n.Inputs()[0]
}
