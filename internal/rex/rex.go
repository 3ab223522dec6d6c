// Package rex defines the scalar expressions evaluated inside algebra nodes
// and the validated ExpressionProgram built from them.
//
// Node is a sealed interface; InputRef, Literal and Call implement it.
// Expressions are immutable values. Input fields are referenced by ordinal.
package rex

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/polystore/internal/types"
)

// Node is a typed scalar expression.
type Node interface {
	rexNode()
	Type() types.Type
	String() string
}

// InputRef references field Index of the input row.
type InputRef struct {
	Index int
	T     types.Type
}

func (InputRef) rexNode() {}

func (r InputRef) Type() types.Type { return r.T }

func (r InputRef) String() string { return "$" + strconv.Itoa(r.Index) }

// Literal is a constant. Value is nil, bool, int64, float64 or string.
type Literal struct {
	Value any
	T     types.Type
}

func (Literal) rexNode() {}

func (l Literal) Type() types.Type { return l.T }

func (l Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Op is a scalar operator.
type Op string

const (
	OpEquals       Op = "="
	OpNotEquals    Op = "<>"
	OpLessThan     Op = "<"
	OpLessEqual    Op = "<="
	OpGreaterThan  Op = ">"
	OpGreaterEqual Op = ">="
	OpAnd          Op = "AND"
	OpOr           Op = "OR"
	OpNot          Op = "NOT"
	OpIsNull       Op = "IS NULL"
	OpIsNotNull    Op = "IS NOT NULL"
	OpLike         Op = "LIKE"
	OpPlus         Op = "+"
	OpMinus        Op = "-"
	OpTimes        Op = "*"
	OpDivide       Op = "/"
	OpItem         Op = "ITEM"
	OpCast         Op = "CAST"
)

// Call applies an operator to operands.
type Call struct {
	Op       Op
	Operands []Node
	T        types.Type
}

func (Call) rexNode() {}

func (c Call) Type() types.Type { return c.T }

func (c Call) String() string {
	parts := make([]string, len(c.Operands))
	for i, o := range c.Operands {
		parts[i] = o.String()
	}
	if c.Op == OpCast {
		return fmt.Sprintf("CAST(%s):%s", strings.Join(parts, ", "), c.T)
	}
	return string(c.Op) + "(" + strings.Join(parts, ", ") + ")"
}

// IsComparison reports whether op compares two values.
func (op Op) IsComparison() bool {
	switch op {
	case OpEquals, OpNotEquals, OpLessThan, OpLessEqual, OpGreaterThan, OpGreaterEqual:
		return true
	}
	return false
}

// IsArithmetic reports whether op is a binary arithmetic operator.
func (op Op) IsArithmetic() bool {
	switch op {
	case OpPlus, OpMinus, OpTimes, OpDivide:
		return true
	}
	return false
}

// Walk calls fn for n and each of its descendants, parents first.
// Returning false from fn skips the node's operands.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	if c, ok := n.(Call); ok {
		for _, o := range c.Operands {
			Walk(o, fn)
		}
	}
}

// Refs returns the distinct input ordinals n references, in first-use order.
func Refs(n Node) []int {
	seen := map[int]bool{}
	var out []int
	Walk(n, func(x Node) bool {
		if r, ok := x.(InputRef); ok && !seen[r.Index] {
			seen[r.Index] = true
			out = append(out, r.Index)
		}
		return true
	})
	return out
}

// Shift returns n with every input ordinal moved by offset.
func Shift(n Node, offset int) Node {
	if offset == 0 {
		return n
	}
	return Rewrite(n, func(x Node) Node {
		if r, ok := x.(InputRef); ok {
			return InputRef{Index: r.Index + offset, T: r.T}
		}
		return x
	})
}

// Substitute replaces every input reference $i in n with exprs[i].
func Substitute(n Node, exprs []Node) Node {
	return Rewrite(n, func(x Node) Node {
		if r, ok := x.(InputRef); ok && r.Index >= 0 && r.Index < len(exprs) {
			return exprs[r.Index]
		}
		return x
	})
}

// Rewrite rebuilds n bottom-up, applying fn to every node after its operands
// have been rewritten.
func Rewrite(n Node, fn func(Node) Node) Node {
	if n == nil {
		return nil
	}
	if c, ok := n.(Call); ok {
		ops := make([]Node, len(c.Operands))
		for i, o := range c.Operands {
			ops[i] = Rewrite(o, fn)
		}
		c.Operands = ops
		n = c
	}
	return fn(n)
}
