package algebra

import (
	"fmt"
	"strings"
)

// Dispatch maps each node kind to a fold step. A step receives the node and
// the already folded results of its inputs. Kinds without a step use Default;
// a nil Default makes Fold fail on that kind.
type Dispatch[T any] struct {
	Scan            func(n *Scan, in []T) (T, error)
	Project         func(n *Project, in []T) (T, error)
	Filter          func(n *Filter, in []T) (T, error)
	Calc            func(n *Calc, in []T) (T, error)
	DocumentProject func(n *DocumentProject, in []T) (T, error)
	Join            func(n *Join, in []T) (T, error)
	Sort            func(n *Sort, in []T) (T, error)
	Values          func(n *Values, in []T) (T, error)
	Converter       func(n *Converter, in []T) (T, error)
	Default         func(n Node, in []T) (T, error)
}

// Fold reduces a tree bottom-up through the dispatch table.
func Fold[T any](n Node, d Dispatch[T]) (T, error) {
	inputs := n.Inputs()
	in := make([]T, len(inputs))
	for i, child := range inputs {
		v, err := Fold(child, d)
		if err != nil {
			var zero T
			return zero, err
		}
		in[i] = v
	}

	switch x := n.(type) {
	case *Scan:
		if d.Scan != nil {
			return d.Scan(x, in)
		}
	case *Project:
		if d.Project != nil {
			return d.Project(x, in)
		}
	case *Filter:
		if d.Filter != nil {
			return d.Filter(x, in)
		}
	case *Calc:
		if d.Calc != nil {
			return d.Calc(x, in)
		}
	case *DocumentProject:
		if d.DocumentProject != nil {
			return d.DocumentProject(x, in)
		}
	case *Join:
		if d.Join != nil {
			return d.Join(x, in)
		}
	case *Sort:
		if d.Sort != nil {
			return d.Sort(x, in)
		}
	case *Values:
		if d.Values != nil {
			return d.Values(x, in)
		}
	case *Converter:
		if d.Converter != nil {
			return d.Converter(x, in)
		}
	}
	if d.Default != nil {
		return d.Default(n, in)
	}
	var zero T
	return zero, fmt.Errorf("no fold step for %s", n.Op())
}

// Transform rebuilds a tree bottom-up. fn sees each node after its inputs have
// been transformed; a node whose inputs all come back unchanged is passed to
// fn as is. The original tree is never modified.
func Transform(n Node, fn func(Node) (Node, error)) (Node, error) {
	inputs := n.Inputs()
	changed := false
	for i, child := range inputs {
		t, err := Transform(child, fn)
		if err != nil {
			return nil, err
		}
		if t != child {
			inputs[i] = t
			changed = true
		}
	}
	if changed {
		n = n.WithInputs(inputs)
	}
	return fn(n)
}

// Walk visits n and its descendants, parents first. Returning false from fn
// skips the node's inputs.
func Walk(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	for _, child := range n.Inputs() {
		Walk(child, fn)
	}
}

// IsPlanned reports whether no node of the tree is in the None convention.
func IsPlanned(n Node) bool {
	planned := true
	Walk(n, func(x Node) bool {
		if x.Convention().IsNone() {
			planned = false
		}
		return planned
	})
	return planned
}

// Conventions returns the distinct conventions of the tree in visit order.
func Conventions(n Node) []Convention {
	seen := map[Convention]bool{}
	var out []Convention
	Walk(n, func(x Node) bool {
		if c := x.Convention(); !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
		return true
	})
	return out
}

// Explain renders the tree one node per line, inputs indented under their
// parent. Node ids are omitted so the output depends only on the tree's
// structure.
func Explain(n Node) string {
	var b strings.Builder
	explain(&b, n, 0)
	return b.String()
}

func explain(b *strings.Builder, n Node, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(Describe(n))
	b.WriteByte('\n')
	for _, child := range n.Inputs() {
		explain(b, child, depth+1)
	}
}

// Describe renders a single node as Kind[traits](key=value, ...).
func Describe(n Node) string {
	attrs := n.Attributes()
	parts := make([]string, len(attrs))
	for i, a := range attrs {
		parts[i] = a.Key + "=" + a.Value
	}
	return fmt.Sprintf("%s[%s](%s)", n.Op(), n.Traits(), strings.Join(parts, ", "))
}
