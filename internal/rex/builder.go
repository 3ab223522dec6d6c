package rex

import (
	"fmt"

	"github.com/roach88/polystore/internal/types"
)

// Builder constructs typed expressions and infers call result types.
//
// The zero value is ready to use.
type Builder struct{}

// NewBuilder returns a Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Ref references field i of row.
func (b *Builder) Ref(row types.RowType, i int) (Node, error) {
	if i < 0 || i >= row.Arity() {
		return nil, fmt.Errorf("input reference $%d out of range for %d input fields", i, row.Arity())
	}
	return InputRef{Index: i, T: row.Field(i).Type}, nil
}

// Field references the named field of row.
func (b *Builder) Field(row types.RowType, name string) (Node, error) {
	i := row.IndexOf(name)
	if i < 0 {
		return nil, fmt.Errorf("field %q not found in %s", name, row)
	}
	return b.Ref(row, i)
}

// Literal wraps a Go constant. Integers become BIGINT, strings VARCHAR and
// nil a nullable ANY.
func (b *Builder) Literal(v any) (Node, error) {
	switch x := v.(type) {
	case nil:
		return Literal{Value: nil, T: types.NullableOf(types.Any)}, nil
	case bool:
		return Literal{Value: x, T: types.Of(types.Boolean)}, nil
	case int:
		return Literal{Value: int64(x), T: types.Of(types.BigInt)}, nil
	case int64:
		return Literal{Value: x, T: types.Of(types.BigInt)}, nil
	case float64:
		return Literal{Value: x, T: types.Of(types.Double)}, nil
	case string:
		return Literal{Value: x, T: types.Of(types.Varchar)}, nil
	default:
		return nil, fmt.Errorf("unsupported literal %T", v)
	}
}

// Call builds op(operands...) with an inferred result type.
func (b *Builder) Call(op Op, operands ...Node) (Node, error) {
	t, err := b.infer(op, operands, types.Type{})
	if err != nil {
		return nil, err
	}
	return Call{Op: op, Operands: operands, T: t}, nil
}

// Cast builds CAST(operand) to target.
func (b *Builder) Cast(operand Node, target types.Type) (Node, error) {
	if _, err := b.infer(OpCast, []Node{operand}, target); err != nil {
		return nil, err
	}
	if operand.Type().Nullable {
		target = target.WithNullable(true)
	}
	return Call{Op: OpCast, Operands: []Node{operand}, T: target}, nil
}

// MustCall is like Call but panics on a type error. For tests and fixed
// rule-built expressions.
func (b *Builder) MustCall(op Op, operands ...Node) Node {
	n, err := b.Call(op, operands...)
	if err != nil {
		panic(err)
	}
	return n
}

// And combines conditions with AND, dropping nils. It returns nil when every
// condition is nil and the single condition when only one remains.
func (b *Builder) And(conds ...Node) (Node, error) {
	var ops []Node
	for _, c := range conds {
		if c != nil {
			ops = append(ops, c)
		}
	}
	switch len(ops) {
	case 0:
		return nil, nil
	case 1:
		return ops[0], nil
	}
	return b.Call(OpAnd, ops...)
}

// TypeOf re-derives the type of n against input, checking every operand.
// A Call whose recorded type differs from the inferred one is an error.
func (b *Builder) TypeOf(n Node, input types.RowType) (types.Type, error) {
	switch x := n.(type) {
	case InputRef:
		if x.Index < 0 || x.Index >= input.Arity() {
			return types.Type{}, fmt.Errorf("input reference $%d out of range for %d input fields", x.Index, input.Arity())
		}
		if want := input.Field(x.Index).Type; x.T != want {
			return types.Type{}, fmt.Errorf("input reference $%d has type %s but input field %s is %s", x.Index, x.T, input.Field(x.Index).Name, want)
		}
		return x.T, nil
	case Literal:
		return x.T, nil
	case Call:
		for _, o := range x.Operands {
			if _, err := b.TypeOf(o, input); err != nil {
				return types.Type{}, err
			}
		}
		hint := types.Type{}
		if x.Op == OpCast {
			hint = x.T
		}
		t, err := b.infer(x.Op, x.Operands, hint)
		if err != nil {
			return types.Type{}, err
		}
		if x.Op == OpCast {
			return x.T, nil
		}
		if t != x.T {
			return types.Type{}, fmt.Errorf("%s has recorded type %s but operands infer %s", x, x.T, t)
		}
		return t, nil
	case nil:
		return types.Type{}, fmt.Errorf("nil expression")
	default:
		return types.Type{}, fmt.Errorf("unknown expression %T", n)
	}
}

func (b *Builder) infer(op Op, operands []Node, hint types.Type) (types.Type, error) {
	anyNullable := false
	for _, o := range operands {
		if o == nil {
			return types.Type{}, fmt.Errorf("%s: nil operand", op)
		}
		anyNullable = anyNullable || o.Type().Nullable
	}
	arity := func(n int) error {
		if len(operands) != n {
			return fmt.Errorf("%s expects %d operands, got %d", op, n, len(operands))
		}
		return nil
	}

	switch {
	case op.IsComparison():
		if err := arity(2); err != nil {
			return types.Type{}, err
		}
		l, r := operands[0].Type(), operands[1].Type()
		if _, ok := types.LeastRestrictive(l, r); !ok {
			return types.Type{}, fmt.Errorf("cannot compare %s with %s", l.Kind, r.Kind)
		}
		return types.Type{Kind: types.Boolean, Nullable: anyNullable}, nil

	case op == OpAnd || op == OpOr:
		if len(operands) < 2 {
			return types.Type{}, fmt.Errorf("%s expects at least 2 operands, got %d", op, len(operands))
		}
		for i, o := range operands {
			if !isBooleanish(o.Type()) {
				return types.Type{}, fmt.Errorf("%s operand %d must be BOOLEAN, got %s", op, i, o.Type())
			}
		}
		return types.Type{Kind: types.Boolean, Nullable: anyNullable}, nil

	case op == OpNot:
		if err := arity(1); err != nil {
			return types.Type{}, err
		}
		if !isBooleanish(operands[0].Type()) {
			return types.Type{}, fmt.Errorf("NOT operand must be BOOLEAN, got %s", operands[0].Type())
		}
		return types.Type{Kind: types.Boolean, Nullable: anyNullable}, nil

	case op == OpIsNull || op == OpIsNotNull:
		if err := arity(1); err != nil {
			return types.Type{}, err
		}
		return types.Of(types.Boolean), nil

	case op == OpLike:
		if err := arity(2); err != nil {
			return types.Type{}, err
		}
		for i, o := range operands {
			if k := o.Type().Kind; k != types.Varchar && k != types.Any {
				return types.Type{}, fmt.Errorf("LIKE operand %d must be VARCHAR, got %s", i, o.Type())
			}
		}
		return types.Type{Kind: types.Boolean, Nullable: anyNullable}, nil

	case op.IsArithmetic():
		if err := arity(2); err != nil {
			return types.Type{}, err
		}
		l, r := operands[0].Type(), operands[1].Type()
		if !l.IsNumeric() || !r.IsNumeric() {
			return types.Type{}, fmt.Errorf("%s expects numeric operands, got %s and %s", op, l.Kind, r.Kind)
		}
		t, _ := types.LeastRestrictive(l, r)
		return t, nil

	case op == OpItem:
		if err := arity(2); err != nil {
			return types.Type{}, err
		}
		switch k := operands[0].Type().Kind; k {
		case types.Document, types.Any:
		default:
			return types.Type{}, fmt.Errorf("ITEM expects a DOCUMENT operand, got %s", k)
		}
		switch k := operands[1].Type().Kind; k {
		case types.Varchar, types.Integer, types.BigInt:
		default:
			return types.Type{}, fmt.Errorf("ITEM key must be VARCHAR or integer, got %s", k)
		}
		return types.NullableOf(types.Any), nil

	case op == OpCast:
		if err := arity(1); err != nil {
			return types.Type{}, err
		}
		if hint.Kind == "" {
			return types.Type{}, fmt.Errorf("CAST needs a target type")
		}
		return hint, nil
	}
	return types.Type{}, fmt.Errorf("unknown operator %q", op)
}

func isBooleanish(t types.Type) bool {
	return t.Kind == types.Boolean || t.Kind == types.Any
}
