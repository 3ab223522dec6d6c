package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/polystore/internal/algebra"
	"github.com/roach88/polystore/internal/entity"
	"github.com/roach88/polystore/internal/rex"
	"github.com/roach88/polystore/internal/snapshot"
	"github.com/roach88/polystore/internal/types"
)

// Build turns a plan spec into a logical tree over snap.
func Build(snap *snapshot.Snapshot, p PlanSpec) (algebra.Node, error) {
	b := &builder{snap: snap, rex: rex.NewBuilder()}
	return b.node("plan", p)
}

type builder struct {
	snap *snapshot.Snapshot
	rex  *rex.Builder
}

func (b *builder) node(path string, p PlanSpec) (algebra.Node, error) {
	switch {
	case p.Scan != "":
		logical, err := b.lookup(p.Scan)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return algebra.NewScan(logical), nil

	case p.Filter != nil:
		input, err := b.node(path+".filter.input", p.Filter.Input)
		if err != nil {
			return nil, err
		}
		cond, err := b.expr(input.RowType(), p.Filter.Condition)
		if err != nil {
			return nil, fmt.Errorf("%s.filter.condition: %w", path, err)
		}
		return algebra.NewFilter(input, cond)

	case p.Project != nil:
		input, err := b.node(path+".project.input", p.Project.Input)
		if err != nil {
			return nil, err
		}
		exprs := make([]rex.Node, len(p.Project.Fields))
		names := make([]string, len(p.Project.Fields))
		for i, f := range p.Project.Fields {
			e, err := b.expr(input.RowType(), f.ExprSpec)
			if err != nil {
				return nil, fmt.Errorf("%s.project.fields[%d]: %w", path, i, err)
			}
			exprs[i] = e
			names[i] = f.Name
		}
		return algebra.NewProject(input, exprs, names)

	case p.Join != nil:
		left, err := b.node(path+".join.left", p.Join.Left)
		if err != nil {
			return nil, err
		}
		right, err := b.node(path+".join.right", p.Join.Right)
		if err != nil {
			return nil, err
		}
		cond, err := b.expr(left.RowType().Concat(right.RowType()), p.Join.Condition)
		if err != nil {
			return nil, fmt.Errorf("%s.join.condition: %w", path, err)
		}
		joinType := algebra.JoinInner
		if p.Join.Type != "" {
			joinType = algebra.JoinType(strings.ToLower(p.Join.Type))
		}
		return algebra.NewJoin(left, right, cond, joinType)

	case p.Sort != nil:
		input, err := b.node(path+".sort.input", p.Sort.Input)
		if err != nil {
			return nil, err
		}
		collation := make([]algebra.FieldCollation, len(p.Sort.Keys))
		for i, k := range p.Sort.Keys {
			idx := input.RowType().IndexOf(k.Field)
			if idx < 0 {
				return nil, fmt.Errorf("%s.sort.keys[%d]: field %q not found", path, i, k.Field)
			}
			collation[i] = algebra.FieldCollation{Index: idx, Descending: k.Desc}
		}
		offset, fetch := int64(-1), int64(-1)
		if p.Sort.Offset != nil {
			offset = *p.Sort.Offset
		}
		if p.Sort.Fetch != nil {
			fetch = *p.Sort.Fetch
		}
		return algebra.NewSort(input, collation, offset, fetch)

	case p.Values != nil:
		return b.values(path+".values", p.Values)
	}
	return nil, fmt.Errorf("%s: empty plan node", path)
}

// lookup resolves "namespace.name" or a bare name searched in every
// namespace, in id order.
func (b *builder) lookup(name string) (entity.Logical, error) {
	if ns, table, ok := strings.Cut(name, "."); ok {
		n, found := b.snap.NamespaceByName(ns)
		if !found {
			return entity.Logical{}, fmt.Errorf("unknown namespace %q", ns)
		}
		if l, found := b.snap.LogicalByName(n.ID, table); found {
			return l, nil
		}
		return entity.Logical{}, fmt.Errorf("unknown entity %q", name)
	}
	for _, n := range b.snap.Namespaces() {
		if l, found := b.snap.LogicalByName(n.ID, name); found {
			return l, nil
		}
	}
	return entity.Logical{}, fmt.Errorf("unknown entity %q", name)
}

func (b *builder) values(path string, v *ValuesSpec) (algebra.Node, error) {
	fields := make([]types.Field, len(v.Fields))
	for i, f := range v.Fields {
		kind, err := types.ParseKind(f.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.fields[%d]: %w", path, i, err)
		}
		fields[i] = types.F(f.Name, types.Type{Kind: kind, Nullable: f.Nullable})
	}
	row := types.Row(fields...)

	tuples := make([][]rex.Literal, len(v.Rows))
	for i, r := range v.Rows {
		tuple := make([]rex.Literal, len(r))
		for j, raw := range r {
			lit, err := b.rex.Literal(normalizeLiteral(raw))
			if err != nil {
				return nil, fmt.Errorf("%s.rows[%d][%d]: %w", path, i, j, err)
			}
			l := lit.(rex.Literal)
			if j < row.Arity() {
				ft := row.Field(j).Type
				if l.Value == nil || (l.T.IsNumeric() && ft.IsNumeric()) {
					l.T = types.Type{Kind: ft.Kind, Nullable: l.Value == nil}
				}
			}
			tuple[j] = l
		}
		tuples[i] = tuple
	}
	return algebra.NewValues(row, tuples)
}

func (b *builder) expr(row types.RowType, e ExprSpec) (rex.Node, error) {
	var (
		n   rex.Node
		err error
	)
	switch {
	case e.Field != "":
		n, err = b.rex.Field(row, e.Field)
	case e.Ref != nil:
		n, err = b.rex.Ref(row, *e.Ref)
	case e.Null:
		n, err = b.rex.Literal(nil)
	case e.Literal != nil:
		n, err = b.rex.Literal(normalizeLiteral(e.Literal))
	case e.Call != "":
		operands := make([]rex.Node, len(e.Operands))
		for i, o := range e.Operands {
			operands[i], err = b.expr(row, o)
			if err != nil {
				return nil, fmt.Errorf("operand %d of %s: %w", i, e.Call, err)
			}
		}
		n, err = b.rex.Call(rex.Op(strings.ToUpper(e.Call)), operands...)
	default:
		return nil, fmt.Errorf("expression sets none of field, ref, literal, null, call")
	}
	if err != nil {
		return nil, err
	}

	if e.Cast != "" {
		kind, err := types.ParseKind(e.Cast)
		if err != nil {
			return nil, err
		}
		return b.rex.Cast(n, types.Of(kind))
	}
	return n, nil
}

// normalizeLiteral maps YAML scalars onto the literal types the expression
// builder accepts.
func normalizeLiteral(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case uint64:
		return int64(x)
	default:
		return v
	}
}
