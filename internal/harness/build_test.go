package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polystore/internal/algebra"
	"github.com/roach88/polystore/internal/types"
)

func TestBuild(t *testing.T) {
	snap, err := New().Snapshot(context.Background(), "testdata/catalog")
	require.NoError(t, err)

	t.Run("bare and qualified names", func(t *testing.T) {
		for _, name := range []string{"products", "shop.products"} {
			n, err := Build(snap, PlanSpec{Scan: name})
			require.NoError(t, err)
			scan, ok := n.(*algebra.Scan)
			require.True(t, ok)
			assert.Equal(t, "products", scan.Entity().Name)
			assert.True(t, scan.Convention().IsNone())
		}
	})

	t.Run("values adopt field types", func(t *testing.T) {
		n, err := Build(snap, PlanSpec{Values: &ValuesSpec{
			Fields: []FieldSpec{
				{Name: "n", Type: "INTEGER", Nullable: true},
				{Name: "s", Type: "VARCHAR"},
			},
			Rows: [][]any{{7, "a"}, {nil, "b"}},
		}})
		require.NoError(t, err)
		values, ok := n.(*algebra.Values)
		require.True(t, ok)
		tuples := values.Tuples()
		require.Len(t, tuples, 2)
		assert.Equal(t, types.Integer, tuples[0][0].T.Kind)
		assert.Equal(t, int64(7), tuples[0][0].Value)
		assert.Nil(t, tuples[1][0].Value)
		assert.True(t, tuples[1][0].T.Nullable)
	})

	t.Run("join condition spans both sides", func(t *testing.T) {
		ref := 3
		n, err := Build(snap, PlanSpec{Join: &JoinSpec{
			Left:  PlanSpec{Scan: "orders"},
			Right: PlanSpec{Scan: "customers"},
			Type:  "LEFT",
			Condition: ExprSpec{Call: "=", Operands: []ExprSpec{
				{Field: "customer"},
				{Ref: &ref},
			}},
		}})
		require.NoError(t, err)
		join, ok := n.(*algebra.Join)
		require.True(t, ok)
		assert.Equal(t, algebra.JoinType("left"), join.JoinType())
		assert.Equal(t, "=($1, $3)", join.Condition().String())
		assert.Equal(t, 6, join.RowType().Arity())
	})

	t.Run("cast", func(t *testing.T) {
		n, err := Build(snap, PlanSpec{Project: &ProjectSpec{
			Input:  PlanSpec{Scan: "orders"},
			Fields: []NamedExpr{{Name: "a", ExprSpec: ExprSpec{Field: "amount", Cast: "BIGINT"}}},
		}})
		require.NoError(t, err)
		assert.Equal(t, types.BigInt, n.RowType().Field(0).Type.Kind)
	})
}
