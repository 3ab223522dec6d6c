package document_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polystore/internal/adapter/builtin"
	"github.com/roach88/polystore/internal/adapter/document"
	"github.com/roach88/polystore/internal/algebra"
	"github.com/roach88/polystore/internal/planner"
	"github.com/roach88/polystore/internal/rex"
	"github.com/roach88/polystore/internal/testutil"
	"github.com/roach88/polystore/internal/types"
)

func TestCompile(t *testing.T) {
	_, snap := testutil.StoreCatalog(t)
	p, err := builtin.Planner(snap, planner.WithRequestIDGenerator(testutil.NewFixedRequestIDs("")))
	require.NoError(t, err)
	docs := algebra.Document("docs")

	logical, ok := snap.Logical(testutil.ProductID)
	require.True(t, ok)
	b := rex.NewBuilder()
	scan := algebra.NewScan(logical)
	sku, err := b.Field(scan.RowType(), "sku")
	require.NoError(t, err)
	lit, err := b.Literal("A1")
	require.NoError(t, err)
	filter, err := algebra.NewFilter(scan, b.MustCall(rex.OpEquals, sku, lit))
	require.NoError(t, err)

	tests := []struct {
		name string
		root algebra.Node
		want string
	}{
		{
			name: "scan",
			root: scan,
			want: `{"collections":["products"],"filter":{},"namespace":"shop","projection":["sku","title","doc"]}`,
		},
		{
			name: "find with filter",
			root: filter,
			want: `{"collections":["products"],` +
				`"fields":[{"as":"sku","from":"sku"},{"as":"title","from":"title"},{"as":"doc","from":"doc"}],` +
				`"filter":{"sku":"A1"},"namespace":"shop","projection":["sku","title","doc"]}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := p.Convert(context.Background(), tc.root, docs, snap)
			require.NoError(t, err)
			got, err := document.Compile(out)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))
		})
	}

	enumerable, err := p.Convert(context.Background(), scan, algebra.Enumerable, snap)
	require.NoError(t, err)
	_, err = document.Compile(enumerable)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a document convention")
}

func TestPushable(t *testing.T) {
	b := rex.NewBuilder()
	row := types.Row(
		types.F("sku", types.Of(types.Varchar)),
		types.F("price", types.Of(types.Double)),
		types.F("qty", types.Of(types.Integer)),
	)
	ref := func(name string) rex.Node {
		n, err := b.Field(row, name)
		require.NoError(t, err)
		return n
	}
	lit := func(v any) rex.Node {
		n, err := b.Literal(v)
		require.NoError(t, err)
		return n
	}
	one := types.Row(types.F("out", types.Of(types.Varchar)))

	tests := []struct {
		name      string
		project   rex.Node
		out       types.RowType
		condition rex.Node
		want      bool
	}{
		{"projection only", ref("sku"), one, nil, true},
		{"field equality", ref("sku"), one, b.MustCall(rex.OpEquals, ref("sku"), lit("A1")), true},
		{"literal on the left", ref("sku"), one, b.MustCall(rex.OpEquals, lit("A1"), ref("sku")), true},
		{
			"conjunction", ref("sku"), one,
			b.MustCall(rex.OpAnd,
				b.MustCall(rex.OpEquals, ref("sku"), lit("A1")),
				b.MustCall(rex.OpEquals, ref("qty"), lit(3))),
			true,
		},
		{"range", ref("sku"), one, b.MustCall(rex.OpGreaterThan, ref("qty"), lit(3)), false},
		{"float literal", ref("sku"), one, b.MustCall(rex.OpEquals, ref("price"), lit(1.5)), false},
		{"disjunction", ref("sku"), one,
			b.MustCall(rex.OpOr,
				b.MustCall(rex.OpEquals, ref("sku"), lit("A1")),
				b.MustCall(rex.OpEquals, ref("sku"), lit("B2"))),
			false,
		},
		{"computed field", b.MustCall(rex.OpPlus, ref("qty"), lit(1)), types.Row(types.F("out", types.Of(types.BigInt))), nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := rex.CreateProgram(row, []rex.Node{tc.project}, tc.condition, tc.out, b)
			require.NoError(t, err)
			assert.Equal(t, tc.want, document.Pushable(p))
		})
	}
}
