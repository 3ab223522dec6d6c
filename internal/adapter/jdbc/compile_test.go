package jdbc_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polystore/internal/adapter/builtin"
	"github.com/roach88/polystore/internal/adapter/jdbc"
	"github.com/roach88/polystore/internal/algebra"
	"github.com/roach88/polystore/internal/planner"
	"github.com/roach88/polystore/internal/rex"
	"github.com/roach88/polystore/internal/snapshot"
	"github.com/roach88/polystore/internal/testutil"
	"github.com/roach88/polystore/internal/types"
)

func planned(t *testing.T, snap *snapshot.Snapshot, root algebra.Node, target algebra.Convention) algebra.Node {
	t.Helper()
	p, err := builtin.Planner(snap, planner.WithRequestIDGenerator(testutil.NewFixedRequestIDs("")))
	require.NoError(t, err)
	out, err := p.Convert(context.Background(), root, target, snap)
	require.NoError(t, err)
	return out
}

func scanOf(t *testing.T, snap *snapshot.Snapshot, id int64) *algebra.Scan {
	t.Helper()
	logical, ok := snap.Logical(id)
	require.True(t, ok)
	return algebra.NewScan(logical)
}

func TestCompile(t *testing.T) {
	_, snap := testutil.StoreCatalog(t)
	b := rex.NewBuilder()
	pg := algebra.JDBC("pg")

	customers := scanOf(t, snap, testutil.CustID)
	tier, err := b.Field(customers.RowType(), "tier")
	require.NoError(t, err)
	two, err := b.Literal(2)
	require.NoError(t, err)
	filter, err := algebra.NewFilter(customers, b.MustCall(rex.OpGreaterThan, tier, two))
	require.NoError(t, err)

	sorted, err := algebra.NewSort(scanOf(t, snap, testutil.CustID), []algebra.FieldCollation{{Index: 1}}, 5, 10)
	require.NoError(t, err)
	skipped, err := algebra.NewSort(scanOf(t, snap, testutil.CustID), []algebra.FieldCollation{{Index: 1}}, 5, -1)
	require.NoError(t, err)

	tests := []struct {
		name   string
		root   algebra.Node
		sql    string
		params []any
	}{
		{
			name: "scan",
			root: scanOf(t, snap, testutil.CustID),
			sql:  `SELECT "id", "name", "tier" FROM "public"."customers"`,
		},
		{
			name: "partitions become a union",
			root: scanOf(t, snap, testutil.EventsID),
			sql: `SELECT "id", "kind" FROM "public"."events_2023" UNION ALL ` +
				`SELECT "id", "kind" FROM "public"."events_2024"`,
		},
		{
			name: "filter binds its literal",
			root: filter,
			sql: `SELECT "id" AS "id", "name" AS "name", "tier" AS "tier" ` +
				`FROM (SELECT "id", "name", "tier" FROM "public"."customers") AS "t1" WHERE ("tier" > ?)`,
			params: []any{int64(2)},
		},
		{
			name: "sort with fetch and offset",
			root: sorted,
			sql: `SELECT * FROM (SELECT "id", "name", "tier" FROM "public"."customers") AS "t1" ` +
				`ORDER BY "name" ASC LIMIT ? OFFSET ?`,
			params: []any{int64(10), int64(5)},
		},
		{
			name: "offset without fetch keeps a limit",
			root: skipped,
			sql: `SELECT * FROM (SELECT "id", "name", "tier" FROM "public"."customers") AS "t1" ` +
				`ORDER BY "name" ASC LIMIT ? OFFSET ?`,
			params: []any{int64(math.MaxInt64), int64(5)},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stmt, err := jdbc.Compile(planned(t, snap, tc.root, pg))
			require.NoError(t, err)
			assert.Equal(t, tc.sql, stmt.SQL)
			if tc.params == nil {
				assert.Empty(t, stmt.Params)
			} else {
				assert.Equal(t, tc.params, stmt.Params)
			}
		})
	}
}

func TestCompile_RejectsOtherConventions(t *testing.T) {
	_, snap := testutil.StoreCatalog(t)

	_, err := jdbc.Compile(planned(t, snap, scanOf(t, snap, testutil.OrdersID), algebra.Enumerable))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a JDBC convention")

	// A JDBC root over an ENUMERABLE input cannot become one statement.
	enumerable := planned(t, snap, scanOf(t, snap, testutil.OrdersID), algebra.Enumerable)
	wrapped := algebra.Retarget(algebra.NewConverter(enumerable, algebra.Enumerable), algebra.JDBC("pg"))
	_, err = jdbc.Compile(wrapped)
	assert.Error(t, err)

	_, err = jdbc.Compile(nil)
	assert.Error(t, err)
}

func TestTranslatable(t *testing.T) {
	b := rex.NewBuilder()
	row := testutil.ProductsRow

	sku, err := b.Field(row, "sku")
	require.NoError(t, err)
	doc, err := b.Field(row, "doc")
	require.NoError(t, err)
	key, err := b.Literal("price")
	require.NoError(t, err)
	item := b.MustCall(rex.OpItem, doc, key)

	plain, err := rex.CreateProgram(row, []rex.Node{sku}, nil, types.Row(types.F("sku", types.Of(types.Varchar))), b)
	require.NoError(t, err)
	assert.True(t, jdbc.Translatable(plain))

	withItem, err := rex.CreateProgram(row, []rex.Node{item}, nil, types.Row(types.F("price", types.NullableOf(types.Any))), b)
	require.NoError(t, err)
	assert.False(t, jdbc.Translatable(withItem))
}
