package builtin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polystore/internal/algebra"
	"github.com/roach88/polystore/internal/entity"
	"github.com/roach88/polystore/internal/planner"
	"github.com/roach88/polystore/internal/rex"
	"github.com/roach88/polystore/internal/snapshot"
	"github.com/roach88/polystore/internal/testutil"
)

func scanOf(t *testing.T, snap *snapshot.Snapshot, id int64) *algebra.Scan {
	t.Helper()
	logical, ok := snap.Logical(id)
	require.True(t, ok)
	return algebra.NewScan(logical)
}

func plan(t *testing.T, snap *snapshot.Snapshot, root algebra.Node, target algebra.Convention) (algebra.Node, error) {
	t.Helper()
	p, err := Planner(snap, planner.WithRequestIDGenerator(testutil.NewFixedRequestIDs("")))
	require.NoError(t, err)
	return p.Convert(context.Background(), root, target, snap)
}

func TestPlanner_ScanOnEnumerableAdapter(t *testing.T) {
	_, snap := testutil.StoreCatalog(t)

	out, err := plan(t, snap, scanOf(t, snap, testutil.OrdersID), algebra.Enumerable)
	require.NoError(t, err)
	assert.Equal(t,
		"Scan[ENUMERABLE.[model=RELATIONAL]](table=orders, adapter=5, allocations=[10], physicals=[100])\n",
		algebra.Explain(out))
}

func TestPlanner_JdbcScanGetsConverter(t *testing.T) {
	_, snap := testutil.StoreCatalog(t)

	out, err := plan(t, snap, scanOf(t, snap, testutil.CustID), algebra.Enumerable)
	require.NoError(t, err)
	assert.Equal(t,
		"Converter[ENUMERABLE.[model=RELATIONAL]](from=JDBC_pg)\n"+
			"  Scan[JDBC_pg.[model=RELATIONAL]](table=customers, adapter=8, allocations=[11], physicals=[101])\n",
		algebra.Explain(out))
}

func TestPlanner_FilterPushedIntoJdbc(t *testing.T) {
	_, snap := testutil.StoreCatalog(t)
	b := rex.NewBuilder()
	scan := scanOf(t, snap, testutil.CustID)
	tier, err := b.Field(scan.RowType(), "tier")
	require.NoError(t, err)
	two, err := b.Literal(2)
	require.NoError(t, err)
	filter, err := algebra.NewFilter(scan, b.MustCall(rex.OpGreaterThan, tier, two))
	require.NoError(t, err)

	out, err := plan(t, snap, filter, algebra.JDBC("pg"))
	require.NoError(t, err)
	assert.Equal(t,
		"Calc[JDBC_pg](id=$0, name=$1, tier=$2, condition=>($2, 2))\n"+
			"  Scan[JDBC_pg.[model=RELATIONAL]](table=customers, adapter=8, allocations=[11], physicals=[101])\n",
		algebra.Explain(out))

	enumerable, err := plan(t, snap, filter, algebra.Enumerable)
	require.NoError(t, err)
	assert.Equal(t,
		"Calc[ENUMERABLE](id=$0, name=$1, tier=$2, condition=>($2, 2))\n"+
			"  Converter[ENUMERABLE.[model=RELATIONAL]](from=JDBC_pg)\n"+
			"    Scan[JDBC_pg.[model=RELATIONAL]](table=customers, adapter=8, allocations=[11], physicals=[101])\n",
		algebra.Explain(enumerable))
}

func TestPlanner_JoinAcrossAdapters(t *testing.T) {
	_, snap := testutil.StoreCatalog(t)
	b := rex.NewBuilder()
	orders := scanOf(t, snap, testutil.OrdersID)
	customers := scanOf(t, snap, testutil.CustID)
	row := orders.RowType().Concat(customers.RowType())
	left, err := b.Ref(row, 1)
	require.NoError(t, err)
	right, err := b.Ref(row, 3)
	require.NoError(t, err)
	join, err := algebra.NewJoin(orders, customers, b.MustCall(rex.OpEquals, left, right), algebra.JoinInner)
	require.NoError(t, err)

	out, err := plan(t, snap, join, algebra.Enumerable)
	require.NoError(t, err)
	assert.Equal(t,
		"Join[ENUMERABLE](type=inner, condition==($1, $3))\n"+
			"  Scan[ENUMERABLE.[model=RELATIONAL]](table=orders, adapter=5, allocations=[10], physicals=[100])\n"+
			"  Converter[ENUMERABLE.[model=RELATIONAL]](from=JDBC_pg)\n"+
			"    Scan[JDBC_pg.[model=RELATIONAL]](table=customers, adapter=8, allocations=[11], physicals=[101])\n",
		algebra.Explain(out))
}

func TestPlanner_SortAndValues(t *testing.T) {
	_, snap := testutil.StoreCatalog(t)
	sort, err := algebra.NewSort(scanOf(t, snap, testutil.OrdersID), []algebra.FieldCollation{{Index: 2, Descending: true}}, -1, 10)
	require.NoError(t, err)

	out, err := plan(t, snap, sort, algebra.Enumerable)
	require.NoError(t, err)
	assert.Equal(t,
		"Sort[ENUMERABLE.[collation=[2 DESC]]](sort=[2 DESC], fetch=10)\n"+
			"  Scan[ENUMERABLE.[model=RELATIONAL]](table=orders, adapter=5, allocations=[10], physicals=[100])\n",
		algebra.Explain(out))

	values, err := algebra.NewValues(testutil.EventsRow, [][]rex.Literal{
		{{Value: int64(1), T: testutil.EventsRow.Field(0).Type}, {Value: "open", T: testutil.EventsRow.Field(1).Type}},
	})
	require.NoError(t, err)
	out, err = plan(t, snap, values, algebra.Enumerable)
	require.NoError(t, err)
	assert.Equal(t, "Values[ENUMERABLE](tuples=[[1, 'open']])\n", algebra.Explain(out))
}

func TestPlanner_PartitionedScan(t *testing.T) {
	_, snap := testutil.StoreCatalog(t)

	out, err := plan(t, snap, scanOf(t, snap, testutil.EventsID), algebra.JDBC("pg"))
	require.NoError(t, err)
	scan := out.(*algebra.Scan)
	placement, ok := scan.Placement()
	require.True(t, ok)
	require.Len(t, placement.Partitions, 2)
	assert.Equal(t, []string{"2024"}, placement.Partitions[1].Qualifiers)
	assert.Equal(t, "events_2024", placement.Partitions[1].PhysicalName)
}

func TestPlanner_DocumentFind(t *testing.T) {
	_, snap := testutil.StoreCatalog(t)
	b := rex.NewBuilder()
	scan := scanOf(t, snap, testutil.ProductID)
	sku, err := b.Field(scan.RowType(), "sku")
	require.NoError(t, err)
	lit, err := b.Literal("A1")
	require.NoError(t, err)
	filter, err := algebra.NewFilter(scan, b.MustCall(rex.OpEquals, sku, lit))
	require.NoError(t, err)

	out, err := plan(t, snap, filter, algebra.Document("docs"))
	require.NoError(t, err)
	assert.Equal(t,
		"Calc[DOCUMENT_docs](sku=$0, title=$1, doc=$2, condition==($0, 'A1'))\n"+
			"  Scan[DOCUMENT_docs.[model=DOCUMENT]](table=products, adapter=9, allocations=[12], physicals=[102])\n",
		algebra.Explain(out))
}

func TestPlanner_Unsupported(t *testing.T) {
	_, snap := testutil.StoreCatalog(t)

	tests := []struct {
		name   string
		id     int64
		target algebra.Convention
		entity string
	}{
		{"unregistered convention", testutil.OrdersID, "FOO", "orders"},
		{"no placement on adapter", testutil.OrdersID, algebra.JDBC("pg"), "orders"},
		{"document entity to jdbc", testutil.ProductID, algebra.JDBC("pg"), "products"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := plan(t, snap, scanOf(t, snap, tc.id), tc.target)
			require.Error(t, err)
			assert.True(t, planner.IsUnsupported(err))

			var pe *planner.PlanningError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, algebra.OpScan, pe.NodeKind)
			assert.Equal(t, tc.target, pe.Target)
			assert.Equal(t, tc.entity, pe.Entity)
		})
	}
}

func TestPlanner_DeterministicAndReadOnly(t *testing.T) {
	_, snap := testutil.StoreCatalog(t)
	before, err := snap.Digest()
	require.NoError(t, err)

	root := scanOf(t, snap, testutil.CustID)
	first, err := plan(t, snap, root, algebra.Enumerable)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := plan(t, snap, root, algebra.Enumerable)
		require.NoError(t, err)
		assert.Equal(t, algebra.Explain(first), algebra.Explain(again))
	}

	after, err := snap.Digest()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.True(t, root.Convention().IsNone())
}

func TestPlanner_IsTerminal(t *testing.T) {
	_, snap := testutil.StoreCatalog(t)
	p, err := Planner(snap)
	require.NoError(t, err)

	assert.True(t, p.IsTerminal(algebra.Enumerable))
	assert.False(t, p.IsTerminal(algebra.JDBC("pg")))
	assert.False(t, p.IsTerminal(algebra.Document("docs")))
}

func TestRegistry_KnowsBuiltinTypes(t *testing.T) {
	r := Registry()
	for _, info := range []entity.Adapter{
		{ID: 1, Name: "mem", Type: entity.AdapterScan},
		{ID: 2, Name: "pg", Type: entity.AdapterJDBC},
		{ID: 3, Name: "docs", Type: entity.AdapterDocument},
	} {
		a, err := r.New(info)
		require.NoError(t, err)
		assert.Equal(t, info.Name, a.Info().Name)
	}
}
