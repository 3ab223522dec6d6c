package algebra

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polystore/internal/entity"
	"github.com/roach88/polystore/internal/rex"
	"github.com/roach88/polystore/internal/types"
)

var orders = entity.Logical{
	ID:          1,
	Name:        "orders",
	NamespaceID: 7,
	EntityType:  entity.TypeTable,
	DataModel:   entity.ModelRelational,
	RowType: types.Row(
		types.F("id", types.Of(types.BigInt)),
		types.F("amount", types.NullableOf(types.Integer)),
	),
}

func filteredOrders(t *testing.T) (*Scan, *Filter) {
	t.Helper()
	b := rex.NewBuilder()
	scan := NewScan(orders)
	amount, err := b.Ref(scan.RowType(), 1)
	require.NoError(t, err)
	ten, _ := b.Literal(10)
	filter, err := NewFilter(scan, b.MustCall(rex.OpGreaterThan, amount, ten))
	require.NoError(t, err)
	return scan, filter
}

func TestTraitSet(t *testing.T) {
	ts := NewTraitSet(Enumerable,
		Trait{Kind: TraitModel, Value: "RELATIONAL"},
		Trait{Kind: TraitCollation, Value: "[0 ASC]"},
		Trait{Kind: TraitCollation, Value: "[1 DESC]"},
	)
	assert.Equal(t, "ENUMERABLE.[collation=[1 DESC], model=RELATIONAL]", ts.String())

	assert.True(t, ts.Satisfies(NewTraitSet(Enumerable)))
	assert.True(t, ts.Satisfies(NewTraitSet(Enumerable, Trait{Kind: TraitCollation, Value: "[1 DESC]"})))
	assert.False(t, ts.Satisfies(NewTraitSet(Enumerable, Trait{Kind: TraitCollation, Value: "[0 ASC]"})))
	assert.False(t, ts.Satisfies(NewTraitSet(JDBC("hr"))))

	var zero TraitSet
	assert.Equal(t, None, zero.Convention())
	assert.Equal(t, Convention("JDBC_hr"), JDBC("hr"))
	assert.Equal(t, Convention("DOCUMENT_docs"), Document("docs"))
}

func TestNodesStartUnplanned(t *testing.T) {
	scan, filter := filteredOrders(t)

	assert.Equal(t, None, scan.Convention())
	assert.Equal(t, None, filter.Convention())
	assert.False(t, IsPlanned(filter))
	assert.True(t, filter.RowType().Equal(orders.RowType))
}

func TestWithInputsRebuildsWithoutMutation(t *testing.T) {
	scan, filter := filteredOrders(t)
	placed := scan.Place(Placement{AdapterID: 5, Partitions: []Partition{{AllocationID: 10, PhysicalID: 100}}}, Enumerable)

	rebuilt := filter.WithInputs([]Node{placed})
	assert.NotEqual(t, filter.ID(), rebuilt.ID(), "rebuilt nodes get fresh ids")
	assert.Same(t, scan, filter.Inputs()[0], "original tree is untouched")
	assert.Same(t, placed, Input(rebuilt))

	_, ok := scan.Placement()
	assert.False(t, ok)
	p, ok := placed.Placement()
	require.True(t, ok)
	assert.Equal(t, int64(5), p.AdapterID)

	assert.Panics(t, func() { filter.WithInputs(nil) })
}

func TestExplain(t *testing.T) {
	scan, filter := filteredOrders(t)
	b := rex.NewBuilder()
	id, _ := b.Ref(filter.RowType(), 0)
	project, err := NewProject(filter, []rex.Node{id}, []string{"order_id"})
	require.NoError(t, err)

	want := "Project[NONE](order_id=$0)\n" +
		"  Filter[NONE](condition=>($1, 10))\n" +
		"    Scan[NONE.[model=RELATIONAL]](table=orders)\n"
	assert.Equal(t, want, Explain(project))

	placed := Retarget(project.WithInputs([]Node{
		Retarget(filter.WithInputs([]Node{scan.Place(Placement{AdapterID: 5, Partitions: []Partition{{AllocationID: 10, PhysicalID: 100}}}, Enumerable)}), Enumerable),
	}), Enumerable)
	assert.True(t, IsPlanned(placed))
	assert.Contains(t, Explain(placed), "Scan[ENUMERABLE.[model=RELATIONAL]](table=orders, adapter=5, allocations=[10], physicals=[100])")
	assert.Equal(t, []Convention{Enumerable}, Conventions(placed))

	again, _ := filteredOrders(t)
	assert.Equal(t, Explain(scan), Explain(again), "explain ignores node ids")
}

func TestFold(t *testing.T) {
	_, filter := filteredOrders(t)

	depth := Dispatch[int]{
		Scan: func(*Scan, []int) (int, error) { return 1, nil },
		Default: func(_ Node, in []int) (int, error) {
			return in[0] + 1, nil
		},
	}
	got, err := Fold(filter, depth)
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	_, err = Fold(filter, Dispatch[int]{Scan: depth.Scan})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Filter")
}

func TestTransform(t *testing.T) {
	scan, filter := filteredOrders(t)

	out, err := Transform(filter, func(n Node) (Node, error) {
		return Retarget(n, Enumerable), nil
	})
	require.NoError(t, err)
	assert.True(t, IsPlanned(out))
	assert.Equal(t, None, filter.Convention())
	assert.Equal(t, None, scan.Convention())

	boom := errors.New("boom")
	_, err = Transform(filter, func(n Node) (Node, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestConstructorValidation(t *testing.T) {
	scan := NewScan(orders)
	b := rex.NewBuilder()
	id, _ := b.Ref(scan.RowType(), 0)

	_, err := NewFilter(scan, id)
	assert.Error(t, err, "BIGINT condition")

	_, err = NewProject(scan, []rex.Node{id}, []string{"a", "b"})
	assert.Error(t, err)

	_, err = NewSort(scan, []FieldCollation{{Index: 2}}, -1, -1)
	assert.Error(t, err)

	_, err = NewCalc(scan, rex.IdentityProgram(types.Row(types.F("x", types.Of(types.Varchar)))))
	assert.Error(t, err)

	lit, _ := b.Literal("x")
	_, err = NewValues(types.Row(types.F("n", types.Of(types.BigInt))), [][]rex.Literal{{lit.(rex.Literal)}})
	assert.Error(t, err)
}

func TestJoinAndSort(t *testing.T) {
	left := NewScan(orders)
	right := NewScan(orders)
	b := rex.NewBuilder()
	combined := left.RowType().Concat(right.RowType())
	l, _ := b.Ref(combined, 0)
	r, _ := b.Ref(combined, 2)

	join, err := NewJoin(left, right, b.MustCall(rex.OpEquals, l, r), JoinLeft)
	require.NoError(t, err)
	assert.Equal(t, 4, join.RowType().Arity())
	assert.True(t, join.RowType().Field(2).Type.Nullable)

	sort, err := NewSort(join, []FieldCollation{{Index: 1, Descending: true}}, -1, 10)
	require.NoError(t, err)
	c, ok := sort.Traits().Get(TraitCollation)
	require.True(t, ok)
	assert.Equal(t, "[1 DESC]", c.Value)
	assert.Equal(t, "Sort[NONE.[collation=[1 DESC]]](sort=[1 DESC], fetch=10)", Describe(sort))

	conv := NewConverter(Retarget(sort, JDBC("hr")), Enumerable)
	assert.Equal(t, JDBC("hr"), conv.From())
	assert.Equal(t, Enumerable, conv.Convention())
}
