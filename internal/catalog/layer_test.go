package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polystore/internal/entity"
	"github.com/roach88/polystore/internal/pattern"
	"github.com/roach88/polystore/internal/types"
)

var ordersRow = types.Row(
	types.F("id", types.Of(types.BigInt)),
	types.F("customer", types.NullableOf(types.Varchar)),
)

func newTestLayer(t *testing.T) *Layer {
	t.Helper()
	return NewLayer(entity.Namespace{ID: 7, Name: "public", Model: entity.ModelRelational})
}

func addOrders(t *testing.T, l *Layer) (entity.Logical, entity.Allocation) {
	t.Helper()
	logical, err := l.AddLogical(entity.Logical{ID: 1, Name: "orders", EntityType: entity.TypeTable, RowType: ordersRow})
	require.NoError(t, err)
	alloc, err := l.AddAllocation(entity.Allocation{ID: 10, LogicalID: 1, Unbound: true})
	require.NoError(t, err)
	return logical, alloc
}

func TestLayer_StagedChangesTracked(t *testing.T) {
	l := newTestLayer(t)
	assert.False(t, l.HasUncommittedChanges())

	addOrders(t, l)
	assert.True(t, l.HasUncommittedChanges())

	changes := l.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, Change{Op: OpAdd, Layer: entity.LayerLogical, ID: 1, NamespaceID: 7}, changes[0])
	assert.Equal(t, entity.LayerAllocation, changes[1].Layer)

	l.Commit()
	assert.False(t, l.HasUncommittedChanges())
	assert.Empty(t, l.Changes())
}

func TestLayer_RollbackRestoresVisibleSet(t *testing.T) {
	l := newTestLayer(t)
	addOrders(t, l)
	l.Commit()

	before := l.Entities(pattern.Any)

	_, err := l.AddLogical(entity.Logical{Name: "customers", EntityType: entity.TypeTable})
	require.NoError(t, err)
	require.NoError(t, l.DropAllocation(10))
	assert.Len(t, l.Entities(pattern.Any), 2, "staged state is visible through the layer")

	l.Rollback()
	assert.False(t, l.HasUncommittedChanges())
	assert.Equal(t, before, l.Entities(pattern.Any))
}

func TestLayer_CommitAndRollbackIdempotent(t *testing.T) {
	l := newTestLayer(t)
	l.Commit()
	l.Rollback()
	l.Rollback()
	assert.False(t, l.HasUncommittedChanges())
	assert.Empty(t, l.Entities(pattern.Any))
}

func TestLayer_AutoIDs(t *testing.T) {
	l := newTestLayer(t)
	addOrders(t, l)

	customers, err := l.AddLogical(entity.Logical{Name: "customers", EntityType: entity.TypeTable})
	require.NoError(t, err)
	assert.Greater(t, customers.ID, int64(10), "generator advances past explicit ids")
	assert.Equal(t, int64(7), customers.NamespaceID)
	assert.Equal(t, entity.ModelRelational, customers.DataModel)
}

func TestLayer_Invariants(t *testing.T) {
	tests := []struct {
		name string
		op   func(l *Layer) error
		code InvariantCode
	}{
		{
			name: "allocation with dangling logical",
			op: func(l *Layer) error {
				_, err := l.AddAllocation(entity.Allocation{LogicalID: 99, Unbound: true})
				return err
			},
			code: CodeDanglingReference,
		},
		{
			name: "unbound allocation with qualifiers",
			op: func(l *Layer) error {
				_, err := l.AddAllocation(entity.Allocation{LogicalID: 1, Unbound: true, Qualifiers: []string{"eu"}})
				return err
			},
			code: CodeInvalidEntity,
		},
		{
			name: "physical with dangling allocation",
			op: func(l *Layer) error {
				_, err := l.AddPhysical(entity.Physical{AllocationID: 99, AdapterID: 5})
				return err
			},
			code: CodeDanglingReference,
		},
		{
			name: "physical with mismatched logical",
			op: func(l *Layer) error {
				_, err := l.AddPhysical(entity.Physical{LogicalID: 2, AllocationID: 10, AdapterID: 5})
				return err
			},
			code: CodeMismatchedReference,
		},
		{
			name: "physical with fewer columns",
			op: func(l *Layer) error {
				_, err := l.AddPhysical(entity.Physical{AllocationID: 10, AdapterID: 5, RowType: types.Row(types.F("id", types.Of(types.BigInt)))})
				return err
			},
			code: CodeIncompatibleRowType,
		},
		{
			name: "physical not null where logical nullable",
			op: func(l *Layer) error {
				_, err := l.AddPhysical(entity.Physical{AllocationID: 10, AdapterID: 5, RowType: types.Row(
					types.F("id", types.Of(types.BigInt)),
					types.F("customer", types.Of(types.Varchar)),
				)})
				return err
			},
			code: CodeIncompatibleRowType,
		},
		{
			name: "duplicate logical name",
			op: func(l *Layer) error {
				_, err := l.AddLogical(entity.Logical{Name: "ORDERS", EntityType: entity.TypeTable})
				return err
			},
			code: CodeDuplicateName,
		},
		{
			name: "duplicate id",
			op: func(l *Layer) error {
				_, err := l.AddLogical(entity.Logical{ID: 10, Name: "other", EntityType: entity.TypeTable})
				return err
			},
			code: CodeDuplicateID,
		},
		{
			name: "drop unknown",
			op: func(l *Layer) error {
				return l.DropLogical(404)
			},
			code: CodeUnknownEntity,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := newTestLayer(t)
			addOrders(t, l)
			l.Commit()

			err := tc.op(l)
			require.Error(t, err)
			assert.True(t, IsInvariantViolation(err))
			assert.True(t, HasCode(err, tc.code), "got %v", err)
			assert.False(t, l.HasUncommittedChanges(), "failed mutation must not stage anything")
		})
	}
}

func TestLayer_PhysicalDefaults(t *testing.T) {
	l := newTestLayer(t)
	addOrders(t, l)

	p, err := l.AddPhysical(entity.Physical{ID: 100, AllocationID: 10, AdapterID: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.LogicalID)
	assert.Equal(t, "public", p.NamespaceName)
	assert.Equal(t, "orders", p.Name)
	assert.True(t, p.RowType.Equal(ordersRow))

	_, err = l.AddPhysical(entity.Physical{AllocationID: 10, AdapterID: 5})
	assert.True(t, HasCode(err, CodeDuplicatePlacement))
}

func TestLayer_DropLogicalCascades(t *testing.T) {
	l := newTestLayer(t)
	addOrders(t, l)
	_, err := l.AddPhysical(entity.Physical{ID: 100, AllocationID: 10, AdapterID: 5})
	require.NoError(t, err)
	l.Commit()

	require.NoError(t, l.DropLogical(1))
	assert.Empty(t, l.Entities(pattern.Any))

	var dropped []int64
	for _, c := range l.Changes() {
		assert.Equal(t, OpDrop, c.Op)
		dropped = append(dropped, c.ID)
	}
	assert.Equal(t, []int64{100, 10, 1}, dropped)

	l.Commit()
	_, err = l.AddLogical(entity.Logical{ID: 1, Name: "orders", EntityType: entity.TypeTable})
	require.NoError(t, err, "ids are released once the drop is committed")
}

func TestLayer_PartitionGroup(t *testing.T) {
	l := newTestLayer(t)
	addOrders(t, l)

	parts, err := l.AddPartitionGroup(1, [][]string{{"eu"}, {"us"}})
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, parts[0].PartitionGroupID, parts[1].PartitionGroupID)
	assert.Equal(t, "orders_eu", parts[0].Name)
	assert.Equal(t, []string{"us"}, parts[1].Qualifiers)
	assert.Len(t, l.Allocations(1), 3)

	_, err = l.AddPartitionGroup(1, [][]string{{"apac"}, {}})
	require.Error(t, err)
	assert.Len(t, l.Allocations(1), 3)
}

func TestLayer_Lookups(t *testing.T) {
	l := newTestLayer(t)
	addOrders(t, l)

	e, ok := l.Entity(10)
	require.True(t, ok)
	assert.Equal(t, entity.LayerAllocation, e.Layer())

	_, ok = l.Entity(404)
	assert.False(t, ok)

	lg, ok := l.LogicalByName("Orders")
	require.True(t, ok)
	assert.Equal(t, int64(1), lg.ID)

	assert.Empty(t, l.Physicals(10))
	assert.NotNil(t, l.Physicals(10))
	assert.Len(t, l.Entities(pattern.MustCompile("ord%")), 2)
	assert.Empty(t, l.Entities(pattern.MustCompile("Ord%")))
}
