package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/polystore/internal/catalog"
	"github.com/roach88/polystore/internal/entity"
	"github.com/roach88/polystore/internal/snapshot"
	"github.com/roach88/polystore/internal/types"
)

// Fixed ids of the store fixture.
const (
	PublicNS  int64 = 7
	ShopNS    int64 = 20
	MemID     int64 = 5
	PgID      int64 = 8
	DocsID    int64 = 9
	OrdersID  int64 = 1
	CustID    int64 = 2
	ProductID int64 = 3
	EventsID  int64 = 4
)

// OrdersRow is the row type of the orders table.
var OrdersRow = types.Row(
	types.F("id", types.Of(types.BigInt)),
	types.F("customer", types.NullableOf(types.Varchar)),
	types.F("amount", types.Of(types.Integer)),
)

// CustomersRow is the row type of the customers table.
var CustomersRow = types.Row(
	types.F("id", types.Of(types.Varchar)),
	types.F("name", types.Of(types.Varchar)),
	types.F("tier", types.NullableOf(types.Integer)),
)

// ProductsRow is the row type of the products collection.
var ProductsRow = types.Row(
	types.F("sku", types.Of(types.Varchar)),
	types.F("title", types.NullableOf(types.Varchar)),
	types.F("doc", types.Of(types.Document)),
)

// EventsRow is the row type of the partitioned events table.
var EventsRow = types.Row(
	types.F("id", types.Of(types.BigInt)),
	types.F("kind", types.Of(types.Varchar)),
)

// StoreCatalog returns a committed catalog with:
//
//   - namespace public (7, relational) and shop (20, document)
//   - adapters mem (5, scan), pg (8, jdbc) and docs (9, document)
//   - orders (1): unbound allocation 10, physical 100 on mem
//   - customers (2): unbound allocation 11, physical 101 on pg
//   - events (4): partitions 13 [2023] and 14 [2024] in group 13,
//     physicals 103 and 104 on pg
//   - products (3) in shop: unbound allocation 12, physical 102 on docs
func StoreCatalog(t testing.TB, opts ...catalog.Option) (*catalog.Catalog, *snapshot.Snapshot) {
	t.Helper()
	c := catalog.New(opts...)

	_, err := c.AddNamespace(entity.Namespace{ID: PublicNS, Name: "public", Model: entity.ModelRelational})
	require.NoError(t, err)
	_, err = c.AddNamespace(entity.Namespace{ID: ShopNS, Name: "shop", Model: entity.ModelDocument, CaseSensitive: true})
	require.NoError(t, err)

	for _, a := range []entity.Adapter{
		{ID: MemID, Name: "mem", Type: entity.AdapterScan, Convention: "ENUMERABLE"},
		{ID: PgID, Name: "pg", Type: entity.AdapterJDBC, Convention: "JDBC_pg", Settings: map[string]string{"dialect": "postgres"}},
		{ID: DocsID, Name: "docs", Type: entity.AdapterDocument, Convention: "DOCUMENT_docs"},
	} {
		_, err := c.AddAdapter(a)
		require.NoError(t, err)
	}

	public, ok := c.Layer(PublicNS)
	require.True(t, ok)
	shop, ok := c.Layer(ShopNS)
	require.True(t, ok)

	addTable(t, public, entity.Logical{ID: OrdersID, Name: "orders", EntityType: entity.TypeTable, RowType: OrdersRow}, 10, 100, MemID)
	addTable(t, public, entity.Logical{ID: CustID, Name: "customers", EntityType: entity.TypeTable, RowType: CustomersRow}, 11, 101, PgID)
	addTable(t, shop, entity.Logical{ID: ProductID, Name: "products", EntityType: entity.TypeCollection, RowType: ProductsRow}, 12, 102, DocsID)

	_, err = public.AddLogical(entity.Logical{ID: EventsID, Name: "events", EntityType: entity.TypeTable, RowType: EventsRow})
	require.NoError(t, err)
	for i, year := range []string{"2023", "2024"} {
		allocID := int64(13 + i)
		_, err = public.AddAllocation(entity.Allocation{
			ID: allocID, Name: "events_" + year, LogicalID: EventsID,
			PartitionGroupID: 13, Qualifiers: []string{year},
		})
		require.NoError(t, err)
		_, err = public.AddPhysical(entity.Physical{ID: 103 + int64(i), Name: "events_" + year, AllocationID: allocID, AdapterID: PgID})
		require.NoError(t, err)
	}

	snap, err := c.Commit(context.Background())
	require.NoError(t, err)
	return c, snap
}

func addTable(t testing.TB, l *catalog.Layer, logical entity.Logical, allocID, physID, adapterID int64) {
	t.Helper()
	_, err := l.AddLogical(logical)
	require.NoError(t, err)
	_, err = l.AddAllocation(entity.Allocation{ID: allocID, LogicalID: logical.ID, Unbound: true})
	require.NoError(t, err)
	_, err = l.AddPhysical(entity.Physical{ID: physID, AllocationID: allocID, AdapterID: adapterID})
	require.NoError(t, err)
}
