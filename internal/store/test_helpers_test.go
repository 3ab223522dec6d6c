package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/polystore/internal/entity"
	"github.com/roach88/polystore/internal/snapshot"
	"github.com/roach88/polystore/internal/types"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestContents builds the Orders catalog at the given generation.
func createTestContents(generation int64) snapshot.Contents {
	row := types.Row(
		types.F("id", types.Of(types.BigInt)),
		types.F("customer", types.NullableOf(types.Varchar)),
	)
	return snapshot.Contents{
		Generation: generation,
		Namespaces: []snapshot.NamespaceContents{{
			Namespace: entity.Namespace{ID: 7, Name: "public", Model: entity.ModelRelational},
			Logicals: []entity.Logical{
				{ID: 1, Name: "orders", NamespaceID: 7, EntityType: entity.TypeTable, DataModel: entity.ModelRelational, RowType: row},
			},
			Allocations: []entity.Allocation{
				{ID: 10, Name: "orders", LogicalID: 1, NamespaceID: 7, EntityType: entity.TypeTable, DataModel: entity.ModelRelational, PartitionGroupID: 10, Unbound: true},
				{ID: 11, Name: "orders_eu", LogicalID: 1, NamespaceID: 7, EntityType: entity.TypeTable, DataModel: entity.ModelRelational, PartitionGroupID: 11, Qualifiers: []string{"eu"}},
			},
			Physicals: []entity.Physical{
				{ID: 100, Name: "orders", NamespaceID: 7, NamespaceName: "public", EntityType: entity.TypeTable, DataModel: entity.ModelRelational, LogicalID: 1, AllocationID: 10, AdapterID: 5, RowType: row},
			},
		}},
		Adapters: []entity.Adapter{
			{ID: 5, Name: "mem", Type: entity.AdapterScan, Convention: "ENUMERABLE", Settings: map[string]string{"rows": "0"}},
		},
	}
}
