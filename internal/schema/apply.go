package schema

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/polystore/internal/catalog"
	"github.com/roach88/polystore/internal/entity"
	"github.com/roach88/polystore/internal/snapshot"
)

// Apply stages every declaration in c and commits them as one generation.
// Nothing is committed when any declaration is rejected.
func (d *Declarations) Apply(ctx context.Context, c *catalog.Catalog) (*snapshot.Snapshot, error) {
	if err := d.stage(c); err != nil {
		c.Rollback()
		return nil, err
	}
	snap, err := c.Commit(ctx)
	if err != nil {
		return nil, fmt.Errorf("commit declarations: %w", err)
	}
	slog.Debug("declarations applied",
		"generation", snap.Generation(),
		"adapters", len(d.Adapters),
		"namespaces", len(d.Namespaces),
	)
	return snap, nil
}

func (d *Declarations) stage(c *catalog.Catalog) error {
	adapterIDs := make(map[string]int64, len(d.Adapters))
	for _, a := range d.Adapters {
		added, err := c.AddAdapter(entity.Adapter{
			ID:         a.ID,
			Name:       a.Name,
			Type:       a.Type,
			Convention: a.Convention,
			Settings:   a.Settings,
		})
		if err != nil {
			return fmt.Errorf("adapter %s: %w", a.Name, err)
		}
		adapterIDs[a.Name] = added.ID
	}
	for _, info := range c.Snapshot().Adapters() {
		if _, ok := adapterIDs[info.Name]; !ok {
			adapterIDs[info.Name] = info.ID
		}
	}

	for _, ns := range d.Namespaces {
		added, err := c.AddNamespace(entity.Namespace{
			ID:            ns.ID,
			Name:          ns.Name,
			Model:         ns.Model,
			CaseSensitive: ns.CaseSensitive,
		})
		if err != nil {
			return fmt.Errorf("namespace %s: %w", ns.Name, err)
		}
		layer, ok := c.Layer(added.ID)
		if !ok {
			return fmt.Errorf("namespace %s: layer %d not found", ns.Name, added.ID)
		}
		for _, e := range ns.Entities {
			if err := stageEntity(layer, e, adapterIDs); err != nil {
				return fmt.Errorf("namespace %s: entity %s: %w", ns.Name, e.Name, err)
			}
		}
	}
	return nil
}

// stageEntity adds the logical entity, its partitions and their placements.
// Partitions with qualifiers form one partition group.
func stageEntity(l *catalog.Layer, e EntityDecl, adapterIDs map[string]int64) error {
	logical, err := l.AddLogical(entity.Logical{
		ID:         e.ID,
		Name:       e.Name,
		EntityType: e.Type,
		RowType:    e.RowType,
	})
	if err != nil {
		return err
	}

	var group int64
	for i, p := range e.Partitions {
		alloc := entity.Allocation{
			ID:         p.ID,
			Name:       p.Name,
			LogicalID:  logical.ID,
			Qualifiers: p.Qualifiers,
			Unbound:    len(p.Qualifiers) == 0,
		}
		if !alloc.Unbound {
			alloc.PartitionGroupID = group
		}
		added, err := l.AddAllocation(alloc)
		if err != nil {
			return fmt.Errorf("partition %d: %w", i, err)
		}
		if !alloc.Unbound && group == 0 {
			group = added.PartitionGroupID
		}

		for _, pl := range p.Placements {
			adapterID, ok := adapterIDs[pl.Adapter]
			if !ok {
				return fmt.Errorf("partition %d: unknown adapter %q", i, pl.Adapter)
			}
			if _, err := l.AddPhysical(entity.Physical{
				ID:           pl.ID,
				Name:         pl.Name,
				AllocationID: added.ID,
				AdapterID:    adapterID,
			}); err != nil {
				return fmt.Errorf("partition %d on %s: %w", i, pl.Adapter, err)
			}
		}
	}
	return nil
}
