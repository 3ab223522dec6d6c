// Package adapter is the extension point storage backends use to plug into
// planning.
//
// An Adapter wraps one catalog adapter record, names the convention it
// executes in and contributes the rules that move nodes into that
// convention. Scan rules only fire when the snapshot places every partition
// of the scanned entity on the adapter.
package adapter

import (
	"fmt"
	"slices"

	"github.com/roach88/polystore/internal/algebra"
	"github.com/roach88/polystore/internal/entity"
	"github.com/roach88/polystore/internal/planner"
	"github.com/roach88/polystore/internal/snapshot"
)

// Adapter is a storage backend as seen by the planner.
type Adapter interface {
	Info() entity.Adapter
	Convention() algebra.Convention
	Rules() []planner.Rule
}

// Factory builds an Adapter from its catalog record.
type Factory func(info entity.Adapter) (Adapter, error)

// Registry maps adapter types to factories.
type Registry struct {
	factories map[entity.AdapterType]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[entity.AdapterType]Factory)}
}

// Add registers the factory for an adapter type, replacing any previous one.
func (r *Registry) Add(t entity.AdapterType, f Factory) {
	r.factories[t] = f
}

// New builds the adapter for info.
func (r *Registry) New(info entity.Adapter) (Adapter, error) {
	f, ok := r.factories[info.Type]
	if !ok {
		return nil, fmt.Errorf("adapter %q: no factory for type %q", info.Name, info.Type)
	}
	a, err := f(info)
	if err != nil {
		return nil, fmt.Errorf("adapter %q: %w", info.Name, err)
	}
	return a, nil
}

// FromSnapshot instantiates an adapter for every adapter record in snap,
// ordered by id.
func FromSnapshot(snap *snapshot.Snapshot, r *Registry) ([]Adapter, error) {
	infos := snap.Adapters()
	out := make([]Adapter, 0, len(infos))
	for _, info := range infos {
		a, err := r.New(info)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Register adds the rules of every adapter to p. Two adapters may not claim
// the same non-enumerable convention.
func Register(p *planner.Planner, adapters ...Adapter) error {
	owners := make(map[algebra.Convention]string)
	for _, a := range adapters {
		conv := a.Convention()
		if owner, ok := owners[conv]; ok && conv != algebra.Enumerable {
			return fmt.Errorf("register adapter %q: convention %s already claimed by %q", a.Info().Name, conv, owner)
		}
		owners[conv] = a.Info().Name
		if err := p.Register(a.Rules()...); err != nil {
			return fmt.Errorf("register adapter %q: %w", a.Info().Name, err)
		}
	}
	return nil
}

// PlacementOf collects the partitions of logical materialized on the adapter.
// The second result is false unless every allocation of logical has a
// physical on the adapter.
func PlacementOf(snap *snapshot.Snapshot, logical entity.Logical, info entity.Adapter) (algebra.Placement, bool) {
	allocations := snap.Allocations(logical.ID)
	if len(allocations) == 0 {
		return algebra.Placement{}, false
	}
	p := algebra.Placement{AdapterID: info.ID, AdapterName: info.Name}
	for _, alloc := range allocations {
		idx := slices.IndexFunc(snap.Physicals(alloc.ID), func(ph entity.Physical) bool {
			return ph.AdapterID == info.ID
		})
		if idx < 0 {
			return algebra.Placement{}, false
		}
		phys := snap.Physicals(alloc.ID)[idx]
		p.NamespaceName = phys.NamespaceName
		p.Partitions = append(p.Partitions, algebra.Partition{
			AllocationID: alloc.ID,
			PhysicalID:   phys.ID,
			PhysicalName: phys.Name,
			Qualifiers:   slices.Clone(alloc.Qualifiers),
		})
	}
	return p, true
}

// ScanRule places scans of entities fully materialized on the adapter into
// conv.
func ScanRule(info entity.Adapter, conv algebra.Convention) planner.Rule {
	return &planner.ConverterRule{
		Description: "ScanRule(" + info.Name + ")",
		Source:      planner.Operand{Op: algebra.OpScan, In: algebra.None},
		Target:      conv,
		Predicate: func(call *planner.Call) bool {
			_, ok := PlacementOf(call.Snapshot, call.Node.(*algebra.Scan).Entity(), info)
			return ok
		},
		Fn: func(call *planner.Call) (algebra.Node, error) {
			scan := call.Node.(*algebra.Scan)
			p, ok := PlacementOf(call.Snapshot, scan.Entity(), info)
			if !ok {
				return nil, fmt.Errorf("%s is not placed on adapter %s", scan.Entity().Name, info.Name)
			}
			return scan.Place(p, conv), nil
		},
	}
}

// ConverterRule wraps any node in from with a Converter into to.
func ConverterRule(from, to algebra.Convention) planner.Rule {
	return &planner.ConverterRule{
		Description: "ConverterRule(" + from.String() + "->" + to.String() + ")",
		Source:      planner.Operand{In: from},
		Target:      to,
		Fn: func(call *planner.Call) (algebra.Node, error) {
			return algebra.NewConverter(call.Node, to), nil
		},
	}
}

// ConvertInputsTo converts the inputs of call's node to conv and rebuilds
// the node in conv over them.
func ConvertInputsTo(call *planner.Call, conv algebra.Convention) (algebra.Node, error) {
	inputs, err := call.ConvertInputs(conv)
	if err != nil {
		return nil, err
	}
	n := call.Node
	if len(inputs) > 0 {
		n = n.WithInputs(inputs)
	}
	return algebra.Retarget(n, conv), nil
}
