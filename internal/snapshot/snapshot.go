// Package snapshot provides the immutable, point-in-time view of the catalog
// that query planning reads.
//
// A Snapshot is assembled once per commit generation and never changes.
// Every accessor answers a lookup miss with an absent value or an empty
// slice, so planning code can treat "not defined yet" uniformly.
package snapshot

import (
	"cmp"
	"slices"
	"strings"

	"github.com/roach88/polystore/internal/entity"
	"github.com/roach88/polystore/internal/pattern"
)

// NamespaceContents is the committed state of one catalog layer.
type NamespaceContents struct {
	Namespace   entity.Namespace
	Logicals    []entity.Logical
	Allocations []entity.Allocation
	Physicals   []entity.Physical
}

// Contents is the full committed state a Snapshot is built from.
type Contents struct {
	Generation int64
	Namespaces []NamespaceContents
	Adapters   []entity.Adapter
}

type namespaceView struct {
	ns       entity.Namespace
	entities []entity.Entity
	logicals map[string]entity.Logical
}

// Snapshot is an immutable view of the catalog at one commit generation.
type Snapshot struct {
	generation int64
	contents   Contents

	namespaces     map[int64]*namespaceView
	namespaceNames map[string]int64
	byID           map[int64]entity.Entity

	allocsByLogical map[int64][]entity.Allocation
	physByAlloc     map[int64][]entity.Physical
	physByLogical   map[int64][]entity.Physical
	physByAdapter   map[int64][]entity.Physical

	adapters     map[int64]entity.Adapter
	adapterNames map[string]int64
}

// Empty returns a snapshot of an empty catalog at generation 0.
func Empty() *Snapshot {
	return New(Contents{})
}

// New builds a snapshot from committed catalog contents. The snapshot keeps
// a deep copy of c.
func New(c Contents) *Snapshot {
	c = c.clone()
	s := &Snapshot{
		generation:      c.Generation,
		contents:        c,
		namespaces:      make(map[int64]*namespaceView, len(c.Namespaces)),
		namespaceNames:  make(map[string]int64, len(c.Namespaces)),
		byID:            make(map[int64]entity.Entity),
		allocsByLogical: make(map[int64][]entity.Allocation),
		physByAlloc:     make(map[int64][]entity.Physical),
		physByLogical:   make(map[int64][]entity.Physical),
		physByAdapter:   make(map[int64][]entity.Physical),
		adapters:        make(map[int64]entity.Adapter, len(c.Adapters)),
		adapterNames:    make(map[string]int64, len(c.Adapters)),
	}

	for _, nc := range c.Namespaces {
		view := &namespaceView{ns: nc.Namespace, logicals: make(map[string]entity.Logical, len(nc.Logicals))}
		s.namespaces[nc.Namespace.ID] = view
		s.namespaceNames[nc.Namespace.Name] = nc.Namespace.ID

		for _, l := range nc.Logicals {
			view.entities = append(view.entities, l)
			view.logicals[foldName(nc.Namespace, l.Name)] = l
			s.byID[l.ID] = l
		}
		for _, a := range nc.Allocations {
			view.entities = append(view.entities, a)
			s.byID[a.ID] = a
			s.allocsByLogical[a.LogicalID] = append(s.allocsByLogical[a.LogicalID], a)
		}
		for _, p := range nc.Physicals {
			view.entities = append(view.entities, p)
			s.byID[p.ID] = p
			s.physByAlloc[p.AllocationID] = append(s.physByAlloc[p.AllocationID], p)
			s.physByLogical[p.LogicalID] = append(s.physByLogical[p.LogicalID], p)
			s.physByAdapter[p.AdapterID] = append(s.physByAdapter[p.AdapterID], p)
		}
		slices.SortFunc(view.entities, byEntityID)
	}
	for _, list := range s.allocsByLogical {
		slices.SortFunc(list, func(a, b entity.Allocation) int { return cmp.Compare(a.ID, b.ID) })
	}
	for _, m := range []map[int64][]entity.Physical{s.physByAlloc, s.physByLogical, s.physByAdapter} {
		for _, list := range m {
			slices.SortFunc(list, func(a, b entity.Physical) int { return cmp.Compare(a.ID, b.ID) })
		}
	}
	for _, a := range c.Adapters {
		s.adapters[a.ID] = a
		s.adapterNames[a.Name] = a.ID
	}
	return s
}

// Generation returns the commit generation the snapshot was taken at.
func (s *Snapshot) Generation() int64 {
	return s.generation
}

// Contents returns a deep copy of the state the snapshot was built from.
func (s *Snapshot) Contents() Contents {
	return s.contents.clone()
}

func (c Contents) clone() Contents {
	out := Contents{
		Generation: c.Generation,
		Namespaces: make([]NamespaceContents, len(c.Namespaces)),
		Adapters:   cloneEach(c.Adapters, entity.Adapter.Clone),
	}
	for i, nc := range c.Namespaces {
		out.Namespaces[i] = NamespaceContents{
			Namespace:   nc.Namespace,
			Logicals:    cloneEach(nc.Logicals, entity.Logical.Clone),
			Allocations: cloneEach(nc.Allocations, entity.Allocation.Clone),
			Physicals:   cloneEach(nc.Physicals, entity.Physical.Clone),
		}
	}
	return out
}

// Entity returns the entity with the given id in any layer.
func (s *Snapshot) Entity(id int64) (entity.Entity, bool) {
	e, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return entity.Clone(e), true
}

// Entities returns the entities of a namespace whose name matches p, ordered
// by id.
func (s *Snapshot) Entities(namespaceID int64, p pattern.Pattern) []entity.Entity {
	view, ok := s.namespaces[namespaceID]
	if !ok {
		return []entity.Entity{}
	}
	out := []entity.Entity{}
	for _, e := range view.entities {
		if p.Match(e.EntityName()) {
			out = append(out, entity.Clone(e))
		}
	}
	return out
}

// Logical returns the logical entity with the given id.
func (s *Snapshot) Logical(id int64) (entity.Logical, bool) {
	l, ok := s.byID[id].(entity.Logical)
	return l.Clone(), ok
}

// LogicalByName looks up a logical entity by name, honoring the namespace's
// case sensitivity.
func (s *Snapshot) LogicalByName(namespaceID int64, name string) (entity.Logical, bool) {
	view, ok := s.namespaces[namespaceID]
	if !ok {
		return entity.Logical{}, false
	}
	l, ok := view.logicals[foldName(view.ns, name)]
	return l.Clone(), ok
}

// Allocation returns the allocation with the given id.
func (s *Snapshot) Allocation(id int64) (entity.Allocation, bool) {
	a, ok := s.byID[id].(entity.Allocation)
	return a.Clone(), ok
}

// Allocations returns the allocations of a logical entity.
func (s *Snapshot) Allocations(logicalID int64) []entity.Allocation {
	return cloneEach(s.allocsByLogical[logicalID], entity.Allocation.Clone)
}

// Physical returns the physical entity with the given id.
func (s *Snapshot) Physical(id int64) (entity.Physical, bool) {
	p, ok := s.byID[id].(entity.Physical)
	return p.Clone(), ok
}

// Physicals returns the materializations of an allocation.
func (s *Snapshot) Physicals(allocationID int64) []entity.Physical {
	return cloneEach(s.physByAlloc[allocationID], entity.Physical.Clone)
}

// PhysicalsOf returns every materialization of a logical entity.
func (s *Snapshot) PhysicalsOf(logicalID int64) []entity.Physical {
	return cloneEach(s.physByLogical[logicalID], entity.Physical.Clone)
}

// PlacementsOn returns every physical entity stored on an adapter.
func (s *Snapshot) PlacementsOn(adapterID int64) []entity.Physical {
	return cloneEach(s.physByAdapter[adapterID], entity.Physical.Clone)
}

// HasPlacement reports whether a logical entity has a physical on an adapter.
func (s *Snapshot) HasPlacement(logicalID, adapterID int64) bool {
	for _, p := range s.physByLogical[logicalID] {
		if p.AdapterID == adapterID {
			return true
		}
	}
	return false
}

// Namespace returns the namespace with the given id.
func (s *Snapshot) Namespace(id int64) (entity.Namespace, bool) {
	view, ok := s.namespaces[id]
	if !ok {
		return entity.Namespace{}, false
	}
	return view.ns, true
}

// NamespaceByName returns the namespace with the given name.
func (s *Snapshot) NamespaceByName(name string) (entity.Namespace, bool) {
	id, ok := s.namespaceNames[name]
	if !ok {
		return entity.Namespace{}, false
	}
	return s.Namespace(id)
}

// Namespaces returns all namespaces ordered by id.
func (s *Snapshot) Namespaces() []entity.Namespace {
	out := make([]entity.Namespace, 0, len(s.namespaces))
	for _, v := range s.namespaces {
		out = append(out, v.ns)
	}
	slices.SortFunc(out, func(a, b entity.Namespace) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Adapter returns the adapter with the given id.
func (s *Snapshot) Adapter(id int64) (entity.Adapter, bool) {
	a, ok := s.adapters[id]
	return a.Clone(), ok
}

// AdapterByName returns the adapter with the given name.
func (s *Snapshot) AdapterByName(name string) (entity.Adapter, bool) {
	id, ok := s.adapterNames[name]
	if !ok {
		return entity.Adapter{}, false
	}
	return s.Adapter(id)
}

// Adapters returns all adapters ordered by id.
func (s *Snapshot) Adapters() []entity.Adapter {
	out := make([]entity.Adapter, 0, len(s.adapters))
	for _, a := range s.adapters {
		out = append(out, a.Clone())
	}
	slices.SortFunc(out, func(a, b entity.Adapter) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func foldName(ns entity.Namespace, name string) string {
	if ns.CaseSensitive {
		return name
	}
	return strings.ToLower(name)
}

func byEntityID(a, b entity.Entity) int {
	return cmp.Compare(a.EntityID(), b.EntityID())
}

// cloneEach deep-copies s. An empty or nil s yields an empty, non-nil slice.
func cloneEach[T any](s []T, clone func(T) T) []T {
	out := make([]T, len(s))
	for i, v := range s {
		out[i] = clone(v)
	}
	return out
}
