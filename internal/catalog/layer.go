package catalog

import (
	"cmp"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/roach88/polystore/internal/entity"
	"github.com/roach88/polystore/internal/pattern"
	"github.com/roach88/polystore/internal/snapshot"
	"github.com/roach88/polystore/internal/types"
)

// ChangeOp is the kind of a staged change.
type ChangeOp string

const (
	OpAdd  ChangeOp = "add"
	OpDrop ChangeOp = "drop"
)

// Change is one entry of a layer's staged change log.
type Change struct {
	Op          ChangeOp
	Layer       entity.Layer
	ID          int64
	NamespaceID int64
}

type layerState struct {
	logicals    map[int64]entity.Logical
	allocations map[int64]entity.Allocation
	physicals   map[int64]entity.Physical
	names       map[string]int64
}

func newLayerState() *layerState {
	return &layerState{
		logicals:    make(map[int64]entity.Logical),
		allocations: make(map[int64]entity.Allocation),
		physicals:   make(map[int64]entity.Physical),
		names:       make(map[string]int64),
	}
}

func (s *layerState) clone() *layerState {
	return &layerState{
		logicals:    maps.Clone(s.logicals),
		allocations: maps.Clone(s.allocations),
		physicals:   maps.Clone(s.physicals),
		names:       maps.Clone(s.names),
	}
}

// Layer holds the entities of one namespace.
//
// Mutations are staged on a copy of the committed state and become part of
// snapshots only after Commit. The staged state is visible through the
// layer's own accessors. All methods are safe for concurrent use; mutations
// are serialized by the layer's mutex.
type Layer struct {
	mu sync.Mutex

	ns       entity.Namespace
	ids      *IDGenerator
	registry *idRegistry
	adapters *adapterSet

	// published is set when a direct Commit promotes state that the owning
	// catalog has not yet put in a snapshot. Nil for standalone layers.
	published *atomic.Bool

	committed *layerState
	staged    *layerState
	changes   []Change
}

// NewLayer creates a standalone layer with its own id space.
// Physicals added to a standalone layer are not checked against an adapter
// registry.
func NewLayer(ns entity.Namespace) *Layer {
	return newLayer(ns, NewIDGenerator(), newIDRegistry(), nil, nil)
}

func newLayer(ns entity.Namespace, ids *IDGenerator, registry *idRegistry, adapters *adapterSet, published *atomic.Bool) *Layer {
	return &Layer{
		ns:        ns,
		ids:       ids,
		registry:  registry,
		adapters:  adapters,
		published: published,
		committed: newLayerState(),
	}
}

// Namespace returns the namespace this layer stores.
func (l *Layer) Namespace() entity.Namespace {
	return l.ns
}

// current returns the state readers see. Caller holds l.mu.
func (l *Layer) current() *layerState {
	if l.staged != nil {
		return l.staged
	}
	return l.committed
}

// stage returns the working copy, creating it on first mutation. Caller holds l.mu.
func (l *Layer) stage() *layerState {
	if l.staged == nil {
		l.staged = l.committed.clone()
	}
	return l.staged
}

func (l *Layer) foldName(name string) string {
	if l.ns.CaseSensitive {
		return name
	}
	return strings.ToLower(name)
}

func (l *Layer) claimID(id int64) (int64, error) {
	if id == 0 {
		for {
			id = l.ids.Next()
			if l.registry.claim(id) {
				return id, nil
			}
		}
	}
	if id < 0 {
		return 0, violation(CodeInvalidEntity, id, "entity ids must be positive")
	}
	if !l.registry.claim(id) {
		return 0, violation(CodeDuplicateID, id, "id is already in use")
	}
	l.ids.Observe(id)
	return id, nil
}

// AddLogical stages a logical entity. An id of 0 is assigned automatically.
// Missing namespace id and data model are taken from the layer's namespace.
func (l *Layer) AddLogical(e entity.Logical) (entity.Logical, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.NamespaceID == 0 {
		e.NamespaceID = l.ns.ID
	}
	if e.NamespaceID != l.ns.ID {
		return entity.Logical{}, violation(CodeUnknownNamespace, e.ID, "logical %q belongs to namespace %d, not %d", e.Name, e.NamespaceID, l.ns.ID)
	}
	if e.DataModel == "" {
		e.DataModel = l.ns.Model
	}
	if err := e.Validate(); err != nil {
		return entity.Logical{}, asInvariant(err, e.ID)
	}
	if _, taken := l.current().names[l.foldName(e.Name)]; taken {
		return entity.Logical{}, violation(CodeDuplicateName, e.ID, "logical %q already exists in namespace %s", e.Name, l.ns.Name)
	}

	id, err := l.claimID(e.ID)
	if err != nil {
		return entity.Logical{}, err
	}
	e.ID = id
	e.RowType = e.RowType.Clone()

	st := l.stage()
	st.logicals[id] = e
	st.names[l.foldName(e.Name)] = id
	l.record(OpAdd, entity.LayerLogical, id)
	return e, nil
}

// AddAllocation stages a partition of an existing logical entity.
// Namespace, entity type and data model are copied from the logical entity.
// A zero PartitionGroupID puts the allocation in a group of its own.
func (l *Layer) AddAllocation(a entity.Allocation) (entity.Allocation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addAllocationLocked(a)
}

func (l *Layer) addAllocationLocked(a entity.Allocation) (entity.Allocation, error) {
	logical, ok := l.current().logicals[a.LogicalID]
	if !ok {
		return entity.Allocation{}, violation(CodeDanglingReference, a.ID, "allocation references unknown logical entity %d", a.LogicalID)
	}
	a.NamespaceID = logical.NamespaceID
	a.EntityType = logical.EntityType
	a.DataModel = logical.DataModel
	a.Qualifiers = slices.Clone(a.Qualifiers)
	if a.Name == "" {
		a.Name = logical.Name
	}
	if err := a.Validate(); err != nil {
		return entity.Allocation{}, asInvariant(err, a.ID)
	}

	id, err := l.claimID(a.ID)
	if err != nil {
		return entity.Allocation{}, err
	}
	a.ID = id
	if a.PartitionGroupID == 0 {
		a.PartitionGroupID = id
	}

	l.stage().allocations[id] = a
	l.record(OpAdd, entity.LayerAllocation, id)
	return a, nil
}

// AddPartitionGroup stages one bound allocation per qualifier set, all sharing
// a fresh partition group id. Nothing is staged if any allocation is invalid.
func (l *Layer) AddPartitionGroup(logicalID int64, qualifiers [][]string) ([]entity.Allocation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	logical, ok := l.current().logicals[logicalID]
	if !ok {
		return nil, violation(CodeDanglingReference, 0, "partition group references unknown logical entity %d", logicalID)
	}
	for i, q := range qualifiers {
		if len(q) == 0 {
			return nil, violation(CodeInvalidEntity, 0, "partition %d of %s has no qualifiers", i, logical.Name)
		}
	}

	groupID := l.ids.Next()
	before, changesBefore := l.staged, len(l.changes)
	out := make([]entity.Allocation, 0, len(qualifiers))
	for _, q := range qualifiers {
		a, err := l.addAllocationLocked(entity.Allocation{
			Name:             logical.Name + "_" + strings.Join(q, "_"),
			LogicalID:        logicalID,
			PartitionGroupID: groupID,
			Qualifiers:       slices.Clone(q),
		})
		if err != nil {
			for _, added := range out {
				l.registry.release(added.ID)
				delete(l.staged.allocations, added.ID)
			}
			l.changes = l.changes[:changesBefore]
			if before == nil && len(l.changes) == 0 {
				l.staged = nil
			}
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// AddPhysical stages a materialization of an allocation on an adapter.
// An empty row type defaults to the logical row type; otherwise it must be
// structurally compatible with it.
func (l *Layer) AddPhysical(p entity.Physical) (entity.Physical, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.current()
	alloc, ok := cur.allocations[p.AllocationID]
	if !ok {
		return entity.Physical{}, violation(CodeDanglingReference, p.ID, "physical references unknown allocation %d", p.AllocationID)
	}
	if p.LogicalID == 0 {
		p.LogicalID = alloc.LogicalID
	}
	if p.LogicalID != alloc.LogicalID {
		return entity.Physical{}, violation(CodeMismatchedReference, p.ID, "allocation %d belongs to logical %d, not %d", alloc.ID, alloc.LogicalID, p.LogicalID)
	}
	logical := cur.logicals[alloc.LogicalID]
	if l.adapters != nil && !l.adapters.has(p.AdapterID) {
		return entity.Physical{}, violation(CodeUnknownAdapter, p.ID, "physical references unknown adapter %d", p.AdapterID)
	}
	for _, existing := range cur.physicals {
		if existing.AllocationID == p.AllocationID && existing.AdapterID == p.AdapterID {
			return entity.Physical{}, violation(CodeDuplicatePlacement, p.ID, "allocation %d is already placed on adapter %d", p.AllocationID, p.AdapterID)
		}
	}

	p.NamespaceID = l.ns.ID
	p.NamespaceName = l.ns.Name
	p.EntityType = logical.EntityType
	p.DataModel = logical.DataModel
	if p.Name == "" {
		p.Name = logical.Name
	}
	if len(p.RowType.Fields) == 0 {
		p.RowType = logical.RowType
	} else if err := types.CheckCompatible(logical.RowType, p.RowType); err != nil {
		return entity.Physical{}, violation(CodeIncompatibleRowType, p.ID, "physical row type of %s: %v", logical.Name, err)
	}
	p.RowType = p.RowType.Clone()
	if err := p.Validate(); err != nil {
		return entity.Physical{}, asInvariant(err, p.ID)
	}

	id, err := l.claimID(p.ID)
	if err != nil {
		return entity.Physical{}, err
	}
	p.ID = id

	l.stage().physicals[id] = p
	l.record(OpAdd, entity.LayerPhysical, id)
	return p, nil
}

// DropLogical stages removal of a logical entity with its allocations and
// physicals.
func (l *Layer) DropLogical(id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.current().logicals[id]
	if !ok {
		return violation(CodeUnknownEntity, id, "no logical entity %d in namespace %s", id, l.ns.Name)
	}
	st := l.stage()
	for _, a := range sortedAllocations(st.allocations) {
		if a.LogicalID == id {
			l.dropAllocationLocked(st, a.ID)
		}
	}
	delete(st.logicals, id)
	delete(st.names, l.foldName(e.Name))
	l.record(OpDrop, entity.LayerLogical, id)
	return nil
}

// DropAllocation stages removal of an allocation and its physicals.
func (l *Layer) DropAllocation(id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.current().allocations[id]; !ok {
		return violation(CodeUnknownEntity, id, "no allocation %d in namespace %s", id, l.ns.Name)
	}
	l.dropAllocationLocked(l.stage(), id)
	return nil
}

func (l *Layer) dropAllocationLocked(st *layerState, id int64) {
	for _, p := range sortedPhysicals(st.physicals) {
		if p.AllocationID == id {
			delete(st.physicals, p.ID)
			l.record(OpDrop, entity.LayerPhysical, p.ID)
		}
	}
	delete(st.allocations, id)
	l.record(OpDrop, entity.LayerAllocation, id)
}

// DropPhysical stages removal of one placement.
func (l *Layer) DropPhysical(id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.current().physicals[id]; !ok {
		return violation(CodeUnknownEntity, id, "no physical %d in namespace %s", id, l.ns.Name)
	}
	delete(l.stage().physicals, id)
	l.record(OpDrop, entity.LayerPhysical, id)
	return nil
}

// dropPhysicalsOnLocked stages removal of every placement on an adapter.
// Caller holds l.mu.
func (l *Layer) dropPhysicalsOnLocked(adapterID int64) int {
	var n int
	for _, p := range sortedPhysicals(l.current().physicals) {
		if p.AdapterID == adapterID {
			delete(l.stage().physicals, p.ID)
			l.record(OpDrop, entity.LayerPhysical, p.ID)
			n++
		}
	}
	return n
}

func (l *Layer) record(op ChangeOp, layer entity.Layer, id int64) {
	l.changes = append(l.changes, Change{Op: op, Layer: layer, ID: id, NamespaceID: l.ns.ID})
}

// HasUncommittedChanges reports whether mutations are staged.
func (l *Layer) HasUncommittedChanges() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.staged != nil
}

// Changes returns the staged change log in the order mutations were made.
func (l *Layer) Changes() []Change {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.changes)
}

// Commit makes staged mutations part of the committed state.
// It is a no-op when nothing is staged.
//
// For a layer owned by a Catalog the committed state reaches snapshots and
// the persister on the next Catalog.Commit, which always builds a new
// generation after a direct layer commit.
func (l *Layer) Commit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.staged != nil && l.published != nil {
		l.published.Store(true)
	}
	l.commitLocked()
}

func (l *Layer) commitLocked() {
	if l.staged == nil {
		return
	}
	for _, c := range l.changes {
		if c.Op == OpDrop {
			l.registry.release(c.ID)
		}
	}
	l.committed = l.staged
	l.staged = nil
	l.changes = nil
}

// Rollback discards staged mutations. It is a no-op when nothing is staged.
func (l *Layer) Rollback() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollbackLocked()
}

func (l *Layer) rollbackLocked() {
	if l.staged == nil {
		return
	}
	for _, c := range l.changes {
		if c.Op == OpAdd {
			l.registry.release(c.ID)
		}
	}
	l.staged = nil
	l.changes = nil
}

// Entity returns the entity with the given id, including staged entities.
func (l *Layer) Entity(id int64) (entity.Entity, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.current()
	if e, ok := cur.logicals[id]; ok {
		return e, true
	}
	if e, ok := cur.allocations[id]; ok {
		return e, true
	}
	if e, ok := cur.physicals[id]; ok {
		return e, true
	}
	return nil, false
}

// Entities returns the entities whose name matches p, ordered by id.
func (l *Layer) Entities(p pattern.Pattern) []entity.Entity {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.current()
	out := []entity.Entity{}
	for _, e := range cur.logicals {
		if p.Match(e.Name) {
			out = append(out, e)
		}
	}
	for _, e := range cur.allocations {
		if p.Match(e.Name) {
			out = append(out, e)
		}
	}
	for _, e := range cur.physicals {
		if p.Match(e.Name) {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b entity.Entity) int { return cmp.Compare(a.EntityID(), b.EntityID()) })
	return out
}

// Logical returns the logical entity with the given id.
func (l *Layer) Logical(id int64) (entity.Logical, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.current().logicals[id]
	return e, ok
}

// LogicalByName returns the logical entity with the given name.
func (l *Layer) LogicalByName(name string) (entity.Logical, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := l.current()
	id, ok := cur.names[l.foldName(name)]
	if !ok {
		return entity.Logical{}, false
	}
	return cur.logicals[id], true
}

// Allocations returns the allocations of a logical entity ordered by id.
func (l *Layer) Allocations(logicalID int64) []entity.Allocation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []entity.Allocation{}
	for _, a := range sortedAllocations(l.current().allocations) {
		if a.LogicalID == logicalID {
			out = append(out, a)
		}
	}
	return out
}

// Physicals returns the materializations of an allocation ordered by id.
func (l *Layer) Physicals(allocationID int64) []entity.Physical {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []entity.Physical{}
	for _, p := range sortedPhysicals(l.current().physicals) {
		if p.AllocationID == allocationID {
			out = append(out, p)
		}
	}
	return out
}

// committedContentsLocked returns the committed state. Caller holds l.mu.
func (l *Layer) committedContentsLocked() snapshot.NamespaceContents {
	return contentsOf(l.ns, l.committed)
}

// currentContentsLocked returns the state Commit would produce. Caller holds l.mu.
func (l *Layer) currentContentsLocked() snapshot.NamespaceContents {
	return contentsOf(l.ns, l.current())
}

// restoreLocked replaces the committed state. Caller holds l.mu.
func (l *Layer) restoreLocked(nc snapshot.NamespaceContents) error {
	st := newLayerState()
	for _, e := range nc.Logicals {
		st.logicals[e.ID] = e
		st.names[l.foldName(e.Name)] = e.ID
	}
	for _, e := range nc.Allocations {
		if _, ok := st.logicals[e.LogicalID]; !ok {
			return violation(CodeDanglingReference, e.ID, "allocation references unknown logical entity %d", e.LogicalID)
		}
		st.allocations[e.ID] = e
	}
	for _, e := range nc.Physicals {
		a, ok := st.allocations[e.AllocationID]
		if !ok || a.LogicalID != e.LogicalID {
			return violation(CodeDanglingReference, e.ID, "physical references unknown allocation %d", e.AllocationID)
		}
		st.physicals[e.ID] = e
	}
	ids := slices.Concat(slices.Collect(maps.Keys(st.logicals)), slices.Collect(maps.Keys(st.allocations)), slices.Collect(maps.Keys(st.physicals)))
	for _, id := range ids {
		if !l.registry.claim(id) {
			return violation(CodeDuplicateID, id, "id is already in use")
		}
	}
	for _, id := range ids {
		l.ids.Observe(id)
	}
	l.committed = st
	l.staged = nil
	l.changes = nil
	return nil
}

func contentsOf(ns entity.Namespace, st *layerState) snapshot.NamespaceContents {
	logicals := slices.Collect(maps.Values(st.logicals))
	slices.SortFunc(logicals, func(a, b entity.Logical) int { return cmp.Compare(a.ID, b.ID) })
	return snapshot.NamespaceContents{
		Namespace:   ns,
		Logicals:    logicals,
		Allocations: sortedAllocations(st.allocations),
		Physicals:   sortedPhysicals(st.physicals),
	}
}

func sortedAllocations(m map[int64]entity.Allocation) []entity.Allocation {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, func(a, b entity.Allocation) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func sortedPhysicals(m map[int64]entity.Physical) []entity.Physical {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, func(a, b entity.Physical) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func asInvariant(err error, id int64) error {
	var ve *entity.ValidationError
	if errors.As(err, &ve) {
		return &InvariantError{Code: CodeInvalidEntity, EntityID: id, Message: ve.Message}
	}
	return err
}
