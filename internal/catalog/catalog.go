package catalog

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/polystore/internal/entity"
	"github.com/roach88/polystore/internal/pattern"
	"github.com/roach88/polystore/internal/snapshot"
)

// Persister durably records committed catalog generations.
type Persister interface {
	Save(ctx context.Context, snap *snapshot.Snapshot) error
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithPersister saves every committed generation through p before it becomes
// visible.
func WithPersister(p Persister) Option {
	return func(c *Catalog) {
		c.persister = p
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithIDGenerator sets the id generator.
func WithIDGenerator(g *IDGenerator) Option {
	return func(c *Catalog) {
		if g != nil {
			c.ids = g
		}
	}
}

// Catalog owns every namespace layer and the adapter table.
//
// Lock order: c.mu, then layer mutexes in ascending namespace id, then the
// id registry and adapter set. Namespace and adapter changes are staged like
// entity changes and take effect on Commit.
type Catalog struct {
	mu sync.RWMutex

	ids       *IDGenerator
	registry  *idRegistry
	adapterIn *adapterSet
	persister Persister
	logger    *slog.Logger

	layers        map[int64]*Layer
	newNamespaces []int64

	adapters       map[int64]entity.Adapter
	stagedAdapters map[int64]entity.Adapter

	// unpublished is set by layers committed directly and cleared once a
	// generation holding their state is built.
	unpublished atomic.Bool

	generation int64
	current    *snapshot.Snapshot
}

// New creates an empty catalog at generation 0.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		ids:       NewIDGenerator(),
		registry:  newIDRegistry(),
		adapterIn: newAdapterSet(),
		logger:    slog.Default(),
		layers:    make(map[int64]*Layer),
		adapters:  make(map[int64]entity.Adapter),
		current:   snapshot.Empty(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IDs returns the catalog's id generator.
func (c *Catalog) IDs() *IDGenerator {
	return c.ids
}

// AddNamespace stages a new namespace and its layer.
func (c *Catalog) AddNamespace(ns entity.Namespace) (entity.Namespace, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ns.Name == "" {
		return entity.Namespace{}, violation(CodeInvalidEntity, ns.ID, "namespace name is required")
	}
	if !entity.ValidModels[ns.Model] {
		return entity.Namespace{}, violation(CodeInvalidEntity, ns.ID, "unknown data model %q", ns.Model)
	}
	for _, l := range c.layers {
		if l.ns.Name == ns.Name {
			return entity.Namespace{}, violation(CodeDuplicateName, ns.ID, "namespace %q already exists", ns.Name)
		}
	}
	if ns.ID == 0 {
		ns.ID = c.ids.Next()
	} else {
		if _, ok := c.layers[ns.ID]; ok {
			return entity.Namespace{}, violation(CodeDuplicateID, ns.ID, "namespace id is already in use")
		}
		c.ids.Observe(ns.ID)
	}

	c.layers[ns.ID] = newLayer(ns, c.ids, c.registry, c.adapterIn, &c.unpublished)
	c.newNamespaces = append(c.newNamespaces, ns.ID)
	c.logger.Debug("namespace staged", "namespace", ns.Name, "id", ns.ID, "model", ns.Model)
	return ns, nil
}

// Layer returns the layer of a namespace.
func (c *Catalog) Layer(namespaceID int64) (*Layer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.layers[namespaceID]
	return l, ok
}

// LayerByName returns the layer of the named namespace.
func (c *Catalog) LayerByName(name string) (*Layer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, l := range c.layers {
		if l.ns.Name == name {
			return l, true
		}
	}
	return nil, false
}

// Entity looks up an entity in any namespace, including staged entities.
func (c *Catalog) Entity(id int64) (entity.Entity, bool) {
	for _, l := range c.sortedLayers() {
		if e, ok := l.Entity(id); ok {
			return e, true
		}
	}
	return nil, false
}

// Entities returns the entities of a namespace whose name matches p.
// An unknown namespace yields an empty slice.
func (c *Catalog) Entities(namespaceID int64, p pattern.Pattern) []entity.Entity {
	l, ok := c.Layer(namespaceID)
	if !ok {
		return []entity.Entity{}
	}
	return l.Entities(p)
}

func (c *Catalog) adapterView() map[int64]entity.Adapter {
	if c.stagedAdapters != nil {
		return c.stagedAdapters
	}
	return c.adapters
}

// AddAdapter stages a storage adapter. Adapter names are unique.
func (c *Catalog) AddAdapter(a entity.Adapter) (entity.Adapter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if a.Name == "" {
		return entity.Adapter{}, violation(CodeInvalidEntity, a.ID, "adapter name is required")
	}
	if !entity.ValidAdapterTypes[a.Type] {
		return entity.Adapter{}, violation(CodeInvalidEntity, a.ID, "unknown adapter type %q", a.Type)
	}
	if a.Convention == "" {
		return entity.Adapter{}, violation(CodeInvalidEntity, a.ID, "adapter %s has no convention", a.Name)
	}
	view := c.adapterView()
	for _, existing := range view {
		if existing.Name == a.Name {
			return entity.Adapter{}, violation(CodeDuplicateName, a.ID, "adapter %q already exists", a.Name)
		}
	}
	if a.ID == 0 {
		a.ID = c.ids.Next()
	} else {
		if _, ok := view[a.ID]; ok {
			return entity.Adapter{}, violation(CodeDuplicateID, a.ID, "adapter id is already in use")
		}
		c.ids.Observe(a.ID)
	}
	a.Settings = maps.Clone(a.Settings)

	staged := maps.Clone(view)
	staged[a.ID] = a
	c.stagedAdapters = staged
	c.adapterIn.replace(idSet(staged))
	c.logger.Debug("adapter staged", "adapter", a.Name, "id", a.ID, "convention", a.Convention)
	return a, nil
}

// DropAdapter stages removal of an adapter and of every physical placed on it.
func (c *Catalog) DropAdapter(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := c.adapterView()
	a, ok := view[id]
	if !ok {
		return violation(CodeUnknownAdapter, id, "no adapter %d", id)
	}
	staged := maps.Clone(view)
	delete(staged, id)
	c.stagedAdapters = staged
	c.adapterIn.replace(idSet(staged))

	var dropped int
	for _, l := range c.sortedLayersLocked() {
		l.mu.Lock()
		dropped += l.dropPhysicalsOnLocked(id)
		l.mu.Unlock()
	}
	c.logger.Info("adapter dropped", "adapter", a.Name, "id", id, "placements", dropped)
	return nil
}

// Adapter returns an adapter, including staged ones.
func (c *Catalog) Adapter(id int64) (entity.Adapter, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.adapterView()[id]
	return a.Clone(), ok
}

// HasUncommittedChanges reports whether any namespace, adapter or entity
// change is staged, or a layer committed directly holds state no snapshot
// has yet.
func (c *Catalog) HasUncommittedChanges() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.newNamespaces) > 0 || c.stagedAdapters != nil || c.unpublished.Load() {
		return true
	}
	for _, l := range c.layers {
		if l.HasUncommittedChanges() {
			return true
		}
	}
	return false
}

// Changes returns the staged entity changes of every layer, ordered by
// namespace id.
func (c *Catalog) Changes() []Change {
	var out []Change
	for _, l := range c.sortedLayers() {
		out = append(out, l.Changes()...)
	}
	return out
}

// Commit makes every staged change visible as a new generation.
//
// With a Persister configured, the new generation is saved first; if saving
// fails nothing is committed and the staged changes remain for a retry or
// Rollback. Commit with nothing staged returns the current snapshot.
func (c *Catalog) Commit(ctx context.Context) (*snapshot.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	layers := c.sortedLayersLocked()
	for _, l := range layers {
		l.mu.Lock()
	}
	defer func() {
		for _, l := range layers {
			l.mu.Unlock()
		}
	}()

	var pending int
	for _, l := range layers {
		pending += len(l.changes)
	}
	if pending == 0 && len(c.newNamespaces) == 0 && c.stagedAdapters == nil && !c.unpublished.Load() {
		for _, l := range layers {
			l.commitLocked()
		}
		return c.current, nil
	}

	contents := snapshot.Contents{
		Generation: c.generation + 1,
		Namespaces: make([]snapshot.NamespaceContents, 0, len(layers)),
		Adapters:   sortedAdapters(c.adapterView()),
	}
	for _, l := range layers {
		contents.Namespaces = append(contents.Namespaces, l.currentContentsLocked())
	}
	next := snapshot.New(contents)

	if c.persister != nil {
		if err := c.persister.Save(ctx, next); err != nil {
			return nil, fmt.Errorf("commit generation %d: %w", contents.Generation, err)
		}
	}

	for _, l := range layers {
		l.commitLocked()
	}
	if c.stagedAdapters != nil {
		c.adapters = c.stagedAdapters
		c.stagedAdapters = nil
	}
	c.newNamespaces = nil
	c.unpublished.Store(false)
	c.generation = contents.Generation
	c.current = next

	c.logger.Info("catalog committed",
		"generation", c.generation,
		"changes", pending,
		"namespaces", len(layers),
	)
	return next, nil
}

// Rollback discards every staged change, including staged namespaces and
// adapters.
func (c *Catalog) Rollback() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range c.newNamespaces {
		l := c.layers[id]
		l.Rollback()
		delete(c.layers, id)
	}
	c.newNamespaces = nil

	for _, l := range c.sortedLayersLocked() {
		l.Rollback()
	}
	if c.stagedAdapters != nil {
		c.stagedAdapters = nil
		c.adapterIn.replace(idSet(c.adapters))
	}
	c.logger.Debug("catalog rolled back", "generation", c.generation)
}

// Snapshot returns the immutable view of the last committed generation.
func (c *Catalog) Snapshot() *snapshot.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Generation returns the last committed generation.
func (c *Catalog) Generation() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Restore replaces the whole catalog with previously persisted contents.
// Staged changes are discarded. A failed Restore leaves the catalog as it was.
func (c *Catalog) Restore(contents snapshot.Contents) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	registry := newIDRegistry()
	layers := make(map[int64]*Layer, len(contents.Namespaces))
	for _, nc := range contents.Namespaces {
		if _, dup := layers[nc.Namespace.ID]; dup {
			return violation(CodeDuplicateID, nc.Namespace.ID, "namespace id is already in use")
		}
		l := newLayer(nc.Namespace, c.ids, registry, c.adapterIn, &c.unpublished)
		if err := l.restoreLocked(nc); err != nil {
			return fmt.Errorf("restore namespace %s: %w", nc.Namespace.Name, err)
		}
		c.ids.Observe(nc.Namespace.ID)
		layers[nc.Namespace.ID] = l
	}
	adapters := make(map[int64]entity.Adapter, len(contents.Adapters))
	for _, a := range contents.Adapters {
		c.ids.Observe(a.ID)
		adapters[a.ID] = a
	}

	c.registry = registry
	c.layers = layers
	c.newNamespaces = nil
	c.unpublished.Store(false)
	c.adapters = adapters
	c.stagedAdapters = nil
	c.adapterIn.replace(idSet(adapters))
	c.generation = contents.Generation
	c.current = snapshot.New(contents)

	c.logger.Info("catalog restored",
		"generation", c.generation,
		"namespaces", len(layers),
		"adapters", len(adapters),
	)
	return nil
}

func (c *Catalog) sortedLayers() []*Layer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sortedLayersLocked()
}

func (c *Catalog) sortedLayersLocked() []*Layer {
	out := slices.Collect(maps.Values(c.layers))
	slices.SortFunc(out, func(a, b *Layer) int { return cmp.Compare(a.ns.ID, b.ns.ID) })
	return out
}

func sortedAdapters(m map[int64]entity.Adapter) []entity.Adapter {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, func(a, b entity.Adapter) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func idSet(m map[int64]entity.Adapter) map[int64]bool {
	ids := make(map[int64]bool, len(m))
	for id := range m {
		ids[id] = true
	}
	return ids
}
