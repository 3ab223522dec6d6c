package catalog

import (
	"sync"
	"sync/atomic"
)

// IDGenerator hands out process-unique entity ids.
//
// Safe for concurrent use. Ids start at 1; 0 means "assign one for me" in
// every Add call.
type IDGenerator struct {
	seq atomic.Int64
}

// NewIDGenerator creates a generator whose first id is 1.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// NewIDGeneratorAt creates a generator whose next id is start+1.
func NewIDGeneratorAt(start int64) *IDGenerator {
	g := &IDGenerator{}
	g.seq.Store(start)
	return g
}

// Next returns a fresh id.
func (g *IDGenerator) Next() int64 {
	return g.seq.Add(1)
}

// Current returns the last id handed out or observed.
func (g *IDGenerator) Current() int64 {
	return g.seq.Load()
}

// Observe advances the generator past an explicitly chosen id.
func (g *IDGenerator) Observe(id int64) {
	for {
		cur := g.seq.Load()
		if id <= cur || g.seq.CompareAndSwap(cur, id) {
			return
		}
	}
}

// idRegistry records which ids are in use across all layers.
// Its lock is a leaf: it is never held while acquiring another lock.
type idRegistry struct {
	mu   sync.Mutex
	used map[int64]bool
}

func newIDRegistry() *idRegistry {
	return &idRegistry{used: make(map[int64]bool)}
}

func (r *idRegistry) claim(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.used[id] {
		return false
	}
	r.used[id] = true
	return true
}

func (r *idRegistry) release(ids ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.used, id)
	}
}

// adapterSet is the set of adapter ids physicals may be placed on.
// Its lock is a leaf.
type adapterSet struct {
	mu  sync.RWMutex
	ids map[int64]bool
}

func newAdapterSet() *adapterSet {
	return &adapterSet{ids: make(map[int64]bool)}
}

func (s *adapterSet) has(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ids[id]
}

func (s *adapterSet) replace(ids map[int64]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = ids
}
