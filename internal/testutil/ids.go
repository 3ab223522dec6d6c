// Package testutil provides deterministic fixtures for tests.
package testutil

import "sync"

// FixedRequestIDs returns the same planning request id every time.
//
// Thread-safety: FixedRequestIDs is stateless and safe for concurrent use.
type FixedRequestIDs struct {
	id string
}

// NewFixedRequestIDs returns a generator of id. An empty id becomes
// "test-request-default".
func NewFixedRequestIDs(id string) *FixedRequestIDs {
	if id == "" {
		id = "test-request-default"
	}
	return &FixedRequestIDs{id: id}
}

// Generate returns the fixed id.
func (g *FixedRequestIDs) Generate() string {
	return g.id
}

// SequenceRequestIDs returns predetermined ids in order and panics once they
// run out.
type SequenceRequestIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewSequenceRequestIDs returns a generator of ids.
func NewSequenceRequestIDs(ids ...string) *SequenceRequestIDs {
	return &SequenceRequestIDs{ids: ids}
}

// Generate returns the next id.
func (g *SequenceRequestIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("SequenceRequestIDs: all ids consumed")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
