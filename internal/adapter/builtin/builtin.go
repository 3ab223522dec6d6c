// Package builtin wires the built-in adapter types into a planner.
package builtin

import (
	"fmt"

	"github.com/roach88/polystore/internal/adapter"
	"github.com/roach88/polystore/internal/adapter/document"
	"github.com/roach88/polystore/internal/adapter/enumerable"
	"github.com/roach88/polystore/internal/adapter/jdbc"
	"github.com/roach88/polystore/internal/entity"
	"github.com/roach88/polystore/internal/planner"
	"github.com/roach88/polystore/internal/snapshot"
)

// Registry returns a registry with the scan, jdbc and document factories.
func Registry() *adapter.Registry {
	r := adapter.NewRegistry()
	r.Add(entity.AdapterScan, enumerable.New)
	r.Add(entity.AdapterJDBC, jdbc.New)
	r.Add(entity.AdapterDocument, document.New)
	return r
}

// Planner returns a planner with the core rules, the ENUMERABLE convention
// rules and the rules of every adapter in snap.
func Planner(snap *snapshot.Snapshot, opts ...planner.Option) (*planner.Planner, error) {
	p := planner.New(opts...)
	if err := p.Register(planner.CoreRules()...); err != nil {
		return nil, fmt.Errorf("register core rules: %w", err)
	}
	if err := p.Register(enumerable.Rules()...); err != nil {
		return nil, fmt.Errorf("register enumerable rules: %w", err)
	}
	adapters, err := adapter.FromSnapshot(snap, Registry())
	if err != nil {
		return nil, err
	}
	if err := adapter.Register(p, adapters...); err != nil {
		return nil, err
	}
	return p, nil
}
