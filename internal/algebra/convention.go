package algebra

import (
	"slices"
	"strings"
)

// Convention identifies the execution model a node is planned for.
type Convention string

const (
	// None marks a logical node that has not been planned yet.
	None Convention = "NONE"

	// Enumerable is the built-in in-process execution model.
	Enumerable Convention = "ENUMERABLE"
)

// JDBC returns the convention of a JDBC adapter.
func JDBC(adapterName string) Convention {
	return Convention("JDBC_" + adapterName)
}

// Document returns the convention of a document-store adapter.
func Document(adapterName string) Convention {
	return Convention("DOCUMENT_" + adapterName)
}

// IsNone reports whether c is the unplanned convention.
func (c Convention) IsNone() bool {
	return c == None || c == ""
}

func (c Convention) String() string {
	if c == "" {
		return string(None)
	}
	return string(c)
}

// TraitKind names an orthogonal physical property.
type TraitKind string

const (
	TraitCollation    TraitKind = "collation"
	TraitDistribution TraitKind = "distribution"
	TraitModel        TraitKind = "model"
)

// Trait is one physical property of a node.
type Trait struct {
	Kind  TraitKind
	Value string
}

func (t Trait) String() string {
	return string(t.Kind) + "=" + t.Value
}

// TraitSet is a node's planning state: its convention plus at most one trait
// of each kind. TraitSets are values; the With methods return copies.
type TraitSet struct {
	convention Convention
	traits     []Trait
}

// NewTraitSet builds a trait set. Later traits replace earlier ones of the
// same kind.
func NewTraitSet(c Convention, traits ...Trait) TraitSet {
	ts := TraitSet{convention: c}
	for _, t := range traits {
		ts = ts.With(t)
	}
	return ts
}

// Convention returns the convention.
func (ts TraitSet) Convention() Convention {
	if ts.convention == "" {
		return None
	}
	return ts.convention
}

// WithConvention returns a copy with the convention replaced.
func (ts TraitSet) WithConvention(c Convention) TraitSet {
	return TraitSet{convention: c, traits: ts.traits}
}

// With returns a copy with t set, replacing any trait of the same kind.
func (ts TraitSet) With(t Trait) TraitSet {
	traits := make([]Trait, 0, len(ts.traits)+1)
	for _, existing := range ts.traits {
		if existing.Kind != t.Kind {
			traits = append(traits, existing)
		}
	}
	traits = append(traits, t)
	slices.SortFunc(traits, func(a, b Trait) int { return strings.Compare(string(a.Kind), string(b.Kind)) })
	return TraitSet{convention: ts.convention, traits: traits}
}

// Get returns the trait of the given kind.
func (ts TraitSet) Get(kind TraitKind) (Trait, bool) {
	for _, t := range ts.traits {
		if t.Kind == kind {
			return t, true
		}
	}
	return Trait{}, false
}

// Traits returns the non-convention traits ordered by kind.
func (ts TraitSet) Traits() []Trait {
	return slices.Clone(ts.traits)
}

// Satisfies reports whether ts has the required convention and every
// required trait.
func (ts TraitSet) Satisfies(required TraitSet) bool {
	if ts.Convention() != required.Convention() {
		return false
	}
	for _, t := range required.traits {
		got, ok := ts.Get(t.Kind)
		if !ok || got.Value != t.Value {
			return false
		}
	}
	return true
}

func (ts TraitSet) String() string {
	if len(ts.traits) == 0 {
		return ts.Convention().String()
	}
	parts := make([]string, len(ts.traits))
	for i, t := range ts.traits {
		parts[i] = t.String()
	}
	return ts.Convention().String() + "." + "[" + strings.Join(parts, ", ") + "]"
}
