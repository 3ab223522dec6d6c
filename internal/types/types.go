// Package types defines scalar and row types shared by the catalog and the
// planner.
//
// A RowType is an ordered list of named, typed fields. Types are plain values
// and compare with ==.
package types

import (
	"fmt"
	"strings"
)

// Kind identifies a scalar type.
type Kind string

const (
	Boolean   Kind = "BOOLEAN"
	Integer   Kind = "INTEGER"
	BigInt    Kind = "BIGINT"
	Double    Kind = "DOUBLE"
	Varchar   Kind = "VARCHAR"
	Date      Kind = "DATE"
	Timestamp Kind = "TIMESTAMP"
	Document  Kind = "DOCUMENT"
	Node      Kind = "NODE"
	Edge      Kind = "EDGE"
	Any       Kind = "ANY"
)

// ValidKinds lists the kinds accepted when parsing type names.
var ValidKinds = map[Kind]bool{
	Boolean:   true,
	Integer:   true,
	BigInt:    true,
	Double:    true,
	Varchar:   true,
	Date:      true,
	Timestamp: true,
	Document:  true,
	Node:      true,
	Edge:      true,
	Any:       true,
}

// Family groups kinds that are structurally interchangeable.
type Family string

const (
	FamilyBoolean  Family = "boolean"
	FamilyNumeric  Family = "numeric"
	FamilyString   Family = "string"
	FamilyTemporal Family = "temporal"
	FamilyDocument Family = "document"
	FamilyGraph    Family = "graph"
	FamilyAny      Family = "any"
)

// numericRank orders numeric kinds by widening.
var numericRank = map[Kind]int{
	Integer: 1,
	BigInt:  2,
	Double:  3,
}

// Family returns the family of the kind.
func (k Kind) Family() Family {
	switch k {
	case Boolean:
		return FamilyBoolean
	case Integer, BigInt, Double:
		return FamilyNumeric
	case Varchar:
		return FamilyString
	case Date, Timestamp:
		return FamilyTemporal
	case Document:
		return FamilyDocument
	case Node, Edge:
		return FamilyGraph
	default:
		return FamilyAny
	}
}

// ParseKind parses a case-insensitive type name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case "INT":
		k = Integer
	case "BOOL":
		k = Boolean
	case "TEXT", "STRING":
		k = Varchar
	}
	if !ValidKinds[k] {
		return "", fmt.Errorf("unknown type %q", s)
	}
	return k, nil
}

// Type is a scalar type with nullability.
type Type struct {
	Kind     Kind
	Nullable bool
}

// Of returns a NOT NULL type of kind k.
func Of(k Kind) Type {
	return Type{Kind: k}
}

// NullableOf returns a nullable type of kind k.
func NullableOf(k Kind) Type {
	return Type{Kind: k, Nullable: true}
}

// WithNullable returns a copy of t with the given nullability.
func (t Type) WithNullable(nullable bool) Type {
	t.Nullable = nullable
	return t
}

// IsBoolean reports whether t is a boolean type.
func (t Type) IsBoolean() bool {
	return t.Kind == Boolean
}

// IsNumeric reports whether t is in the numeric family.
func (t Type) IsNumeric() bool {
	return t.Kind.Family() == FamilyNumeric
}

func (t Type) String() string {
	if t.Nullable {
		return string(t.Kind)
	}
	return string(t.Kind) + " NOT NULL"
}

// AssignableTo reports whether a value of type t can be stored in a slot of
// type target without an explicit cast.
//
// ANY accepts every type. Numeric kinds widen (INTEGER -> BIGINT -> DOUBLE),
// never narrow. A nullable value is not assignable to a NOT NULL slot.
func (t Type) AssignableTo(target Type) bool {
	if t.Nullable && !target.Nullable {
		return false
	}
	if target.Kind == Any || t.Kind == target.Kind {
		return true
	}
	if t.IsNumeric() && target.IsNumeric() {
		return numericRank[t.Kind] <= numericRank[target.Kind]
	}
	return false
}

// LeastRestrictive returns the narrowest type both a and b are assignable to.
// The second result is false when no such type exists.
func LeastRestrictive(a, b Type) (Type, bool) {
	nullable := a.Nullable || b.Nullable
	switch {
	case a.Kind == b.Kind:
		return Type{Kind: a.Kind, Nullable: nullable}, true
	case a.IsNumeric() && b.IsNumeric():
		k := a.Kind
		if numericRank[b.Kind] > numericRank[k] {
			k = b.Kind
		}
		return Type{Kind: k, Nullable: nullable}, true
	case a.Kind == Any || b.Kind == Any:
		return Type{Kind: Any, Nullable: nullable}, true
	}
	return Type{}, false
}
