package types

import (
	"fmt"
	"strings"
)

// Field is one named column of a row type.
type Field struct {
	Name string
	Type Type
}

// RowType is an ordered sequence of fields.
type RowType struct {
	Fields []Field
}

// Row builds a RowType from fields.
func Row(fields ...Field) RowType {
	return RowType{Fields: fields}
}

// Clone returns a row type that shares no memory with r. A nil field list
// stays nil.
func (r RowType) Clone() RowType {
	if r.Fields == nil {
		return RowType{}
	}
	return RowType{Fields: append([]Field{}, r.Fields...)}
}

// F is a shorthand for Field.
func F(name string, t Type) Field {
	return Field{Name: name, Type: t}
}

// Arity returns the number of fields.
func (r RowType) Arity() int {
	return len(r.Fields)
}

// Field returns the field at ordinal i.
func (r RowType) Field(i int) Field {
	return r.Fields[i]
}

// Names returns the field names in order.
func (r RowType) Names() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}

// IndexOf returns the ordinal of the named field, or -1.
func (r RowType) IndexOf(name string) int {
	for i, f := range r.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Concat returns a row type with the fields of r followed by those of other.
func (r RowType) Concat(other RowType) RowType {
	fields := make([]Field, 0, len(r.Fields)+len(other.Fields))
	fields = append(fields, r.Fields...)
	fields = append(fields, other.Fields...)
	return RowType{Fields: fields}
}

// Nullable returns a copy of r with every field nullable (outer join side).
func (r RowType) Nullable() RowType {
	fields := make([]Field, len(r.Fields))
	for i, f := range r.Fields {
		fields[i] = Field{Name: f.Name, Type: f.Type.WithNullable(true)}
	}
	return RowType{Fields: fields}
}

// Equal reports whether two row types have identical fields.
func (r RowType) Equal(other RowType) bool {
	if len(r.Fields) != len(other.Fields) {
		return false
	}
	for i := range r.Fields {
		if r.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}

func (r RowType) String() string {
	parts := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		parts[i] = f.Name + " " + f.Type.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// CheckCompatible verifies that a physical row type can materialize a logical
// one: same field count and order, the same type family per field, and a
// nullable physical field wherever the logical field is nullable.
func CheckCompatible(logical, physical RowType) error {
	if len(logical.Fields) != len(physical.Fields) {
		return fmt.Errorf("field count mismatch: logical has %d, physical has %d",
			len(logical.Fields), len(physical.Fields))
	}
	for i, lf := range logical.Fields {
		pf := physical.Fields[i]
		lfam, pfam := lf.Type.Kind.Family(), pf.Type.Kind.Family()
		if lfam != pfam && pfam != FamilyAny {
			return fmt.Errorf("field %d (%s): logical %s is not compatible with physical %s",
				i, lf.Name, lf.Type.Kind, pf.Type.Kind)
		}
		if lf.Type.Nullable && !pf.Type.Nullable {
			return fmt.Errorf("field %d (%s): logical field is nullable but physical field is NOT NULL",
				i, lf.Name)
		}
	}
	return nil
}
