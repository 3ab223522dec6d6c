// Package schema compiles CUE catalog declarations.
//
// A declaration file lists adapters and namespaces; each namespace lists its
// entities with their fields, partitions and placements:
//
//	adapter: pg: {id: 8, type: "jdbc", settings: dialect: "postgres"}
//
//	namespace: public: {
//		id:    7
//		model: "RELATIONAL"
//		entity: customers: {
//			id:   2
//			type: "TABLE"
//			fields: [
//				{name: "id", type: "VARCHAR"},
//				{name: "tier", type: "INTEGER", nullable: true},
//			]
//			partitions: [{id: 11, placements: [{id: 101, adapter: "pg"}]}]
//		}
//	}
//
// Ids are optional and assigned by the catalog when omitted. A partition
// without qualifiers is the unbound catch-all partition. Struct members are
// compiled in label order so that every load assigns the same ids.
package schema

import (
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/polystore/internal/algebra"
	"github.com/roach88/polystore/internal/entity"
	"github.com/roach88/polystore/internal/types"
)

// Declarations is a compiled declaration set.
type Declarations struct {
	Adapters   []AdapterDecl
	Namespaces []NamespaceDecl
}

// AdapterDecl declares a storage adapter.
type AdapterDecl struct {
	ID         int64
	Name       string
	Type       entity.AdapterType
	Convention string
	Settings   map[string]string
	Pos        token.Pos
}

// NamespaceDecl declares a namespace and its entities.
type NamespaceDecl struct {
	ID            int64
	Name          string
	Model         entity.DataModel
	CaseSensitive bool
	Entities      []EntityDecl
	Pos           token.Pos
}

// EntityDecl declares a logical entity.
type EntityDecl struct {
	ID         int64
	Name       string
	Type       entity.EntityType
	RowType    types.RowType
	Partitions []PartitionDecl
	Pos        token.Pos
}

// PartitionDecl declares an allocation of an entity.
type PartitionDecl struct {
	ID         int64
	Name       string
	Qualifiers []string
	Placements []PlacementDecl
}

// PlacementDecl declares a physical materialization of a partition.
type PlacementDecl struct {
	ID      int64
	Adapter string
	Name    string
}

// CompileError is a declaration error with its source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileString compiles declarations from CUE source.
func CompileString(src, filename string) (*Declarations, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	return Compile(v)
}

// Compile compiles the declarations in v.
func Compile(v cue.Value) (*Declarations, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	d := &Declarations{}

	err := eachField(v, "adapter", func(name string, av cue.Value) error {
		a, err := compileAdapter(name, av)
		if err != nil {
			return err
		}
		d.Adapters = append(d.Adapters, a)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachField(v, "namespace", func(name string, nv cue.Value) error {
		ns, err := compileNamespace(name, nv)
		if err != nil {
			return err
		}
		d.Namespaces = append(d.Namespaces, ns)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(d.Adapters) == 0 && len(d.Namespaces) == 0 {
		return nil, &CompileError{Field: "declarations", Message: "no adapters or namespaces declared", Pos: v.Pos()}
	}
	return d, nil
}

func compileAdapter(name string, v cue.Value) (AdapterDecl, error) {
	path := "adapter." + name
	a := AdapterDecl{Name: name, Pos: v.Pos()}

	var err error
	if a.ID, err = optionalInt(v, path, "id"); err != nil {
		return a, err
	}
	typ, err := requiredString(v, path, "type")
	if err != nil {
		return a, err
	}
	a.Type = entity.AdapterType(typ)
	if !entity.ValidAdapterTypes[a.Type] {
		return a, &CompileError{Field: path + ".type", Message: fmt.Sprintf("unknown adapter type %q", typ), Pos: v.Pos()}
	}

	if a.Convention, err = optionalString(v, path, "convention"); err != nil {
		return a, err
	}
	if a.Convention == "" {
		a.Convention = string(defaultConvention(a.Type, name))
	}

	err = eachField(v, "settings", func(key string, sv cue.Value) error {
		s, err := sv.String()
		if err != nil {
			return &CompileError{Field: path + ".settings." + key, Message: "setting values must be strings", Pos: sv.Pos()}
		}
		if a.Settings == nil {
			a.Settings = make(map[string]string)
		}
		a.Settings[key] = s
		return nil
	})
	return a, err
}

func defaultConvention(t entity.AdapterType, name string) algebra.Convention {
	switch t {
	case entity.AdapterJDBC:
		return algebra.JDBC(name)
	case entity.AdapterDocument:
		return algebra.Document(name)
	default:
		return algebra.Enumerable
	}
}

func compileNamespace(name string, v cue.Value) (NamespaceDecl, error) {
	path := "namespace." + name
	ns := NamespaceDecl{Name: name, Pos: v.Pos()}

	var err error
	if ns.ID, err = optionalInt(v, path, "id"); err != nil {
		return ns, err
	}
	model, err := requiredString(v, path, "model")
	if err != nil {
		return ns, err
	}
	ns.Model = entity.DataModel(strings.ToUpper(model))
	if !entity.ValidModels[ns.Model] {
		return ns, &CompileError{Field: path + ".model", Message: fmt.Sprintf("unknown data model %q", model), Pos: v.Pos()}
	}
	if ns.CaseSensitive, err = optionalBool(v, path, "case_sensitive"); err != nil {
		return ns, err
	}

	err = eachField(v, "entity", func(ename string, ev cue.Value) error {
		e, err := compileEntity(path+".entity."+ename, ename, ev)
		if err != nil {
			return err
		}
		ns.Entities = append(ns.Entities, e)
		return nil
	})
	return ns, err
}

func compileEntity(path, name string, v cue.Value) (EntityDecl, error) {
	e := EntityDecl{Name: name, Type: entity.TypeTable, Pos: v.Pos()}

	var err error
	if e.ID, err = optionalInt(v, path, "id"); err != nil {
		return e, err
	}
	typ, err := optionalString(v, path, "type")
	if err != nil {
		return e, err
	}
	if typ != "" {
		e.Type = entity.EntityType(strings.ToUpper(typ))
		if !entity.ValidEntityTypes[e.Type] {
			return e, &CompileError{Field: path + ".type", Message: fmt.Sprintf("unknown entity type %q", typ), Pos: v.Pos()}
		}
	}

	var fields []types.Field
	err = eachElem(v, path, "fields", func(i int, fv cue.Value) error {
		fpath := fmt.Sprintf("%s.fields[%d]", path, i)
		fname, err := requiredString(fv, fpath, "name")
		if err != nil {
			return err
		}
		tname, err := requiredString(fv, fpath, "type")
		if err != nil {
			return err
		}
		kind, err := types.ParseKind(tname)
		if err != nil {
			return &CompileError{Field: fpath + ".type", Message: err.Error(), Pos: fv.Pos()}
		}
		nullable, err := optionalBool(fv, fpath, "nullable")
		if err != nil {
			return err
		}
		if slices.ContainsFunc(fields, func(f types.Field) bool { return f.Name == fname }) {
			return &CompileError{Field: fpath + ".name", Message: fmt.Sprintf("duplicate field %q", fname), Pos: fv.Pos()}
		}
		fields = append(fields, types.F(fname, types.Type{Kind: kind, Nullable: nullable}))
		return nil
	})
	if err != nil {
		return e, err
	}
	if len(fields) == 0 {
		return e, &CompileError{Field: path + ".fields", Message: "at least one field is required", Pos: v.Pos()}
	}
	e.RowType = types.Row(fields...)

	err = eachElem(v, path, "partitions", func(i int, pv cue.Value) error {
		p, err := compilePartition(fmt.Sprintf("%s.partitions[%d]", path, i), pv)
		if err != nil {
			return err
		}
		e.Partitions = append(e.Partitions, p)
		return nil
	})
	return e, err
}

func compilePartition(path string, v cue.Value) (PartitionDecl, error) {
	var p PartitionDecl
	var err error
	if p.ID, err = optionalInt(v, path, "id"); err != nil {
		return p, err
	}
	if p.Name, err = optionalString(v, path, "name"); err != nil {
		return p, err
	}
	err = eachElem(v, path, "qualifiers", func(i int, qv cue.Value) error {
		q, err := qv.String()
		if err != nil {
			return &CompileError{Field: fmt.Sprintf("%s.qualifiers[%d]", path, i), Message: "qualifiers must be strings", Pos: qv.Pos()}
		}
		p.Qualifiers = append(p.Qualifiers, q)
		return nil
	})
	if err != nil {
		return p, err
	}

	err = eachElem(v, path, "placements", func(i int, pv cue.Value) error {
		ppath := fmt.Sprintf("%s.placements[%d]", path, i)
		var pl PlacementDecl
		var err error
		if pl.ID, err = optionalInt(pv, ppath, "id"); err != nil {
			return err
		}
		if pl.Adapter, err = requiredString(pv, ppath, "adapter"); err != nil {
			return err
		}
		if pl.Name, err = optionalString(pv, ppath, "name"); err != nil {
			return err
		}
		p.Placements = append(p.Placements, pl)
		return nil
	})
	return p, err
}

// eachField calls fn for every member of the struct at field, in label
// order. A missing field is not an error.
func eachField(v cue.Value, field string, fn func(label string, v cue.Value) error) error {
	sv := v.LookupPath(cue.ParsePath(field))
	if !sv.Exists() {
		return nil
	}
	iter, err := sv.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	type member struct {
		label string
		value cue.Value
	}
	var members []member
	for iter.Next() {
		members = append(members, member{label: iter.Label(), value: iter.Value()})
	}
	slices.SortFunc(members, func(a, b member) int { return strings.Compare(a.label, b.label) })
	for _, m := range members {
		if err := fn(m.label, m.value); err != nil {
			return err
		}
	}
	return nil
}

// eachElem calls fn for every element of the list at field. A missing field
// is not an error.
func eachElem(v cue.Value, path, field string, fn func(i int, v cue.Value) error) error {
	lv := v.LookupPath(cue.ParsePath(field))
	if !lv.Exists() {
		return nil
	}
	iter, err := lv.List()
	if err != nil {
		return &CompileError{Field: path + "." + field, Message: "must be a list", Pos: lv.Pos()}
	}
	for i := 0; iter.Next(); i++ {
		if err := fn(i, iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

func requiredString(v cue.Value, path, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", &CompileError{Field: path + "." + field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := f.String()
	if err != nil {
		return "", &CompileError{Field: path + "." + field, Message: "must be a string", Pos: f.Pos()}
	}
	return s, nil
}

func optionalString(v cue.Value, path, field string) (string, error) {
	if !v.LookupPath(cue.ParsePath(field)).Exists() {
		return "", nil
	}
	return requiredString(v, path, field)
}

func optionalBool(v cue.Value, path, field string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, &CompileError{Field: path + "." + field, Message: "must be a boolean", Pos: f.Pos()}
	}
	return b, nil
}

// optionalInt reads an id. Floats are rejected, not truncated.
func optionalInt(v cue.Value, path, field string) (int64, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return 0, nil
	}
	if k := f.IncompleteKind(); k != cue.IntKind {
		return 0, &CompileError{Field: path + "." + field, Message: fmt.Sprintf("must be an integer, got %v", k), Pos: f.Pos()}
	}
	n, err := f.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	if n < 0 {
		return 0, &CompileError{Field: path + "." + field, Message: "must not be negative", Pos: f.Pos()}
	}
	return n, nil
}

// formatCUEError turns the first CUE error into a CompileError carrying its
// position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
