package entity

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/polystore/internal/types"
)

// EntityType is the kind of namespace object.
type EntityType string

const (
	TypeTable            EntityType = "TABLE"
	TypeView             EntityType = "VIEW"
	TypeMaterializedView EntityType = "MATERIALIZED_VIEW"
	TypeSource           EntityType = "SOURCE"
	TypeCollection       EntityType = "COLLECTION"
	TypeGraph            EntityType = "GRAPH"
)

// ValidEntityTypes lists the accepted entity types.
var ValidEntityTypes = map[EntityType]bool{
	TypeTable:            true,
	TypeView:             true,
	TypeMaterializedView: true,
	TypeSource:           true,
	TypeCollection:       true,
	TypeGraph:            true,
}

// DataModel is the data model of a namespace.
type DataModel string

const (
	ModelRelational DataModel = "RELATIONAL"
	ModelDocument   DataModel = "DOCUMENT"
	ModelGraph      DataModel = "GRAPH"
)

// ValidModels lists the accepted data models.
var ValidModels = map[DataModel]bool{
	ModelRelational: true,
	ModelDocument:   true,
	ModelGraph:      true,
}

// Layer identifies which catalog layer an entity belongs to.
type Layer string

const (
	LayerLogical    Layer = "LOGICAL"
	LayerAllocation Layer = "ALLOCATION"
	LayerPhysical   Layer = "PHYSICAL"
)

// Entity is the sealed capability set shared by all catalog entities.
type Entity interface {
	entity()

	EntityID() int64
	EntityName() string
	Namespace() int64
	Type() EntityType
	Model() DataModel
	Layer() Layer
}

// Logical is the user-facing definition of a namespace object.
type Logical struct {
	ID          int64
	Name        string
	NamespaceID int64
	EntityType  EntityType
	DataModel   DataModel
	RowType     types.RowType
}

func (Logical) entity() {}

func (l Logical) EntityID() int64 { return l.ID }
func (l Logical) EntityName() string { return l.Name }
func (l Logical) Namespace() int64 { return l.NamespaceID }
func (l Logical) Type() EntityType { return l.EntityType }
func (l Logical) Model() DataModel { return l.DataModel }
func (Logical) Layer() Layer { return LayerLogical }

// Clone returns a copy of l that shares no memory with it.
func (l Logical) Clone() Logical {
	l.RowType = l.RowType.Clone()
	return l
}

// Validate checks the fields of l that do not depend on other entities.
func (l Logical) Validate() error {
	if l.Name == "" {
		return invalid(LayerLogical, l.ID, "name is required")
	}
	if !ValidEntityTypes[l.EntityType] {
		return invalid(LayerLogical, l.ID, fmt.Sprintf("unknown entity type %q", l.EntityType))
	}
	if !ValidModels[l.DataModel] {
		return invalid(LayerLogical, l.ID, fmt.Sprintf("unknown data model %q", l.DataModel))
	}
	return nil
}

// Allocation is a partition of a logical entity's data.
//
// Qualifiers is nil when absent. An unbound allocation is the catch-all
// partition and never carries qualifiers.
type Allocation struct {
	ID               int64
	Name             string
	LogicalID        int64
	NamespaceID      int64
	EntityType       EntityType
	DataModel        DataModel
	PartitionGroupID int64
	Qualifiers       []string
	Unbound          bool
}

func (Allocation) entity() {}

func (a Allocation) EntityID() int64 { return a.ID }
func (a Allocation) EntityName() string { return a.Name }
func (a Allocation) Namespace() int64 { return a.NamespaceID }
func (a Allocation) Type() EntityType { return a.EntityType }
func (a Allocation) Model() DataModel { return a.DataModel }
func (Allocation) Layer() Layer { return LayerAllocation }

// NewAllocation builds an allocation for logical and checks the partition
// invariants.
func NewAllocation(id int64, name string, logical Logical, groupID int64, unbound bool, qualifiers []string) (Allocation, error) {
	a := Allocation{
		ID:               id,
		Name:             name,
		LogicalID:        logical.ID,
		NamespaceID:      logical.NamespaceID,
		EntityType:       logical.EntityType,
		DataModel:        logical.DataModel,
		PartitionGroupID: groupID,
		Unbound:          unbound,
		Qualifiers:       slices.Clone(qualifiers),
	}
	if err := a.Validate(); err != nil {
		return Allocation{}, err
	}
	return a, nil
}

// Clone returns a copy of a that shares no memory with it.
func (a Allocation) Clone() Allocation {
	a.Qualifiers = slices.Clone(a.Qualifiers)
	return a
}

// Validate checks the partition invariants.
func (a Allocation) Validate() error {
	if a.LogicalID == 0 {
		return invalid(LayerAllocation, a.ID, "logical id is required")
	}
	if a.Unbound && a.Qualifiers != nil {
		return invalid(LayerAllocation, a.ID, "unbound allocation must not carry partition qualifiers")
	}
	if !a.Unbound && a.Qualifiers != nil && len(a.Qualifiers) == 0 {
		return invalid(LayerAllocation, a.ID, "partition qualifiers must be non-empty when present")
	}
	return nil
}

// Physical is one materialization of an allocation on one adapter.
type Physical struct {
	ID            int64
	Name          string
	NamespaceID   int64
	NamespaceName string
	EntityType    EntityType
	DataModel     DataModel
	LogicalID     int64
	AllocationID  int64
	AdapterID     int64
	RowType       types.RowType
}

func (Physical) entity() {}

func (p Physical) EntityID() int64 { return p.ID }
func (p Physical) EntityName() string { return p.Name }
func (p Physical) Namespace() int64 { return p.NamespaceID }
func (p Physical) Type() EntityType { return p.EntityType }
func (p Physical) Model() DataModel { return p.DataModel }
func (Physical) Layer() Layer { return LayerPhysical }

// Clone returns a copy of p that shares no memory with it.
func (p Physical) Clone() Physical {
	p.RowType = p.RowType.Clone()
	return p
}

// Validate checks the fields of p that do not depend on other entities.
func (p Physical) Validate() error {
	switch {
	case p.LogicalID == 0:
		return invalid(LayerPhysical, p.ID, "logical id is required")
	case p.AllocationID == 0:
		return invalid(LayerPhysical, p.ID, "allocation id is required")
	case p.AdapterID == 0:
		return invalid(LayerPhysical, p.ID, "adapter id is required")
	}
	return nil
}

// Namespace groups entities sharing one data model.
type Namespace struct {
	ID            int64
	Name          string
	Model         DataModel
	CaseSensitive bool
}

// AdapterType is the family of storage backend.
type AdapterType string

const (
	AdapterScan     AdapterType = "scan"
	AdapterJDBC     AdapterType = "jdbc"
	AdapterDocument AdapterType = "document"
)

// ValidAdapterTypes lists the accepted adapter types.
var ValidAdapterTypes = map[AdapterType]bool{
	AdapterScan:     true,
	AdapterJDBC:     true,
	AdapterDocument: true,
}

// Adapter is a registered storage backend.
// Convention is the execution model the adapter's rules produce.
type Adapter struct {
	ID         int64
	Name       string
	Type       AdapterType
	Convention string
	Settings   map[string]string
}

// Clone returns a copy of a that shares no memory with it.
func (a Adapter) Clone() Adapter {
	a.Settings = maps.Clone(a.Settings)
	return a
}

// Clone returns a copy of e that shares no memory with it.
func Clone(e Entity) Entity {
	switch v := e.(type) {
	case Logical:
		return v.Clone()
	case Allocation:
		return v.Clone()
	case Physical:
		return v.Clone()
	}
	return e
}

// ValidationError reports an entity whose own fields are inconsistent.
type ValidationError struct {
	Layer   Layer
	ID      int64
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s entity %d: %s", e.Layer, e.ID, e.Message)
}

func invalid(layer Layer, id int64, msg string) error {
	return &ValidationError{Layer: layer, ID: id, Message: msg}
}
