package entity

import (
	"fmt"

	"github.com/roach88/polystore/internal/codec"
	"github.com/roach88/polystore/internal/types"
)

// Field names shared by the descriptors.
const (
	fieldLayer = "layer"
)

var (
	rowTypeSpec   = codec.FieldSpec{Name: "row_type", Kind: codec.KindObjectList, Optional: true}
	typeSpec      = codec.FieldSpec{Name: "entity_type", Kind: codec.KindString}
	modelSpec     = codec.FieldSpec{Name: "data_model", Kind: codec.KindString}
	layerSpec     = codec.FieldSpec{Name: fieldLayer, Kind: codec.KindString}
	idSpec        = codec.FieldSpec{Name: "id", Kind: codec.KindInt}
	nameSpec      = codec.FieldSpec{Name: "name", Kind: codec.KindString}
	namespaceSpec = codec.FieldSpec{Name: "namespace_id", Kind: codec.KindInt}
)

// Descriptors holds the explicit schema of each entity variant.
var Descriptors = map[Layer]codec.Schema{
	LayerLogical: {
		Name: "logical",
		Fields: []codec.FieldSpec{
			idSpec, layerSpec, nameSpec, namespaceSpec, typeSpec, modelSpec, rowTypeSpec,
		},
	},
	LayerAllocation: {
		Name: "allocation",
		Fields: []codec.FieldSpec{
			idSpec, layerSpec, nameSpec, namespaceSpec, typeSpec, modelSpec,
			{Name: "logical_id", Kind: codec.KindInt},
			{Name: "partition_group_id", Kind: codec.KindInt},
			{Name: "partition_qualifiers", Kind: codec.KindStringList, Optional: true},
			{Name: "is_unbound", Kind: codec.KindBool},
		},
	},
	LayerPhysical: {
		Name: "physical",
		Fields: []codec.FieldSpec{
			idSpec, layerSpec, nameSpec, namespaceSpec, typeSpec, modelSpec,
			{Name: "namespace_name", Kind: codec.KindString},
			{Name: "logical_id", Kind: codec.KindInt},
			{Name: "allocation_id", Kind: codec.KindInt},
			{Name: "adapter_id", Kind: codec.KindInt},
			rowTypeSpec,
		},
	},
}

// NamespaceDescriptor is the schema of a persisted Namespace.
var NamespaceDescriptor = codec.Schema{
	Name: "namespace",
	Fields: []codec.FieldSpec{
		idSpec, nameSpec,
		{Name: "data_model", Kind: codec.KindString},
		{Name: "case_sensitive", Kind: codec.KindBool},
	},
}

// AdapterDescriptor is the schema of a persisted Adapter.
var AdapterDescriptor = codec.Schema{
	Name: "adapter",
	Fields: []codec.FieldSpec{
		idSpec, nameSpec,
		{Name: "adapter_type", Kind: codec.KindString},
		{Name: "convention", Kind: codec.KindString},
		{Name: "settings", Kind: codec.KindStringMap, Optional: true},
	},
}

// ToObject converts e into the record described by its descriptor.
func ToObject(e Entity) codec.Object {
	obj := codec.Object{
		"id":           codec.Int(e.EntityID()),
		fieldLayer:     codec.String(e.Layer()),
		"name":         codec.String(e.EntityName()),
		"namespace_id": codec.Int(e.Namespace()),
		"entity_type":  codec.String(e.Type()),
		"data_model":   codec.String(e.Model()),
	}
	switch v := e.(type) {
	case Logical:
		obj["row_type"] = rowTypeToValue(v.RowType)
	case Allocation:
		obj["logical_id"] = codec.Int(v.LogicalID)
		obj["partition_group_id"] = codec.Int(v.PartitionGroupID)
		obj["is_unbound"] = codec.Bool(v.Unbound)
		if v.Qualifiers == nil {
			obj["partition_qualifiers"] = codec.Null{}
		} else {
			obj["partition_qualifiers"] = codec.Strings(v.Qualifiers)
		}
	case Physical:
		obj["namespace_name"] = codec.String(v.NamespaceName)
		obj["logical_id"] = codec.Int(v.LogicalID)
		obj["allocation_id"] = codec.Int(v.AllocationID)
		obj["adapter_id"] = codec.Int(v.AdapterID)
		obj["row_type"] = rowTypeToValue(v.RowType)
	}
	return obj
}

// Marshal writes e as canonical JSON following its descriptor.
func Marshal(e Entity) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("marshal entity: nil entity")
	}
	schema, ok := Descriptors[e.Layer()]
	if !ok {
		return nil, fmt.Errorf("marshal entity: no descriptor for layer %s", e.Layer())
	}
	data, err := schema.Encode(ToObject(e))
	if err != nil {
		return nil, fmt.Errorf("marshal entity %d: %w", e.EntityID(), err)
	}
	return data, nil
}

// Unmarshal restores an entity written by Marshal.
func Unmarshal(data []byte) (Entity, error) {
	v, err := codec.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal entity: %w", err)
	}
	obj, ok := v.(codec.Object)
	if !ok {
		return nil, fmt.Errorf("unmarshal entity: expected object, got %T", v)
	}
	return FromObject(obj)
}

// FromObject restores an entity from its descriptor record.
func FromObject(obj codec.Object) (Entity, error) {
	layer := Layer(obj.String(fieldLayer))
	schema, ok := Descriptors[layer]
	if !ok {
		return nil, fmt.Errorf("unmarshal entity: unknown layer %q", layer)
	}
	if err := schema.Validate(obj); err != nil {
		return nil, fmt.Errorf("unmarshal entity: %w", err)
	}

	switch layer {
	case LayerLogical:
		rt, err := rowTypeFromValue(obj["row_type"])
		if err != nil {
			return nil, fmt.Errorf("unmarshal logical %d: %w", obj.Int("id"), err)
		}
		return Logical{
			ID:          obj.Int("id"),
			Name:        obj.String("name"),
			NamespaceID: obj.Int("namespace_id"),
			EntityType:  EntityType(obj.String("entity_type")),
			DataModel:   DataModel(obj.String("data_model")),
			RowType:     rt,
		}, nil

	case LayerAllocation:
		var quals []string
		if !obj.IsNull("partition_qualifiers") {
			q, err := codec.AsStrings(obj["partition_qualifiers"])
			if err != nil {
				return nil, fmt.Errorf("unmarshal allocation %d: %w", obj.Int("id"), err)
			}
			quals = q
		}
		a := Allocation{
			ID:               obj.Int("id"),
			Name:             obj.String("name"),
			LogicalID:        obj.Int("logical_id"),
			NamespaceID:      obj.Int("namespace_id"),
			EntityType:       EntityType(obj.String("entity_type")),
			DataModel:        DataModel(obj.String("data_model")),
			PartitionGroupID: obj.Int("partition_group_id"),
			Qualifiers:       quals,
			Unbound:          obj.Bool("is_unbound"),
		}
		if err := a.Validate(); err != nil {
			return nil, err
		}
		return a, nil

	default:
		rt, err := rowTypeFromValue(obj["row_type"])
		if err != nil {
			return nil, fmt.Errorf("unmarshal physical %d: %w", obj.Int("id"), err)
		}
		return Physical{
			ID:            obj.Int("id"),
			Name:          obj.String("name"),
			NamespaceID:   obj.Int("namespace_id"),
			NamespaceName: obj.String("namespace_name"),
			EntityType:    EntityType(obj.String("entity_type")),
			DataModel:     DataModel(obj.String("data_model")),
			LogicalID:     obj.Int("logical_id"),
			AllocationID:  obj.Int("allocation_id"),
			AdapterID:     obj.Int("adapter_id"),
			RowType:       rt,
		}, nil
	}
}

// MarshalNamespace writes ns as canonical JSON.
func MarshalNamespace(ns Namespace) ([]byte, error) {
	return NamespaceDescriptor.Encode(codec.Object{
		"id":             codec.Int(ns.ID),
		"name":           codec.String(ns.Name),
		"data_model":     codec.String(ns.Model),
		"case_sensitive": codec.Bool(ns.CaseSensitive),
	})
}

// UnmarshalNamespace restores a namespace written by MarshalNamespace.
func UnmarshalNamespace(data []byte) (Namespace, error) {
	obj, err := NamespaceDescriptor.Decode(data)
	if err != nil {
		return Namespace{}, err
	}
	return Namespace{
		ID:            obj.Int("id"),
		Name:          obj.String("name"),
		Model:         DataModel(obj.String("data_model")),
		CaseSensitive: obj.Bool("case_sensitive"),
	}, nil
}

// MarshalAdapter writes a as canonical JSON.
func MarshalAdapter(a Adapter) ([]byte, error) {
	obj := codec.Object{
		"id":           codec.Int(a.ID),
		"name":         codec.String(a.Name),
		"adapter_type": codec.String(a.Type),
		"convention":   codec.String(a.Convention),
	}
	if a.Settings != nil {
		settings := make(codec.Object, len(a.Settings))
		for k, v := range a.Settings {
			settings[k] = codec.String(v)
		}
		obj["settings"] = settings
	}
	return AdapterDescriptor.Encode(obj)
}

// UnmarshalAdapter restores an adapter written by MarshalAdapter.
func UnmarshalAdapter(data []byte) (Adapter, error) {
	obj, err := AdapterDescriptor.Decode(data)
	if err != nil {
		return Adapter{}, err
	}
	a := Adapter{
		ID:         obj.Int("id"),
		Name:       obj.String("name"),
		Type:       AdapterType(obj.String("adapter_type")),
		Convention: obj.String("convention"),
	}
	if !obj.IsNull("settings") {
		settings := obj["settings"].(codec.Object)
		a.Settings = make(map[string]string, len(settings))
		for k, v := range settings {
			a.Settings[k] = string(v.(codec.String))
		}
	}
	return a, nil
}

// rowTypeToValue writes a nil field list as null and an empty one as [].
func rowTypeToValue(rt types.RowType) codec.Value {
	if rt.Fields == nil {
		return codec.Null{}
	}
	arr := make(codec.Array, len(rt.Fields))
	for i, f := range rt.Fields {
		arr[i] = codec.Object{
			"name":     codec.String(f.Name),
			"type":     codec.String(f.Type.Kind),
			"nullable": codec.Bool(f.Type.Nullable),
		}
	}
	return arr
}

func rowTypeFromValue(v codec.Value) (types.RowType, error) {
	if _, null := v.(codec.Null); v == nil || null {
		return types.RowType{}, nil
	}
	arr, ok := v.(codec.Array)
	if !ok {
		return types.RowType{}, fmt.Errorf("row_type: expected array, got %T", v)
	}
	fields := make([]types.Field, len(arr))
	for i, elem := range arr {
		obj, ok := elem.(codec.Object)
		if !ok {
			return types.RowType{}, fmt.Errorf("row_type[%d]: expected object, got %T", i, elem)
		}
		kind, err := types.ParseKind(obj.String("type"))
		if err != nil {
			return types.RowType{}, fmt.Errorf("row_type[%d]: %w", i, err)
		}
		fields[i] = types.Field{
			Name: obj.String("name"),
			Type: types.Type{Kind: kind, Nullable: obj.Bool("nullable")},
		}
	}
	return types.RowType{Fields: fields}, nil
}
