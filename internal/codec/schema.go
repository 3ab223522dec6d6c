package codec

import (
	"fmt"
)

// Kind is the semantic type of a schema field.
type Kind string

const (
	KindString     Kind = "string"
	KindInt        Kind = "int"
	KindBool       Kind = "bool"
	KindStringList Kind = "string_list"
	KindObject     Kind = "object"
	KindObjectList Kind = "object_list"
	KindStringMap  Kind = "string_map"
)

// FieldSpec describes one field of a record: name -> kind -> optional/required.
type FieldSpec struct {
	Name     string
	Kind     Kind
	Optional bool
}

// Schema is the explicit descriptor of one record variant.
type Schema struct {
	Name   string
	Fields []FieldSpec
}

// FieldError reports which field of which record failed validation.
type FieldError struct {
	Schema  string
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Schema, e.Field, e.Message)
}

// Validate checks obj against the schema.
// Required fields must be present and non-null, optional fields may be null or
// absent, and fields the schema does not declare are rejected.
func (s Schema) Validate(obj Object) error {
	declared := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		declared[f.Name] = true

		v, ok := obj[f.Name]
		if !ok || isNull(v) {
			if f.Optional {
				continue
			}
			return &FieldError{Schema: s.Name, Field: f.Name, Message: "required field is missing"}
		}
		if err := checkKind(f.Kind, v); err != nil {
			return &FieldError{Schema: s.Name, Field: f.Name, Message: err.Error()}
		}
	}
	for _, k := range obj.SortedKeys() {
		if !declared[k] {
			return &FieldError{Schema: s.Name, Field: k, Message: "field is not declared by the schema"}
		}
	}
	return nil
}

// Encode validates obj and writes it as canonical JSON.
// Absent optional fields are written as explicit null so every declared field
// appears in the persisted form.
func (s Schema) Encode(obj Object) ([]byte, error) {
	if err := s.Validate(obj); err != nil {
		return nil, err
	}
	full := make(Object, len(s.Fields))
	for _, f := range s.Fields {
		if v, ok := obj[f.Name]; ok {
			full[f.Name] = v
		} else {
			full[f.Name] = Null{}
		}
	}
	return MarshalCanonical(full)
}

// Decode parses canonical JSON and validates it against the schema.
func (s Schema) Decode(data []byte) (Object, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Name, err)
	}
	obj, ok := v.(Object)
	if !ok {
		return nil, fmt.Errorf("decode %s: expected object, got %T", s.Name, v)
	}
	if err := s.Validate(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func isNull(v Value) bool {
	_, ok := v.(Null)
	return ok || v == nil
}

func checkKind(kind Kind, v Value) error {
	switch kind {
	case KindString:
		if _, ok := v.(String); !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
	case KindInt:
		if _, ok := v.(Int); !ok {
			return fmt.Errorf("expected int, got %T", v)
		}
	case KindBool:
		if _, ok := v.(Bool); !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
	case KindStringList:
		if _, err := AsStrings(v); err != nil {
			return err
		}
	case KindObject:
		if _, ok := v.(Object); !ok {
			return fmt.Errorf("expected object, got %T", v)
		}
	case KindObjectList:
		arr, ok := v.(Array)
		if !ok {
			return fmt.Errorf("expected array, got %T", v)
		}
		for i, elem := range arr {
			if _, ok := elem.(Object); !ok {
				return fmt.Errorf("array[%d]: expected object, got %T", i, elem)
			}
		}
	case KindStringMap:
		obj, ok := v.(Object)
		if !ok {
			return fmt.Errorf("expected object, got %T", v)
		}
		for k, elem := range obj {
			if _, ok := elem.(String); !ok {
				return fmt.Errorf("key %q: expected string, got %T", k, elem)
			}
		}
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
	return nil
}
