package record

import (
	"fmt"
	"sort"
)

// FieldType defines the declared data type of a schema field.
type FieldType uint8

const (
	// FieldTypeAny accepts any value kind.
	FieldTypeAny FieldType = iota
	// FieldTypeInt accepts integer values.
	FieldTypeInt
	// FieldTypeFloat accepts float values (and integers, which upgrade).
	FieldTypeFloat
	// FieldTypeString accepts string values.
	FieldTypeString
	// FieldTypeBool accepts boolean values.
	FieldTypeBool
	// FieldTypeTime accepts time values.
	FieldTypeTime
)

// String returns the string representation of the FieldType.
func (t FieldType) String() string {
	switch t {
	case FieldTypeAny:
		return "Any"
	case FieldTypeInt:
		return "Int"
	case FieldTypeFloat:
		return "Float"
	case FieldTypeString:
		return "String"
	case FieldTypeBool:
		return "Bool"
	case FieldTypeTime:
		return "Time"
	default:
		return "Unknown"
	}
}

// FieldError reports a single invalid field in a document.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

// FieldDef describes one column of an entity.
type FieldDef struct {
	// Type constrains the value kind stored in the field.
	Type FieldType

	// Required fields must be present and non-null in every committed record.
	Required bool

	// Searchable fields participate in free-text search.
	// Only string fields are consulted; the flag is ignored for other types.
	Searchable bool
}

// Schema defines the shape of one entity type.
//
// It is the configuration structure the presentation layer supplies at
// initialization: field definitions, uniqueness keys, and foreign
// references to other entities.
type Schema struct {
	// Entity is the collection name, e.g. "customers".
	Entity string

	// Fields maps column name to its definition.
	Fields map[string]FieldDef

	// UniqueKeys lists fields whose non-null values must be unique within
	// the collection (e.g. a customer email).
	UniqueKeys []string

	// References maps a foreign-key field to the entity it must resolve in
	// (e.g. {"customer_id": "customers"}). Referenced fields hold the
	// target record's ID as an int value.
	References map[string]string

	// RestrictDelete blocks deletion of records in THIS collection while
	// other collections hold live references to them, unless the caller
	// requests a cascade. When false, referencing records are removed in
	// the same call instead; dangling references are never left behind
	// either way.
	RestrictDelete bool
}

// HasField reports whether the schema declares the named column.
func (s *Schema) HasField(name string) bool {
	_, ok := s.Fields[name]
	return ok
}

// SearchableFields returns the sorted names of searchable string columns.
func (s *Schema) SearchableFields() []string {
	var out []string
	for name, def := range s.Fields {
		if def.Searchable && (def.Type == FieldTypeString || def.Type == FieldTypeAny) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Validate checks a full document against the schema: every declared
// required field present and non-null, no undeclared fields, all kinds
// matching their declared types.
func (s *Schema) Validate(doc Document) error {
	if err := s.ValidatePartial(doc); err != nil {
		return err
	}
	for name, def := range s.Fields {
		if !def.Required {
			continue
		}
		v, ok := doc[name]
		if !ok || v.IsNull() {
			return &FieldError{Field: name, Reason: "required field is missing"}
		}
	}
	return nil
}

// ValidatePartial checks only the fields present in the document: no
// undeclared fields, all kinds matching. Required-ness is not enforced,
// which makes it suitable for update merges (the merged document is then
// re-checked with Validate).
func (s *Schema) ValidatePartial(doc Document) error {
	for name, v := range doc {
		def, ok := s.Fields[name]
		if !ok {
			return &FieldError{Field: name, Reason: "unknown field"}
		}
		if !checkKind(v.Kind, def.Type) {
			return &FieldError{
				Field:  name,
				Reason: fmt.Sprintf("invalid type %s, expected %s", v.Kind, def.Type),
			}
		}
	}
	return nil
}

func checkKind(k Kind, expected FieldType) bool {
	if k == KindNull {
		return true
	}
	switch expected {
	case FieldTypeAny:
		return true
	case FieldTypeInt:
		return k == KindInt
	case FieldTypeFloat:
		return k == KindFloat || k == KindInt // Allow upgrading Int to Float
	case FieldTypeString:
		return k == KindString
	case FieldTypeBool:
		return k == KindBool
	case FieldTypeTime:
		return k == KindTime
	}
	return false
}
