package tabgo

import (
	"fmt"

	"github.com/hupe1980/tabgo/record"
)

// SchemaBuilder assembles an entity schema fluently. Field modifiers
// (Required, Searchable, Unique, References) always apply to the most
// recently declared field.
//
// Example:
//
//	customers := tabgo.NewSchema("customers").
//	    String("name").Required().Searchable().
//	    String("email").Required().Unique().Searchable().
//	    String("phone").
//	    RestrictDelete().
//	    MustBuild()
//
//	orders := tabgo.NewSchema("orders").
//	    Int("customer_id").Required().References("customers").
//	    Float("amount").Required().
//	    Time("ordered_at").
//	    String("status").
//	    MustBuild()
type SchemaBuilder struct {
	schema *record.Schema
	last   string
	err    error
}

// NewSchema starts a schema for the named entity.
func NewSchema(entity string) *SchemaBuilder {
	return &SchemaBuilder{
		schema: &record.Schema{
			Entity:     entity,
			Fields:     make(map[string]record.FieldDef),
			References: make(map[string]string),
		},
	}
}

func (b *SchemaBuilder) field(name string, t record.FieldType) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if name == "" {
		b.err = fmt.Errorf("schema %s: empty field name", b.schema.Entity)
		return b
	}
	if _, dup := b.schema.Fields[name]; dup {
		b.err = fmt.Errorf("schema %s: duplicate field %q", b.schema.Entity, name)
		return b
	}
	b.schema.Fields[name] = record.FieldDef{Type: t}
	b.last = name
	return b
}

// Int declares an integer column.
func (b *SchemaBuilder) Int(name string) *SchemaBuilder {
	return b.field(name, record.FieldTypeInt)
}

// Float declares a float column. Integer values upgrade on write.
func (b *SchemaBuilder) Float(name string) *SchemaBuilder {
	return b.field(name, record.FieldTypeFloat)
}

// String declares a string column.
func (b *SchemaBuilder) String(name string) *SchemaBuilder {
	return b.field(name, record.FieldTypeString)
}

// Bool declares a boolean column.
func (b *SchemaBuilder) Bool(name string) *SchemaBuilder {
	return b.field(name, record.FieldTypeBool)
}

// Time declares a time column.
func (b *SchemaBuilder) Time(name string) *SchemaBuilder {
	return b.field(name, record.FieldTypeTime)
}

// Any declares an untyped column.
func (b *SchemaBuilder) Any(name string) *SchemaBuilder {
	return b.field(name, record.FieldTypeAny)
}

func (b *SchemaBuilder) modifyLast(fn func(*record.FieldDef)) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if b.last == "" {
		b.err = fmt.Errorf("schema %s: field modifier before any field", b.schema.Entity)
		return b
	}
	def := b.schema.Fields[b.last]
	fn(&def)
	b.schema.Fields[b.last] = def
	return b
}

// Required marks the last declared field as required.
func (b *SchemaBuilder) Required() *SchemaBuilder {
	return b.modifyLast(func(d *record.FieldDef) { d.Required = true })
}

// Searchable includes the last declared field in free-text search.
func (b *SchemaBuilder) Searchable() *SchemaBuilder {
	return b.modifyLast(func(d *record.FieldDef) { d.Searchable = true })
}

// Unique adds the last declared field to the schema's uniqueness keys.
func (b *SchemaBuilder) Unique() *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if b.last == "" {
		b.err = fmt.Errorf("schema %s: Unique before any field", b.schema.Entity)
		return b
	}
	b.schema.UniqueKeys = append(b.schema.UniqueKeys, b.last)
	return b
}

// References declares the last declared field as a foreign key into the
// target entity. The field must be an int column holding the target
// record's ID.
func (b *SchemaBuilder) References(target string) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if b.last == "" {
		b.err = fmt.Errorf("schema %s: References before any field", b.schema.Entity)
		return b
	}
	b.schema.References[b.last] = target
	return b
}

// RestrictDelete blocks deletes of this entity's records while other
// collections reference them, unless the caller cascades.
func (b *SchemaBuilder) RestrictDelete() *SchemaBuilder {
	if b.err != nil {
		return b
	}
	b.schema.RestrictDelete = true
	return b
}

// Build returns the assembled schema.
func (b *SchemaBuilder) Build() (*record.Schema, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.schema.Fields) == 0 {
		return nil, fmt.Errorf("schema %s: no fields declared", b.schema.Entity)
	}
	return b.schema, nil
}

// MustBuild is Build that panics on error. Intended for static schema
// definitions at program startup.
func (b *SchemaBuilder) MustBuild() *record.Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}
