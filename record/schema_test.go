package record

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func customerSchema() *Schema {
	return &Schema{
		Entity: "customers",
		Fields: map[string]FieldDef{
			"name":  {Type: FieldTypeString, Required: true, Searchable: true},
			"email": {Type: FieldTypeString, Required: true, Searchable: true},
			"phone": {Type: FieldTypeString},
			"age":   {Type: FieldTypeInt},
			"score": {Type: FieldTypeFloat},
		},
		UniqueKeys: []string{"email"},
	}
}

func TestSchemaValidate(t *testing.T) {
	s := customerSchema()

	tests := []struct {
		name      string
		doc       Document
		wantField string
	}{
		{
			name: "valid full document",
			doc: Document{
				"name":  String("Ada"),
				"email": String("ada@example.com"),
				"phone": String("123"),
				"age":   Int(36),
			},
		},
		{
			name: "missing required",
			doc: Document{
				"name": String("Ada"),
			},
			wantField: "email",
		},
		{
			name: "null required",
			doc: Document{
				"name":  String("Ada"),
				"email": Null(),
			},
			wantField: "email",
		},
		{
			name: "unknown field",
			doc: Document{
				"name":    String("Ada"),
				"email":   String("ada@example.com"),
				"company": String("Analytical Engines"),
			},
			wantField: "company",
		},
		{
			name: "wrong kind",
			doc: Document{
				"name":  String("Ada"),
				"email": String("ada@example.com"),
				"age":   String("36"),
			},
			wantField: "age",
		},
		{
			name: "int upgrades to float",
			doc: Document{
				"name":  String("Ada"),
				"email": String("ada@example.com"),
				"score": Int(99),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate(tt.doc)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.wantField, fe.Field)
		})
	}
}

func TestSchemaValidatePartial(t *testing.T) {
	s := customerSchema()

	// Required fields may be absent in a partial document.
	assert.NoError(t, s.ValidatePartial(Document{"phone": String("456")}))
	assert.NoError(t, s.ValidatePartial(Document{}))

	// Null is accepted for any declared field.
	assert.NoError(t, s.ValidatePartial(Document{"phone": Null()}))

	var fe *FieldError
	err := s.ValidatePartial(Document{"nope": Int(1)})
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "nope", fe.Field)

	err = s.ValidatePartial(Document{"age": Bool(true)})
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "age", fe.Field)
}

func TestSchemaSearchableFields(t *testing.T) {
	s := customerSchema()
	assert.Equal(t, []string{"email", "name"}, s.SearchableFields())

	// Non-string searchable fields are excluded.
	s.Fields["age"] = FieldDef{Type: FieldTypeInt, Searchable: true}
	assert.Equal(t, []string{"email", "name"}, s.SearchableFields())
}

func TestSchemaHasField(t *testing.T) {
	s := customerSchema()
	assert.True(t, s.HasField("name"))
	assert.False(t, s.HasField("missing"))
}
