package tabgo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tabgo/record"
)

func TestSchemaBuilder(t *testing.T) {
	s, err := NewSchema("customers").
		String("name").Required().Searchable().
		String("email").Required().Unique().Searchable().
		String("phone").
		Int("visits").
		Float("balance").
		Bool("active").
		Time("joined_at").
		RestrictDelete().
		Build()
	require.NoError(t, err)

	assert.Equal(t, "customers", s.Entity)
	assert.Len(t, s.Fields, 7)
	assert.Equal(t, []string{"email"}, s.UniqueKeys)
	assert.True(t, s.RestrictDelete)

	name := s.Fields["name"]
	assert.Equal(t, record.FieldTypeString, name.Type)
	assert.True(t, name.Required)
	assert.True(t, name.Searchable)

	phone := s.Fields["phone"]
	assert.False(t, phone.Required)
	assert.False(t, phone.Searchable)

	assert.Equal(t, record.FieldTypeTime, s.Fields["joined_at"].Type)
}

func TestSchemaBuilderReferences(t *testing.T) {
	s, err := NewSchema("orders").
		Int("customer_id").Required().References("customers").
		Float("amount").Required().
		Build()
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"customer_id": "customers"}, s.References)
}

func TestSchemaBuilderErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() (*record.Schema, error)
	}{
		{
			name:  "no fields",
			build: func() (*record.Schema, error) { return NewSchema("empty").Build() },
		},
		{
			name:  "empty field name",
			build: func() (*record.Schema, error) { return NewSchema("x").String("").Build() },
		},
		{
			name: "duplicate field",
			build: func() (*record.Schema, error) {
				return NewSchema("x").String("a").Int("a").Build()
			},
		},
		{
			name:  "modifier before field",
			build: func() (*record.Schema, error) { return NewSchema("x").Required().Build() },
		},
		{
			name:  "unique before field",
			build: func() (*record.Schema, error) { return NewSchema("x").Unique().Build() },
		},
		{
			name:  "references before field",
			build: func() (*record.Schema, error) { return NewSchema("x").References("y").Build() },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			assert.Error(t, err)
		})
	}
}

func TestMustBuildPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewSchema("empty").MustBuild()
	})
	assert.NotPanics(t, func() {
		NewSchema("ok").String("a").MustBuild()
	})
}
