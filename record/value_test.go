package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueAccessors(t *testing.T) {
	i, ok := Int(42).AsInt64()
	assert.True(t, ok)
	assert.Equal(t, int64(42), i)

	f, ok := Float(1.5).AsFloat64()
	assert.True(t, ok)
	assert.Equal(t, 1.5, f)

	s, ok := String("hello").AsString()
	assert.True(t, ok)
	assert.Equal(t, "hello", s)

	b, ok := Bool(true).AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	day := time.Date(2026, time.March, 5, 12, 30, 0, 0, time.UTC)
	tv, ok := Time(day).AsTime()
	assert.True(t, ok)
	assert.Equal(t, day, tv)

	_, ok = Int(1).AsString()
	assert.False(t, ok)

	assert.True(t, Null().IsNull())
	assert.True(t, Value{}.IsNull())
	assert.False(t, Int(0).IsNull())
}

func TestValueKeyStability(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{name: "null", v: Null(), want: "null"},
		{name: "int", v: Int(-7), want: "i:-7"},
		{name: "string", v: String("a b"), want: "s:a b"},
		{name: "bool true", v: Bool(true), want: "b:1"},
		{name: "bool false", v: Bool(false), want: "b:0"},
		{name: "time", v: Time(time.UnixMilli(1500).UTC()), want: "t:1500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.Key())
		})
	}

	// Ints and floats never collide even when numerically equal.
	assert.NotEqual(t, Int(1).Key(), Float(1).Key())
}

func TestValueCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{name: "int less", a: Int(1), b: Int(2), want: -1},
		{name: "int equal", a: Int(2), b: Int(2), want: 0},
		{name: "int float mixed", a: Int(2), b: Float(1.5), want: 1},
		{name: "float less", a: Float(0.5), b: Float(1.5), want: -1},
		{name: "string", a: String("alpha"), b: String("beta"), want: -1},
		{name: "bool false before true", a: Bool(false), b: Bool(true), want: -1},
		{name: "time", a: Time(time.UnixMilli(100)), b: Time(time.UnixMilli(200)), want: -1},
		{name: "bool before number", a: Bool(true), b: Int(0), want: -1},
		{name: "number before string", a: Int(99), b: String("1"), want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
			assert.Equal(t, -tt.want, Compare(tt.b, tt.a))
		})
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	doc := Document{
		"name":   String("Ada"),
		"age":    Int(36),
		"score":  Float(99.5),
		"active": Bool(true),
		"since":  Time(time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)),
		"note":   Null(),
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var got Document
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, doc, got)

	// Interned strings survive the round trip as the same handle.
	s, ok := got["name"].AsString()
	require.True(t, ok)
	assert.Equal(t, "Ada", s)
}

func TestDocumentClone(t *testing.T) {
	doc := Document{"a": Int(1)}
	clone := doc.Clone()
	clone["a"] = Int(2)

	v, _ := doc["a"].AsInt64()
	assert.Equal(t, int64(1), v)

	assert.Nil(t, Document(nil).Clone())
}
