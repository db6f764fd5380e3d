package query

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tabgo/engine"
	"github.com/hupe1980/tabgo/record"
)

func orderSchema() *record.Schema {
	return &record.Schema{
		Entity: "orders",
		Fields: map[string]record.FieldDef{
			"customer":   {Type: record.FieldTypeString, Searchable: true},
			"status":     {Type: record.FieldTypeString, Searchable: true},
			"amount":     {Type: record.FieldTypeFloat},
			"ordered_at": {Type: record.FieldTypeTime},
		},
	}
}

func day(d int) record.Value {
	return record.Time(time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC))
}

func testSnapshot() engine.Snapshot {
	docs := []record.Document{
		{"customer": record.String("Acme Corp"), "status": record.String("open"), "amount": record.Float(100), "ordered_at": day(3)},
		{"customer": record.String("Globex"), "status": record.String("shipped"), "amount": record.Float(250), "ordered_at": day(1)},
		{"customer": record.String("Initech"), "status": record.String("open"), "amount": record.Float(75), "ordered_at": day(5)},
		{"customer": record.String("Acme West"), "status": record.String("cancelled"), "amount": record.Float(300)},
		{"customer": record.String("Umbrella"), "status": record.String("open"), "amount": record.Float(250), "ordered_at": day(2)},
	}

	recs := make([]record.Record, len(docs))
	for i, d := range docs {
		recs[i] = record.Record{ID: uint64(i + 1), Seq: uint64(i + 1), Fields: d}
	}
	return engine.Snapshot{Entity: "orders", Version: 1, Records: recs}
}

func ids(rows []record.Record) []uint64 {
	out := make([]uint64, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestExecuteValidation(t *testing.T) {
	snap := testSnapshot()
	schema := orderSchema()

	tests := []struct {
		name string
		d    Descriptor
	}{
		{name: "zero page size", d: Descriptor{PageSize: 0}},
		{name: "negative page size", d: Descriptor{PageSize: -1}},
		{name: "negative page index", d: Descriptor{PageSize: 10, PageIndex: -1}},
		{name: "unknown sort column", d: Descriptor{PageSize: 10, SortBy: "ghost"}},
		{
			name: "unknown filter column",
			d: Descriptor{
				PageSize: 10,
				Filters:  record.NewFilterSet(record.Eq("ghost", record.Int(1))),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Execute(snap, schema, tt.d)
			var ie *InvalidError
			assert.True(t, errors.As(err, &ie))
		})
	}
}

func TestExecuteUnfiltered(t *testing.T) {
	page, err := Execute(testSnapshot(), orderSchema(), Descriptor{PageSize: 10})
	require.NoError(t, err)

	assert.Equal(t, 5, page.TotalMatching)
	assert.False(t, page.HasNext)
	// Insertion order without a sort column.
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, ids(page.Rows))
}

func TestExecuteSearch(t *testing.T) {
	page, err := Execute(testSnapshot(), orderSchema(), Descriptor{Search: "acme", PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 4}, ids(page.Rows))

	// Search spans all searchable fields.
	page, err = Execute(testSnapshot(), orderSchema(), Descriptor{Search: "SHIP", PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, ids(page.Rows))

	page, err = Execute(testSnapshot(), orderSchema(), Descriptor{Search: "no such thing", PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.Equal(t, 0, page.TotalMatching)
}

func TestExecuteInFilter(t *testing.T) {
	d := Descriptor{
		Filters:  record.NewFilterSet(record.In("status", record.String("shipped"), record.String("cancelled"))),
		PageSize: 10,
	}
	page, err := Execute(testSnapshot(), orderSchema(), d)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 4}, ids(page.Rows))
	assert.Equal(t, 2, page.TotalMatching)
}

func TestExecuteFiltersAndSearchCombine(t *testing.T) {
	d := Descriptor{
		Search:   "e",
		Filters:  record.NewFilterSet(record.Eq("status", record.String("open"))),
		PageSize: 10,
	}
	page, err := Execute(testSnapshot(), orderSchema(), d)
	require.NoError(t, err)
	// "Acme Corp"(1), "Initech"(3), "Umbrella"(5) are open; all contain "e".
	assert.Equal(t, []uint64{1, 3, 5}, ids(page.Rows))
}

func TestExecuteSort(t *testing.T) {
	tests := []struct {
		name string
		d    Descriptor
		want []uint64
	}{
		{
			name: "amount ascending with tie on ID",
			d:    Descriptor{SortBy: "amount", PageSize: 10},
			want: []uint64{3, 1, 2, 5, 4},
		},
		{
			name: "amount descending keeps tie order by ID",
			d:    Descriptor{SortBy: "amount", SortDir: Descending, PageSize: 10},
			want: []uint64{4, 2, 5, 1, 3},
		},
		{
			name: "time ascending, missing value last",
			d:    Descriptor{SortBy: "ordered_at", PageSize: 10},
			want: []uint64{2, 5, 1, 3, 4},
		},
		{
			name: "time descending, missing value still last",
			d:    Descriptor{SortBy: "ordered_at", SortDir: Descending, PageSize: 10},
			want: []uint64{3, 1, 5, 2, 4},
		},
		{
			name: "string sort",
			d:    Descriptor{SortBy: "customer", PageSize: 10},
			want: []uint64{1, 4, 2, 3, 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := Execute(testSnapshot(), orderSchema(), tt.d)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(page.Rows))
		})
	}
}

func TestExecutePagination(t *testing.T) {
	snap := testSnapshot()
	schema := orderSchema()

	// 5 records at page size 2: pages of 2, 2, 1.
	sizes := []int{2, 2, 1}
	hasNext := []bool{true, true, false}
	var collected []uint64

	for i := 0; i < 3; i++ {
		page, err := Execute(snap, schema, Descriptor{PageSize: 2, PageIndex: i})
		require.NoError(t, err)
		assert.Len(t, page.Rows, sizes[i], "page %d", i)
		assert.Equal(t, hasNext[i], page.HasNext, "page %d", i)
		assert.Equal(t, 5, page.TotalMatching)
		assert.Equal(t, i, page.PageIndex)
		collected = append(collected, ids(page.Rows)...)
	}

	// Every record exactly once, no overlap.
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, collected)

	// Beyond the last page: empty rows, correct metadata, no error.
	page, err := Execute(snap, schema, Descriptor{PageSize: 2, PageIndex: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.Equal(t, 5, page.TotalMatching)
	assert.False(t, page.HasNext)
}

func TestExecuteDeterministic(t *testing.T) {
	snap := testSnapshot()
	schema := orderSchema()
	d := Descriptor{SortBy: "amount", SortDir: Descending, PageSize: 3}

	first, err := Execute(snap, schema, d)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Execute(snap, schema, d)
		require.NoError(t, err)
		assert.Equal(t, ids(first.Rows), ids(again.Rows))
	}
}

func TestExecuteDoesNotReorderSnapshot(t *testing.T) {
	snap := testSnapshot()
	_, err := Execute(snap, orderSchema(), Descriptor{SortBy: "amount", SortDir: Descending, PageSize: 10})
	require.NoError(t, err)

	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, ids(snap.Records))
}

func TestExecuteEmptySnapshot(t *testing.T) {
	snap := engine.Snapshot{Entity: "orders", Version: 0}
	page, err := Execute(snap, orderSchema(), Descriptor{PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.Equal(t, 0, page.TotalMatching)
	assert.False(t, page.HasNext)
}

func BenchmarkExecute(b *testing.B) {
	recs := make([]record.Record, 10000)
	for i := range recs {
		recs[i] = record.Record{
			ID:  uint64(i + 1),
			Seq: uint64(i + 1),
			Fields: record.Document{
				"customer": record.String(fmt.Sprintf("customer %d", i%100)),
				"status":   record.String([]string{"open", "shipped", "cancelled"}[i%3]),
				"amount":   record.Float(float64(i % 1000)),
			},
		}
	}
	snap := engine.Snapshot{Entity: "orders", Version: 1, Records: recs}
	schema := orderSchema()
	d := Descriptor{
		Filters:  record.NewFilterSet(record.Eq("status", record.String("open"))),
		SortBy:   "amount",
		SortDir:  Descending,
		PageSize: 25,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Execute(snap, schema, d); err != nil {
			b.Fatal(err)
		}
	}
}
