package tabgo

import (
	"context"

	"github.com/hupe1980/tabgo/query"
	"github.com/hupe1980/tabgo/record"
)

// QueryBuilder assembles a query descriptor fluently.
//
// Example:
//
//	page, err := db.NewQuery("orders").
//	    Search("acme").
//	    Filter(record.Eq("status", record.String("open"))).
//	    Filter(record.Gte("amount", record.Float(100))).
//	    SortBy("ordered_at").Desc().
//	    Page(0, 25).
//	    Execute(ctx)
type QueryBuilder struct {
	db      *DB
	entity  string
	d       query.Descriptor
	filters []record.Filter
}

// NewQuery starts a query against an entity. The default window is the
// first page of 25 rows in insertion order.
func (db *DB) NewQuery(entity string) *QueryBuilder {
	return &QueryBuilder{
		db:     db,
		entity: entity,
		d:      query.Descriptor{PageSize: 25},
	}
}

// Search sets the free-text search term, matched case-insensitively against
// the schema's searchable fields.
func (b *QueryBuilder) Search(term string) *QueryBuilder {
	b.d.Search = term
	return b
}

// Filter adds column filters. All filters must match.
func (b *QueryBuilder) Filter(filters ...record.Filter) *QueryBuilder {
	b.filters = append(b.filters, filters...)
	return b
}

// SortBy sets the sort column, ascending. Combine with Desc to reverse.
func (b *QueryBuilder) SortBy(column string) *QueryBuilder {
	b.d.SortBy = column
	b.d.SortDir = query.Ascending
	return b
}

// Desc reverses the sort direction.
func (b *QueryBuilder) Desc() *QueryBuilder {
	b.d.SortDir = query.Descending
	return b
}

// Page sets the zero-based page index and page size.
func (b *QueryBuilder) Page(index, size int) *QueryBuilder {
	b.d.PageIndex = index
	b.d.PageSize = size
	return b
}

// Descriptor returns the assembled descriptor without executing it.
func (b *QueryBuilder) Descriptor() query.Descriptor {
	d := b.d
	if len(b.filters) > 0 {
		d.Filters = record.NewFilterSet(b.filters...)
	}
	return d
}

// Execute runs the query.
func (b *QueryBuilder) Execute(ctx context.Context) (query.Page, error) {
	return b.db.Query(ctx, b.entity, b.Descriptor())
}
