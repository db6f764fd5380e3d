package query

import (
	"sort"
	"strconv"
	"strings"

	"github.com/hupe1980/tabgo/record"
)

// Direction toggles sort order.
type Direction uint8

const (
	// Ascending sorts smallest first.
	Ascending Direction = iota
	// Descending sorts largest first.
	Descending
)

// String returns the string representation of the Direction.
func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// Descriptor is the full specification of one requested view: free-text
// search, column filters, sort, and page window.
//
// The zero value of everything but PageSize is valid: no search, no
// filters, insertion order, first page.
type Descriptor struct {
	// Search is matched case-insensitively as a substring against the
	// schema's searchable fields. Empty disables search.
	Search string

	// Filters must all match (AND). Nil means unfiltered.
	Filters *record.FilterSet

	// SortBy names the sort column. Empty keeps insertion order.
	SortBy  string
	SortDir Direction

	// PageIndex is the zero-based page number.
	PageIndex int

	// PageSize is the maximum number of rows per page. Must be positive.
	PageSize int
}

// Key returns the canonical cache-key string of the descriptor.
//
// Filter order is irrelevant: two descriptors that differ only in filter
// ordering produce the same key. The unit separator keeps field boundaries
// unambiguous since filter values may contain arbitrary strings.
func (d Descriptor) Key() string {
	var filters []string
	if d.Filters != nil {
		filters = make([]string, 0, len(d.Filters.Filters))
		for _, f := range d.Filters.Filters {
			filters = append(filters, f.Key+"\x1e"+string(f.Operator)+"\x1e"+filterValueKey(f))
		}
		sort.Strings(filters)
	}

	var b strings.Builder
	b.WriteString("q:")
	b.WriteString(d.Search)
	b.WriteString("\x1fs:")
	b.WriteString(d.SortBy)
	b.WriteByte(':')
	b.WriteString(d.SortDir.String())
	b.WriteString("\x1fp:")
	b.WriteString(strconv.Itoa(d.PageIndex))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(d.PageSize))
	b.WriteString("\x1ff:")
	b.WriteString(strings.Join(filters, "\x1f"))
	return b.String()
}

// filterValueKey canonicalizes a filter's value side. In-sets are sorted so
// that membership order does not change the key.
func filterValueKey(f record.Filter) string {
	if f.Operator != record.OpIn {
		return f.Value.Key()
	}
	keys := make([]string, len(f.Values))
	for i := range f.Values {
		keys[i] = f.Values[i].Key()
	}
	sort.Strings(keys)
	return strings.Join(keys, "\x1d")
}

// Page is one bounded slice of query results plus pagination metadata.
type Page struct {
	// Rows holds at most PageSize records, in result order.
	Rows []record.Record

	// TotalMatching counts every record passing search and filters,
	// before pagination.
	TotalMatching int

	// PageIndex echoes the requested page.
	PageIndex int

	// HasNext reports whether a further page exists.
	HasNext bool
}
