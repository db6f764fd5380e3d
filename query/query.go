package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/tabgo/engine"
	"github.com/hupe1980/tabgo/record"
)

// InvalidError indicates a malformed query descriptor.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string {
	return "invalid query: " + e.Reason
}

// Execute computes a result page from a collection snapshot.
//
// The computation is pure: the snapshot is not modified, and repeated
// executions against the same snapshot return identical pages. Sort is
// stable with an ID-ascending tie-break, so page boundaries are
// deterministic; missing and null sort values order last regardless of
// direction. A page index beyond the result yields empty rows with correct
// metadata, never an error.
func Execute(snap engine.Snapshot, schema *record.Schema, d Descriptor) (Page, error) {
	if err := validate(schema, d); err != nil {
		return Page{}, err
	}

	search := strings.ToLower(d.Search)
	var searchable []string
	if search != "" {
		searchable = schema.SearchableFields()
	}

	matched := make([]record.Record, 0, len(snap.Records))
	for _, r := range snap.Records {
		if d.Filters != nil && !d.Filters.Matches(r.Fields) {
			continue
		}
		if search != "" && !matchesSearch(r.Fields, searchable, search) {
			continue
		}
		matched = append(matched, r)
	}

	if d.SortBy != "" {
		sortRecords(matched, d.SortBy, d.SortDir)
	}

	total := len(matched)
	start := d.PageIndex * d.PageSize
	if start < 0 || start >= total {
		return Page{TotalMatching: total, PageIndex: d.PageIndex}, nil
	}
	end := start + d.PageSize
	if end > total {
		end = total
	}

	return Page{
		Rows:          matched[start:end],
		TotalMatching: total,
		PageIndex:     d.PageIndex,
		HasNext:       end < total,
	}, nil
}

func validate(schema *record.Schema, d Descriptor) error {
	if d.PageSize <= 0 {
		return &InvalidError{Reason: fmt.Sprintf("page size must be positive, got %d", d.PageSize)}
	}
	if d.PageIndex < 0 {
		return &InvalidError{Reason: fmt.Sprintf("page index must not be negative, got %d", d.PageIndex)}
	}
	if d.SortBy != "" && !schema.HasField(d.SortBy) {
		return &InvalidError{Reason: fmt.Sprintf("unknown sort column %q", d.SortBy)}
	}
	if d.Filters != nil {
		for i := range d.Filters.Filters {
			if key := d.Filters.Filters[i].Key; !schema.HasField(key) {
				return &InvalidError{Reason: fmt.Sprintf("unknown filter column %q", key)}
			}
		}
	}
	return nil
}

// matchesSearch reports whether the lowered search text appears in at least
// one searchable string field.
func matchesSearch(doc record.Document, searchable []string, search string) bool {
	for _, f := range searchable {
		v, ok := doc[f]
		if !ok {
			continue
		}
		if s, ok := v.AsString(); ok && strings.Contains(strings.ToLower(s), search) {
			return true
		}
	}
	return false
}

// sortRecords sorts in place. The input slice is always freshly built by
// Execute, so the snapshot itself is never reordered.
func sortRecords(recs []record.Record, column string, dir Direction) {
	sort.SliceStable(recs, func(i, j int) bool {
		av, aok := recs[i].Fields[column]
		if aok && av.IsNull() {
			aok = false
		}
		bv, bok := recs[j].Fields[column]
		if bok && bv.IsNull() {
			bok = false
		}

		switch {
		case aok && !bok:
			return true
		case !aok && bok:
			return false
		case !aok && !bok:
			return recs[i].ID < recs[j].ID
		}

		c := record.Compare(av, bv)
		if dir == Descending {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		return recs[i].ID < recs[j].ID
	})
}
