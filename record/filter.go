package record

import "strings"

// Operator represents a comparison operator for filtering.
type Operator string

const (
	// OpEqual represents the equality operator.
	OpEqual Operator = "eq"
	// OpNotEqual represents the inequality operator.
	OpNotEqual Operator = "ne"
	// OpGreaterThan represents the greater than operator.
	OpGreaterThan Operator = "gt"
	// OpGreaterEqual represents the greater than or equal operator.
	OpGreaterEqual Operator = "gte"
	// OpLessThan represents the less than operator.
	OpLessThan Operator = "lt"
	// OpLessEqual represents the less than or equal operator.
	OpLessEqual Operator = "lte"
	// OpContains represents the contains substring operator (case-insensitive).
	OpContains Operator = "contains"
	// OpIn represents set membership against a list of values.
	OpIn Operator = "in"
)

// Filter represents a single column filter condition.
type Filter struct {
	Key      string
	Operator Operator
	Value    Value

	// Values holds the candidate set for OpIn; Value is unused then.
	Values []Value
}

// Eq returns an exact-match filter (categorical columns).
func Eq(key string, v Value) Filter {
	return Filter{Key: key, Operator: OpEqual, Value: v}
}

// Ne returns an inequality filter.
func Ne(key string, v Value) Filter {
	return Filter{Key: key, Operator: OpNotEqual, Value: v}
}

// Gte returns an inclusive lower-bound filter.
func Gte(key string, v Value) Filter {
	return Filter{Key: key, Operator: OpGreaterEqual, Value: v}
}

// Lte returns an inclusive upper-bound filter.
func Lte(key string, v Value) Filter {
	return Filter{Key: key, Operator: OpLessEqual, Value: v}
}

// Gt returns an exclusive lower-bound filter.
func Gt(key string, v Value) Filter {
	return Filter{Key: key, Operator: OpGreaterThan, Value: v}
}

// Lt returns an exclusive upper-bound filter.
func Lt(key string, v Value) Filter {
	return Filter{Key: key, Operator: OpLessThan, Value: v}
}

// Contains returns a case-insensitive substring filter for string columns.
func Contains(key string, v Value) Filter {
	return Filter{Key: key, Operator: OpContains, Value: v}
}

// In returns a set-membership filter: the field must equal one of the given
// values. An empty set matches nothing.
func In(key string, vs ...Value) Filter {
	return Filter{Key: key, Operator: OpIn, Values: vs}
}

// Between returns the two filters of an inclusive range (numeric/date columns).
func Between(key string, lo, hi Value) []Filter {
	return []Filter{Gte(key, lo), Lte(key, hi)}
}

// Matches checks if the record document satisfies this filter.
//
// A missing or null field never matches, regardless of operator. Rejecting
// rather than matching on null keeps range filters total.
func (f *Filter) Matches(doc Document) bool {
	value, exists := doc[f.Key]
	if !exists || value.IsNull() {
		return false
	}

	switch f.Operator {
	case OpEqual:
		return compareEqual(value, f.Value)
	case OpNotEqual:
		return !compareEqual(value, f.Value)
	case OpGreaterThan:
		return compareGreater(value, f.Value)
	case OpGreaterEqual:
		return compareGreater(value, f.Value) || compareEqual(value, f.Value)
	case OpLessThan:
		return compareLess(value, f.Value)
	case OpLessEqual:
		return compareLess(value, f.Value) || compareEqual(value, f.Value)
	case OpContains:
		return compareContains(value, f.Value)
	case OpIn:
		for i := range f.Values {
			if compareEqual(value, f.Values[i]) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// FilterSet represents a set of filters that must all match (AND logic).
type FilterSet struct {
	Filters []Filter
}

// NewFilterSet creates a new filter set.
func NewFilterSet(filters ...Filter) *FilterSet {
	return &FilterSet{Filters: filters}
}

// Matches checks if the document matches all filters in the set.
func (fs *FilterSet) Matches(doc Document) bool {
	for i := range fs.Filters {
		if !fs.Filters[i].Matches(doc) {
			return false
		}
	}
	return true
}

// Len returns the number of filters in the set. A nil set has length zero.
func (fs *FilterSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.Filters)
}

func compareEqual(a, b Value) bool {
	if a.Kind == KindNull && b.Kind == KindNull {
		return true
	}
	if a.Kind == KindNull || b.Kind == KindNull {
		return false
	}

	if isNumber(a) && isNumber(b) {
		// Prefer exact int compare when possible.
		if a.Kind == KindInt && b.Kind == KindInt {
			return a.I64 == b.I64
		}
		return asFloat64(a) == asFloat64(b)
	}

	if a.Kind != b.Kind {
		return false
	}

	switch a.Kind {
	case KindString:
		return a.s == b.s
	case KindBool:
		return a.B == b.B
	case KindTime:
		return a.I64 == b.I64
	default:
		return false
	}
}

func compareGreater(a, b Value) bool {
	if a.Kind == KindTime && b.Kind == KindTime {
		return a.I64 > b.I64
	}
	if !isNumber(a) || !isNumber(b) {
		return false
	}
	return asFloat64(a) > asFloat64(b)
}

func compareLess(a, b Value) bool {
	if a.Kind == KindTime && b.Kind == KindTime {
		return a.I64 < b.I64
	}
	if !isNumber(a) || !isNumber(b) {
		return false
	}
	return asFloat64(a) < asFloat64(b)
}

func compareContains(a, b Value) bool {
	if a.Kind != KindString || b.Kind != KindString {
		return false
	}
	return strings.Contains(strings.ToLower(a.s.Value()), strings.ToLower(b.s.Value()))
}
