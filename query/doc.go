// Package query implements the read side of tabgo: filtered, sorted,
// paginated result pages computed from immutable collection snapshots.
//
// Execute is a pure function of (snapshot, descriptor). Two executions
// against the same snapshot version return identical pages, which is what
// makes result pages safely cacheable under a version-stamped key and page
// boundaries reproducible across repeated queries.
package query
