package engine

import (
	"errors"
	"fmt"

	"github.com/hupe1980/tabgo/record"
)

// ErrNotFound is returned when a collection does not contain an ID.
//
// This is an engine-layer sentinel used internally; the tabgo package may
// translate it into its public error contract.
var ErrNotFound = errors.New("not found")

// ErrUnknownEntity is returned when an operation names an entity type that
// was not configured at construction.
var ErrUnknownEntity = errors.New("unknown entity")

// DuplicateError indicates a uniqueness-key violation on create or update.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type DuplicateError struct {
	Entity string
	Field  string
	Value  record.Value
	cause  error
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s: duplicate value for unique field %q", e.Entity, e.Field)
}

func (e *DuplicateError) Unwrap() error { return e.cause }

// ReferenceError indicates a referential-integrity violation: either a
// foreign-key field that does not resolve to a live record (dangling), or a
// delete blocked by live referencing records.
type ReferenceError struct {
	Entity       string
	Field        string
	TargetEntity string
	TargetID     uint64

	// Blocked is true when a delete was rejected because other records
	// still reference the target. False means a dangling reference.
	Blocked bool
}

func (e *ReferenceError) Error() string {
	if e.Blocked {
		return fmt.Sprintf("%s: record %d is still referenced by %s.%s",
			e.TargetEntity, e.TargetID, e.Entity, e.Field)
	}
	return fmt.Sprintf("%s: field %q references missing %s record %d",
		e.Entity, e.Field, e.TargetEntity, e.TargetID)
}
