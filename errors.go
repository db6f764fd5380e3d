package tabgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/tabgo/engine"
	"github.com/hupe1980/tabgo/query"
	"github.com/hupe1980/tabgo/record"
)

var (
	// ErrNotFound is returned when a record or entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a create or update would violate a
	// uniqueness key.
	ErrDuplicate = errors.New("duplicate value")

	// ErrValidation is returned when a document fails schema validation.
	ErrValidation = errors.New("validation failed")

	// ErrReferential is returned when an operation would violate referential
	// integrity: a dangling foreign key, or a blocked delete.
	ErrReferential = errors.New("referential integrity violation")

	// ErrInvalidQuery is returned when a query descriptor is malformed.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrClosed is returned when operating on a closed DB.
	ErrClosed = errors.New("database is closed")
)

// translateError maps internal errors onto the public sentinels so callers
// can branch with errors.Is without importing internal packages. The original
// error stays reachable through Unwrap.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification. Unknown entities are indistinguishable from
	// missing data at the API boundary.
	if errors.Is(err, engine.ErrNotFound) || errors.Is(err, engine.ErrUnknownEntity) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var de *engine.DuplicateError
	if errors.As(err, &de) {
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	}

	var fe *record.FieldError
	if errors.As(err, &fe) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	var re *engine.ReferenceError
	if errors.As(err, &re) {
		return fmt.Errorf("%w: %w", ErrReferential, err)
	}

	var qe *query.InvalidError
	if errors.As(err, &qe) {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}

	return err
}
