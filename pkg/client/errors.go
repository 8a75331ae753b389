package client

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a single-record Update or Delete
	// addresses no existing record.
	ErrNotFound = errors.New("record not found")

	// ErrUniqueViolation wraps a unique constraint failure reported by
	// the store.
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrInvalidSelector is returned when a where payload does not match
	// any declared unique field set of the model.
	ErrInvalidSelector = errors.New("selector is not a declared unique field set")

	// ErrUnknownModel is returned for a model name absent from the schema.
	ErrUnknownModel = errors.New("unknown model")

	// ErrUnknownField is returned for a field name absent from the model.
	ErrUnknownField = errors.New("unknown field")

	// ErrUnsupportedDirective is returned when a nested-write directive
	// does not apply to the relation it is attached to.
	ErrUnsupportedDirective = errors.New("unsupported nested-write directive")
)

const pqUniqueViolation = "23505"

// wrapDBErr maps driver errors onto the client error taxonomy.
func wrapDBErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return fmt.Errorf("%w: %s", ErrUniqueViolation, pqErr.Constraint)
	}
	return err
}
