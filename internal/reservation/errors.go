package reservation

import (
	"errors"
	"fmt"

	"foyer-backend/internal/store"
)

var (
	// ErrCapacityExceeded is returned when a student would be added to a
	// reservation that already holds as many students as its room hosts.
	ErrCapacityExceeded = errors.New("room capacity exceeded")

	// ErrAlreadyReserved is returned when the student already holds another
	// reservation for the same academic year.
	ErrAlreadyReserved = errors.New("student already holds a reservation for this academic year")

	// ErrConcurrentModification is returned when every attempt lost an
	// optimistic update race.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// NotFoundError names the entity a reservation operation needed but could
// not find. It matches store.ErrNotFound with errors.Is.
type NotFoundError struct {
	Entity string
	Key    any
	Err    error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.Key)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// notFound wraps err in a NotFoundError when it reports a missing record and
// returns it unchanged otherwise.
func notFound(entity string, key any, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{Entity: entity, Key: key, Err: err}
	}
	return err
}

// Outcome classifies err for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrAlreadyReserved):
		return "already_reserved"
	case errors.Is(err, ErrConcurrentModification):
		return "conflict"
	}
	return "error"
}
