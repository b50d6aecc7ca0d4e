package credstore

import (
	"errors"
	"fmt"
)

// Domain errors surfaced by Store implementations.
var (
	// ErrUnauthorized means the platform refused access, e.g. the user
	// dismissed an unlock prompt or authentication to the backend failed.
	ErrUnauthorized = errors.New("credstore: unauthorized")

	// ErrUnavailable means the storage subsystem is temporarily unreachable.
	ErrUnavailable = errors.New("credstore: unavailable")
)

// Backend signals consumed by SecureStore. They never escape a Store.
var (
	ErrDuplicateItem = errors.New("credstore: item already exists")
	ErrItemNotFound  = errors.New("credstore: item not found")
)

// UnknownError carries the backend's raw status for anything that does not
// map onto ErrUnauthorized or ErrUnavailable.
type UnknownError struct {
	Status string
	Err    error
}

func (e *UnknownError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("credstore: unknown status %s: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("credstore: unknown status %s", e.Status)
}

func (e *UnknownError) Unwrap() error { return e.Err }

// Unknown builds an UnknownError.
func Unknown(status string, err error) error {
	return &UnknownError{Status: status, Err: err}
}

// classify keeps domain errors as they are and wraps anything else.
func classify(op string, err error) error {
	var unknown *UnknownError
	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrUnavailable), errors.As(err, &unknown):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w", op, Unknown("unclassified", err))
	}
}
