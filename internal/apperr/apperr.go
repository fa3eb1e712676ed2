// Package apperr defines the error kinds shared by the domain packages.
//
// Domain packages declare their own sentinel errors wrapping one of these
// kinds, so callers can match either the precise sentinel or the kind:
//
//	var ErrEventFull = fmt.Errorf("%w: event is full", apperr.ErrCapacity)
//
//	if errors.Is(err, apperr.ErrCapacity) { ... }
package apperr

import "errors"

var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the caller may not perform the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates the operation collides with existing state.
	ErrConflict = errors.New("conflict")

	// ErrCapacity indicates a bounded collection is full.
	ErrCapacity = errors.New("capacity exceeded")

	// ErrInvalidInput indicates the caller supplied malformed values.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoChange marks an informational no-op: the requested state already holds.
	ErrNoChange = errors.New("no change")
)

// Kind returns the kind sentinel err wraps, or nil when err carries none.
func Kind(err error) error {
	for _, kind := range []error{ErrNoChange, ErrNotFound, ErrForbidden, ErrConflict, ErrCapacity, ErrInvalidInput} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
