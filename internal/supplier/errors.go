package supplier

import "errors"

var (
	// ErrConflict reports that the state already satisfies what the caller
	// is trying to establish, e.g. a second concurrent application.
	ErrConflict = errors.New("supplier: conflict")

	// ErrInvalidTransition reports a state machine precondition violation,
	// e.g. approving an already-approved profile.
	ErrInvalidTransition = errors.New("supplier: invalid transition")

	ErrNotFound     = errors.New("supplier: not found")
	ErrForbidden    = errors.New("supplier: forbidden")
	ErrInvalidInput = errors.New("supplier: invalid input")
)
