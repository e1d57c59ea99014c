package session

import (
	"errors"
	"fmt"
)

// SessionErrorKind identifies specific types of errors that can occur while
// operating on a session. This enables error handling code to make decisions
// based on the type of error.
type SessionErrorKind int

const (
	// ErrKindInvalidPhaseTransition indicates an attempt to transition to an
	// invalid phase.
	ErrKindInvalidPhaseTransition SessionErrorKind = iota
)

// SessionError represents domain-specific errors that can occur while
// operating on a session.
type SessionError struct {
	msg  string
	kind SessionErrorKind
}

// Error returns the error message. This implements the error interface.
func (e *SessionError) Error() string { return e.msg }

// Is enables error matching by comparing error kinds.
func (e *SessionError) Is(target error) bool {
	t, ok := target.(*SessionError)
	if !ok {
		return false
	}
	return e.kind == t.kind
}

// newInvalidPhaseTransitionError creates an error for invalid phase
// transitions, including the attempted transition to aid in debugging.
func newInvalidPhaseTransitionError(from, to Phase) error {
	return &SessionError{
		msg:  fmt.Sprintf("invalid session phase transition from %s to %s", from, to),
		kind: ErrKindInvalidPhaseTransition,
	}
}

// Operation-rejected errors. These are returned synchronously when a call is
// invalid for the current session state; they never mutate the session.
var (
	// ErrAlreadyRunning indicates a Start was attempted while a run is active.
	ErrAlreadyRunning = errors.New("export is already running")

	// ErrDownloadsRunning indicates invoice downloads are already executing.
	ErrDownloadsRunning = errors.New("invoice downloads are already running")

	// ErrNoFailedInvoices indicates a retry was requested with an empty
	// failure map.
	ErrNoFailedInvoices = errors.New("no failed invoices to retry")

	// ErrNotCompleted indicates an operation that requires a completed run
	// was attempted in another phase.
	ErrNotCompleted = errors.New("session is not completed")
)
