package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors are shared by the state machines, the stores and the transport
// layers. Callers wrap them with context and match with errors.Is.
// -----------------------------------------------------------------------------

// Lookup errors
var (
	ErrNotFound        = errors.New("not found")
	ErrPersonaNotFound = errors.New("persona not found")
)

// Input errors
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrConfirmationRequired = errors.New("confirmation required")
)

// State machine errors
var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrBusy              = errors.New("generation in progress")
	ErrTerminal          = errors.New("session is completed")
)
