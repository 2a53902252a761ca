package kflow

import (
	"errors"

	"github.com/birdayz/kflow/kdag"
)

var (
	// ErrUnknownOperator is returned when a connection, the entry operator or
	// the output filter names an operator the program does not declare.
	ErrUnknownOperator = kdag.ErrNodeNotFound

	// ErrConnectionTypeMismatch is returned when a connection joins ports of
	// different payload kinds or the target's class contradicts toPortType.
	ErrConnectionTypeMismatch = kdag.ErrTypeMismatch

	ErrEntryOperatorInvalid = errors.New("invalid entry operator")
	ErrMalformedDescription = errors.New("malformed description")
	ErrProgramNotFound      = errors.New("program not found")
	ErrProgramExists        = errors.New("program already exists")

	// ErrTickLimit aborts a tick whose cascade exceeds the configured number
	// of deliveries.
	ErrTickLimit = errors.New("tick step limit exceeded")
)

// ValidationError locates one problem in a program description, for example
// "operators[2].window_size" or "connections[0].toPort".
type ValidationError struct {
	Location string
	Err      error
}

func (e *ValidationError) Error() string {
	if e.Location == "" {
		return e.Err.Error()
	}
	return e.Location + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }
