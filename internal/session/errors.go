package session

import (
	"errors"
	"fmt"
)

// NotFoundError covers both unknown ids and expired/evicted sessions.
type NotFoundError struct {
	SessionID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session %s not found", e.SessionID)
}

// Code identifies the error class in handler summaries.
func (e *NotFoundError) Code() string { return "NOT_FOUND" }

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// InvalidStateError rejects out-of-sequence review actions. Reviews are
// sequential, one row at a time, so a stale button press lands here.
type InvalidStateError struct {
	SessionID string
	RowIndex  int
	Cursor    int
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("session %s: row %d is not the current cursor %d", e.SessionID, e.RowIndex, e.Cursor)
}

// Code identifies the error class in handler summaries.
func (e *InvalidStateError) Code() string { return "INVALID_STATE" }

// IsInvalidState reports whether err is an InvalidStateError.
func IsInvalidState(err error) bool {
	var is *InvalidStateError
	return errors.As(err, &is)
}
