package realtime

import (
	"errors"
	"fmt"
)

// ErrConversationNotFound is returned by a MessageStore when no conversation
// matches the lookup.
var ErrConversationNotFound = errors.New("conversation not found")

// ValidationError rejects a request before anything is persisted or delivered.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthError reports a missing or rejected credential.
type AuthError struct {
	ConnID string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connection %s is not authenticated", e.ConnID)
	}
	return fmt.Sprintf("connection %s is not authenticated: %v", e.ConnID, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed store call. The operation that produced it
// delivered nothing.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// DeliveryError reports a single connection that could not take an event.
// It never escapes a fan-out.
type DeliveryError struct {
	ConnID string
	Event  string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s to %s: %v", e.Event, e.ConnID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
