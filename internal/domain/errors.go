package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common conditions.
var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicate          = errors.New("already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrAdminNotConfigured = errors.New("admin WhatsApp number not configured")
	ErrNotConnected       = errors.New("not connected to WhatsApp")
	ErrConnectionClosed   = errors.New("connection closed")
	ErrLoggedOut          = errors.New("logged out")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrInvalidInput) match every validation failure.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError builds a ValidationError from a message.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Err: errors.New(msg)}
}

// SessionError represents a messaging session lifecycle failure.
type SessionError struct {
	Op  string // operation that failed
	Err error  // underlying error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// DispatchError is returned once a notification exhausted its retries.
type DispatchError struct {
	Destination string
	Attempts    int
	Err         error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch to %s failed after %d attempt(s): %v", e.Destination, e.Attempts, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// connectionMarkers are fragments the chat network uses when a stream dies.
var connectionMarkers = []string{
	"connection closed",
	"stream errored",
	"websocket not connected",
	"socket is closed",
}

// IsConnectionError reports whether err means the underlying session is
// broken and has to be torn down before retrying.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectionClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range connectionMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
