package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for transport conditions.
var (
	// ErrNotConnected is returned when writing to a transport that has not
	// finished opening.
	ErrNotConnected = errors.New("session: not connected")

	// ErrClosed is returned when writing to a transport that was closed.
	ErrClosed = errors.New("session: connection closed")

	// ErrReadTimeout is reported when no frame arrives within the read timeout.
	ErrReadTimeout = errors.New("session: read timeout")
)

// ConnError wraps a transport failure with the operation and endpoint.
type ConnError struct {
	Op  string // "dial", "read", "write"
	URL string
	Err error
}

// Error returns the error message with connection context.
func (e *ConnError) Error() string {
	return fmt.Sprintf("session: %s %s: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ConnError) Unwrap() error {
	return e.Err
}
