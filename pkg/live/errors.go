package live

import (
	"errors"
	"fmt"
)

// Sentinel errors for the live package.
var (
	// ErrMissingAPIKey indicates the API key was not provided.
	ErrMissingAPIKey = errors.New("live: API key is required")

	// ErrMissingModel indicates the model identifier was not provided.
	ErrMissingModel = errors.New("live: model is required")

	// ErrNotConnected indicates the client has no open connection.
	ErrNotConnected = errors.New("live: not connected")

	// ErrConnectCancelled indicates Disconnect was called while a
	// connection attempt was still in flight.
	ErrConnectCancelled = errors.New("live: connect cancelled by disconnect")
)

// ConnectionError represents a failure to establish or keep a session.
// Transport construction failure, a handshake error, and a close before
// the handshake completed all normalize to this one type.
type ConnectionError struct {
	// Reason describes which step failed.
	Reason string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("live: connection error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("live: connection error: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// IsConnectionError reports whether err is a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
