package chatgate

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by gateway operations. Callers match them with
// errors.Is to choose an HTTP status or a retry strategy.
var (
	// ErrNotConnected reports an operation that requires a connected
	// session while the session is in another phase.
	ErrNotConnected = errors.New("session is not connected")

	// ErrSessionNotFound reports an unknown session ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrAlreadyExists reports an attempt to create a session under an
	// ID that is already registered.
	ErrAlreadyExists = errors.New("session already exists")

	// ErrProviderTimeout reports a send that exceeded the provider's
	// query timeout. The condition is transient; callers may retry.
	ErrProviderTimeout = errors.New("provider operation timed out")

	// ErrShuttingDown reports an operation arriving after shutdown began.
	ErrShuttingDown = errors.New("gateway is shutting down")

	// ErrInvalidSessionID reports a session ID that cannot be used as a
	// credential directory name.
	ErrInvalidSessionID = errors.New("invalid session id")
)

// ProviderInitError reports that the messaging provider could not
// construct a connection for a session. The session is not registered
// when initialization fails.
type ProviderInitError struct {
	SessionID string
	Err       error
}

func (e *ProviderInitError) Error() string {
	return fmt.Sprintf("initialize provider for session %q: %v", e.SessionID, e.Err)
}

func (e *ProviderInitError) Unwrap() error {
	return e.Err
}
