package channel

import (
	"fmt"
	"net/http"
)

// ConnectError is reported when dialing the push channel fails.
type ConnectError struct {
	Endpoint string
	Attempt  int
	// StatusCode is the handshake response status, or 0 when no response
	// was received.
	StatusCode int
	Err        error
}

func (e *ConnectError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("connecting to %s (attempt %d, status %d): %v", e.Endpoint, e.Attempt, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("connecting to %s (attempt %d): %v", e.Endpoint, e.Attempt, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Unauthorized reports whether the server rejected the session token.
func (e *ConnectError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}
