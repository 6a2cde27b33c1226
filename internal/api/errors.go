package api

import (
	"errors"
	"fmt"
)

// AuthError indicates that the session token was rejected or has expired.
// It is returned when the back-end answers 401.
type AuthError struct {
	Method  string
	Path    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error on %s %s: %s", e.Method, e.Path, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d on %s %s", e.StatusCode, e.Method, e.Path)
	}
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Message)
}

// errorResponse is the error body shape returned by the back-end.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (r errorResponse) text() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Error
}
