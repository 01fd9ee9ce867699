package qbittorrent

import (
	"errors"
	"fmt"
)

// Common errors returned by the qBittorrent client.
var (
	// ErrUnauthorized is returned when the Web API rejects the login
	// credentials or the session cookie.
	ErrUnauthorized = errors.New("unauthorized: qBittorrent rejected the session")

	// ErrNoCookie is returned when a successful login response carries
	// no session cookie.
	ErrNoCookie = errors.New("no session cookie returned by qBittorrent")

	// ErrMalformedResponse is returned when a response body cannot be
	// parsed.
	ErrMalformedResponse = errors.New("malformed response from qBittorrent")
)

// APIError represents a non-success response from the Web API.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("qBittorrent API error: %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// IsUnauthorized checks if the error indicates an authentication failure.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// IsUnauthorized reports whether err represents an authentication failure
// from the Web API.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrUnauthorized) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsUnauthorized()
}
