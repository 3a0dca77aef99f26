package api

import (
	"errors"
	"fmt"
	"net/http"
)

// NetworkError indicates the request never produced an HTTP response:
// no connectivity, DNS failure, timeout or cancellation.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error on %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError indicates the backend answered with a non-2xx status.
type ServerError struct {
	Op     string
	Status int
	Detail string
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server error (%d) on %s: %s", e.Status, e.Op, e.Detail)
	}
	return fmt.Sprintf("server error (%d) on %s", e.Status, e.Op)
}

// ParseError indicates a 2xx response whose body could not be decoded.
// It is handled like a ServerError.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err (or any error in its chain) is a
// NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsServerError reports whether err is a ServerError or a ParseError.
func IsServerError(err error) bool {
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		return true
	}
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}

// IsAuthError reports whether err is a 401 from the backend.
func IsAuthError(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode returns the HTTP status carried by a ServerError, or 0.
func StatusCode(err error) int {
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		return srvErr.Status
	}
	return 0
}
