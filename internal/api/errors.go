package api

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching.
var (
	// ErrNetworkFailure matches requests that could not be sent or completed.
	ErrNetworkFailure = errors.New("network failure")
	// ErrServerRejected matches non-2xx responses.
	ErrServerRejected = errors.New("server rejected request")
	// ErrNotAuthenticated matches requests that could not obtain a token.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// AuthError reports that the TokenSource failed, so the request was never
// sent. Cause stays reachable through errors.Is and errors.As.
type AuthError struct {
	Method string
	URL    string
	Cause  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s %s: not authenticated: %v", e.Method, e.URL, e.Cause)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrNotAuthenticated) succeed.
func (e *AuthError) Is(target error) bool {
	return target == ErrNotAuthenticated
}

// NetworkError is a transport-level failure: connection refused, timeout,
// truncated body.
type NetworkError struct {
	Method string
	URL    string
	Cause  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network failure: %v", e.Method, e.URL, e.Cause)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrNetworkFailure) succeed.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetworkFailure
}

// ServerError is a non-2xx response. Detail carries the server's {detail}
// message when one was sent.
type ServerError struct {
	Method     string
	URL        string
	StatusCode int
	Detail     string
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
}

// Is makes errors.Is(err, ErrServerRejected) succeed.
func (e *ServerError) Is(target error) bool {
	return target == ErrServerRejected
}

// Unauthorized reports whether the server rejected the credentials.
func (e *ServerError) Unauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// Reason returns a short human-readable explanation of err suitable for a
// notification.
func Reason(err error) string {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		if serverErr.Detail != "" {
			return serverErr.Detail
		}
		return fmt.Sprintf("server responded with HTTP %d", serverErr.StatusCode)
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return fmt.Sprintf("could not reach server: %v", netErr.Cause)
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return fmt.Sprintf("not authenticated: %v", authErr.Cause)
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
