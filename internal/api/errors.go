package api

import (
	"errors"
	"net"
	"syscall"
)

// Failure kinds. Match with errors.Is.
var (
	// ErrNetwork means the upstream could not be reached at all (DNS failure,
	// connection refused).
	ErrNetwork = errors.New("network error")
	// ErrInvalidResponse means the upstream replied with an unusable payload.
	ErrInvalidResponse = errors.New("invalid api response")
	// ErrUpstream covers every other fetch failure: non-2xx status, timeout.
	ErrUpstream = errors.New("upstream error")
	// ErrNotFound means a well-formed response reported the entity as absent.
	ErrNotFound = errors.New("not found")
)

// Error is a classified adapter failure carrying a message fit for end users.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Is reports whether target is the failure kind of e.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the user-facing text of an adapter failure, or "" when
// err is not one.
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

func newError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// isConnectFailure reports DNS resolution and refused connections, the
// failures where no request reached the upstream.
func isConnectFailure(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED)
}
