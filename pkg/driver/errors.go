package driver

import (
	"errors"
	"fmt"
	"strings"
)

// Driver-level failure classes. Implementations wrap native errors so that
// errors.Is matches these.
var (
	// ErrSessionExpired means the connection backing a session was
	// invalidated (routing change, leader switch, dropped socket). The same
	// statement may succeed on a fresh connection.
	ErrSessionExpired = errors.New("session expired")

	// ErrServiceUnavailable means no server could be reached.
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Well known server status codes.
const (
	CodeConstraintValidationFailed = "Neo.ClientError.Schema.ConstraintValidationFailed"
	CodeNotALeader                 = "Neo.ClientError.Cluster.NotALeader"
	CodeForbiddenOnReadOnlyDB      = "Neo.ClientError.General.ForbiddenOnReadOnlyDatabase"
	CodeDatabaseUnavailable        = "Neo.TransientError.General.DatabaseUnavailable"
)

// ServerError is a failure reported by the server with a status code of the
// form Neo.<Classification>.<Category>.<Title>.
//
// Err holds the native driver error so callers can still match on it.
type ServerError struct {
	Code    string
	Message string
	Err     error
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServerError) Unwrap() error { return e.Err }

// Classification returns the second code segment, e.g. "ClientError".
func (e *ServerError) Classification() string {
	parts := strings.Split(e.Code, ".")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// IsClientError reports whether the server blamed the request.
func (e *ServerError) IsClientError() bool {
	return e.Classification() == "ClientError"
}

// AsServerError extracts a *ServerError from err's chain.
func AsServerError(err error) (*ServerError, bool) {
	var se *ServerError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
