package ogm

import (
	"errors"
	"strings"

	"github.com/orneryd/nornicogm/pkg/driver"
)

// Transaction and feature errors
var (
	// ErrTransactionInProgress is returned by Begin while another
	// transaction is active on the same Database. It signals a programming
	// error and must not be retried.
	ErrTransactionInProgress = errors.New("transaction already in progress")

	// ErrNoTransaction is returned by Commit and Rollback without an active
	// transaction.
	ErrNoTransaction = errors.New("no transaction in progress")

	// ErrTransactionLost is returned by Query when the session under the
	// active transaction expired. The transaction has been discarded and
	// none of its writes were committed.
	ErrTransactionLost = errors.New("transaction lost with expired session")

	// ErrFeatureNotSupported is returned when an enterprise-only feature is
	// requested from a server of another edition.
	ErrFeatureNotSupported = errors.New("feature not supported by this server edition")

	// ErrConstraintValidationFailed matches every constraint violation,
	// uniqueness violations included.
	ErrConstraintValidationFailed = errors.New("constraint validation failed")

	// ErrUniqueProperty matches uniqueness violations.
	ErrUniqueProperty = errors.New("unique property violation")
)

// uniqueViolationMarker identifies a uniqueness violation in a
// ConstraintValidationFailed message.
const uniqueViolationMarker = "already exists with label"

// ConstraintValidationError is a constraint violation reported by the
// server.
type ConstraintValidationError struct {
	Message string
	Err     error
}

func (e *ConstraintValidationError) Error() string {
	return "constraint validation failed: " + e.Message
}

func (e *ConstraintValidationError) Unwrap() error { return e.Err }

func (e *ConstraintValidationError) Is(target error) bool {
	return target == ErrConstraintValidationFailed
}

// UniquePropertyError is a uniqueness violation. Callers typically treat
// it as "already exists".
type UniquePropertyError struct {
	Message string
	Err     error
}

func (e *UniquePropertyError) Error() string {
	return "unique property violation: " + e.Message
}

func (e *UniquePropertyError) Unwrap() error { return e.Err }

func (e *UniquePropertyError) Is(target error) bool {
	return target == ErrUniqueProperty || target == ErrConstraintValidationFailed
}

// classifyQueryError maps constraint failures reported by the server. Any
// other error is returned unchanged.
func classifyQueryError(err error, handleUnique bool) error {
	se, ok := driver.AsServerError(err)
	if !ok || se.Code != driver.CodeConstraintValidationFailed {
		return err
	}
	if handleUnique && strings.Contains(se.Message, uniqueViolationMarker) {
		return &UniquePropertyError{Message: se.Message, Err: err}
	}
	return &ConstraintValidationError{Message: se.Message, Err: err}
}

// scopeError translates an error leaving a transaction scope: a raw
// constraint failure from the server becomes a UniquePropertyError.
// Errors already classified by Query keep their classification.
func scopeError(err error) error {
	var (
		unique     *UniquePropertyError
		constraint *ConstraintValidationError
	)
	if errors.As(err, &unique) || errors.As(err, &constraint) {
		return err
	}
	if se, ok := driver.AsServerError(err); ok && se.Code == driver.CodeConstraintValidationFailed {
		return &UniquePropertyError{Message: se.Message, Err: err}
	}
	return err
}
