// Package errors defines the domain error type shared by the ledger, the
// order tracker and the HTTP layer. Callers branch on Kind, never on text.
package errors

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"fmt"
	"net"
	"time"
)

// Kind classifies a DomainError.
type Kind string

const (
	KindStorageUnavailable Kind = "STORAGE_UNAVAILABLE"
	KindInsufficientFunds  Kind = "INSUFFICIENT_FUNDS"
	KindDailyLimit         Kind = "DAILY_LIMIT"
	KindCooldown           Kind = "COOLDOWN"
	KindNotFound           Kind = "NOT_FOUND"
	KindInvalidArgument    Kind = "INVALID_ARGUMENT"
	KindInvalidTransition  Kind = "INVALID_TRANSITION"
	KindDuplicateCharge    Kind = "DUPLICATE_CHARGE"
	KindInternal           Kind = "INTERNAL"
)

// DomainError carries a kind plus whatever structured context the kind needs.
type DomainError struct {
	Code    Kind
	Message string

	// Funds context
	Available int64
	Requested int64

	// Rate-limit context
	Limit      int64
	Used       int64
	ResetAt    *time.Time
	RetryAfter time.Duration

	Err error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is matches any DomainError with the same Code, so the package-level
// sentinels can be used with errors.Is against enriched instances.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New builds a DomainError of the given kind.
func New(kind Kind, format string, args ...any) *DomainError {
	return &DomainError{Code: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of the first DomainError in err's chain,
// or KindInternal when there is none.
func KindOf(err error) Kind {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return KindInternal
}

// As is a shorthand for errors.As into a *DomainError.
func As(err error) (*DomainError, bool) {
	var de *DomainError
	ok := stderrors.As(err, &de)
	return de, ok
}

// IsRetryable reports whether the failure was transient.
func IsRetryable(err error) bool {
	return KindOf(err) == KindStorageUnavailable
}

// IsNotFound reports whether err is a NOT_FOUND domain error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// Unavailable wraps a storage failure as STORAGE_UNAVAILABLE.
func Unavailable(op string, err error) error {
	return &DomainError{
		Code:    KindStorageUnavailable,
		Message: op,
		Err:     err,
	}
}

// IsConnectionError reports whether err means the store could not be reached.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, driver.ErrBadConn) ||
		stderrors.Is(err, sql.ErrConnDone) ||
		stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr)
}
