package dsync

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures surfaced by dsync primitives.
type ErrorCode int

const (
	Unknown ErrorCode = iota
	// StoreCommunicationFailure is a transport or transaction failure talking to the remote store.
	StoreCommunicationFailure
	// SubscriptionFailure means the notification channel could not be subscribed.
	SubscriptionFailure
	// Cancelled is returned when a blocked acquire was abandoned because its context ended.
	Cancelled
	// InvalidPermits is a precondition failure, permits must be positive.
	InvalidPermits
	// Unsupported means the backing store does not implement the requested capability.
	Unsupported
)

func (c ErrorCode) String() string {
	switch c {
	case StoreCommunicationFailure:
		return "store communication failure"
	case SubscriptionFailure:
		return "subscription failure"
	case Cancelled:
		return "cancelled"
	case InvalidPermits:
		return "invalid permits"
	case Unsupported:
		return "unsupported"
	}
	return "unknown"
}

// Error is the dsync custom error.
type Error struct {
	Code     ErrorCode
	Err      error
	UserData any
}

func (e Error) Error() string {
	return fmt.Errorf("error code: %d (%s), user data: %v, details: %w", e.Code, e.Code, e.UserData, e.Err).Error()
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with code; a nil err yields nil.
func NewError(code ErrorCode, err error, userData any) error {
	if err == nil {
		return nil
	}
	return Error{
		Code:     code,
		Err:      err,
		UserData: userData,
	}
}

// CodeOf returns the ErrorCode carried by err, or Unknown when err is not a dsync Error.
func CodeOf(err error) ErrorCode {
	var de Error
	if errors.As(err, &de) {
		return de.Code
	}
	return Unknown
}

// ErrInvalidPermits is the cause carried by InvalidPermits errors.
var ErrInvalidPermits = errors.New("permits must be a positive number")

// ValidatePermits fails fast, before any remote call, on non-positive permits.
func ValidatePermits(permits int64) error {
	if permits < 1 {
		return Error{
			Code:     InvalidPermits,
			Err:      ErrInvalidPermits,
			UserData: permits,
		}
	}
	return nil
}
