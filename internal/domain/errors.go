package domain

import (
	"errors"
	"fmt"
)

// ErrConflict marks a lost optimistic update. Callers log it; it never fails
// a request on its own.
var ErrConflict = errors.New("concurrent update conflict")

// ErrPaymentReused means the payment or gateway order is already attached to
// another order.
var ErrPaymentReused = errors.New("payment already settled an order")

// ValidationError reports a malformed request. Message is safe to show.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// RejectionError is a business rule refusal whose Reason is shown to the
// shopper verbatim.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }

func Reject(reason string) error {
	return &RejectionError{Reason: reason}
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func NotFound(message string) error {
	return &NotFoundError{Message: message}
}

// UpstreamError wraps a store or gateway failure. The wrapped detail is for
// logs only.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *UpstreamError) Unwrap() error { return e.Err }

func Upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}
