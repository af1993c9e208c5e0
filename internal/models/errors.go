package models

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable, client-facing identifier of a failure kind.
type ErrorCode string

const (
	CodeInvalidRequest          ErrorCode = "invalid_request"
	CodeInvalidAddress          ErrorCode = "InvalidAddress"
	CodeInvalidReference        ErrorCode = "InvalidReference"
	CodeDuplicatePaywallID      ErrorCode = "DuplicatePaywallId"
	CodeNotFound                ErrorCode = "NotFound"
	CodePaymentNotFound         ErrorCode = "PaymentNotFound"
	CodePaymentPending          ErrorCode = "PaymentPending"
	CodePaymentMismatch         ErrorCode = "PaymentMismatch"
	CodeOracleUnavailable       ErrorCode = "OracleUnavailable"
	CodeVerificationUnavailable ErrorCode = "VerificationUnavailable"
	CodeInternal                ErrorCode = "internal"
)

// Sentinels for errors.Is. Matching is done on the code only.
var (
	ErrInvalidRequest          = &Error{Code: CodeInvalidRequest, Message: "invalid request"}
	ErrInvalidAddress          = &Error{Code: CodeInvalidAddress, Message: "invalid address"}
	ErrInvalidReference        = &Error{Code: CodeInvalidReference, Message: "invalid transaction reference"}
	ErrDuplicatePaywallID      = &Error{Code: CodeDuplicatePaywallID, Message: "paywall id already exists"}
	ErrNotFound                = &Error{Code: CodeNotFound, Message: "not found"}
	ErrPaymentNotFound         = &Error{Code: CodePaymentNotFound, Message: "payment transaction not found"}
	ErrPaymentPending          = &Error{Code: CodePaymentPending, Message: "payment transaction is not confirmed yet"}
	ErrPaymentMismatch         = &Error{Code: CodePaymentMismatch, Message: "payment does not match the paywall terms"}
	ErrOracleUnavailable       = &Error{Code: CodeOracleUnavailable, Message: "chain oracle unavailable"}
	ErrVerificationUnavailable = &Error{Code: CodeVerificationUnavailable, Message: "payment verification unavailable"}
)

// Error is the typed error returned across package boundaries.
type Error struct {
	// Code classifies the failure.
	Code ErrorCode
	// Message is safe to show to API clients.
	Message string
	// Network is set when the failure is specific to one chain.
	Network Network
	// Err is the underlying cause, never shown to clients.
	Err error
}

// NewError builds an Error with a formatted message.
func NewError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a cause to a new Error.
func WrapError(code ErrorCode, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Network != "" {
		msg += " (network " + string(e.Network) + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithNetwork returns a copy of the error tagged with a network.
func (e *Error) WithNetwork(n Network) *Error {
	cp := *e
	cp.Network = n
	return &cp
}

// Retryable reports whether the client may retry the same request later.
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodeOracleUnavailable, CodeVerificationUnavailable, CodePaymentPending:
		return true
	}
	return false
}

// CodeOf extracts the ErrorCode of err, or CodeInternal for untyped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsRetryable reports whether err is a typed error marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}
