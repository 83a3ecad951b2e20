// Package apperr defines the error codes shared by the ledger, scheduler and API.
package apperr

import "errors"

type ErrorCode string

const (
	ErrorInvalid             ErrorCode = "invalid"
	ErrorNotFound            ErrorCode = "not_found"
	ErrorConflict            ErrorCode = "conflict"
	ErrorInsufficientBalance ErrorCode = "insufficient_balance"
	ErrorRequirementsNotMet  ErrorCode = "requirements_not_met"
	ErrorCapacityReached     ErrorCode = "capacity_reached"
	ErrorUnauthorized        ErrorCode = "unauthorized"
)

// Error is a domain failure with a machine-readable code.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string { return e.Message }

func NewInvalidError(msg string) error  { return &Error{Code: ErrorInvalid, Message: msg} }
func NewNotFoundError(msg string) error { return &Error{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error { return &Error{Code: ErrorConflict, Message: msg} }

func NewInsufficientBalanceError(msg string) error {
	return &Error{Code: ErrorInsufficientBalance, Message: msg}
}

func NewRequirementsNotMetError(msg string) error {
	return &Error{Code: ErrorRequirementsNotMet, Message: msg}
}

func NewCapacityReachedError(msg string) error {
	return &Error{Code: ErrorCapacityReached, Message: msg}
}

func NewUnauthorizedError(msg string) error {
	return &Error{Code: ErrorUnauthorized, Message: msg}
}

// AsError unwraps err into an *Error if one is in its chain.
func AsError(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// CodeOf returns the code of err, or "" when err carries no code.
func CodeOf(err error) ErrorCode {
	if ae, ok := AsError(err); ok {
		return ae.Code
	}
	return ""
}
