package domain

import "errors"

// Kind classifies an error for the routing layer.
type Kind int

const (
	KindInternal        Kind = iota // Store or signing failure, detail never exposed
	KindInvalidInput                // Malformed or out-of-range request data
	KindUnauthenticated             // Missing, expired or invalid credential
	KindForbidden                   // Valid credential, role not allowed
	KindNotFound                    // Referenced account, user or card missing
	KindConflict                    // Duplicate unique field
	KindUnavailable                 // Lock wait or deadline exceeded, safe to retry
)

// Error is the single error type returned by the core.
type Error struct {
	Kind    Kind   // Classification
	Code    string // Stable machine-readable code
	Message string // Caller-facing message
	Err     error  // Underlying cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by code so wrapped copies still compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Ledger errors
var (
	ErrInvalidAmount       = newError(KindInvalidInput, "invalid_amount", "Amount must be greater than zero with at most two decimals")
	ErrInsufficientFunds   = newError(KindInvalidInput, "insufficient_funds", "Insufficient funds")
	ErrSameAccount         = newError(KindInvalidInput, "same_account", "Cannot transfer to the same account")
	ErrCreditLimitExceeded = newError(KindInvalidInput, "credit_limit_exceeded", "Purchase exceeds the available credit")
	ErrAccountNotFound     = newError(KindNotFound, "account_not_found", "Account not found")
	ErrTargetNotFound      = newError(KindNotFound, "target_not_found", "Target user not found")
	ErrCreditCardNotFound  = newError(KindNotFound, "credit_card_not_found", "Credit card not found")
	ErrRetryable           = newError(KindUnavailable, "retryable", "The operation could not be completed in time, please retry")
)

// Authentication and authorization errors
var (
	ErrUnauthenticated    = newError(KindUnauthenticated, "unauthenticated", "Missing or malformed authorization header")
	ErrTokenExpired       = newError(KindUnauthenticated, "token_expired", "Token has expired, please log in again")
	ErrTokenInvalid       = newError(KindUnauthenticated, "token_invalid", "Invalid token")
	ErrInvalidCredentials = newError(KindUnauthenticated, "invalid_credentials", "Invalid credentials")
	ErrForbidden          = newError(KindForbidden, "forbidden", "Role not authorized for this operation")
)

// Registration errors
var (
	ErrInvalidRequest    = newError(KindInvalidInput, "invalid_request", "Invalid request")
	ErrInvalidNationalID = newError(KindInvalidInput, "invalid_national_id", "The national ID number is not valid")
	ErrInvalidPhone      = newError(KindInvalidInput, "invalid_phone", "The phone number must have 10 digits and start with 09")
	ErrInvalidUsername   = newError(KindInvalidInput, "invalid_username", "The username is invalid or contains personal information")
	ErrWeakPassword      = newError(KindInvalidInput, "weak_password", "The password does not meet the security requirements")
	ErrDuplicateUser     = newError(KindConflict, "duplicate_user", "The username or national ID already exists")
)

// Internal wraps an unexpected failure. The cause is kept for logging only.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal", Message: "Internal server error", Err: err}
}

// Wrap returns a copy of sentinel carrying cause.
func Wrap(sentinel *Error, cause error) *Error {
	e := *sentinel
	e.Err = cause
	return &e
}

// KindOf reports the Kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
