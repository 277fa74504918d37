package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session server
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserBlocked        = errors.New("user is blocked")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrMFARequired        = errors.New("mfa required")
	ErrInvalidMFACode     = errors.New("invalid mfa code")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Session errors
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionLimitExceeded = errors.New("concurrent session limit reached")

	// Password errors
	ErrPasswordReused = errors.New("password was used recently")
	ErrWeakPassword   = errors.New("password does not meet policy")

	// Backend errors
	ErrBackendUnavailable = errors.New("backend unavailable")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Kind classifies an error for callers that map errors onto responses.
type Kind string

const (
	KindInternal           Kind = "internal"
	KindUnauthorized       Kind = "unauthorized"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindValidationFailed   Kind = "validation_failed"
	KindBackendUnavailable Kind = "backend_unavailable"
	KindTokenInvalid       Kind = "token_invalid"
)

// Error carries a Kind and a client safe message alongside the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an *Error of the given kind.
func E(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Unauthorized(message string, err error) error {
	return E(KindUnauthorized, message, err)
}

func NotFound(message string, err error) error {
	return E(KindNotFound, message, err)
}

func Conflict(message string, err error) error {
	return E(KindConflict, message, err)
}

func Validation(message string, details any) error {
	e := E(KindValidationFailed, message, nil)
	e.Details = details
	return e
}

func BackendUnavailable(err error) error {
	if err == nil {
		return nil
	}
	return E(KindBackendUnavailable, "backend unavailable", err)
}

func TokenInvalid(err error) error {
	return E(KindTokenInvalid, "invalid token", err)
}

// KindOf returns the Kind of the first *Error in err's chain. Well known
// sentinels map onto their kinds and anything else is internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUserBlocked), errors.Is(err, ErrInvalidMFACode):
		return KindUnauthorized
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return KindTokenInvalid
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrUserNotFound), errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUserExists), errors.Is(err, ErrPasswordReused), errors.Is(err, ErrSessionLimitExceeded):
		return KindConflict
	case errors.Is(err, ErrWeakPassword):
		return KindValidationFailed
	case errors.Is(err, ErrBackendUnavailable):
		return KindBackendUnavailable
	}
	return KindInternal
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
