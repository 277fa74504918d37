package auth

import "errors"

var (
	ErrMFAMethodNotAllowed = errors.New("mfa method not allowed for this challenge")
	ErrMFANotPending       = errors.New("no pending mfa setup")
	ErrMFAAlreadyEnabled   = errors.New("mfa already enabled")
	ErrMFANotEnabled       = errors.New("mfa not enabled")
	ErrResetTokenUsed      = errors.New("password reset token already used")
	ErrNoDestination       = errors.New("no delivery destination on file")
	ErrEmailNotVerified    = errors.New("provider email not verified")
)
