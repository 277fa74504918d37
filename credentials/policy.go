package credentials

import (
	"unicode"
	"unicode/utf8"

	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores input past 72 bytes
	MaxPasswordBytes = 72
)

type ViolationKind string

const (
	TooShort         ViolationKind = "too_short"
	TooLong          ViolationKind = "too_long"
	MissingUppercase ViolationKind = "missing_uppercase"
	MissingLowercase ViolationKind = "missing_lowercase"
	MissingDigit     ViolationKind = "missing_digit"
	MissingSpecial   ViolationKind = "missing_special"
)

// Violation is one failed password rule.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	Message string        `json:"message"`
}

// CheckStrength returns every rule password fails, or nil if it passes.
func CheckStrength(password string) []Violation {
	var violations []Violation
	if utf8.RuneCountInString(password) < MinPasswordLength {
		violations = append(violations, Violation{TooShort, "password must be at least 8 characters long"})
	}
	if len(password) > MaxPasswordBytes {
		violations = append(violations, Violation{TooLong, "password must be at most 72 bytes long"})
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case !unicode.IsLetter(r) && !unicode.IsSpace(r):
			hasSpecial = true
		}
	}
	if !hasUpper {
		violations = append(violations, Violation{MissingUppercase, "password must contain at least one uppercase letter"})
	}
	if !hasLower {
		violations = append(violations, Violation{MissingLowercase, "password must contain at least one lowercase letter"})
	}
	if !hasDigit {
		violations = append(violations, Violation{MissingDigit, "password must contain at least one number"})
	}
	if !hasSpecial {
		violations = append(violations, Violation{MissingSpecial, "password must contain at least one special character"})
	}
	return violations
}

// ValidatePassword wraps CheckStrength as a validation error carrying the
// violations as details.
func ValidatePassword(password string) error {
	violations := CheckStrength(password)
	if len(violations) == 0 {
		return nil
	}
	e := apperrors.E(apperrors.KindValidationFailed, "password does not meet policy", apperrors.ErrWeakPassword)
	e.Details = violations
	return e
}
