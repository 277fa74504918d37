package auth

import (
	"strings"

	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/users"
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

// Validate checks the request shape. Password strength is checked separately.
func (r RegisterRequest) Validate() error {
	var fields []FieldError
	if !users.ValidEmail(r.Email) {
		fields = append(fields, FieldError{Field: "email", Message: "must be a valid email address"})
	}
	if r.Password == "" {
		fields = append(fields, FieldError{Field: "password", Message: "is required"})
	}
	if r.Phone != "" && !validPhone(r.Phone) {
		fields = append(fields, FieldError{Field: "phone", Message: "must be in international format, e.g. +15550001111"})
	}
	if len(r.Username) > 64 {
		fields = append(fields, FieldError{Field: "username", Message: "must be at most 64 characters"})
	}
	if len(fields) > 0 {
		return apperrors.Validation("invalid registration", fields)
	}
	return nil
}

// validPhone accepts E.164 numbers.
func validPhone(phone string) bool {
	if !strings.HasPrefix(phone, "+") || len(phone) < 8 || len(phone) > 16 {
		return false
	}
	for _, c := range phone[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
