package users

import (
	"net/mail"
	"strings"
	"time"
)

type MFAuthType string

const (
	MFNone          MFAuthType = "none"
	MFAuthenticator MFAuthType = "totp"
	MFEmail         MFAuthType = "email"
	MFTSms          MFAuthType = "sms"
)

type User struct {
	ID           string    `json:"id,omitempty"`          // Unique identifier for the user
	Email        string    `json:"email,omitempty"`       // User's email address, stored normalised
	Username     string    `json:"username,omitempty"`    // Display name, defaults to the email
	PasswordHash string    `json:"-"`                     // Hashed version of the user's password - never serialize
	FirstName    string    `json:"first_name,omitempty"`  // First name of the user
	LastName     string    `json:"last_name,omitempty"`   // Last name of the user
	Phone        string    `json:"phone,omitempty"`       // Destination for SMS codes
	DateJoined   time.Time `json:"date_joined,omitempty"` // Date and time when the user registered
	LastLogin    time.Time `json:"last_login,omitempty"`  // Last time the user logged in

	Verified bool       `json:"verified,omitempty"` // Verified, has the user verified who they are
	Blocked  bool       `json:"blocked,omitempty"`  // Blocked, has the user been blocked from logging in
	MFType   MFAuthType `json:"mfType,omitempty"`   // MFType, Multifactor type
}

func (u *User) MFAAuth() bool {
	return u.MFType != "" && u.MFType != MFNone
}

// HasPassword is false for accounts created through federated login only.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

func (u *User) Clone() *User {
	c := *u
	return &c
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail accepts a bare address ("a@b.c"), not a display name form.
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at:], ".")
}
