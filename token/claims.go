package token

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Type tags the purpose a token was issued for.
type Type string

const (
	TypeSession       Type = "session"
	TypePasswordReset Type = "password_reset"
	TypeMFAChallenge  Type = "mfa_challenge"
)

// Claims is the closed set of token payloads. Only the types in this package
// implement it.
type Claims interface {
	Type() Type
	User() string
	isClaims()
}

// SessionClaims authenticate requests for one live session.
type SessionClaims struct {
	UserID    string
	SessionID string
}

// PasswordResetClaims reference a single use reset record.
type PasswordResetClaims struct {
	UserID  string
	TokenID string
}

// MFAChallengeClaims hold a password verified login that still needs a
// second factor. Methods lists the factors the user may complete it with.
type MFAChallengeClaims struct {
	UserID  string
	Methods []string
}

func (SessionClaims) Type() Type { return TypeSession }
func (c SessionClaims) User() string { return c.UserID }
func (SessionClaims) isClaims() {}
func (PasswordResetClaims) Type() Type { return TypePasswordReset }
func (c PasswordResetClaims) User() string { return c.UserID }
func (PasswordResetClaims) isClaims() {}
func (MFAChallengeClaims) Type() Type { return TypeMFAChallenge }
func (c MFAChallengeClaims) User() string { return c.UserID }
func (MFAChallengeClaims) isClaims() {}

// Allows reports whether method may complete the challenge.
func (c MFAChallengeClaims) Allows(method string) bool {
	return slices.Contains(c.Methods, method)
}

// wireClaims is the JSON payload carried inside the JWT.
type wireClaims struct {
	Type      Type     `json:"type"`
	UserID    string   `json:"userId"`
	SessionID string   `json:"sessionId,omitempty"`
	TokenID   string   `json:"tokenId,omitempty"`
	Methods   []string `json:"methods,omitempty"`
	jwt.RegisteredClaims
}

func toWire(c Claims) wireClaims {
	w := wireClaims{Type: c.Type(), UserID: c.User()}
	switch v := c.(type) {
	case SessionClaims:
		w.SessionID = v.SessionID
	case *SessionClaims:
		w.SessionID = v.SessionID
	case PasswordResetClaims:
		w.TokenID = v.TokenID
	case *PasswordResetClaims:
		w.TokenID = v.TokenID
	case MFAChallengeClaims:
		w.Methods = v.Methods
	case *MFAChallengeClaims:
		w.Methods = v.Methods
	}
	return w
}

func (w *wireClaims) toClaims() (Claims, bool) {
	if w.UserID == "" {
		return nil, false
	}
	switch w.Type {
	case TypeSession:
		if w.SessionID == "" {
			return nil, false
		}
		return SessionClaims{UserID: w.UserID, SessionID: w.SessionID}, true
	case TypePasswordReset:
		if w.TokenID == "" {
			return nil, false
		}
		return PasswordResetClaims{UserID: w.UserID, TokenID: w.TokenID}, true
	case TypeMFAChallenge:
		return MFAChallengeClaims{UserID: w.UserID, Methods: w.Methods}, true
	}
	return nil, false
}
