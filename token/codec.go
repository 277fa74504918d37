// Package token signs and verifies the bearer tokens handed to clients.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/pkg/errors"
)

var (
	ErrSigningKeyUnavailable = errors.New("signing key unavailable")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenBadSignature     = errors.New("token signature invalid")
	ErrTokenWrongType        = errors.New("token has unexpected type")
)

// Codec turns Claims into signed tokens and back. It holds no mutable state
// and is safe for concurrent use.
type Codec struct {
	signer  Signer
	issuer  string
	nowFunc func() time.Time
}

type CodecOption func(*Codec)

func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) {
		c.issuer = issuer
	}
}

func WithNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

func NewCodec(signer Signer, opts ...CodecOption) (*Codec, error) {
	if signer == nil {
		return nil, errors.New("[NewCodec] signer is required")
	}
	c := &Codec{signer: signer, nowFunc: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Sign returns a token carrying claims that expires ttl from now.
func (c *Codec) Sign(claims Claims, ttl time.Duration) (string, error) {
	if claims == nil {
		return "", errors.New("[Codec.Sign] claims are required")
	}
	if ttl <= 0 {
		return "", errors.New("[Codec.Sign] ttl must be positive")
	}
	now := c.nowFunc()
	w := toWire(claims)
	w.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Subject:   claims.User(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}

	signed, err := c.signer.Sign(&w)
	if err != nil {
		if errors.Is(err, ErrSigningKeyUnavailable) {
			return "", apperrors.E(apperrors.KindInternal, "signing key unavailable", err)
		}
		return "", errors.Wrap(err, "[Codec.Sign]")
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry and returns the decoded claims.
// Every failure is a token invalid error that unwraps to one of
// ErrTokenExpired, ErrTokenBadSignature or ErrTokenMalformed.
func (c *Codec) Verify(raw string) (Claims, error) {
	if raw == "" {
		return nil, apperrors.TokenInvalid(ErrTokenMalformed)
	}
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(c.nowFunc),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{c.signer.GetSigningMethod().Alg()}),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var w wireClaims
	if _, err := jwt.ParseWithClaims(raw, &w, c.signer.GetVerificationKey, opts...); err != nil {
		return nil, apperrors.TokenInvalid(classify(err))
	}
	claims, ok := w.toClaims()
	if !ok {
		return nil, apperrors.TokenInvalid(ErrTokenMalformed)
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenBadSignature
	}
	return ErrTokenMalformed
}

func (c *Codec) VerifySession(raw string) (SessionClaims, error) {
	return verifyAs[SessionClaims](c, raw)
}

func (c *Codec) VerifyPasswordReset(raw string) (PasswordResetClaims, error) {
	return verifyAs[PasswordResetClaims](c, raw)
}

func (c *Codec) VerifyMFAChallenge(raw string) (MFAChallengeClaims, error) {
	return verifyAs[MFAChallengeClaims](c, raw)
}

func verifyAs[T Claims](c *Codec, raw string) (T, error) {
	var zero T
	claims, err := c.Verify(raw)
	if err != nil {
		return zero, err
	}
	typed, ok := claims.(T)
	if !ok {
		return zero, apperrors.TokenInvalid(ErrTokenWrongType)
	}
	return typed, nil
}
