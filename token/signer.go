package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-session-server/internal/config"
	"github.com/pkg/errors"
)

// Signer signs claims and hands out the matching verification key.
type Signer interface {
	// Sign creates a signed JWT from claims
	Sign(claims jwt.Claims) (string, error)

	// GetVerificationKey is a jwt.Keyfunc
	GetVerificationKey(token *jwt.Token) (any, error)

	// GetSigningMethod returns the JWT signing method used
	GetSigningMethod() jwt.SigningMethod
}

// HMACsigner implements Signer using symmetric HMAC-SHA256
type HMACsigner struct {
	secret []byte
}

// NewHMACSigner creates a new HMAC signer with the given secret. An empty
// secret yields a signer that refuses to sign.
func NewHMACSigner(secret string) *HMACsigner {
	return &HMACsigner{
		secret: []byte(secret),
	}
}

func (h *HMACsigner) Sign(claims jwt.Claims) (string, error) {
	if len(h.secret) == 0 {
		return "", ErrSigningKeyUnavailable
	}
	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with HMAC")
	}
	return signedToken, nil
}

func (h *HMACsigner) GetVerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	if len(h.secret) == 0 {
		return nil, ErrSigningKeyUnavailable
	}
	return h.secret, nil
}

func (h *HMACsigner) GetSigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}

// KeyPairSigner implements Signer using RSA or ECDSA
type KeyPairSigner struct {
	keyPair *KeyPair
}

func NewKeyPairSigner(keyPair *KeyPair) *KeyPairSigner {
	return &KeyPairSigner{
		keyPair: keyPair,
	}
}

func (a *KeyPairSigner) Sign(claims jwt.Claims) (string, error) {
	if a.keyPair == nil || a.keyPair.PrivateKey == nil {
		return "", ErrSigningKeyUnavailable
	}
	token := jwt.NewWithClaims(a.keyPair.GetSigningMethod(), claims)
	if a.keyPair.KeyID != "" {
		token.Header["kid"] = a.keyPair.KeyID
	}

	signedToken, err := token.SignedString(a.keyPair.PrivateKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with asymmetric key")
	}
	return signedToken, nil
}

func (a *KeyPairSigner) GetVerificationKey(token *jwt.Token) (any, error) {
	if a.keyPair == nil {
		return nil, ErrSigningKeyUnavailable
	}
	switch token.Method.(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
		return a.keyPair.PublicKey, nil
	default:
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
}

func (a *KeyPairSigner) GetSigningMethod() jwt.SigningMethod {
	if a.keyPair == nil {
		return jwt.SigningMethodRS256
	}
	return a.keyPair.GetSigningMethod()
}

// NewSignerFromConfig prefers a configured private key and falls back to the
// shared HMAC secret.
func NewSignerFromConfig(cfg config.TokenConfig) (Signer, error) {
	if pemData := cfg.GetJWTPrivateKey(); pemData != "" {
		kp, err := LoadKeyPairFromPEM("primary", pemData)
		if err != nil {
			return nil, errors.Wrap(err, "[NewSignerFromConfig] JWT_PRIVATE_KEY")
		}
		return NewKeyPairSigner(kp), nil
	}
	return NewHMACSigner(cfg.GetJWTSecret()), nil
}
