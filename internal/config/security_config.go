package config

import "time"

const (
	SessionLimitReject      = "reject"
	SessionLimitEvictOldest = "evict_oldest"
)

type TokenConfig interface {
	GetJWTSecret() string
	GetJWTPrivateKey() string
	GetJWTIssuer() string
}

type SessionConfig interface {
	GetSessionTTL() time.Duration
	GetSessionMaxLifetime() time.Duration
	GetActivityExtension() time.Duration
	GetMaxConcurrentSessions() int
	GetSessionLimitPolicy() string
}

type CredentialConfig interface {
	GetBcryptCost() int
	GetPasswordHistoryDepth() int
	GetPasswordResetTTL() time.Duration
}

func (s *Settings) GetJWTSecret() string {
	return s.JWTSecret
}

func (s *Settings) GetJWTPrivateKey() string {
	return s.JWTPrivateKey
}

func (s *Settings) GetJWTIssuer() string {
	return s.JWTIssuer
}

func (s *Settings) GetSessionTTL() time.Duration {
	return s.SessionTTL
}

// GetSessionMaxLifetime is the absolute cap on a session, however often it
// is extended. Session tokens expire at this point.
func (s *Settings) GetSessionMaxLifetime() time.Duration {
	return s.SessionMaxLifetime
}

func (s *Settings) GetActivityExtension() time.Duration {
	return s.ActivityExtension
}

func (s *Settings) GetMaxConcurrentSessions() int {
	return s.MaxConcurrentSessions
}

func (s *Settings) GetSessionLimitPolicy() string {
	return s.SessionLimitPolicy
}

func (s *Settings) GetBcryptCost() int {
	return s.BcryptCost
}

func (s *Settings) GetPasswordHistoryDepth() int {
	if s.PasswordHistoryDepth <= 0 {
		return 5
	}
	return s.PasswordHistoryDepth
}

func (s *Settings) GetPasswordResetTTL() time.Duration {
	return s.PasswordResetTTL
}
