// Package auth composes credentials, MFA, tokens and sessions into the
// register, login, logout and password flows served over HTTP.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-server/credentials"
	"github.com/jrsteele09/go-session-server/internal/config"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/kvstore"
	"github.com/jrsteele09/go-session-server/mfa"
	"github.com/jrsteele09/go-session-server/notify"
	"github.com/jrsteele09/go-session-server/sessions"
	"github.com/jrsteele09/go-session-server/token"
	"github.com/jrsteele09/go-session-server/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultChallengeTTL = 5 * time.Minute
	DefaultResetTTL     = time.Hour
)

// Components holds the collaborators the AuthorizationService composes.
type Components struct {
	Users       users.Repo
	Sessions    *sessions.Store
	Credentials *credentials.Store
	MFA         *mfa.Engine
	Tokens      *token.Codec
	Notifier    notify.Notifier
	KV          kvstore.Store // single use password reset records
}

// AuthorizationService implements the account and session flows.
type AuthorizationService struct {
	users       users.Repo
	sessions    *sessions.Store
	credentials *credentials.Store
	mfa         *mfa.Engine
	tokens      *token.Codec
	notifier    notify.Notifier
	kv          kvstore.Store

	maxSessions  int
	limitPolicy  string
	challengeTTL time.Duration
	resetTTL     time.Duration
	nowFunc      func() time.Time
	logger       zerolog.Logger

	dummyHashOnce sync.Once
	dummyHash     string
}

// AuthorizationServiceOption defines a function type to modify the AuthorizationService instance.
type AuthorizationServiceOption func(*AuthorizationService)

// WithConfig applies the session limit, challenge and reset settings.
func WithConfig(cfg config.Config) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		if n := cfg.GetMaxConcurrentSessions(); n > 0 {
			as.maxSessions = n
		}
		if p := cfg.GetSessionLimitPolicy(); p != "" {
			as.limitPolicy = p
		}
		if ttl := cfg.GetMFAChallengeTTL(); ttl > 0 {
			as.challengeTTL = ttl
		}
		if ttl := cfg.GetPasswordResetTTL(); ttl > 0 {
			as.resetTTL = ttl
		}
	}
}

// WithSessionLimit sets the concurrent session cap and what happens when a
// login would exceed it.
func WithSessionLimit(maxSessions int, policy string) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.maxSessions = maxSessions
		as.limitPolicy = policy
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.nowFunc = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.logger = logger
	}
}

// NewAuthorizationService initializes a new AuthorizationService with required dependencies.
func NewAuthorizationService(c Components, options ...AuthorizationServiceOption) (*AuthorizationService, error) {
	if c.Users == nil {
		return nil, errors.New("[NewAuthorizationService] Users repo is required")
	}
	if c.Sessions == nil {
		return nil, errors.New("[NewAuthorizationService] session store is required")
	}
	if c.Credentials == nil {
		return nil, errors.New("[NewAuthorizationService] credential store is required")
	}
	if c.MFA == nil {
		return nil, errors.New("[NewAuthorizationService] mfa engine is required")
	}
	if c.Tokens == nil {
		return nil, errors.New("[NewAuthorizationService] token codec is required")
	}
	if c.Notifier == nil {
		return nil, errors.New("[NewAuthorizationService] notifier is required")
	}
	if c.KV == nil {
		return nil, errors.New("[NewAuthorizationService] key-value store is required")
	}

	as := &AuthorizationService{
		users:        c.Users,
		sessions:     c.Sessions,
		credentials:  c.Credentials,
		mfa:          c.MFA,
		tokens:       c.Tokens,
		notifier:     c.Notifier,
		kv:           c.KV,
		maxSessions:  sessions.DefaultMaxSessions,
		limitPolicy:  config.SessionLimitReject,
		challengeTTL: DefaultChallengeTTL,
		resetTTL:     DefaultResetTTL,
		nowFunc:      time.Now,
		logger:       log.Logger,
	}
	for _, opt := range options {
		opt(as)
	}
	if as.limitPolicy != config.SessionLimitReject && as.limitPolicy != config.SessionLimitEvictOldest {
		return nil, errors.Errorf("[NewAuthorizationService] unknown session limit policy %q", as.limitPolicy)
	}
	if as.maxSessions < 1 {
		return nil, errors.New("[NewAuthorizationService] session limit must be at least 1")
	}
	return as, nil
}

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID    string `json:"id"`
	SessionID string `json:"sessionId"`
}

// Device describes where a login came from. It is stored on the session.
type Device struct {
	DeviceInfo string
	IPAddress  string
	UserAgent  string
}

// LoginResult is either a new session or, when the user has MFA enabled, a
// challenge that must be completed with a second factor.
type LoginResult struct {
	User           *users.User
	Session        *sessions.Session
	MFARequired    bool
	ChallengeToken string
	Methods        []string
}

// verifyPassword checks password against user without revealing through
// timing whether the account exists or has a password at all.
func (as *AuthorizationService) verifyPassword(user *users.User, password string) bool {
	if user == nil || !user.HasPassword() {
		as.dummyHashOnce.Do(func() {
			as.dummyHash, _ = as.credentials.Hash("not-a-real-password")
		})
		as.credentials.Verify(password, as.dummyHash)
		return false
	}
	return as.credentials.Verify(password, user.PasswordHash)
}

func invalidCredentials() error {
	return apperrors.Unauthorized("invalid email or password", apperrors.ErrInvalidCredentials)
}

// getUser loads a user and maps a missing or blocked account onto
// Unauthorized.
func (as *AuthorizationService) getUser(ctx context.Context, userID string) (*users.User, error) {
	user, err := as.users.GetByID(ctx, userID)
	if apperrors.IsKind(err, apperrors.KindNotFound) {
		return nil, apperrors.Unauthorized("account not found", apperrors.ErrUserNotFound)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	if user.Blocked {
		return nil, apperrors.Unauthorized("account is blocked", apperrors.ErrUserBlocked)
	}
	return user, nil
}
