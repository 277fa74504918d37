// Package mfa implements second factor enrolment and verification: TOTP
// authenticators, single use backup codes and short lived codes delivered
// over SMS or email. All state lives in the key-value backend and every
// single use consumption is atomic there.
package mfa

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jrsteele09/go-session-server/internal/config"
	"github.com/jrsteele09/go-session-server/kvstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultIssuer          = "Go Session Server"
	DefaultSkew            = 2
	DefaultBackupCodeCount = 10
	DefaultCodeTTL         = 10 * time.Minute
	DefaultMaxCodeAttempts = 5

	setupKeyPrefix    = "mfa:setup:"
	backupKeyPrefix   = "mfa:backup:"
	codeKeyPrefix     = "mfa:code:"
	attemptsKeyPrefix = "mfa:attempts:"
)

// Method is a second factor a user can complete a login challenge with.
type Method string

const (
	MethodTOTP   Method = "totp"
	MethodBackup Method = "backup"
	MethodSMS    Method = "sms"
	MethodEmail  Method = "email"
)

func (m Method) Valid() bool {
	switch m {
	case MethodTOTP, MethodBackup, MethodSMS, MethodEmail:
		return true
	}
	return false
}

// Setup is the per user MFA state. It is upserted on enrolment and toggled
// by enable/disable, never deleted here.
type Setup struct {
	UserID    string    `json:"userId"`
	Method    Method    `json:"method"`
	Secret    string    `json:"secret,omitempty"`
	IsEnabled bool      `json:"isEnabled"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChallengeMethods lists the factors that may complete a login for this setup.
func (s *Setup) ChallengeMethods() []Method {
	if s == nil || !s.IsEnabled {
		return nil
	}
	return []Method{s.Method, MethodBackup}
}

type Engine struct {
	kv              kvstore.Store
	issuer          string
	skew            uint
	backupCodeCount int
	codeTTL         time.Duration
	maxCodeAttempts int
	nowFunc         func() time.Time
	logger          zerolog.Logger
}

type EngineOption func(*Engine)

func WithConfig(cfg config.MFAConfig) EngineOption {
	return func(e *Engine) {
		if issuer := cfg.GetTOTPIssuer(); issuer != "" {
			e.issuer = issuer
		}
		e.skew = cfg.GetTOTPSkew()
		if n := cfg.GetBackupCodeCount(); n > 0 {
			e.backupCodeCount = n
		}
		if ttl := cfg.GetMFACodeTTL(); ttl > 0 {
			e.codeTTL = ttl
		}
	}
}

func WithNowFunc(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

func NewEngine(kv kvstore.Store, opts ...EngineOption) (*Engine, error) {
	if kv == nil {
		return nil, errors.New("[NewEngine] key-value store is required")
	}
	e := &Engine{
		kv:              kv,
		issuer:          DefaultIssuer,
		skew:            DefaultSkew,
		backupCodeCount: DefaultBackupCodeCount,
		codeTTL:         DefaultCodeTTL,
		maxCodeAttempts: DefaultMaxCodeAttempts,
		nowFunc:         time.Now,
		logger:          log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func setupKey(userID string) string {
	return setupKeyPrefix + userID
}

// GetSetup returns the user's MFA setup, or nil when they never enrolled.
func (e *Engine) GetSetup(ctx context.Context, userID string) (*Setup, error) {
	data, err := e.kv.Get(ctx, setupKey(userID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Engine.GetSetup]")
	}
	var setup Setup
	if err := json.Unmarshal(data, &setup); err != nil {
		return nil, errors.Wrap(err, "[Engine.GetSetup] decode")
	}
	return &setup, nil
}

func (e *Engine) putSetup(ctx context.Context, setup *Setup) error {
	setup.UpdatedAt = e.nowFunc()
	data, err := json.Marshal(setup)
	if err != nil {
		return errors.Wrap(err, "encode setup")
	}
	return e.kv.Set(ctx, setupKey(setup.UserID), data, kvstore.NoExpiry)
}

// EnrollMethod records a code based method (SMS or email) as the user's
// pending second factor.
func (e *Engine) EnrollMethod(ctx context.Context, userID string, method Method) (*Setup, error) {
	if method != MethodSMS && method != MethodEmail {
		return nil, errors.Errorf("[Engine.EnrollMethod] unsupported method %q", method)
	}
	setup := &Setup{UserID: userID, Method: method, CreatedAt: e.nowFunc()}
	if err := e.putSetup(ctx, setup); err != nil {
		return nil, errors.Wrap(err, "[Engine.EnrollMethod]")
	}
	return setup, nil
}

// EnableMFA turns on the enrolled method.
func (e *Engine) EnableMFA(ctx context.Context, userID string) (*Setup, error) {
	setup, err := e.GetSetup(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[Engine.EnableMFA]")
	}
	if setup == nil {
		return nil, errors.New("[Engine.EnableMFA] no mfa setup")
	}
	setup.IsEnabled = true
	if err := e.putSetup(ctx, setup); err != nil {
		return nil, errors.Wrap(err, "[Engine.EnableMFA]")
	}
	e.logger.Info().Str("user_id", userID).Str("method", string(setup.Method)).Msg("mfa enabled")
	return setup, nil
}

// DisableMFA turns MFA off and discards outstanding backup codes.
func (e *Engine) DisableMFA(ctx context.Context, userID string) error {
	setup, err := e.GetSetup(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "[Engine.DisableMFA]")
	}
	if setup == nil {
		return nil
	}
	setup.IsEnabled = false
	if err := e.putSetup(ctx, setup); err != nil {
		return errors.Wrap(err, "[Engine.DisableMFA]")
	}
	if err := e.kv.Delete(ctx, backupKey(userID)); err != nil {
		return errors.Wrap(err, "[Engine.DisableMFA] backup codes")
	}
	e.logger.Info().Str("user_id", userID).Msg("mfa disabled")
	return nil
}
