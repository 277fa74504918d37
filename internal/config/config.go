// Package config loads the server settings once at startup from the
// environment and an optional .env file.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	CorsConfig
	ProxyConfig
	StoreConfig
	TokenConfig
	SessionConfig
	CredentialConfig
	MFAConfig
	OIDCConfig
	NotifyConfig
}

// Settings holds every value read from the environment. It is built once by
// Load and never mutated afterwards.
type Settings struct {
	AppName  string `mapstructure:"APP_NAME"`
	Env      string `mapstructure:"ENV"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	StoreTimeout  time.Duration `mapstructure:"STORE_TIMEOUT"`
	DatabaseURL   string        `mapstructure:"DATABASE_URL"`

	JWTSecret     string `mapstructure:"JWT_SECRET"`
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	JWTIssuer     string `mapstructure:"JWT_ISSUER"`

	SessionTTL            time.Duration `mapstructure:"SESSION_TTL"`
	SessionMaxLifetime    time.Duration `mapstructure:"SESSION_MAX_LIFETIME"`
	MaxConcurrentSessions int           `mapstructure:"MAX_CONCURRENT_SESSIONS"`
	SessionLimitPolicy    string        `mapstructure:"SESSION_LIMIT_POLICY"`
	ActivityExtension     time.Duration `mapstructure:"ACTIVITY_EXTENSION"`

	BcryptCost           int           `mapstructure:"BCRYPT_COST"`
	PasswordHistoryDepth int           `mapstructure:"PASSWORD_HISTORY_DEPTH"`
	PasswordResetTTL     time.Duration `mapstructure:"PASSWORD_RESET_TTL"`

	TOTPIssuer      string        `mapstructure:"TOTP_ISSUER"`
	TOTPSkew        uint          `mapstructure:"TOTP_SKEW"`
	BackupCodeCount int           `mapstructure:"BACKUP_CODE_COUNT"`
	MFACodeTTL      time.Duration `mapstructure:"MFA_CODE_TTL"`
	MFAChallengeTTL time.Duration `mapstructure:"MFA_CHALLENGE_TTL"`

	OIDCProvider     string `mapstructure:"OIDC_PROVIDER"`
	OIDCIssuerURL    string `mapstructure:"OIDC_ISSUER_URL"`
	OIDCClientID     string `mapstructure:"OIDC_CLIENT_ID"`
	OIDCClientSecret string `mapstructure:"OIDC_CLIENT_SECRET"`
	OIDCRedirectURL  string `mapstructure:"OIDC_REDIRECT_URL"`

	NotifyWebhookURL string        `mapstructure:"NOTIFY_WEBHOOK_URL"`
	NotifyWebhookKey string        `mapstructure:"NOTIFY_WEBHOOK_KEY"`
	NotifyTimeout    time.Duration `mapstructure:"NOTIFY_TIMEOUT"`

	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`
}

var _ Config = (*Settings)(nil)

var defaults = map[string]any{
	"APP_NAME":                "Go Session Server",
	"ENV":                     "DEV",
	"HTTP_ADDR":               ":8080",
	"LOG_LEVEL":               "info",
	"REDIS_ADDR":              "",
	"REDIS_PASSWORD":          "",
	"REDIS_DB":                0,
	"STORE_TIMEOUT":           "2s",
	"DATABASE_URL":            "",
	"JWT_SECRET":              "",
	"JWT_PRIVATE_KEY":         "",
	"JWT_ISSUER":              "go-session-server",
	"SESSION_TTL":             "24h",
	"SESSION_MAX_LIFETIME":    "168h",
	"MAX_CONCURRENT_SESSIONS": 5,
	"SESSION_LIMIT_POLICY":    "reject",
	"ACTIVITY_EXTENSION":      "30m",
	"BCRYPT_COST":             12,
	"PASSWORD_HISTORY_DEPTH":  5,
	"PASSWORD_RESET_TTL":      "1h",
	"TOTP_ISSUER":             "Go Session Server",
	"TOTP_SKEW":               2,
	"BACKUP_CODE_COUNT":       10,
	"MFA_CODE_TTL":            "10m",
	"MFA_CHALLENGE_TTL":       "5m",
	"OIDC_PROVIDER":           "",
	"OIDC_ISSUER_URL":         "",
	"OIDC_CLIENT_ID":          "",
	"OIDC_CLIENT_SECRET":      "",
	"OIDC_REDIRECT_URL":       "",
	"NOTIFY_WEBHOOK_URL":      "",
	"NOTIFY_WEBHOOK_KEY":      "",
	"NOTIFY_TIMEOUT":          "10s",
	"ALLOWED_ORIGINS":         "",
	"TRUSTED_PROXIES":         "",
}

// Load reads .env (if present) and the environment, applies defaults and
// validates the result. Environment variables override .env values.
func Load() (*Settings, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "[config.Load] unmarshal")
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Default returns the built in defaults with a development signing secret.
// Tests and local tooling use it instead of reading the environment.
func Default() *Settings {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	var s Settings
	_ = v.Unmarshal(&s)
	s.JWTSecret = "dev-secret-change-me"
	return &s
}

func (s *Settings) validate() error {
	if s.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if s.BcryptCost < 4 || s.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if s.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	if s.SessionMaxLifetime < s.SessionTTL {
		return errors.New("config: SESSION_MAX_LIFETIME must not be shorter than SESSION_TTL")
	}
	if s.MaxConcurrentSessions < 1 {
		return errors.New("config: MAX_CONCURRENT_SESSIONS must be at least 1")
	}
	switch s.SessionLimitPolicy {
	case SessionLimitReject, SessionLimitEvictOldest:
	default:
		return errors.Errorf("config: unknown SESSION_LIMIT_POLICY %q", s.SessionLimitPolicy)
	}
	if s.StoreTimeout <= 0 {
		return errors.New("config: STORE_TIMEOUT must be positive")
	}
	if s.JWTSecret == "" && s.JWTPrivateKey == "" && !s.IsDev() {
		return errors.New("config: JWT_SECRET or JWT_PRIVATE_KEY must be set outside DEV")
	}
	if _, err := parseTrustedProxies(s.TrustedProxies); err != nil {
		return err
	}
	return nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
