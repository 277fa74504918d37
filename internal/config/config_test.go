package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-session-server/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "DEV")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.GetHTTPAddr())
	require.Equal(t, 24*time.Hour, cfg.GetSessionTTL())
	require.Equal(t, 30*time.Minute, cfg.GetActivityExtension())
	require.Equal(t, 7*24*time.Hour, cfg.GetSessionMaxLifetime())
	require.Equal(t, 5, cfg.GetMaxConcurrentSessions())
	require.Equal(t, config.SessionLimitReject, cfg.GetSessionLimitPolicy())
	require.Equal(t, 2*time.Second, cfg.GetStoreTimeout())
	require.Equal(t, 12, cfg.GetBcryptCost())
	require.Equal(t, 5, cfg.GetPasswordHistoryDepth())
	require.Equal(t, uint(2), cfg.GetTOTPSkew())
	require.Equal(t, 10, cfg.GetBackupCodeCount())
	require.Equal(t, 10*time.Minute, cfg.GetMFACodeTTL())
	require.Equal(t, time.Hour, cfg.GetPasswordResetTTL())
	require.Equal(t, zerolog.InfoLevel, cfg.GetLogLevel())
	require.False(t, cfg.FederationEnabled())
	require.Empty(t, cfg.GetTrustedProxies())
	require.True(t, cfg.IsDev())
}

func TestLoad_TrustedProxies(t *testing.T) {
	t.Setenv("ENV", "DEV")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.7, ::1")

	cfg, err := config.Load()
	require.NoError(t, err)
	proxies := cfg.GetTrustedProxies()
	require.Len(t, proxies, 3)
	require.True(t, proxies.Contains("10.20.30.40"))
	require.True(t, proxies.Contains("192.0.2.7"))
	require.True(t, proxies.Contains("::ffff:192.0.2.7"))
	require.True(t, proxies.Contains("::1"))
	require.False(t, proxies.Contains("192.0.2.8"))
	require.False(t, proxies.Contains("203.0.113.9"))
	require.False(t, proxies.Contains("garbage"))
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ENV", "DEV")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("MAX_CONCURRENT_SESSIONS", "3")
	t.Setenv("SESSION_LIMIT_POLICY", config.SessionLimitEvictOldest)
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, 2*time.Hour, cfg.GetSessionTTL())
	require.Equal(t, 3, cfg.GetMaxConcurrentSessions())
	require.Equal(t, config.SessionLimitEvictOldest, cfg.GetSessionLimitPolicy())
	require.Equal(t, 4, cfg.GetBcryptCost())
	require.Equal(t, zerolog.DebugLevel, cfg.GetLogLevel())
	require.True(t, cfg.GetAllowedOrigins().IsAllowedOrigin("https://b.example"))
	require.False(t, cfg.GetAllowedOrigins().IsAllowedOrigin("https://c.example"))
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bcrypt cost too low", "BCRYPT_COST", "3"},
		{"bcrypt cost too high", "BCRYPT_COST", "32"},
		{"unknown limit policy", "SESSION_LIMIT_POLICY", "random"},
		{"zero session limit", "MAX_CONCURRENT_SESSIONS", "0"},
		{"lifetime shorter than ttl", "SESSION_MAX_LIFETIME", "1h"},
		{"malformed trusted proxy", "TRUSTED_PROXIES", "10.0.0.0/8, not-an-ip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV", "DEV")
			t.Setenv(tt.key, tt.val)
			_, err := config.Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_SigningKeyRequiredOutsideDev(t *testing.T) {
	t.Setenv("ENV", "PROD")
	t.Setenv("JWT_SECRET", "")
	_, err := config.Load()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := config.Load()
	require.NoError(t, err)
	require.False(t, cfg.IsDev())
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	require.NotEmpty(t, cfg.GetJWTSecret())
	require.Equal(t, 24*time.Hour, cfg.GetSessionTTL())
}
