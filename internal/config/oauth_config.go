package config

import "time"

type MFAConfig interface {
	GetTOTPIssuer() string
	GetTOTPSkew() uint
	GetBackupCodeCount() int
	GetMFACodeTTL() time.Duration
	GetMFAChallengeTTL() time.Duration
}

// OIDCConfig describes the single upstream identity provider used for
// federated login. Federation is disabled when the issuer is empty.
type OIDCConfig interface {
	GetOIDCProvider() string
	GetOIDCIssuerURL() string
	GetOIDCClientID() string
	GetOIDCClientSecret() string
	GetOIDCRedirectURL() string
	FederationEnabled() bool
}

func (s *Settings) GetTOTPIssuer() string {
	return s.TOTPIssuer
}

func (s *Settings) GetTOTPSkew() uint {
	return s.TOTPSkew
}

func (s *Settings) GetBackupCodeCount() int {
	return s.BackupCodeCount
}

func (s *Settings) GetMFACodeTTL() time.Duration {
	return s.MFACodeTTL
}

func (s *Settings) GetMFAChallengeTTL() time.Duration {
	return s.MFAChallengeTTL
}

func (s *Settings) GetOIDCProvider() string {
	if s.OIDCProvider == "" {
		return "oidc"
	}
	return s.OIDCProvider
}

func (s *Settings) GetOIDCIssuerURL() string {
	return s.OIDCIssuerURL
}

func (s *Settings) GetOIDCClientID() string {
	return s.OIDCClientID
}

func (s *Settings) GetOIDCClientSecret() string {
	return s.OIDCClientSecret
}

func (s *Settings) GetOIDCRedirectURL() string {
	return s.OIDCRedirectURL
}

func (s *Settings) FederationEnabled() bool {
	return s.OIDCIssuerURL != "" && s.OIDCClientID != ""
}

// NotifyConfig points at the webhook that delivers MFA codes and password
// reset links. Delivery is logged only when the URL is empty.
type NotifyConfig interface {
	GetNotifyWebhookURL() string
	GetNotifyWebhookKey() string
	GetNotifyTimeout() time.Duration
}

func (s *Settings) GetNotifyWebhookURL() string {
	return s.NotifyWebhookURL
}

func (s *Settings) GetNotifyWebhookKey() string {
	return s.NotifyWebhookKey
}

func (s *Settings) GetNotifyTimeout() time.Duration {
	return s.NotifyTimeout
}
