// Package federation signs users in through an upstream OpenID Connect
// provider using the authorization code flow with PKCE.
package federation

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-session-server/internal/config"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

var (
	ErrMissingIDToken = errors.New("no id_token in token response")
	ErrNonceMismatch  = errors.New("id_token nonce does not match")
	ErrMissingEmail   = errors.New("id_token carries no email")
)

// Identity is what the upstream provider asserts about the user.
type Identity struct {
	Provider      string `json:"provider"`
	Subject       string `json:"subject"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	Name          string `json:"name,omitempty"`
}

type Provider struct {
	name     string
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewProvider discovers the issuer's endpoints and keys.
func NewProvider(ctx context.Context, cfg config.OIDCConfig) (*Provider, error) {
	if !cfg.FederationEnabled() {
		return nil, errors.New("[NewProvider] OIDC issuer and client id are required")
	}
	provider, err := oidc.NewProvider(ctx, cfg.GetOIDCIssuerURL())
	if err != nil {
		return nil, errors.Wrap(err, "[NewProvider] discovery")
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GetOIDCClientID(),
		ClientSecret: cfg.GetOIDCClientSecret(),
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.GetOIDCRedirectURL(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.GetOIDCClientID()})
	return NewProviderWith(cfg.GetOIDCProvider(), oauthCfg, verifier), nil
}

// NewProviderWith builds a provider from explicit endpoints and a verifier,
// skipping discovery.
func NewProviderWith(name string, oauthCfg *oauth2.Config, verifier *oidc.IDTokenVerifier) *Provider {
	return &Provider{name: name, oauth: oauthCfg, verifier: verifier}
}

func (p *Provider) Name() string {
	return p.name
}

// AuthCodeURL is where the browser is sent to start a login for flow.
func (p *Provider) AuthCodeURL(state string, flow *AuthFlowState) string {
	return p.oauth.AuthCodeURL(state,
		oidc.Nonce(flow.Nonce),
		oauth2.S256ChallengeOption(flow.CodeVerifier),
	)
}

// Exchange redeems the authorization code and verifies the returned ID token
// against the nonce recorded when the flow began.
func (p *Provider) Exchange(ctx context.Context, code string, flow *AuthFlowState) (*Identity, error) {
	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(flow.CodeVerifier))
	if err != nil {
		return nil, apperrors.Unauthorized("code exchange failed", errors.Wrap(err, "[Provider.Exchange]"))
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, apperrors.Unauthorized("code exchange failed", ErrMissingIDToken)
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, apperrors.TokenInvalid(errors.Wrap(err, "[Provider.Exchange] verify id_token"))
	}

	var claims struct {
		Nonce         string `json:"nonce"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, apperrors.TokenInvalid(errors.Wrap(err, "[Provider.Exchange] claims"))
	}
	if claims.Nonce != flow.Nonce {
		return nil, apperrors.TokenInvalid(ErrNonceMismatch)
	}
	if claims.Email == "" {
		return nil, apperrors.Unauthorized("provider did not share an email", ErrMissingEmail)
	}
	return &Identity{
		Provider:      p.name,
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
	}, nil
}
