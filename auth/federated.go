package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-server/federation"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/users"
	"github.com/pkg/errors"
)

// FederatedLogin signs in the owner of a verified upstream email, creating a
// password-less account on first use. An existing account with that email,
// password accounts included, is signed in without a separate linking step.
// MFA still applies and blocked accounts are refused.
func (as *AuthorizationService) FederatedLogin(ctx context.Context, identity *federation.Identity, device Device) (*LoginResult, error) {
	if identity == nil || !identity.EmailVerified {
		return nil, apperrors.Unauthorized("provider email not verified", ErrEmailNotVerified)
	}
	email := users.NormalizeEmail(identity.Email)

	user, err := as.users.GetByEmail(ctx, email)
	if apperrors.IsKind(err, apperrors.KindNotFound) {
		user, err = as.createFederatedUser(ctx, email, identity)
	}
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.FederatedLogin]")
	}
	if user.Blocked {
		return nil, apperrors.Unauthorized("account is blocked", apperrors.ErrUserBlocked)
	}
	return as.completeFirstFactor(ctx, user, device)
}

func (as *AuthorizationService) createFederatedUser(ctx context.Context, email string, identity *federation.Identity) (*users.User, error) {
	username := identity.Name
	if username == "" {
		username = email
	}
	user := &users.User{
		ID:         uuid.New().String(),
		Email:      email,
		Username:   username,
		DateJoined: as.nowFunc(),
		Verified:   true,
		MFType:     users.MFNone,
	}
	err := as.users.Create(ctx, user)
	if apperrors.IsKind(err, apperrors.KindConflict) {
		// created by a concurrent callback for the same account
		return as.users.GetByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}
	as.logger.Info().Str("user_id", user.ID).Str("provider", identity.Provider).Msg("user created from federated login")
	return user, nil
}
