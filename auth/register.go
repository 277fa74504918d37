package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-server/credentials"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/users"
	"github.com/pkg/errors"
)

// Register creates a password account. The first password is recorded in
// the history so it cannot be reused later.
func (as *AuthorizationService) Register(ctx context.Context, req RegisterRequest) (*users.User, error) {
	req.Email = users.NormalizeEmail(req.Email)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := credentials.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	_, err := as.users.GetByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return nil, apperrors.Conflict("email already registered", apperrors.ErrUserExists)
	case !apperrors.IsKind(err, apperrors.KindNotFound):
		return nil, errors.Wrap(err, "[AuthorizationService.Register] GetByEmail")
	}

	hash, err := as.credentials.Hash(req.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.Register] hash")
	}
	username := req.Username
	if username == "" {
		username = req.Email
	}
	user := &users.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		Username:     username,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		DateJoined:   as.nowFunc(),
		MFType:       users.MFNone,
	}
	if err := as.users.Create(ctx, user); err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.Register] create")
	}
	if err := as.credentials.AppendHistory(ctx, user.ID, hash); err != nil {
		as.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to record initial password history")
	}
	as.logger.Info().Str("user_id", user.ID).Msg("user registered")
	return user, nil
}
