package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-server/credentials"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/kvstore"
	"github.com/jrsteele09/go-session-server/token"
	"github.com/jrsteele09/go-session-server/users"
	"github.com/pkg/errors"
)

const resetKeyPrefix = "reset:"

// resetRecord backs a password reset token. The token references it by id
// and it is marked used exactly once.
type resetRecord struct {
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	Used      bool      `json:"used"`
}

// ChangePassword replaces the caller's password and signs out every other
// session. Recently used passwords are refused.
func (as *AuthorizationService) ChangePassword(ctx context.Context, id Identity, current, newPassword string) error {
	user, err := as.getUser(ctx, id.UserID)
	if err != nil {
		return err
	}
	if !as.verifyPassword(user, current) {
		return apperrors.Unauthorized("current password is incorrect", apperrors.ErrInvalidCredentials)
	}
	if err := as.checkNewPassword(ctx, user.ID, newPassword); err != nil {
		return err
	}
	if err := as.setPassword(ctx, user, newPassword); err != nil {
		return errors.Wrap(err, "[AuthorizationService.ChangePassword]")
	}
	if err := as.sessions.InvalidateOtherSessions(ctx, user.ID, id.SessionID); err != nil {
		return errors.Wrap(err, "[AuthorizationService.ChangePassword] invalidate sessions")
	}
	as.logger.Info().Str("user_id", user.ID).Msg("password changed")
	return nil
}

// RequestPasswordReset sends a reset token to the account's email. It
// behaves the same whether or not the account exists.
func (as *AuthorizationService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := as.users.GetByEmail(ctx, users.NormalizeEmail(email))
	if apperrors.IsKind(err, apperrors.KindNotFound) {
		as.logger.Debug().Msg("password reset requested for unknown account")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "[AuthorizationService.RequestPasswordReset] GetByEmail")
	}
	if user.Blocked {
		return nil
	}

	tokenID := uuid.New().String()
	data, err := json.Marshal(resetRecord{UserID: user.ID, ExpiresAt: as.nowFunc().Add(as.resetTTL)})
	if err != nil {
		return errors.Wrap(err, "[AuthorizationService.RequestPasswordReset] encode")
	}
	if err := as.kv.Set(ctx, resetKeyPrefix+tokenID, data, as.resetTTL); err != nil {
		return errors.Wrap(err, "[AuthorizationService.RequestPasswordReset] store")
	}
	resetToken, err := as.tokens.Sign(token.PasswordResetClaims{UserID: user.ID, TokenID: tokenID}, as.resetTTL)
	if err != nil {
		return errors.Wrap(err, "[AuthorizationService.RequestPasswordReset] sign")
	}
	if err := as.notifier.SendPasswordReset(ctx, user.Email, resetToken); err != nil {
		return errors.Wrap(err, "[AuthorizationService.RequestPasswordReset] deliver")
	}
	as.logger.Info().Str("user_id", user.ID).Msg("password reset issued")
	return nil
}

// ResetPassword sets a new password using a reset token and signs out every
// session of the account. A token works once; a rejected new password does
// not use it up.
func (as *AuthorizationService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	claims, err := as.tokens.VerifyPasswordReset(resetToken)
	if err != nil {
		return err
	}
	user, err := as.getUser(ctx, claims.UserID)
	if err != nil {
		return err
	}
	if err := as.checkNewPassword(ctx, user.ID, newPassword); err != nil {
		return err
	}
	if err := as.consumeReset(ctx, claims); err != nil {
		return err
	}
	if err := as.setPassword(ctx, user, newPassword); err != nil {
		return errors.Wrap(err, "[AuthorizationService.ResetPassword]")
	}
	if err := as.sessions.InvalidateAllUserSessions(ctx, user.ID); err != nil {
		return errors.Wrap(err, "[AuthorizationService.ResetPassword] invalidate sessions")
	}
	as.logger.Info().Str("user_id", user.ID).Msg("password reset completed")
	return nil
}

// consumeReset marks the reset record used with a compare-and-swap so a
// token cannot be redeemed twice, even concurrently.
func (as *AuthorizationService) consumeReset(ctx context.Context, claims token.PasswordResetClaims) error {
	key := resetKeyPrefix + claims.TokenID
	current, err := as.kv.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return apperrors.Unauthorized("reset token is no longer valid", ErrResetTokenUsed)
	}
	if err != nil {
		return errors.Wrap(err, "[AuthorizationService.consumeReset] read")
	}
	var rec resetRecord
	if err := json.Unmarshal(current, &rec); err != nil {
		return errors.Wrap(err, "[AuthorizationService.consumeReset] decode")
	}
	if rec.Used || rec.UserID != claims.UserID || !as.nowFunc().Before(rec.ExpiresAt) {
		return apperrors.Unauthorized("reset token is no longer valid", ErrResetTokenUsed)
	}

	rec.Used = true
	next, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "[AuthorizationService.consumeReset] encode")
	}
	swapped, err := as.kv.CompareAndSwap(ctx, key, current, next)
	if err != nil {
		return errors.Wrap(err, "[AuthorizationService.consumeReset] swap")
	}
	if !swapped {
		return apperrors.Unauthorized("reset token is no longer valid", ErrResetTokenUsed)
	}
	return nil
}

func (as *AuthorizationService) checkNewPassword(ctx context.Context, userID, password string) error {
	if err := credentials.ValidatePassword(password); err != nil {
		return err
	}
	reused, err := as.credentials.CheckHistory(ctx, userID, password)
	if err != nil {
		return errors.Wrap(err, "check password history")
	}
	if reused {
		return apperrors.Conflict("password was used recently", apperrors.ErrPasswordReused)
	}
	return nil
}

func (as *AuthorizationService) setPassword(ctx context.Context, user *users.User, password string) error {
	hash, err := as.credentials.Hash(password)
	if err != nil {
		return errors.Wrap(err, "hash")
	}
	user.PasswordHash = hash
	if err := as.users.Update(ctx, user); err != nil {
		return errors.Wrap(err, "update user")
	}
	if err := as.credentials.AppendHistory(ctx, user.ID, hash); err != nil {
		return errors.Wrap(err, "append history")
	}
	return nil
}
