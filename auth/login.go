package auth

import (
	"context"

	"github.com/jrsteele09/go-session-server/internal/config"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/mfa"
	"github.com/jrsteele09/go-session-server/token"
	"github.com/jrsteele09/go-session-server/users"
	"github.com/pkg/errors"
)

// Login checks the credentials. Users with MFA enabled get a challenge token
// instead of a session.
func (as *AuthorizationService) Login(ctx context.Context, email, password string, device Device) (*LoginResult, error) {
	user, err := as.users.GetByEmail(ctx, users.NormalizeEmail(email))
	switch {
	case apperrors.IsKind(err, apperrors.KindNotFound):
		user = nil
	case err != nil:
		return nil, errors.Wrap(err, "[AuthorizationService.Login] GetByEmail")
	}

	if !as.verifyPassword(user, password) {
		as.logger.Info().Str("ip", device.IPAddress).Msg("login failed")
		return nil, invalidCredentials()
	}
	if user.Blocked {
		as.logger.Warn().Str("user_id", user.ID).Msg("login attempt on blocked account")
		return nil, apperrors.Unauthorized("account is blocked", apperrors.ErrUserBlocked)
	}

	return as.completeFirstFactor(ctx, user, device)
}

// completeFirstFactor issues a session, or an MFA challenge when the user
// has a second factor enabled.
func (as *AuthorizationService) completeFirstFactor(ctx context.Context, user *users.User, device Device) (*LoginResult, error) {
	setup, err := as.mfa.GetSetup(ctx, user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.completeFirstFactor] mfa setup")
	}
	if methods := setup.ChallengeMethods(); len(methods) > 0 {
		names := make([]string, len(methods))
		for i, m := range methods {
			names[i] = string(m)
		}
		challenge, err := as.tokens.Sign(token.MFAChallengeClaims{UserID: user.ID, Methods: names}, as.challengeTTL)
		if err != nil {
			return nil, errors.Wrap(err, "[AuthorizationService.completeFirstFactor] challenge")
		}
		as.logger.Info().Str("user_id", user.ID).Msg("mfa challenge issued")
		return &LoginResult{User: user, MFARequired: true, ChallengeToken: challenge, Methods: names}, nil
	}
	return as.startSession(ctx, user, device)
}

// CompleteMFALogin finishes a challenged login with one of the allowed
// second factors.
func (as *AuthorizationService) CompleteMFALogin(ctx context.Context, challengeToken string, method mfa.Method, code string, device Device) (*LoginResult, error) {
	claims, err := as.tokens.VerifyMFAChallenge(challengeToken)
	if err != nil {
		return nil, err
	}
	if !claims.Allows(string(method)) {
		return nil, apperrors.Unauthorized("method not allowed for this challenge", ErrMFAMethodNotAllowed)
	}

	ok, err := as.verifySecondFactor(ctx, claims.UserID, method, code)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.CompleteMFALogin]")
	}
	if !ok {
		as.logger.Warn().Str("user_id", claims.UserID).Str("method", string(method)).Msg("mfa verification failed")
		return nil, apperrors.Unauthorized("invalid verification code", apperrors.ErrInvalidMFACode)
	}

	user, err := as.getUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return as.startSession(ctx, user, device)
}

func (as *AuthorizationService) verifySecondFactor(ctx context.Context, userID string, method mfa.Method, code string) (bool, error) {
	switch method {
	case mfa.MethodTOTP:
		return as.mfa.VerifyUserTOTP(ctx, userID, code)
	case mfa.MethodBackup:
		return as.mfa.VerifyBackupCode(ctx, userID, code)
	case mfa.MethodSMS:
		return as.mfa.VerifySMSCode(ctx, userID, code)
	case mfa.MethodEmail:
		return as.mfa.VerifyEmailCode(ctx, userID, code)
	}
	return false, nil
}

// SendMFACode delivers a one time code for a challenged login over SMS or
// email.
func (as *AuthorizationService) SendMFACode(ctx context.Context, challengeToken string, channel mfa.Method) error {
	claims, err := as.tokens.VerifyMFAChallenge(challengeToken)
	if err != nil {
		return err
	}
	if (channel != mfa.MethodSMS && channel != mfa.MethodEmail) || !claims.Allows(string(channel)) {
		return apperrors.Unauthorized("method not allowed for this challenge", ErrMFAMethodNotAllowed)
	}
	user, err := as.getUser(ctx, claims.UserID)
	if err != nil {
		return err
	}
	return as.sendCode(ctx, user, channel)
}

func (as *AuthorizationService) sendCode(ctx context.Context, user *users.User, channel mfa.Method) error {
	var (
		code        string
		destination string
		err         error
	)
	switch channel {
	case mfa.MethodSMS:
		if user.Phone == "" {
			return apperrors.E(apperrors.KindValidationFailed, "no phone number on file", ErrNoDestination)
		}
		destination = user.Phone
		code, err = as.mfa.IssueSMSCode(ctx, user.ID)
	case mfa.MethodEmail:
		destination = user.Email
		code, err = as.mfa.IssueEmailCode(ctx, user.ID)
	default:
		return apperrors.Validation("unsupported delivery channel", map[string]string{"field": "method"})
	}
	if err != nil {
		return errors.Wrap(err, "[AuthorizationService.sendCode] issue")
	}
	if err := as.notifier.SendMFACode(ctx, notifyChannel(channel), destination, code); err != nil {
		return apperrors.BackendUnavailable(errors.Wrap(err, "[AuthorizationService.sendCode] deliver"))
	}
	return nil
}

// startSession applies the concurrent session policy and creates the session.
func (as *AuthorizationService) startSession(ctx context.Context, user *users.User, device Device) (*LoginResult, error) {
	if err := as.enforceSessionLimit(ctx, user.ID); err != nil {
		return nil, err
	}
	session, err := as.sessions.CreateSession(ctx, user.ID, device.DeviceInfo, device.IPAddress, device.UserAgent)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.startSession]")
	}

	user.LastLogin = as.nowFunc()
	if err := as.users.Update(ctx, user); err != nil {
		as.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	}
	as.logger.Info().Str("user_id", user.ID).Str("session_id", session.ID).Msg("session started")
	return &LoginResult{User: user, Session: session}, nil
}

// enforceSessionLimit is advisory: concurrent logins for the same user can
// each pass the check before any of them creates its session.
func (as *AuthorizationService) enforceSessionLimit(ctx context.Context, userID string) error {
	ok, err := as.sessions.CheckConcurrentSessionLimit(ctx, userID, as.maxSessions)
	if err != nil {
		return errors.Wrap(err, "[AuthorizationService.enforceSessionLimit]")
	}
	if ok {
		return nil
	}
	if as.limitPolicy == config.SessionLimitReject {
		return apperrors.Conflict("too many active sessions", apperrors.ErrSessionLimitExceeded)
	}

	live, err := as.sessions.ListUserSessions(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "[AuthorizationService.enforceSessionLimit] list")
	}
	// newest first, so the oldest are at the tail
	for i := len(live) - 1; i >= as.maxSessions-1; i-- {
		if err := as.sessions.InvalidateSession(ctx, live[i].ID); err != nil {
			return errors.Wrap(err, "[AuthorizationService.enforceSessionLimit] evict")
		}
		as.logger.Info().Str("user_id", userID).Str("session_id", live[i].ID).Msg("evicted oldest session")
	}
	return nil
}
