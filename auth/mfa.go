package auth

import (
	"context"

	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/mfa"
	"github.com/jrsteele09/go-session-server/users"
	"github.com/pkg/errors"
)

// SetupTOTP starts authenticator enrolment. MFA stays off until EnableMFA
// confirms a code from the authenticator.
func (as *AuthorizationService) SetupTOTP(ctx context.Context, id Identity) (*mfa.Enrollment, error) {
	user, err := as.getUser(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	if err := as.requireMFADisabled(ctx, user.ID); err != nil {
		return nil, err
	}
	enrollment, err := as.mfa.GenerateTOTPSecret(ctx, user.ID, user.Email)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.SetupTOTP]")
	}
	return enrollment, nil
}

// SetupCodeMFA starts SMS or email enrolment by sending a confirmation code
// to the user's destination.
func (as *AuthorizationService) SetupCodeMFA(ctx context.Context, id Identity, channel mfa.Method) error {
	if channel != mfa.MethodSMS && channel != mfa.MethodEmail {
		return apperrors.Validation("unsupported mfa method", map[string]string{"field": "method"})
	}
	user, err := as.getUser(ctx, id.UserID)
	if err != nil {
		return err
	}
	if err := as.requireMFADisabled(ctx, user.ID); err != nil {
		return err
	}
	if channel == mfa.MethodSMS && user.Phone == "" {
		return apperrors.E(apperrors.KindValidationFailed, "no phone number on file", ErrNoDestination)
	}
	if _, err := as.mfa.EnrollMethod(ctx, user.ID, channel); err != nil {
		return errors.Wrap(err, "[AuthorizationService.SetupCodeMFA]")
	}
	return as.sendCode(ctx, user, channel)
}

// EnableMFA confirms a pending setup with a code from the enrolled factor.
// Code based methods receive their backup codes here; authenticator users
// received theirs at setup.
func (as *AuthorizationService) EnableMFA(ctx context.Context, id Identity, code string) ([]string, error) {
	setup, err := as.mfa.GetSetup(ctx, id.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.EnableMFA]")
	}
	if setup == nil {
		return nil, apperrors.E(apperrors.KindValidationFailed, "no pending mfa setup", ErrMFANotPending)
	}
	if setup.IsEnabled {
		return nil, apperrors.Conflict("mfa already enabled", ErrMFAAlreadyEnabled)
	}

	ok, err := as.verifySecondFactor(ctx, id.UserID, setup.Method, code)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.EnableMFA] verify")
	}
	if !ok {
		return nil, apperrors.Unauthorized("invalid verification code", apperrors.ErrInvalidMFACode)
	}

	var backupCodes []string
	if setup.Method != mfa.MethodTOTP {
		if backupCodes, err = as.mfa.RegenerateBackupCodes(ctx, id.UserID); err != nil {
			return nil, errors.Wrap(err, "[AuthorizationService.EnableMFA] backup codes")
		}
	}
	if _, err := as.mfa.EnableMFA(ctx, id.UserID); err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.EnableMFA]")
	}
	as.setUserMFType(ctx, id.UserID, mfTypeFor(setup.Method))
	return backupCodes, nil
}

// DisableMFA turns MFA off after re-checking the password.
func (as *AuthorizationService) DisableMFA(ctx context.Context, id Identity, password string) error {
	user, err := as.getUser(ctx, id.UserID)
	if err != nil {
		return err
	}
	if !as.verifyPassword(user, password) {
		return apperrors.Unauthorized("password is incorrect", apperrors.ErrInvalidCredentials)
	}
	if err := as.mfa.DisableMFA(ctx, user.ID); err != nil {
		return errors.Wrap(err, "[AuthorizationService.DisableMFA]")
	}
	as.setUserMFType(ctx, user.ID, users.MFNone)
	return nil
}

// RegenerateBackupCodes replaces the backup codes after re-checking the
// password.
func (as *AuthorizationService) RegenerateBackupCodes(ctx context.Context, id Identity, password string) ([]string, error) {
	user, err := as.getUser(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	if !as.verifyPassword(user, password) {
		return nil, apperrors.Unauthorized("password is incorrect", apperrors.ErrInvalidCredentials)
	}
	setup, err := as.mfa.GetSetup(ctx, user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.RegenerateBackupCodes]")
	}
	if setup == nil || !setup.IsEnabled {
		return nil, apperrors.E(apperrors.KindValidationFailed, "mfa is not enabled", ErrMFANotEnabled)
	}
	return as.mfa.RegenerateBackupCodes(ctx, user.ID)
}

func (as *AuthorizationService) requireMFADisabled(ctx context.Context, userID string) error {
	setup, err := as.mfa.GetSetup(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "mfa setup")
	}
	if setup != nil && setup.IsEnabled {
		return apperrors.Conflict("mfa already enabled", ErrMFAAlreadyEnabled)
	}
	return nil
}

// setUserMFType mirrors the MFA state onto the user record. The MFA setup
// stays authoritative so a failure here is only logged.
func (as *AuthorizationService) setUserMFType(ctx context.Context, userID string, t users.MFAuthType) {
	user, err := as.users.GetByID(ctx, userID)
	if err == nil {
		user.MFType = t
		err = as.users.Update(ctx, user)
	}
	if err != nil {
		as.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to update user mfa type")
	}
}

func mfTypeFor(m mfa.Method) users.MFAuthType {
	switch m {
	case mfa.MethodTOTP:
		return users.MFAuthenticator
	case mfa.MethodSMS:
		return users.MFTSms
	case mfa.MethodEmail:
		return users.MFEmail
	}
	return users.MFNone
}
