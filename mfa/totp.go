package mfa

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod     = 30
	totpSecretSize = 20 // 160 bits
)

// Enrollment is returned once when a TOTP secret is generated. The backup
// codes are shown to the user here and only their hashes are kept.
type Enrollment struct {
	Secret      string   `json:"secret"`
	QRPayload   string   `json:"qrPayload"`
	BackupCodes []string `json:"backupCodes"`
}

// GenerateTOTPSecret creates a new authenticator secret for userID, stores it
// as a pending (disabled) setup and replaces the user's backup codes.
func (e *Engine) GenerateTOTPSecret(ctx context.Context, userID, label string) (*Enrollment, error) {
	if label == "" {
		label = userID
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: label,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Engine.GenerateTOTPSecret] generate")
	}

	setup := &Setup{
		UserID:    userID,
		Method:    MethodTOTP,
		Secret:    key.Secret(),
		CreatedAt: e.nowFunc(),
	}
	if err := e.putSetup(ctx, setup); err != nil {
		return nil, errors.Wrap(err, "[Engine.GenerateTOTPSecret] store setup")
	}

	codes, err := e.RegenerateBackupCodes(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[Engine.GenerateTOTPSecret]")
	}
	return &Enrollment{Secret: key.Secret(), QRPayload: key.URL(), BackupCodes: codes}, nil
}

// VerifyTOTP checks code against secret at the current time, tolerating the
// configured number of 30 second steps either side.
func (e *Engine) VerifyTOTP(secret, code string) bool {
	return e.verifyTOTPAt(secret, code, e.nowFunc())
}

func (e *Engine) verifyTOTPAt(secret, code string, at time.Time) bool {
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      e.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// VerifyUserTOTP checks code against the user's stored secret. A user
// without a TOTP setup never verifies. Pending setups verify so enrolment can
// be confirmed.
func (e *Engine) VerifyUserTOTP(ctx context.Context, userID, code string) (bool, error) {
	setup, err := e.GetSetup(ctx, userID)
	if err != nil {
		return false, errors.Wrap(err, "[Engine.VerifyUserTOTP]")
	}
	if setup == nil || setup.Method != MethodTOTP {
		return false, nil
	}
	return e.VerifyTOTP(setup.Secret, code), nil
}
