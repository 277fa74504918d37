package mfa

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/jrsteele09/go-session-server/kvstore"
	"github.com/pkg/errors"
)

const deliveryCodeDigits = 6

// codeRecord is a single use code sent over SMS or email. Only the hash of
// the code is stored.
type codeRecord struct {
	CodeHash  string    `json:"codeHash"`
	UserID    string    `json:"userId"`
	Channel   Method    `json:"channel"`
	ExpiresAt time.Time `json:"expiresAt"`
	Used      bool      `json:"used"`
}

func codeKey(channel Method, userID string) string {
	return codeKeyPrefix + string(channel) + ":" + userID
}

// attemptsKey counts verification attempts against the outstanding code.
func attemptsKey(channel Method, userID string) string {
	return attemptsKeyPrefix + string(channel) + ":" + userID
}

func generateNumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", deliveryCodeDigits, n.Int64()), nil
}

// IssueSMSCode creates a 6 digit code for userID valid for the configured TTL.
// Issuing a new code replaces any outstanding one.
func (e *Engine) IssueSMSCode(ctx context.Context, userID string) (string, error) {
	return e.issueCode(ctx, MethodSMS, userID)
}

// VerifySMSCode consumes code if it matches the user's unused, unexpired SMS
// code.
func (e *Engine) VerifySMSCode(ctx context.Context, userID, code string) (bool, error) {
	return e.verifyCode(ctx, MethodSMS, userID, code)
}

func (e *Engine) IssueEmailCode(ctx context.Context, userID string) (string, error) {
	return e.issueCode(ctx, MethodEmail, userID)
}

func (e *Engine) VerifyEmailCode(ctx context.Context, userID, code string) (bool, error) {
	return e.verifyCode(ctx, MethodEmail, userID, code)
}

func (e *Engine) issueCode(ctx context.Context, channel Method, userID string) (string, error) {
	code, err := generateNumericCode()
	if err != nil {
		return "", errors.Wrap(err, "[Engine.issueCode] random")
	}
	rec := codeRecord{
		CodeHash:  hashCode(code),
		UserID:    userID,
		Channel:   channel,
		ExpiresAt: e.nowFunc().Add(e.codeTTL),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", errors.Wrap(err, "[Engine.issueCode] encode")
	}
	if err := e.kv.Delete(ctx, attemptsKey(channel, userID)); err != nil {
		return "", errors.Wrap(err, "[Engine.issueCode] reset attempts")
	}
	if err := e.kv.Set(ctx, codeKey(channel, userID), data, e.codeTTL); err != nil {
		return "", errors.Wrap(err, "[Engine.issueCode] store")
	}
	return code, nil
}

// verifyCode marks the code used with a compare-and-swap against the exact
// record that was read, so two concurrent verifications cannot both succeed.
// Every attempt is counted atomically before the comparison; once
// maxCodeAttempts is reached the code is dead.
func (e *Engine) verifyCode(ctx context.Context, channel Method, userID, code string) (bool, error) {
	key := codeKey(channel, userID)
	current, err := e.kv.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "[Engine.verifyCode] read")
	}

	var rec codeRecord
	if err := json.Unmarshal(current, &rec); err != nil {
		return false, errors.Wrap(err, "[Engine.verifyCode] decode")
	}
	remaining := rec.ExpiresAt.Sub(e.nowFunc())
	if rec.Used || remaining <= 0 {
		return false, nil
	}

	attempts, err := e.kv.Increment(ctx, attemptsKey(channel, userID), remaining)
	if err != nil {
		return false, errors.Wrap(err, "[Engine.verifyCode] count attempt")
	}
	if attempts > int64(e.maxCodeAttempts) {
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(hashCode(code)), []byte(rec.CodeHash)) != 1 {
		return false, nil
	}

	rec.Used = true
	next, err := json.Marshal(rec)
	if err != nil {
		return false, errors.Wrap(err, "[Engine.verifyCode] encode")
	}
	swapped, err := e.kv.CompareAndSwap(ctx, key, current, next)
	if err != nil {
		return false, errors.Wrap(err, "[Engine.verifyCode] consume")
	}
	return swapped, nil
}
