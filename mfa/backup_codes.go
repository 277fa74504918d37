package mfa

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

const backupCodeLength = 8

// no 0/O or 1/I to keep codes readable off paper
const backupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func backupKey(userID string) string {
	return backupKeyPrefix + userID
}

func normalizeBackupCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.ReplaceAll(code, "-", "")
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func randomString(alphabet string, n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String(), nil
}

// RegenerateBackupCodes replaces the user's backup codes with a fresh set and
// returns them in clear text. Only hashes are stored.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	codes := make([]string, 0, e.backupCodeCount)
	hashes := make([]string, 0, e.backupCodeCount)
	seen := make(map[string]struct{}, e.backupCodeCount)
	for len(codes) < e.backupCodeCount {
		code, err := randomString(backupCodeAlphabet, backupCodeLength)
		if err != nil {
			return nil, errors.Wrap(err, "[Engine.RegenerateBackupCodes] random")
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
		hashes = append(hashes, hashCode(code))
	}

	key := backupKey(userID)
	if err := e.kv.Delete(ctx, key); err != nil {
		return nil, errors.Wrap(err, "[Engine.RegenerateBackupCodes] clear")
	}
	if err := e.kv.SetAdd(ctx, key, hashes...); err != nil {
		return nil, errors.Wrap(err, "[Engine.RegenerateBackupCodes] store")
	}
	return codes, nil
}

// VerifyBackupCode consumes code if it is one of the user's unused backup
// codes. Lookup and removal are a single backend operation, so concurrent
// attempts with the same code succeed at most once.
func (e *Engine) VerifyBackupCode(ctx context.Context, userID, code string) (bool, error) {
	code = normalizeBackupCode(code)
	if len(code) != backupCodeLength {
		return false, nil
	}
	removed, err := e.kv.SetRemove(ctx, backupKey(userID), hashCode(code))
	if err != nil {
		return false, errors.Wrap(err, "[Engine.VerifyBackupCode]")
	}
	if removed == 1 {
		e.logger.Info().Str("user_id", userID).Msg("backup code consumed")
	}
	return removed == 1, nil
}

// RemainingBackupCodes is the number of unused backup codes.
func (e *Engine) RemainingBackupCodes(ctx context.Context, userID string) (int, error) {
	members, err := e.kv.SetMembers(ctx, backupKey(userID))
	if err != nil {
		return 0, errors.Wrap(err, "[Engine.RemainingBackupCodes]")
	}
	return len(members), nil
}
