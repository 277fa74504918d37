package token_test

import (
	"strings"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/token"
	"github.com/stretchr/testify/require"
)

type codecFixture struct {
	codec *token.Codec
	now   time.Time
}

func setupCodec(t *testing.T, signer token.Signer) *codecFixture {
	f := &codecFixture{now: time.Unix(1700000000, 0)}
	codec, err := token.NewCodec(signer, token.WithIssuer("test-issuer"), token.WithNowFunc(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.codec = codec
	return f
}

func TestCodec_RoundTripVariants(t *testing.T) {
	f := setupCodec(t, token.NewHMACSigner("secret"))

	tests := []struct {
		name   string
		claims token.Claims
	}{
		{"session", token.SessionClaims{UserID: "u1", SessionID: "s1"}},
		{"password reset", token.PasswordResetClaims{UserID: "u1", TokenID: "r1"}},
		{"mfa challenge", token.MFAChallengeClaims{UserID: "u1", Methods: []string{"totp", "backup"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := f.codec.Sign(tt.claims, time.Hour)
			require.NoError(t, err)

			got, err := f.codec.Verify(raw)
			require.NoError(t, err)
			require.Equal(t, tt.claims, got)
		})
	}
}

func TestCodec_VerifySessionTyped(t *testing.T) {
	f := setupCodec(t, token.NewHMACSigner("secret"))

	raw, err := f.codec.Sign(token.SessionClaims{UserID: "u1", SessionID: "s1"}, time.Hour)
	require.NoError(t, err)
	sc, err := f.codec.VerifySession(raw)
	require.NoError(t, err)
	require.Equal(t, "s1", sc.SessionID)

	_, err = f.codec.VerifyPasswordReset(raw)
	require.ErrorIs(t, err, token.ErrTokenWrongType)
	require.True(t, apperrors.IsKind(err, apperrors.KindTokenInvalid))

	mfaRaw, err := f.codec.Sign(token.MFAChallengeClaims{UserID: "u1", Methods: []string{"sms"}}, time.Minute)
	require.NoError(t, err)
	_, err = f.codec.VerifySession(mfaRaw)
	require.ErrorIs(t, err, token.ErrTokenWrongType)
	mc, err := f.codec.VerifyMFAChallenge(mfaRaw)
	require.NoError(t, err)
	require.True(t, mc.Allows("sms"))
	require.False(t, mc.Allows("totp"))
}

func TestCodec_Expired(t *testing.T) {
	f := setupCodec(t, token.NewHMACSigner("secret"))

	raw, err := f.codec.Sign(token.SessionClaims{UserID: "u1", SessionID: "s1"}, time.Minute)
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Minute)
	_, err = f.codec.Verify(raw)
	require.ErrorIs(t, err, token.ErrTokenExpired)
	require.True(t, apperrors.IsKind(err, apperrors.KindTokenInvalid))
}

func TestCodec_BadSignature(t *testing.T) {
	f := setupCodec(t, token.NewHMACSigner("secret"))
	other := setupCodec(t, token.NewHMACSigner("another-secret"))

	raw, err := other.codec.Sign(token.SessionClaims{UserID: "u1", SessionID: "s1"}, time.Minute)
	require.NoError(t, err)

	_, err = f.codec.Verify(raw)
	require.ErrorIs(t, err, token.ErrTokenBadSignature)
	require.NotErrorIs(t, err, token.ErrTokenExpired)
}

func TestCodec_Malformed(t *testing.T) {
	f := setupCodec(t, token.NewHMACSigner("secret"))

	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		_, err := f.codec.Verify(raw)
		require.ErrorIs(t, err, token.ErrTokenMalformed, raw)
	}

	raw, err := f.codec.Sign(token.SessionClaims{UserID: "u1", SessionID: "s1"}, time.Minute)
	require.NoError(t, err)
	parts := strings.Split(raw, ".")
	_, err = f.codec.Verify(parts[0] + ".e30." + parts[2])
	require.Error(t, err)
	require.NotErrorIs(t, err, token.ErrTokenExpired)
}

func TestCodec_SignWithoutKey(t *testing.T) {
	f := setupCodec(t, token.NewHMACSigner(""))

	_, err := f.codec.Sign(token.SessionClaims{UserID: "u1", SessionID: "s1"}, time.Minute)
	require.ErrorIs(t, err, token.ErrSigningKeyUnavailable)
}

func TestCodec_RejectsNonPositiveTTL(t *testing.T) {
	f := setupCodec(t, token.NewHMACSigner("secret"))
	_, err := f.codec.Sign(token.SessionClaims{UserID: "u1", SessionID: "s1"}, 0)
	require.Error(t, err)
}

func TestCodec_KeyPairSigners(t *testing.T) {
	rsaKP, err := token.GenerateRSAKeyPair("rsa", 2048)
	require.NoError(t, err)
	ecKP, err := token.GenerateECDSAKeyPair("ec")
	require.NoError(t, err)

	for _, kp := range []*token.KeyPair{rsaKP, ecKP} {
		t.Run(kp.Algorithm, func(t *testing.T) {
			pemData, err := kp.ExportPrivateKeyPEM()
			require.NoError(t, err)
			loaded, err := token.LoadKeyPairFromPEM(kp.KeyID, pemData)
			require.NoError(t, err)
			require.Equal(t, kp.Algorithm, loaded.Algorithm)

			f := setupCodec(t, token.NewKeyPairSigner(loaded))
			raw, err := f.codec.Sign(token.SessionClaims{UserID: "u1", SessionID: "s1"}, time.Minute)
			require.NoError(t, err)
			_, err = f.codec.VerifySession(raw)
			require.NoError(t, err)

			hmac := setupCodec(t, token.NewHMACSigner("secret"))
			_, err = hmac.codec.Verify(raw)
			require.ErrorIs(t, err, token.ErrTokenBadSignature)
		})
	}
}

func TestCodec_WrongIssuerRejected(t *testing.T) {
	signer := token.NewHMACSigner("secret")
	f := setupCodec(t, signer)
	other, err := token.NewCodec(signer, token.WithIssuer("someone-else"))
	require.NoError(t, err)

	raw, err := other.Sign(token.SessionClaims{UserID: "u1", SessionID: "s1"}, time.Hour)
	require.NoError(t, err)
	_, err = f.codec.Verify(raw)
	require.Error(t, err)
}
