package users_test

import (
	"context"
	"testing"

	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/users"
	fakeuserrepo "github.com/jrsteele09/go-session-server/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestValidEmail(t *testing.T) {
	require.True(t, users.ValidEmail("alice@example.com"))
	require.False(t, users.ValidEmail("alice"))
	require.False(t, users.ValidEmail("alice@localhost"))
	require.False(t, users.ValidEmail("Alice <alice@example.com>"))
	require.False(t, users.ValidEmail(""))
	require.Equal(t, "alice@example.com", users.NormalizeEmail("  Alice@Example.COM "))
}

func TestFakeUserRepo(t *testing.T) {
	ctx := context.Background()
	repo := fakeuserrepo.NewFakeUserRepo()

	u := &users.User{Email: "alice@example.com", PasswordHash: "h"}
	require.NoError(t, repo.Create(ctx, u))
	require.NotEmpty(t, u.ID)

	err := repo.Create(ctx, &users.User{Email: "alice@example.com"})
	require.True(t, apperrors.IsKind(err, apperrors.KindConflict))
	require.ErrorIs(t, err, apperrors.ErrUserExists)

	got, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	got.Blocked = true
	again, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, again.Blocked, "repo hands out copies")

	require.NoError(t, repo.Update(ctx, got))
	again, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, again.Blocked)

	_, err = repo.GetByID(ctx, "missing")
	require.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)

	err = repo.Update(ctx, &users.User{ID: "missing"})
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestMFAAuth(t *testing.T) {
	require.False(t, (&users.User{}).MFAAuth())
	require.False(t, (&users.User{MFType: users.MFNone}).MFAAuth())
	require.True(t, (&users.User{MFType: users.MFAuthenticator}).MFAAuth())
	require.False(t, (&users.User{}).HasPassword())
}
