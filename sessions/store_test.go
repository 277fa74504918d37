package sessions_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/kvstore"
	"github.com/jrsteele09/go-session-server/kvstore/memstore"
	"github.com/jrsteele09/go-session-server/sessions"
	"github.com/jrsteele09/go-session-server/token"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testFixture struct {
	ctx   context.Context
	clock *testClock
	kv    *memstore.MemStore
	codec *token.Codec
	store *sessions.Store
}

func setupTestFixture(t *testing.T) *testFixture {
	clock := &testClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	kv := memstore.New(memstore.WithNowFunc(clock.Now))
	codec, err := token.NewCodec(token.NewHMACSigner("test-secret"), token.WithNowFunc(clock.Now))
	require.NoError(t, err)
	store, err := sessions.NewStore(kv, codec, sessions.WithNowFunc(clock.Now))
	require.NoError(t, err)
	return &testFixture{ctx: context.Background(), clock: clock, kv: kv, codec: codec, store: store}
}

func (f *testFixture) create(t *testing.T, userID string) *sessions.Session {
	s, err := f.store.CreateSession(f.ctx, userID, "laptop", "10.0.0.1", "test-agent")
	require.NoError(t, err)
	return s
}

func TestNewStore_RequiresDependencies(t *testing.T) {
	codec, err := token.NewCodec(token.NewHMACSigner("k"))
	require.NoError(t, err)
	_, err = sessions.NewStore(nil, codec)
	require.Error(t, err)
	_, err = sessions.NewStore(memstore.New(), nil)
	require.Error(t, err)
}

func TestCreateSession_ThenGet(t *testing.T) {
	f := setupTestFixture(t)

	created := f.create(t, "u1")
	require.NotEmpty(t, created.ID)
	require.NotEmpty(t, created.Token)
	require.True(t, created.IsActive)
	require.True(t, created.ExpiresAt.Equal(f.clock.Now().Add(24*time.Hour)))

	got, err := f.store.GetSession(f.ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, created.UserID, got.UserID)
	require.Equal(t, created.Token, got.Token)
	require.Equal(t, created.DeviceInfo, got.DeviceInfo)
	require.Equal(t, created.IPAddress, got.IPAddress)
	require.Equal(t, created.UserAgent, got.UserAgent)
	require.True(t, created.CreatedAt.Equal(got.CreatedAt))
	require.True(t, created.ExpiresAt.Equal(got.ExpiresAt))

	claims, err := f.codec.VerifySession(created.Token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, created.ID, claims.SessionID)

	ttl, err := f.kv.TTL(f.ctx, "session:"+created.ID)
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, ttl)
	members, err := f.kv.SetMembers(f.ctx, "user_sessions:u1")
	require.NoError(t, err)
	require.Equal(t, []string{created.ID}, members)
}

func TestCreateSession_RequiresUser(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.store.CreateSession(f.ctx, "", "", "", "")
	require.True(t, apperrors.IsKind(err, apperrors.KindValidationFailed))
}

func TestGetSession_Unknown(t *testing.T) {
	f := setupTestFixture(t)
	got, err := f.store.GetSession(f.ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestGetSession_LazyExpiryCleansUp(t *testing.T) {
	f := setupTestFixture(t)
	s := f.create(t, "u1")

	// Push the backend TTL past the logical expiry so the record is still
	// physically present when the session is read.
	require.NoError(t, f.kv.Expire(f.ctx, "session:"+s.ID, 48*time.Hour))
	f.clock.Advance(24 * time.Hour)

	got, err := f.store.GetSession(f.ctx, s.ID)
	require.NoError(t, err)
	require.Nil(t, got)
	require.False(t, f.kv.Exists("session:"+s.ID))

	members, err := f.kv.SetMembers(f.ctx, "user_sessions:u1")
	require.NoError(t, err)
	require.Empty(t, members)

	// idempotent under repeated reads
	got, err = f.store.GetSession(f.ctx, s.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestGetSession_AliveJustBeforeExpiry(t *testing.T) {
	f := setupTestFixture(t)
	s := f.create(t, "u1")

	f.clock.Advance(24*time.Hour - time.Second)
	got, err := f.store.GetSession(f.ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	f.clock.Advance(time.Second)
	got, err = f.store.GetSession(f.ctx, s.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestGetSession_BackendFailure(t *testing.T) {
	f := setupTestFixture(t)
	s := f.create(t, "u1")

	f.kv.FailWith = apperrors.BackendUnavailable(errors.New("connection refused"))
	got, err := f.store.GetSession(f.ctx, s.ID)
	require.Nil(t, got)
	require.True(t, apperrors.IsKind(err, apperrors.KindBackendUnavailable))
}

func TestGetSessionByToken(t *testing.T) {
	f := setupTestFixture(t)
	s := f.create(t, "u1")

	got, err := f.store.GetSessionByToken(f.ctx, s.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, s.ID, got.ID)

	t.Run("garbage token", func(t *testing.T) {
		got, err := f.store.GetSessionByToken(f.ctx, "garbage")
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("token from another key", func(t *testing.T) {
		other, err := token.NewCodec(token.NewHMACSigner("other"), token.WithNowFunc(f.clock.Now))
		require.NoError(t, err)
		forged, err := other.Sign(token.SessionClaims{UserID: "u1", SessionID: s.ID}, time.Hour)
		require.NoError(t, err)
		got, err := f.store.GetSessionByToken(f.ctx, forged)
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("token claiming another user", func(t *testing.T) {
		forged, err := f.codec.Sign(token.SessionClaims{UserID: "u2", SessionID: s.ID}, time.Hour)
		require.NoError(t, err)
		got, err := f.store.GetSessionByToken(f.ctx, forged)
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("wrong token type", func(t *testing.T) {
		reset, err := f.codec.Sign(token.PasswordResetClaims{UserID: "u1", TokenID: s.ID}, time.Hour)
		require.NoError(t, err)
		got, err := f.store.GetSessionByToken(f.ctx, reset)
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("invalidated session", func(t *testing.T) {
		require.NoError(t, f.store.InvalidateSession(f.ctx, s.ID))
		got, err := f.store.GetSessionByToken(f.ctx, s.Token)
		require.NoError(t, err)
		require.Nil(t, got)
	})
}

func TestListUserSessions_SelfHeals(t *testing.T) {
	f := setupTestFixture(t)
	first := f.create(t, "u1")
	f.clock.Advance(time.Minute)
	second := f.create(t, "u1")
	f.clock.Advance(time.Minute)
	third := f.create(t, "u1")
	f.create(t, "u2")

	// simulate a record vanishing behind the index's back
	require.NoError(t, f.kv.Delete(f.ctx, "session:"+second.ID))

	list, err := f.store.ListUserSessions(f.ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, third.ID, list[0].ID)
	require.Equal(t, first.ID, list[1].ID)

	members, err := f.kv.SetMembers(f.ctx, "user_sessions:u1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{first.ID, third.ID}, members)

	for _, info := range list {
		got, err := f.store.GetSession(f.ctx, info.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
	}
}

func TestInvalidateSession_Idempotent(t *testing.T) {
	f := setupTestFixture(t)
	s := f.create(t, "u1")

	require.NoError(t, f.store.InvalidateSession(f.ctx, s.ID))
	require.NoError(t, f.store.InvalidateSession(f.ctx, s.ID))
	require.NoError(t, f.store.InvalidateSession(f.ctx, "never-existed"))

	got, err := f.store.GetSession(f.ctx, s.ID)
	require.NoError(t, err)
	require.Nil(t, got)
	members, err := f.kv.SetMembers(f.ctx, "user_sessions:u1")
	require.NoError(t, err)
	require.Empty(t, members)
}

func TestInvalidateAllUserSessions(t *testing.T) {
	f := setupTestFixture(t)
	a := f.create(t, "u1")
	b := f.create(t, "u1")
	other := f.create(t, "u2")

	require.NoError(t, f.store.InvalidateAllUserSessions(f.ctx, "u1"))
	for _, id := range []string{a.ID, b.ID} {
		got, err := f.store.GetSession(f.ctx, id)
		require.NoError(t, err)
		require.Nil(t, got)
	}
	require.False(t, f.kv.Exists("user_sessions:u1"))

	got, err := f.store.GetSession(f.ctx, other.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, f.store.InvalidateAllUserSessions(f.ctx, "u1"))
}

func TestInvalidateOtherSessions(t *testing.T) {
	f := setupTestFixture(t)
	keep := f.create(t, "u1")
	f.create(t, "u1")
	f.create(t, "u1")

	require.NoError(t, f.store.InvalidateOtherSessions(f.ctx, "u1", keep.ID))
	list, err := f.store.ListUserSessions(f.ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, keep.ID, list[0].ID)
}

func TestCheckConcurrentSessionLimit(t *testing.T) {
	f := setupTestFixture(t)

	ok, err := f.store.CheckConcurrentSessionLimit(f.ctx, "u1", 5)
	require.NoError(t, err)
	require.True(t, ok)

	f.create(t, "u1")
	ok, err = f.store.CheckConcurrentSessionLimit(f.ctx, "u1", 5)
	require.NoError(t, err)
	require.True(t, ok)

	for i := 0; i < 4; i++ {
		f.create(t, "u1")
	}
	ok, err = f.store.CheckConcurrentSessionLimit(f.ctx, "u1", 5)
	require.NoError(t, err)
	require.False(t, ok)

	// expired sessions do not count
	f.clock.Advance(25 * time.Hour)
	ok, err = f.store.CheckConcurrentSessionLimit(f.ctx, "u1", 5)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestExtendSession(t *testing.T) {
	f := setupTestFixture(t)
	s := f.create(t, "u1")

	// leave ten minutes on the clock
	f.clock.Advance(24*time.Hour - 10*time.Minute)
	extended, err := f.store.ExtendSession(f.ctx, s.ID, 30*time.Minute)
	require.NoError(t, err)
	require.True(t, extended.ExpiresAt.Equal(f.clock.Now().Add(40*time.Minute)))

	got, err := f.store.GetSession(f.ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.ExpiresAt.Equal(f.clock.Now().Add(40*time.Minute)))

	ttl, err := f.kv.TTL(f.ctx, "session:"+s.ID)
	require.NoError(t, err)
	require.Equal(t, 40*time.Minute, ttl)

	// the extended session is still reachable through its token
	f.clock.Advance(30 * time.Minute)
	got, err = f.store.GetSessionByToken(f.ctx, s.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestExtendSession_CappedAtMaxLifetime(t *testing.T) {
	f := setupTestFixture(t)
	s := f.create(t, "u1")

	extended, err := f.store.ExtendSession(f.ctx, s.ID, 30*24*time.Hour)
	require.NoError(t, err)
	require.True(t, extended.ExpiresAt.Equal(s.CreatedAt.Add(sessions.DefaultMaxLifetime)))
}

func TestExtendSession_Missing(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.store.ExtendSession(f.ctx, "missing", time.Minute)
	require.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

// hookedStore runs afterGet once, right after the first read of hookKey.
type hookedStore struct {
	kvstore.Store
	hookKey  string
	afterGet func()
}

func (h *hookedStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := h.Store.Get(ctx, key)
	if hook := h.afterGet; key == h.hookKey && hook != nil {
		h.afterGet = nil
		hook()
	}
	return data, err
}

func TestExtendSession_RacingLogoutAllStaysLoggedOut(t *testing.T) {
	f := setupTestFixture(t)
	s := f.create(t, "u1")

	hooked := &hookedStore{Store: f.kv, hookKey: "session:" + s.ID}
	store, err := sessions.NewStore(hooked, f.codec, sessions.WithNowFunc(f.clock.Now))
	require.NoError(t, err)
	hooked.afterGet = func() {
		require.NoError(t, store.InvalidateAllUserSessions(f.ctx, "u1"))
	}

	_, err = store.ExtendSession(f.ctx, s.ID, 30*time.Minute)
	require.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	got, err := store.GetSessionByToken(f.ctx, s.Token)
	require.NoError(t, err)
	require.Nil(t, got)
	require.False(t, f.kv.Exists("session:"+s.ID))
}

func TestExtendSession_RacingExtendRetries(t *testing.T) {
	f := setupTestFixture(t)
	s := f.create(t, "u1")

	hooked := &hookedStore{Store: f.kv, hookKey: "session:" + s.ID}
	store, err := sessions.NewStore(hooked, f.codec, sessions.WithNowFunc(f.clock.Now))
	require.NoError(t, err)
	hooked.afterGet = func() {
		_, err := store.ExtendSession(f.ctx, s.ID, time.Hour)
		require.NoError(t, err)
	}

	extended, err := store.ExtendSession(f.ctx, s.ID, 30*time.Minute)
	require.NoError(t, err)
	require.True(t, extended.ExpiresAt.Equal(s.ExpiresAt.Add(90*time.Minute)))

	list, err := store.ListUserSessions(f.ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestCreateSession_IndexFailureLeavesNothing(t *testing.T) {
	f := setupTestFixture(t)
	failing := &failingTTLStore{Store: f.kv}
	store, err := sessions.NewStore(failing, f.codec, sessions.WithNowFunc(f.clock.Now))
	require.NoError(t, err)

	_, err = store.CreateSession(f.ctx, "u1", "laptop", "10.0.0.1", "ua")
	require.True(t, apperrors.IsKind(err, apperrors.KindBackendUnavailable))

	members, err := f.kv.SetMembers(f.ctx, "user_sessions:u1")
	require.NoError(t, err)
	require.Empty(t, members)
	list, err := f.store.ListUserSessions(f.ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, list)
}

// failingTTLStore fails every TTL lookup.
type failingTTLStore struct {
	kvstore.Store
}

func (s *failingTTLStore) TTL(context.Context, string) (time.Duration, error) {
	return 0, apperrors.BackendUnavailable(errors.New("connection reset"))
}

func TestUpdateActivity(t *testing.T) {
	f := setupTestFixture(t)
	s := f.create(t, "u1")

	updated, err := f.store.UpdateActivity(f.ctx, s.ID)
	require.NoError(t, err)
	require.True(t, updated.ExpiresAt.Equal(s.ExpiresAt.Add(30*time.Minute)))
}

func TestGetSessionStats(t *testing.T) {
	f := setupTestFixture(t)

	stats, err := f.store.GetSessionStats(f.ctx, "u1")
	require.NoError(t, err)
	require.Zero(t, stats.TotalSessions)
	require.Nil(t, stats.OldestSession)
	require.Nil(t, stats.NewestSession)

	oldest := f.create(t, "u1")
	f.clock.Advance(time.Hour)
	gone := f.create(t, "u1")
	f.clock.Advance(time.Hour)
	newest := f.create(t, "u1")
	require.NoError(t, f.kv.Delete(f.ctx, "session:"+gone.ID))

	stats, err = f.store.GetSessionStats(f.ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalSessions)
	require.Equal(t, 2, stats.ActiveSessions)
	require.Equal(t, oldest.ID, stats.OldestSession.ID)
	require.Equal(t, newest.ID, stats.NewestSession.ID)
}

func TestConcurrentLazyExpiry(t *testing.T) {
	f := setupTestFixture(t)
	s := f.create(t, "u1")
	require.NoError(t, f.kv.Expire(f.ctx, "session:"+s.ID, 48*time.Hour))
	f.clock.Advance(25 * time.Hour)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.store.GetSession(f.ctx, s.ID)
			if err != nil {
				errs <- err
				return
			}
			if got != nil {
				errs <- errors.New("expired session returned")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestStore_OnRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	kv, err := kvstore.NewRedisStore(client)
	require.NoError(t, err)
	codec, err := token.NewCodec(token.NewHMACSigner("test-secret"))
	require.NoError(t, err)
	store, err := sessions.NewStore(kv, codec, sessions.WithSessionTTL(time.Hour))
	require.NoError(t, err)
	ctx := context.Background()

	s, err := store.CreateSession(ctx, "u1", "phone", "10.0.0.2", "ua")
	require.NoError(t, err)
	require.Equal(t, time.Hour, mr.TTL("session:"+s.ID))
	require.Equal(t, time.Hour, mr.TTL("user_sessions:u1"))

	_, err = store.ExtendSession(ctx, s.ID, 30*time.Minute)
	require.NoError(t, err)
	require.InDelta(t, 90*time.Minute, mr.TTL("session:"+s.ID), float64(2*time.Second))
	require.InDelta(t, 90*time.Minute, mr.TTL("user_sessions:u1"), float64(2*time.Second))

	got, err := store.GetSessionByToken(ctx, s.Token)
	require.NoError(t, err)
	require.NotNil(t, got)

	// backend TTL elapsing removes the record; the index heals on the next list
	mr.FastForward(2 * time.Hour)
	got, err = store.GetSession(ctx, s.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	s2, err := store.CreateSession(ctx, "u1", "phone", "10.0.0.2", "ua")
	require.NoError(t, err)
	require.NoError(t, client.SAdd(ctx, "user_sessions:u1", "ghost").Err())
	list, err := store.ListUserSessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, s2.ID, list[0].ID)
	members, err := client.SMembers(ctx, "user_sessions:u1").Result()
	require.NoError(t, err)
	require.Equal(t, []string{s2.ID}, members)
}
