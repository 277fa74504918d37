package kvstore_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/kvstore"
	"github.com/jrsteele09/go-session-server/kvstore/memstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type storeFixture struct {
	store   kvstore.Store
	advance func(time.Duration)
}

func redisFixture(t *testing.T) storeFixture {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s, err := kvstore.NewRedisStore(client, kvstore.WithOpTimeout(time.Second))
	require.NoError(t, err)
	return storeFixture{store: s, advance: mr.FastForward}
}

func memFixture(t *testing.T) storeFixture {
	var mu sync.Mutex
	now := time.Unix(1700000000, 0)
	s := memstore.New(memstore.WithNowFunc(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}))
	return storeFixture{store: s, advance: func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}}
}

func forEachStore(t *testing.T, fn func(t *testing.T, f storeFixture)) {
	t.Run("redis", func(t *testing.T) { fn(t, redisFixture(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, memFixture(t)) })
}

func TestStore_GetSetDelete(t *testing.T) {
	forEachStore(t, func(t *testing.T, f storeFixture) {
		ctx := context.Background()
		_, err := f.store.Get(ctx, "missing")
		require.ErrorIs(t, err, kvstore.ErrNotFound)

		require.NoError(t, f.store.Set(ctx, "k", []byte("v"), kvstore.NoExpiry))
		got, err := f.store.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, []byte("v"), got)

		ttl, err := f.store.TTL(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, kvstore.NoExpiry, ttl)

		require.NoError(t, f.store.Delete(ctx, "k", "never-existed"))
		_, err = f.store.Get(ctx, "k")
		require.ErrorIs(t, err, kvstore.ErrNotFound)
	})
}

func TestStore_TTLExpiry(t *testing.T) {
	forEachStore(t, func(t *testing.T, f storeFixture) {
		ctx := context.Background()
		require.NoError(t, f.store.Set(ctx, "k", []byte("v"), time.Minute))

		ttl, err := f.store.TTL(ctx, "k")
		require.NoError(t, err)
		require.InDelta(t, time.Minute, ttl, float64(time.Second))

		require.NoError(t, f.store.Expire(ctx, "k", 2*time.Minute))
		f.advance(90 * time.Second)
		_, err = f.store.Get(ctx, "k")
		require.NoError(t, err)

		f.advance(time.Minute)
		_, err = f.store.Get(ctx, "k")
		require.ErrorIs(t, err, kvstore.ErrNotFound)
		_, err = f.store.TTL(ctx, "k")
		require.ErrorIs(t, err, kvstore.ErrNotFound)
		require.ErrorIs(t, f.store.Expire(ctx, "k", time.Minute), kvstore.ErrNotFound)
	})
}

func TestStore_Take(t *testing.T) {
	forEachStore(t, func(t *testing.T, f storeFixture) {
		ctx := context.Background()
		require.NoError(t, f.store.Set(ctx, "state", []byte("x"), time.Minute))

		got, err := f.store.Take(ctx, "state")
		require.NoError(t, err)
		require.Equal(t, []byte("x"), got)

		_, err = f.store.Take(ctx, "state")
		require.ErrorIs(t, err, kvstore.ErrNotFound)
	})
}

func TestStore_CompareAndSwap(t *testing.T) {
	forEachStore(t, func(t *testing.T, f storeFixture) {
		ctx := context.Background()
		ok, err := f.store.CompareAndSwap(ctx, "code", []byte("a"), []byte("b"))
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, f.store.Set(ctx, "code", []byte("a"), 10*time.Minute))
		f.advance(time.Minute)

		ok, err = f.store.CompareAndSwap(ctx, "code", []byte("a"), []byte("b"))
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = f.store.CompareAndSwap(ctx, "code", []byte("a"), []byte("c"))
		require.NoError(t, err)
		require.False(t, ok)

		got, err := f.store.Get(ctx, "code")
		require.NoError(t, err)
		require.Equal(t, []byte("b"), got)

		ttl, err := f.store.TTL(ctx, "code")
		require.NoError(t, err)
		require.LessOrEqual(t, ttl, 9*time.Minute)
		require.Greater(t, ttl, 8*time.Minute)
	})
}

func TestStore_CompareAndSwapConcurrent(t *testing.T) {
	forEachStore(t, func(t *testing.T, f storeFixture) {
		ctx := context.Background()
		require.NoError(t, f.store.Set(ctx, "code", []byte("unused"), time.Minute))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := f.store.CompareAndSwap(ctx, "code", []byte("unused"), []byte("used"))
				if err == nil && ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, int32(1), wins.Load())
	})
}

func TestStore_CompareAndSet(t *testing.T) {
	forEachStore(t, func(t *testing.T, f storeFixture) {
		ctx := context.Background()
		ok, err := f.store.CompareAndSet(ctx, "rec", []byte("a"), []byte("b"), time.Minute)
		require.NoError(t, err)
		require.False(t, ok)
		_, err = f.store.Get(ctx, "rec")
		require.ErrorIs(t, err, kvstore.ErrNotFound)

		require.NoError(t, f.store.Set(ctx, "rec", []byte("a"), time.Minute))
		ok, err = f.store.CompareAndSet(ctx, "rec", []byte("a"), []byte("b"), 10*time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		ttl, err := f.store.TTL(ctx, "rec")
		require.NoError(t, err)
		require.InDelta(t, 10*time.Minute, ttl, float64(time.Second))

		ok, err = f.store.CompareAndSet(ctx, "rec", []byte("a"), []byte("c"), time.Hour)
		require.NoError(t, err)
		require.False(t, ok)
		got, err := f.store.Get(ctx, "rec")
		require.NoError(t, err)
		require.Equal(t, []byte("b"), got)
	})
}

func TestStore_Increment(t *testing.T) {
	forEachStore(t, func(t *testing.T, f storeFixture) {
		ctx := context.Background()
		for want := int64(1); want <= 3; want++ {
			n, err := f.store.Increment(ctx, "attempts", time.Minute)
			require.NoError(t, err)
			require.Equal(t, want, n)
		}

		// only the creating call sets the TTL
		f.advance(40 * time.Second)
		_, err := f.store.Increment(ctx, "attempts", time.Minute)
		require.NoError(t, err)
		f.advance(30 * time.Second)

		n, err := f.store.Increment(ctx, "attempts", time.Minute)
		require.NoError(t, err)
		require.Equal(t, int64(1), n)
	})
}

func TestStore_IncrementConcurrent(t *testing.T) {
	forEachStore(t, func(t *testing.T, f storeFixture) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = f.store.Increment(ctx, "attempts", time.Minute)
			}()
		}
		wg.Wait()

		n, err := f.store.Increment(ctx, "attempts", time.Minute)
		require.NoError(t, err)
		require.Equal(t, int64(21), n)
	})
}

func TestStore_Sets(t *testing.T) {
	forEachStore(t, func(t *testing.T, f storeFixture) {
		ctx := context.Background()
		members, err := f.store.SetMembers(ctx, "set")
		require.NoError(t, err)
		require.Empty(t, members)

		require.NoError(t, f.store.SetAdd(ctx, "set", "a", "b", "c"))
		members, err = f.store.SetMembers(ctx, "set")
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"a", "b", "c"}, members)

		n, err := f.store.SetRemove(ctx, "set", "a", "z")
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		n, err = f.store.SetRemove(ctx, "set", "a")
		require.NoError(t, err)
		require.Equal(t, int64(0), n)

		require.NoError(t, f.store.Expire(ctx, "set", time.Minute))
		f.advance(2 * time.Minute)
		members, err = f.store.SetMembers(ctx, "set")
		require.NoError(t, err)
		require.Empty(t, members)
	})
}

func TestRedisStore_UnreachableIsBackendUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	s, err := kvstore.NewRedisStore(client, kvstore.WithOpTimeout(200*time.Millisecond))
	require.NoError(t, err)
	mr.Close()

	_, err = s.Get(context.Background(), "k")
	require.Error(t, err)
	require.NotErrorIs(t, err, kvstore.ErrNotFound)
	require.True(t, apperrors.IsKind(err, apperrors.KindBackendUnavailable))
	require.True(t, apperrors.IsKind(s.Ping(context.Background()), apperrors.KindBackendUnavailable))
}

func TestNewRedisStore_RequiresClient(t *testing.T) {
	_, err := kvstore.NewRedisStore(nil)
	require.Error(t, err)
}
