package kvstore

import (
	"context"
	"time"

	"github.com/jrsteele09/go-session-server/internal/config"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultOpTimeout = 2 * time.Second

// compareAndSwapScript swaps KEYS[1] from ARGV[1] to ARGV[2] keeping the
// remaining PTTL. Returns 1 on swap and 0 otherwise.
var compareAndSwapScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur or cur ~= ARGV[1] then
	return 0
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ttl)
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// compareAndSetScript swaps KEYS[1] from ARGV[1] to ARGV[2] with a PX of
// ARGV[3] milliseconds. Returns 1 on swap and 0 otherwise.
var compareAndSetScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur or cur ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// incrementScript bumps KEYS[1] and sets a PX of ARGV[1] milliseconds when
// the counter was just created.
var incrementScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

type RedisStore struct {
	client    redis.UniversalClient
	opTimeout time.Duration
}

var _ Store = (*RedisStore)(nil)

type RedisOption func(*RedisStore)

// WithOpTimeout bounds every backend call.
func WithOpTimeout(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("[NewRedisStore] redis client is required")
	}
	s := &RedisStore{client: client, opTimeout: defaultOpTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dial connects to the Redis server described by cfg and checks it responds.
func Dial(ctx context.Context, cfg config.StoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.GetRedisPassword(),
		DB:           cfg.GetRedisDB(),
		ReadTimeout:  cfg.GetStoreTimeout(),
		WriteTimeout: cfg.GetStoreTimeout(),
	})
	s, err := NewRedisStore(client, WithOpTimeout(cfg.GetStoreTimeout()))
	if err != nil {
		return nil, err
	}
	if err := s.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func backendError(err error, op string) error {
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	return apperrors.BackendUnavailable(errors.Wrap(err, op))
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	b, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, backendError(err, "[RedisStore.Get]")
	}
	return b, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return backendError(err, "[RedisStore.Set]")
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return backendError(err, "[RedisStore.Delete]")
	}
	return nil
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	d, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, backendError(err, "[RedisStore.TTL]")
	}
	// go-redis reports -2 (missing) and -1 (no expiry) unscaled
	switch {
	case d == -2:
		return 0, ErrNotFound
	case d < 0:
		return NoExpiry, nil
	}
	return d, nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ok, err := s.client.PExpire(ctx, key, ttl).Result()
	if err != nil {
		return backendError(err, "[RedisStore.Expire]")
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Take(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	b, err := s.client.GetDel(ctx, key).Bytes()
	if err != nil {
		return nil, backendError(err, "[RedisStore.Take]")
	}
	return b, nil
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, key string, expected, value []byte) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := compareAndSwapScript.Run(ctx, s.client, []string{key}, expected, value).Int()
	if err != nil {
		return false, backendError(err, "[RedisStore.CompareAndSwap]")
	}
	return n == 1, nil
}

func (s *RedisStore) CompareAndSet(ctx context.Context, key string, expected, value []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.New("[RedisStore.CompareAndSet] ttl must be positive")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := compareAndSetScript.Run(ctx, s.client, []string{key}, expected, value, ttl.Milliseconds()).Int()
	if err != nil {
		return false, backendError(err, "[RedisStore.CompareAndSet]")
	}
	return n == 1, nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, errors.New("[RedisStore.Increment] ttl must be positive")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := incrementScript.Run(ctx, s.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, backendError(err, "[RedisStore.Increment]")
	}
	return n, nil
}

func (s *RedisStore) SetAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.client.SAdd(ctx, key, toAny(members)...).Err(); err != nil {
		return backendError(err, "[RedisStore.SetAdd]")
	}
	return nil
}

func (s *RedisStore) SetRemove(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.client.SRem(ctx, key, toAny(members)...).Result()
	if err != nil {
		return 0, backendError(err, "[RedisStore.SetRemove]")
	}
	return n, nil
}

func (s *RedisStore) SetMembers(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, backendError(err, "[RedisStore.SetMembers]")
	}
	return members, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return backendError(err, "[RedisStore.Ping]")
	}
	return nil
}

func toAny(members []string) []any {
	out := make([]any, len(members))
	for i, m := range members {
		out[i] = m
	}
	return out
}
