// Package kvstore is the key-value backend shared by sessions, MFA state and
// single use tokens. The only process wide mutable state lives behind Store.
package kvstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a key (or its value) does not exist.
var ErrNotFound = errors.New("kvstore: key not found")

// NoExpiry marks a key without a TTL.
const NoExpiry time.Duration = 0

// Store is the set of backend primitives the domain packages rely on. Every
// call is bounded by the implementation's operation timeout and any failure
// other than ErrNotFound is reported as backend unavailable.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value; ttl of NoExpiry keeps the key forever.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// TTL returns the remaining lifetime, NoExpiry for persistent keys and
	// ErrNotFound for missing keys.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Take atomically reads and deletes key.
	Take(ctx context.Context, key string) ([]byte, error)
	// CompareAndSwap replaces the value only when it still equals expected and
	// keeps the key's remaining TTL. It reports whether the swap happened.
	CompareAndSwap(ctx context.Context, key string, expected, value []byte) (bool, error)
	// CompareAndSet is CompareAndSwap that also resets the TTL. A missing key
	// never matches.
	CompareAndSet(ctx context.Context, key string, expected, value []byte, ttl time.Duration) (bool, error)
	// Increment adds one to the counter at key and returns the new value. A
	// counter created by this call expires after ttl.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	SetAdd(ctx context.Context, key string, members ...string) error
	// SetRemove returns the number of members actually removed.
	SetRemove(ctx context.Context, key string, members ...string) (int64, error)
	SetMembers(ctx context.Context, key string) ([]string, error)

	Ping(ctx context.Context) error
}
