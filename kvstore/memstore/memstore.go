// Package memstore is an in-process kvstore.Store used for tests and for
// running the server without Redis.
package memstore

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-server/kvstore"
	"github.com/pkg/errors"
)

var _ kvstore.Store = (*MemStore)(nil)

type entry struct {
	value     []byte
	set       map[string]struct{}
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type MemStore struct {
	entries map[string]*entry
	nowFunc func() time.Time
	lock    sync.Mutex

	// FailWith, when set, is returned by every call. Lets tests simulate an
	// unreachable backend.
	FailWith error
}

type Option func(*MemStore)

func WithNowFunc(f func() time.Time) Option {
	return func(m *MemStore) {
		m.nowFunc = f
	}
}

func New(opts ...Option) *MemStore {
	m := &MemStore{
		entries: make(map[string]*entry),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// lookup returns the live entry for key, dropping it if it has expired.
// Callers hold the lock.
func (m *MemStore) lookup(key string) (*entry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(m.nowFunc()) {
		delete(m.entries, key)
		return nil, false
	}
	return e, true
}

func (m *MemStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.nowFunc().Add(ttl)
}

func (m *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	e, ok := m.lookup(key)
	if !ok || e.set != nil {
		return nil, kvstore.ErrNotFound
	}
	return bytes.Clone(e.value), nil
}

func (m *MemStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.entries[key] = &entry{value: bytes.Clone(value), expiresAt: m.expiry(ttl)}
	return nil
}

func (m *MemStore) Delete(_ context.Context, keys ...string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *MemStore) TTL(_ context.Context, key string) (time.Duration, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.FailWith != nil {
		return 0, m.FailWith
	}
	e, ok := m.lookup(key)
	if !ok {
		return 0, kvstore.ErrNotFound
	}
	if e.expiresAt.IsZero() {
		return kvstore.NoExpiry, nil
	}
	return e.expiresAt.Sub(m.nowFunc()), nil
}

func (m *MemStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	e, ok := m.lookup(key)
	if !ok {
		return kvstore.ErrNotFound
	}
	if ttl <= 0 {
		delete(m.entries, key)
		return nil
	}
	e.expiresAt = m.expiry(ttl)
	return nil
}

func (m *MemStore) Take(_ context.Context, key string) ([]byte, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	e, ok := m.lookup(key)
	if !ok || e.set != nil {
		return nil, kvstore.ErrNotFound
	}
	delete(m.entries, key)
	return e.value, nil
}

func (m *MemStore) CompareAndSwap(_ context.Context, key string, expected, value []byte) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.FailWith != nil {
		return false, m.FailWith
	}
	e, ok := m.lookup(key)
	if !ok || e.set != nil || !bytes.Equal(e.value, expected) {
		return false, nil
	}
	e.value = bytes.Clone(value)
	return true, nil
}

func (m *MemStore) CompareAndSet(_ context.Context, key string, expected, value []byte, ttl time.Duration) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.FailWith != nil {
		return false, m.FailWith
	}
	e, ok := m.lookup(key)
	if !ok || e.set != nil || !bytes.Equal(e.value, expected) {
		return false, nil
	}
	e.value = bytes.Clone(value)
	e.expiresAt = m.expiry(ttl)
	return true, nil
}

func (m *MemStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.FailWith != nil {
		return 0, m.FailWith
	}
	var n int64
	e, ok := m.lookup(key)
	if ok {
		if e.set != nil {
			return 0, errors.New("memstore: increment on a set")
		}
		parsed, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, errors.Wrap(err, "memstore: increment on a non-integer value")
		}
		n = parsed
	} else {
		e = &entry{expiresAt: m.expiry(ttl)}
		m.entries[key] = e
	}
	n++
	e.value = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func (m *MemStore) SetAdd(_ context.Context, key string, members ...string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	e, ok := m.lookup(key)
	if !ok {
		e = &entry{set: make(map[string]struct{})}
		m.entries[key] = e
	}
	if e.set == nil {
		e.set = make(map[string]struct{})
		e.value = nil
	}
	for _, mem := range members {
		e.set[mem] = struct{}{}
	}
	return nil
}

func (m *MemStore) SetRemove(_ context.Context, key string, members ...string) (int64, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.FailWith != nil {
		return 0, m.FailWith
	}
	e, ok := m.lookup(key)
	if !ok || e.set == nil {
		return 0, nil
	}
	var removed int64
	for _, mem := range members {
		if _, ok := e.set[mem]; ok {
			delete(e.set, mem)
			removed++
		}
	}
	if len(e.set) == 0 {
		delete(m.entries, key)
	}
	return removed, nil
}

func (m *MemStore) SetMembers(_ context.Context, key string) ([]string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	e, ok := m.lookup(key)
	if !ok || e.set == nil {
		return []string{}, nil
	}
	out := make([]string, 0, len(e.set))
	for mem := range e.set {
		out = append(out, mem)
	}
	return out, nil
}

func (m *MemStore) Ping(context.Context) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.FailWith
}

// Exists reports whether key is physically present, ignoring expiry. Tests
// use it to check that lazily expired records get cleaned up.
func (m *MemStore) Exists(key string) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	_, ok := m.entries[key]
	return ok
}
