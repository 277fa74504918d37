// Package credentials hashes passwords, enforces the strength policy and
// guards against reuse of recent passwords.
package credentials

import (
	"context"
	"time"

	"github.com/jrsteele09/go-session-server/internal/config"
	"github.com/pkg/errors"
)

const DefaultHistoryDepth = 5

type Store struct {
	hasher  *Hasher
	history HistoryRepo
	depth   int
	nowFunc func() time.Time
}

type StoreOption func(*Store)

func WithConfig(cfg config.CredentialConfig) StoreOption {
	return func(s *Store) {
		s.hasher = NewHasher(cfg.GetBcryptCost())
		if d := cfg.GetPasswordHistoryDepth(); d > 0 {
			s.depth = d
		}
	}
}

func WithCost(cost int) StoreOption {
	return func(s *Store) {
		s.hasher = NewHasher(cost)
	}
}

func WithNowFunc(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = now
	}
}

func NewStore(history HistoryRepo, opts ...StoreOption) (*Store, error) {
	if history == nil {
		return nil, errors.New("[NewStore] history repo is required")
	}
	s := &Store{
		hasher:  NewHasher(DefaultCost),
		history: history,
		depth:   DefaultHistoryDepth,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Hash(password string) (string, error) {
	return s.hasher.Hash(password)
}

func (s *Store) Verify(password, hash string) bool {
	return s.hasher.Verify(password, hash)
}

// CheckHistory reports whether newPassword matches any of the user's recent
// password hashes.
func (s *Store) CheckHistory(ctx context.Context, userID, newPassword string) (bool, error) {
	entries, err := s.history.Recent(ctx, userID, s.depth)
	if err != nil {
		return false, errors.Wrap(err, "[Store.CheckHistory]")
	}
	for _, e := range entries {
		if s.hasher.Verify(newPassword, e.PasswordHash) {
			return true, nil
		}
	}
	return false, nil
}

// AppendHistory records hash as the user's newest password.
func (s *Store) AppendHistory(ctx context.Context, userID, hash string) error {
	entry := HistoryEntry{UserID: userID, PasswordHash: hash, CreatedAt: s.nowFunc()}
	if err := s.history.Append(ctx, entry, s.depth); err != nil {
		return errors.Wrap(err, "[Store.AppendHistory]")
	}
	return nil
}
