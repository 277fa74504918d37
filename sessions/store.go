// Package sessions is the source of truth for whether a session is alive and
// who it belongs to. Records live in the key-value backend with a native TTL;
// a per-user id set indexes them and heals itself on read.
package sessions

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-server/internal/config"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/kvstore"
	"github.com/jrsteele09/go-session-server/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSessionTTL        = 24 * time.Hour
	DefaultMaxLifetime       = 7 * 24 * time.Hour
	DefaultActivityExtension = 30 * time.Minute
	DefaultMaxSessions       = 5

	maxExtendAttempts = 3

	sessionKeyPrefix      = "session:"
	userSessionsKeyPrefix = "user_sessions:"
)

// TokenCodec is the part of the token codec the store needs.
type TokenCodec interface {
	Sign(claims token.Claims, ttl time.Duration) (string, error)
	VerifySession(raw string) (token.SessionClaims, error)
}

type Store struct {
	kv                kvstore.Store
	codec             TokenCodec
	ttl               time.Duration
	maxLifetime       time.Duration
	activityExtension time.Duration
	nowFunc           func() time.Time
	logger            zerolog.Logger
}

type StoreOption func(*Store)

// WithConfig applies the session settings from cfg.
func WithConfig(cfg config.SessionConfig) StoreOption {
	return func(s *Store) {
		if ttl := cfg.GetSessionTTL(); ttl > 0 {
			s.ttl = ttl
		}
		if lifetime := cfg.GetSessionMaxLifetime(); lifetime > 0 {
			s.maxLifetime = lifetime
		}
		if ext := cfg.GetActivityExtension(); ext > 0 {
			s.activityExtension = ext
		}
	}
}

func WithSessionTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.ttl = ttl
	}
}

func WithNowFunc(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

func NewStore(kv kvstore.Store, codec TokenCodec, opts ...StoreOption) (*Store, error) {
	if kv == nil {
		return nil, errors.New("[NewStore] key-value store is required")
	}
	if codec == nil {
		return nil, errors.New("[NewStore] token codec is required")
	}
	s := &Store{
		kv:                kv,
		codec:             codec,
		ttl:               DefaultSessionTTL,
		maxLifetime:       DefaultMaxLifetime,
		activityExtension: DefaultActivityExtension,
		nowFunc:           time.Now,
		logger:            log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxLifetime < s.ttl {
		s.maxLifetime = s.ttl
	}
	return s, nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func userSessionsKey(userID string) string {
	return userSessionsKeyPrefix + userID
}

// CreateSession mints a token and persists a new session for userID. It does
// not check the concurrent session limit; callers apply their limit policy
// first.
func (s *Store) CreateSession(ctx context.Context, userID, deviceInfo, ipAddress, userAgent string) (*Session, error) {
	if userID == "" {
		return nil, apperrors.Validation("user id is required", nil)
	}
	now := s.nowFunc()
	id := uuid.NewString()

	// The token outlives the initial TTL so activity extensions stay usable;
	// the record remains the authority on whether the session is alive.
	tok, err := s.codec.Sign(token.SessionClaims{UserID: userID, SessionID: id}, s.maxLifetime)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.CreateSession] sign token")
	}

	session := &Session{
		ID:         id,
		UserID:     userID,
		Token:      tok,
		DeviceInfo: deviceInfo,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
		IsActive:   true,
	}
	if err := s.write(ctx, session, s.ttl); err != nil {
		return nil, errors.Wrap(err, "[Store.CreateSession] write record")
	}

	userKey := userSessionsKey(userID)
	if err := s.kv.SetAdd(ctx, userKey, id); err != nil {
		// an unindexed session cannot be listed or logged out en masse
		_ = s.kv.Delete(context.WithoutCancel(ctx), sessionKey(id))
		return nil, errors.Wrap(err, "[Store.CreateSession] index session")
	}
	if err := s.growIndexTTL(ctx, userKey, s.ttl); err != nil {
		_ = s.remove(context.WithoutCancel(ctx), id, userID)
		return nil, errors.Wrap(err, "[Store.CreateSession] index ttl")
	}

	s.logger.Debug().Str("user_id", userID).Str("session_id", id).Msg("session created")
	return session, nil
}

// GetSession returns the live session for id, or nil when it does not exist,
// has expired or was invalidated. Reading an expired record cleans it up.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, nil
	}
	session, err := s.read(ctx, id)
	if err != nil || session == nil {
		return nil, err
	}
	if !session.IsActive || session.Expired(s.nowFunc()) {
		if err := s.remove(ctx, session.ID, session.UserID); err != nil {
			s.logger.Warn().Err(err).Str("session_id", id).Msg("lazy expiry cleanup failed")
		}
		return nil, nil
	}
	return session, nil
}

// GetSessionByToken resolves a bearer token to its live session. Tokens that
// fail verification, or that do not match the stored record, yield nil
// without an error.
func (s *Store) GetSessionByToken(ctx context.Context, raw string) (*Session, error) {
	claims, err := s.codec.VerifySession(raw)
	if err != nil {
		if errors.Is(err, token.ErrTokenBadSignature) {
			s.logger.Warn().Msg("session token with bad signature presented")
		}
		return nil, nil
	}
	session, err := s.GetSession(ctx, claims.SessionID)
	if err != nil || session == nil {
		return nil, err
	}
	if session.UserID != claims.UserID || subtle.ConstantTimeCompare([]byte(session.Token), []byte(raw)) != 1 {
		return nil, nil
	}
	return session, nil
}

// ListUserSessions returns the user's live sessions, newest first. Index
// entries that no longer resolve are dropped from the index.
func (s *Store) ListUserSessions(ctx context.Context, userID string) ([]Info, error) {
	live, err := s.resolve(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.ListUserSessions]")
	}
	infos := make([]Info, 0, len(live))
	for _, session := range live {
		infos = append(infos, session.Info())
	}
	return infos, nil
}

// InvalidateSession removes the session and its index entry. Invalidating an
// unknown session is not an error.
func (s *Store) InvalidateSession(ctx context.Context, id string) error {
	session, err := s.read(ctx, id)
	if err != nil {
		return errors.Wrap(err, "[Store.InvalidateSession]")
	}
	if session == nil {
		return nil
	}
	if err := s.remove(ctx, id, session.UserID); err != nil {
		return errors.Wrap(err, "[Store.InvalidateSession]")
	}
	s.logger.Debug().Str("user_id", session.UserID).Str("session_id", id).Msg("session invalidated")
	return nil
}

// InvalidateAllUserSessions deletes every indexed record and then the index.
// Each deletion is visible as soon as it lands; there is no global lock.
func (s *Store) InvalidateAllUserSessions(ctx context.Context, userID string) error {
	userKey := userSessionsKey(userID)
	ids, err := s.kv.SetMembers(ctx, userKey)
	if err != nil {
		return errors.Wrap(err, "[Store.InvalidateAllUserSessions] members")
	}
	for _, id := range ids {
		if err := s.kv.Delete(ctx, sessionKey(id)); err != nil {
			return errors.Wrap(err, "[Store.InvalidateAllUserSessions] delete record")
		}
	}
	if err := s.kv.Delete(ctx, userKey); err != nil {
		return errors.Wrap(err, "[Store.InvalidateAllUserSessions] delete index")
	}
	s.logger.Debug().Str("user_id", userID).Int("count", len(ids)).Msg("all sessions invalidated")
	return nil
}

// InvalidateOtherSessions deletes every session of userID except keepID.
func (s *Store) InvalidateOtherSessions(ctx context.Context, userID, keepID string) error {
	userKey := userSessionsKey(userID)
	ids, err := s.kv.SetMembers(ctx, userKey)
	if err != nil {
		return errors.Wrap(err, "[Store.InvalidateOtherSessions] members")
	}
	for _, id := range ids {
		if id == keepID {
			continue
		}
		if err := s.remove(ctx, id, userID); err != nil {
			return errors.Wrap(err, "[Store.InvalidateOtherSessions]")
		}
	}
	return nil
}

// CheckConcurrentSessionLimit reports whether userID may open another session
// without exceeding maxSessions. The check is advisory: concurrent logins can
// each pass it before either session is written.
func (s *Store) CheckConcurrentSessionLimit(ctx context.Context, userID string, maxSessions int) (bool, error) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	live, err := s.resolve(ctx, userID)
	if err != nil {
		return false, errors.Wrap(err, "[Store.CheckConcurrentSessionLimit]")
	}
	return len(live) < maxSessions, nil
}

// ExtendSession moves the session's expiry forward by extension and rewrites
// the backend TTL to match. The expiry never passes the session's maximum
// lifetime. The rewrite only lands on the exact record that was read, so an
// extension racing an invalidation reports NotFound instead of bringing the
// session back without its index entry. Concurrent extensions retry.
func (s *Store) ExtendSession(ctx context.Context, id string, extension time.Duration) (*Session, error) {
	for range maxExtendAttempts {
		session, swapped, err := s.tryExtend(ctx, id, extension)
		if err != nil {
			return nil, errors.Wrap(err, "[Store.ExtendSession]")
		}
		if swapped {
			return session, nil
		}
	}
	return nil, apperrors.E(apperrors.KindConflict, "session is being modified concurrently", nil)
}

// tryExtend makes one compare-and-set attempt. It reports swapped=false when
// the record changed between the read and the write.
func (s *Store) tryExtend(ctx context.Context, id string, extension time.Duration) (*Session, bool, error) {
	notFound := apperrors.NotFound("session not found", apperrors.ErrSessionNotFound)
	if id == "" {
		return nil, false, notFound
	}
	current, err := s.kv.Get(ctx, sessionKey(id))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, false, notFound
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "read record")
	}
	var session Session
	if err := json.Unmarshal(current, &session); err != nil {
		return nil, false, apperrors.E(apperrors.KindInternal, "corrupt session record", errors.Wrapf(err, "session %s", id))
	}
	now := s.nowFunc()
	if !session.IsActive || session.Expired(now) {
		if err := s.remove(ctx, session.ID, session.UserID); err != nil {
			s.logger.Warn().Err(err).Str("session_id", id).Msg("lazy expiry cleanup failed")
		}
		return nil, false, notFound
	}

	expiresAt := session.ExpiresAt.Add(extension)
	if limit := session.CreatedAt.Add(s.maxLifetime); expiresAt.After(limit) {
		expiresAt = limit
	}
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return nil, false, notFound
	}
	session.ExpiresAt = expiresAt

	next, err := json.Marshal(&session)
	if err != nil {
		return nil, false, errors.Wrap(err, "marshal session")
	}
	swapped, err := s.kv.CompareAndSet(ctx, sessionKey(id), current, next, remaining)
	if err != nil || !swapped {
		return nil, false, errors.Wrap(err, "write record")
	}
	if err := s.growIndexTTL(ctx, userSessionsKey(session.UserID), remaining); err != nil {
		return nil, false, errors.Wrap(err, "index ttl")
	}
	return &session, true, nil
}

// UpdateActivity extends the session by the configured activity increment.
func (s *Store) UpdateActivity(ctx context.Context, id string) (*Session, error) {
	return s.ExtendSession(ctx, id, s.activityExtension)
}

func (s *Store) GetSessionStats(ctx context.Context, userID string) (*Stats, error) {
	live, err := s.resolve(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.GetSessionStats]")
	}
	stats := &Stats{TotalSessions: len(live)}
	for _, session := range live {
		if session.IsActive {
			stats.ActiveSessions++
		}
	}
	if len(live) > 0 {
		newest := live[0].Info()
		oldest := live[len(live)-1].Info()
		stats.NewestSession = &newest
		stats.OldestSession = &oldest
	}
	return stats, nil
}

// resolve loads every indexed session of userID, newest first. Missing and
// expired entries are removed from the index.
func (s *Store) resolve(ctx context.Context, userID string) ([]*Session, error) {
	userKey := userSessionsKey(userID)
	ids, err := s.kv.SetMembers(ctx, userKey)
	if err != nil {
		return nil, err
	}

	now := s.nowFunc()
	live := make([]*Session, 0, len(ids))
	var stale []string
	for _, id := range ids {
		session, err := s.read(ctx, id)
		if err != nil {
			return nil, err
		}
		switch {
		case session == nil || session.UserID != userID:
			stale = append(stale, id)
		case !session.IsActive || session.Expired(now):
			if err := s.kv.Delete(ctx, sessionKey(id)); err != nil {
				return nil, err
			}
			stale = append(stale, id)
		default:
			live = append(live, session)
		}
	}
	if len(stale) > 0 {
		if _, err := s.kv.SetRemove(ctx, userKey, stale...); err != nil {
			return nil, err
		}
		s.logger.Debug().Str("user_id", userID).Int("stale", len(stale)).Msg("user session index healed")
	}

	sort.Slice(live, func(i, j int) bool {
		return live[i].CreatedAt.After(live[j].CreatedAt)
	})
	return live, nil
}

// read returns the stored record for id, or nil when it is absent.
func (s *Store) read(ctx context.Context, id string) (*Session, error) {
	data, err := s.kv.Get(ctx, sessionKey(id))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, apperrors.E(apperrors.KindInternal, "corrupt session record", errors.Wrapf(err, "session %s", id))
	}
	return &session, nil
}

func (s *Store) write(ctx context.Context, session *Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "marshal session")
	}
	return s.kv.Set(ctx, sessionKey(session.ID), data, ttl)
}

// remove deletes the record and its index entry. Both steps are idempotent.
func (s *Store) remove(ctx context.Context, id, userID string) error {
	if err := s.kv.Delete(ctx, sessionKey(id)); err != nil {
		return err
	}
	if _, err := s.kv.SetRemove(ctx, userSessionsKey(userID), id); err != nil {
		return err
	}
	return nil
}

// growIndexTTL makes sure the index outlives a session that expires ttl from
// now. It never shortens the index TTL.
func (s *Store) growIndexTTL(ctx context.Context, userKey string, ttl time.Duration) error {
	current, err := s.kv.TTL(ctx, userKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if current != kvstore.NoExpiry && current >= ttl {
		return nil
	}
	if err := s.kv.Expire(ctx, userKey, ttl); err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		return err
	}
	return nil
}
