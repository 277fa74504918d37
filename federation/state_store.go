package federation

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"time"

	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/kvstore"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const (
	DefaultStateTTL = 10 * time.Minute
	stateKeyPrefix  = "oauth_state:"
)

var ErrUnknownState = errors.New("unknown or already used oauth state")

// AuthFlowState is kept between the redirect to the provider and the
// callback.
type AuthFlowState struct {
	Provider     string    `json:"provider"`
	CodeVerifier string    `json:"codeVerifier"`
	Nonce        string    `json:"nonce"`
	ReturnURL    string    `json:"returnUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// StateStore keeps pending flows in the key-value backend. Each state can be
// consumed once.
type StateStore struct {
	kv  kvstore.Store
	ttl time.Duration
}

func NewStateStore(kv kvstore.Store, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateStore{kv: kv, ttl: ttl}
}

// Begin records a new flow and returns its opaque state parameter.
func (s *StateStore) Begin(ctx context.Context, provider, returnURL string) (string, *AuthFlowState, error) {
	state, err := randomToken(32)
	if err != nil {
		return "", nil, errors.Wrap(err, "[StateStore.Begin] state")
	}
	nonce, err := randomToken(16)
	if err != nil {
		return "", nil, errors.Wrap(err, "[StateStore.Begin] nonce")
	}
	flow := &AuthFlowState{
		Provider:     provider,
		CodeVerifier: oauth2.GenerateVerifier(),
		Nonce:        nonce,
		ReturnURL:    returnURL,
		CreatedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(flow)
	if err != nil {
		return "", nil, errors.Wrap(err, "[StateStore.Begin] encode")
	}
	if err := s.kv.Set(ctx, stateKeyPrefix+state, data, s.ttl); err != nil {
		return "", nil, errors.Wrap(err, "[StateStore.Begin] store")
	}
	return state, flow, nil
}

// Consume atomically fetches and deletes the flow for state.
func (s *StateStore) Consume(ctx context.Context, state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, apperrors.Unauthorized("invalid oauth state", ErrUnknownState)
	}
	data, err := s.kv.Take(ctx, stateKeyPrefix+state)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, apperrors.Unauthorized("invalid oauth state", ErrUnknownState)
	}
	if err != nil {
		return nil, errors.Wrap(err, "[StateStore.Consume]")
	}
	var flow AuthFlowState
	if err := json.Unmarshal(data, &flow); err != nil {
		return nil, errors.Wrap(err, "[StateStore.Consume] decode")
	}
	return &flow, nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
