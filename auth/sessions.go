package auth

import (
	"context"
	"strings"

	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/mfa"
	"github.com/jrsteele09/go-session-server/notify"
	"github.com/jrsteele09/go-session-server/sessions"
	"github.com/pkg/errors"
)

// Authenticate resolves a bearer token to the caller's identity.
func (as *AuthorizationService) Authenticate(ctx context.Context, rawToken string) (*Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, apperrors.Unauthorized("authentication required", apperrors.ErrInvalidToken)
	}
	session, err := as.sessions.GetSessionByToken(ctx, rawToken)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.Authenticate]")
	}
	if session == nil {
		return nil, apperrors.Unauthorized("invalid or expired session", apperrors.ErrInvalidToken)
	}
	return &Identity{UserID: session.UserID, SessionID: session.ID}, nil
}

// RefreshSession pushes the caller's session expiry forward by the activity
// extension.
func (as *AuthorizationService) RefreshSession(ctx context.Context, id Identity) (*sessions.Session, error) {
	return as.sessions.UpdateActivity(ctx, id.SessionID)
}

// ListSessions returns the caller's live sessions with the current one
// flagged.
func (as *AuthorizationService) ListSessions(ctx context.Context, id Identity) ([]sessions.Info, error) {
	infos, err := as.sessions.ListUserSessions(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	for i := range infos {
		infos[i].Current = infos[i].ID == id.SessionID
	}
	return infos, nil
}

func (as *AuthorizationService) SessionStats(ctx context.Context, id Identity) (*sessions.Stats, error) {
	return as.sessions.GetSessionStats(ctx, id.UserID)
}

// Logout ends the caller's current session.
func (as *AuthorizationService) Logout(ctx context.Context, id Identity) error {
	return as.sessions.InvalidateSession(ctx, id.SessionID)
}

// LogoutAll ends every session of the caller, including the current one.
func (as *AuthorizationService) LogoutAll(ctx context.Context, id Identity) error {
	if err := as.sessions.InvalidateAllUserSessions(ctx, id.UserID); err != nil {
		return err
	}
	as.logger.Info().Str("user_id", id.UserID).Msg("all sessions invalidated")
	return nil
}

// LogoutOthers ends every session of the caller except the current one.
func (as *AuthorizationService) LogoutOthers(ctx context.Context, id Identity) error {
	return as.sessions.InvalidateOtherSessions(ctx, id.UserID, id.SessionID)
}

// RevokeSession ends one of the caller's sessions. Sessions owned by other
// users are reported as not found.
func (as *AuthorizationService) RevokeSession(ctx context.Context, id Identity, sessionID string) error {
	session, err := as.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil || session.UserID != id.UserID {
		return apperrors.NotFound("session not found", apperrors.ErrSessionNotFound)
	}
	return as.sessions.InvalidateSession(ctx, sessionID)
}

func notifyChannel(m mfa.Method) notify.Channel {
	if m == mfa.MethodSMS {
		return notify.ChannelSMS
	}
	return notify.ChannelEmail
}
