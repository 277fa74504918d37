package server

import (
	"context"
	"net/http"
	"time"

	"github.com/jrsteele09/go-session-server/auth"
)

const healthTimeout = 2 * time.Second

// ListSessionsHandler returns the caller's live sessions, newest first.
func (s *Server) ListSessionsHandler() http.HandlerFunc {
	return s.withIdentity(func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		list, err := s.auth.ListSessions(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, list)
	})
}

func (s *Server) SessionStatsHandler() http.HandlerFunc {
	return s.withIdentity(func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		stats, err := s.auth.SessionStats(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, stats)
	})
}

// RefreshSessionHandler extends the current session by the activity
// increment.
func (s *Server) RefreshSessionHandler() http.HandlerFunc {
	return s.withIdentity(func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		session, err := s.auth.RefreshSession(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		info := session.Info()
		info.Current = true
		writeData(w, http.StatusOK, info)
	})
}

// LogoutAllHandler ends every session of the caller, including this one.
func (s *Server) LogoutAllHandler() http.HandlerFunc {
	return s.withIdentity(func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		if err := s.auth.LogoutAll(r.Context(), id); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, nil)
	})
}

// LogoutOthersHandler ends every session of the caller except this one.
func (s *Server) LogoutOthersHandler() http.HandlerFunc {
	return s.withIdentity(func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		if err := s.auth.LogoutOthers(r.Context(), id); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, nil)
	})
}

func (s *Server) RevokeSessionHandler() http.HandlerFunc {
	return s.withIdentity(func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		if err := s.auth.RevokeSession(r.Context(), id, r.PathValue("id")); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, nil)
	})
}

// HealthHandler reports whether the key-value store answers.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.kv.Ping(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("health check failed")
			writeFailure(w, http.StatusServiceUnavailable, codeBackendUnavailable, "store unavailable", nil)
			return
		}
		writeData(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
