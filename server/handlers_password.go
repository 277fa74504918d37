package server

import (
	"net/http"

	"github.com/jrsteele09/go-session-server/auth"
)

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// ChangePasswordHandler replaces the caller's password and signs out their
// other sessions.
func (s *Server) ChangePasswordHandler() http.HandlerFunc {
	return s.withIdentity(func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		var req changePasswordRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.auth.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, nil)
	})
}

// ForgotPasswordHandler always answers 202 so callers cannot probe which
// emails are registered.
func (s *Server) ForgotPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req forgotPasswordRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
			s.logger.Error().Err(err).Msg("password reset request failed")
		}
		writeData(w, http.StatusAccepted, nil)
	}
}

func (s *Server) ResetPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetPasswordRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, nil)
	}
}
