package server

import (
	"net/http"
	"time"

	"github.com/jrsteele09/go-session-server/auth"
	"github.com/jrsteele09/go-session-server/mfa"
	"github.com/jrsteele09/go-session-server/sessions"
	"github.com/jrsteele09/go-session-server/users"
)

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceInfo string `json:"deviceInfo"`
}

type mfaVerifyRequest struct {
	ChallengeToken string `json:"challengeToken"`
	Method         string `json:"method"`
	Code           string `json:"code"`
	DeviceInfo     string `json:"deviceInfo"`
}

type mfaSendRequest struct {
	ChallengeToken string `json:"challengeToken"`
	Method         string `json:"method"`
}

// loginResponse carries either a session or an MFA challenge.
type loginResponse struct {
	MFARequired    bool           `json:"mfaRequired"`
	ChallengeToken string         `json:"challengeToken,omitempty"`
	Methods        []string       `json:"methods,omitempty"`
	Token          string         `json:"token,omitempty"`
	ExpiresAt      *time.Time     `json:"expiresAt,omitempty"`
	Session        *sessions.Info `json:"session,omitempty"`
	User           *users.User    `json:"user,omitempty"`
}

func newLoginResponse(res *auth.LoginResult) loginResponse {
	if res.MFARequired {
		return loginResponse{MFARequired: true, ChallengeToken: res.ChallengeToken, Methods: res.Methods}
	}
	info := res.Session.Info()
	info.Current = true
	return loginResponse{
		Token:     res.Session.Token,
		ExpiresAt: &res.Session.ExpiresAt,
		Session:   &info,
		User:      res.User,
	}
}

// RegisterHandler creates a password account.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RegisterRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		user, err := s.auth.Register(r.Context(), req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, user)
	}
}

// LoginHandler checks email and password and returns a session token or an
// MFA challenge.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		res, err := s.auth.Login(r.Context(), req.Email, req.Password, s.deviceFrom(r, req.DeviceInfo))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, newLoginResponse(res))
	}
}

// MFAVerifyHandler completes a challenged login.
func (s *Server) MFAVerifyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req mfaVerifyRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		method := mfa.Method(req.Method)
		if !method.Valid() {
			writeFailure(w, http.StatusBadRequest, codeValidationFailed, "unsupported mfa method", nil)
			return
		}
		res, err := s.auth.CompleteMFALogin(r.Context(), req.ChallengeToken, method, req.Code, s.deviceFrom(r, req.DeviceInfo))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, newLoginResponse(res))
	}
}

// MFASendHandler delivers an SMS or email code for a challenged login.
func (s *Server) MFASendHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req mfaSendRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.auth.SendMFACode(r.Context(), req.ChallengeToken, mfa.Method(req.Method)); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusAccepted, nil)
	}
}

// LogoutHandler ends the current session.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return s.withIdentity(func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		if err := s.auth.Logout(r.Context(), id); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, nil)
	})
}

// withIdentity adapts a handler that needs the caller set by RequireAuth.
func (s *Server) withIdentity(h func(http.ResponseWriter, *http.Request, auth.Identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			writeFailure(w, http.StatusUnauthorized, codeUnauthorized, "authentication required", nil)
			return
		}
		h(w, r, id)
	}
}
