package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/jrsteele09/go-session-server/federation"
)

type oauthCallbackResponse struct {
	loginResponse
	ReturnURL string `json:"returnUrl,omitempty"`
}

// OAuthCallbackHandler completes a federated login: it checks the state
// against the browser cookie, consumes it, redeems the code and signs the
// user in.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, ok := s.providers[r.PathValue("provider")]
		if !ok {
			writeFailure(w, http.StatusNotFound, codeNotFound, "unknown identity provider", nil)
			return
		}

		query := r.URL.Query()
		if e := query.Get("error"); e != "" {
			s.logger.Info().Str("provider", provider.Name()).Str("error", e).Msg("provider denied login")
			writeFailure(w, http.StatusUnauthorized, codeUnauthorized, "login was cancelled at the provider", nil)
			return
		}

		state := query.Get("state")
		cookie, err := r.Cookie(oauthStateCookie)
		if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
			writeFailure(w, http.StatusUnauthorized, codeUnauthorized, "invalid oauth state", nil)
			return
		}
		s.setStateCookie(w, r, "", -1)

		flow, err := s.oauth.Consume(r.Context(), state)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if flow.Provider != provider.Name() {
			writeFailure(w, http.StatusUnauthorized, codeUnauthorized, "invalid oauth state", nil)
			return
		}

		identity, err := provider.Exchange(r.Context(), query.Get("code"), flow)
		if err != nil {
			s.logger.Warn().Err(err).Str("provider", provider.Name()).Msg("federated login failed")
			s.writeError(w, r, err)
			return
		}
		s.completeFederatedLogin(w, r, identity, flow.ReturnURL)
	}
}

func (s *Server) completeFederatedLogin(w http.ResponseWriter, r *http.Request, identity *federation.Identity, returnURL string) {
	res, err := s.auth.FederatedLogin(r.Context(), identity, s.deviceFrom(r, ""))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, oauthCallbackResponse{loginResponse: newLoginResponse(res), ReturnURL: returnURL})
}
