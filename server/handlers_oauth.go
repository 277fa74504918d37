package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-session-server/federation"
)

// oauthStateCookie binds a pending flow to the browser that started it.
const oauthStateCookie = "oauth_state"

// OAuthStartHandler redirects the browser to the upstream provider.
func (s *Server) OAuthStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, ok := s.providers[r.PathValue("provider")]
		if !ok {
			writeFailure(w, http.StatusNotFound, codeNotFound, "unknown identity provider", nil)
			return
		}

		state, flow, err := s.oauth.Begin(r.Context(), provider.Name(), safeReturnURL(r.URL.Query().Get("return_to")))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.setStateCookie(w, r, state, int(federation.DefaultStateTTL.Seconds()))
		http.Redirect(w, r, provider.AuthCodeURL(state, flow), http.StatusFound)
	}
}

func (s *Server) setStateCookie(w http.ResponseWriter, r *http.Request, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    value,
		Path:     "/auth/oauth/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// safeReturnURL keeps only same-site relative paths.
func safeReturnURL(raw string) string {
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return ""
	}
	return raw
}
