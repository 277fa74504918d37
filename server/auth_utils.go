package server

import (
	"net"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-session-server/auth"
)

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// clientIP returns the connection's peer address unless that peer is a
// trusted proxy. Behind a trusted proxy the X-Forwarded-For chain is walked
// from the right and the first untrusted hop wins, falling back to X-Real-IP.
func (s *Server) clientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if !s.trustedProxies.Contains(peer) {
		return peer
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		hops := strings.Split(fwd, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				break
			}
			if !s.trustedProxies.Contains(hop) {
				return hop
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(realIP) != nil {
		return realIP
	}
	return peer
}

// deviceFrom describes the requesting client. deviceInfo is optional and
// supplied by the client.
func (s *Server) deviceFrom(r *http.Request, deviceInfo string) auth.Device {
	if deviceInfo == "" {
		deviceInfo = r.Header.Get("X-Device-Info")
	}
	return auth.Device{
		DeviceInfo: deviceInfo,
		IPAddress:  s.clientIP(r),
		UserAgent:  r.UserAgent(),
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
