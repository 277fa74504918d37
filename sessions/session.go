package sessions

import (
	"time"
)

// Session is a server tracked grant of authenticated access. The record is
// stored as JSON under session:{id} and carries the bearer token minted for it.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Token      string    `json:"token"`
	DeviceInfo string    `json:"deviceInfo"`
	IPAddress  string    `json:"ipAddress"`
	UserAgent  string    `json:"userAgent"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	IsActive   bool      `json:"isActive"`
}

// Expired reports whether the session no longer grants access at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Info is the listing view of a session. It never carries the token.
type Info struct {
	ID         string    `json:"id"`
	DeviceInfo string    `json:"deviceInfo"`
	IPAddress  string    `json:"ipAddress"`
	UserAgent  string    `json:"userAgent"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	IsActive   bool      `json:"isActive"`
	Current    bool      `json:"current"`
}

func (s *Session) Info() Info {
	return Info{
		ID:         s.ID,
		DeviceInfo: s.DeviceInfo,
		IPAddress:  s.IPAddress,
		UserAgent:  s.UserAgent,
		CreatedAt:  s.CreatedAt,
		ExpiresAt:  s.ExpiresAt,
		IsActive:   s.IsActive,
	}
}

// Stats aggregates the sessions that still resolve to a stored record; ids
// left in the index by expired or deleted sessions are never counted.
type Stats struct {
	TotalSessions  int   `json:"totalSessions"`
	ActiveSessions int   `json:"activeSessions"`
	OldestSession  *Info `json:"oldestSession"`
	NewestSession  *Info `json:"newestSession"`
}
