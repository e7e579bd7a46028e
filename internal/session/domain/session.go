package domain

import "time"

// Session is a server-side admin session. Only the keyed hash of the bearer token is stored.
type Session struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time // nil when not revoked
	IP         string
	UserAgent  string
	LastSeenAt *time.Time
	CreatedAt  time.Time
}

// IsActive reports whether the session is unrevoked and unexpired at now.
func (s *Session) IsActive(now time.Time) bool {
	return s != nil && s.RevokedAt == nil && s.ExpiresAt.After(now)
}
