package auth

import "time"

// SessionStatus is the lifecycle state of a session.
// Every status other than SessionActive means the session is no longer usable.
type SessionStatus string

const (
	SessionActive     SessionStatus = "active"
	SessionExpired    SessionStatus = "expired"
	SessionTerminated SessionStatus = "terminated"
	SessionLocked     SessionStatus = "locked"
)

// Session is the server-side record of an authenticated identity.
// ID is an opaque random token and is the only credential needed to use the session.
type Session struct {
	ID             string         `json:"id"`
	IdentityID     string         `json:"identity_id"`
	Username       string         `json:"username"`
	Role           Role           `json:"role"`
	CreatedAt      time.Time      `json:"created_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	Client         ClientMetadata `json:"client"`
	Status         SessionStatus  `json:"status"`
}

// IsActive returns true if the session can still be used.
func (s Session) IsActive() bool { return s.Status == SessionActive }

// IdleFor returns how long the session has been idle at now.
func (s Session) IdleFor(now time.Time) time.Duration { return now.Sub(s.LastActivityAt) }
