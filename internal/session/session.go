// Package session holds the cached HomeWizard session token and its validity rule.
package session

import "time"

// ValidityWindow is how long a session token is reused before a fresh login.
// The vendor invalidates tokens somewhere between 1 and 1.5 hours; 1 hour is safe.
const ValidityWindow = time.Hour

// Session is an authentication token plus the moment it was issued.
// Sessions are replaced wholesale on refresh, never modified.
type Session struct {
	Token    string
	IssuedAt time.Time
}

// New returns a session for token issued at now.
func New(token string, now time.Time) *Session {
	return &Session{Token: token, IssuedAt: now}
}

// IsValid reports whether s can still be used at now.
func IsValid(s *Session, now time.Time) bool {
	if s == nil {
		return false
	}
	return now.Sub(s.IssuedAt) < ValidityWindow
}

// ExpiresAt returns the moment the session stops being valid.
func (s *Session) ExpiresAt() time.Time {
	return s.IssuedAt.Add(ValidityWindow)
}

// Age returns how long ago the session was issued.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.IssuedAt)
}
