package session

import "time"

// AuthMode records how the bound token was obtained.
type AuthMode string

const (
	AuthLocal  AuthMode = "local"
	AuthGoogle AuthMode = "google"
)

// Session binds the current access token to a user.
type Session struct {
	UserID       string    `json:"userId"`
	Token        string    `json:"token"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	ExpiresAt    time.Time `json:"expiresAt"`
	AuthMode     AuthMode  `json:"authMode"`
}

// Live reports whether now is strictly before ExpiresAt.
func (s *Session) Live(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// Remaining returns the time left before expiry, never negative.
func (s *Session) Remaining(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

func newSession(userID, token string, mode AuthMode, ttl time.Duration, now time.Time) Session {
	if mode == "" {
		mode = AuthLocal
	}
	return Session{
		UserID:       userID,
		Token:        token,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(ttl),
		AuthMode:     mode,
	}
}
