package session

import "time"

// Claims are the verified token claims the [Validator] needs.
type Claims struct {
	JTI       string
	UserID    string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Session is the validated per-request view of an authenticated session.
//
// Revocation is not a field: a session is revoked exactly when its blacklist entry exists.
type Session struct {
	ID           string
	UserID       string
	Role         string
	IssuedAt     time.Time
	LastActivity time.Time
}
