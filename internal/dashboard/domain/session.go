package domain

import "time"

// Session is a validated dashboard session bound to one tenant.
type Session struct {
	TenantID    string
	UserID      string
	DisplayName string // empty when the platform gave no username
	ExpiresAt   time.Time
}

// IssuedCredential is a freshly minted session token plus its expiry, handed
// to the browser as both a cookie and a JSON field.
type IssuedCredential struct {
	Token     string
	ExpiresAt time.Time
}
