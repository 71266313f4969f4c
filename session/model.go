package session

import "time"

// Session anchors a token pair to one login. Its presence in the store is
// what keeps the tokens usable.
type Session struct {
	SessionID    string
	PrincipalID  string
	Role         string
	CreatedAt    time.Time
	LastActivity time.Time
	ClientIP     string
	UserAgent    string
	Active       bool
}
