package models

import "time"

// Session is one logged-in period. At most one row per user is active.
type Session struct {
	ID        string
	UserID    int64
	StartTime time.Time
	EndTime   time.Time
	Active    bool
	Location  string
}

// SessionToken is what a client receives after login or refresh.
type SessionToken struct {
	Token     string
	ExpiresAt time.Time
}
