package models

import "time"

// Subscription is a time-boxed grant of access to one resource instance.
// (UserID, Kind, ItemID) is unique.
type Subscription struct {
	ID      int64
	UserID  int64
	Kind    string
	ItemID  int64
	CanPut  bool
	Expires time.Time
}

// Entitled reports whether the grant is still valid at now.
func (s *Subscription) Entitled(now time.Time) bool {
	return !s.Expires.Before(now)
}
