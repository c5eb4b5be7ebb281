// Package models defines server-side data models persisted in the database.
package models

import "time"

type User struct {
	ID          int64
	Email       string
	Password    string // hash, see credentials package
	CSRF        string // "" when no nonce was issued
	Created     time.Time
	BannedDate  *time.Time
	Active      bool
	Banned      bool
	Admin       bool
	WrongLogins int
	Reset       string // outstanding reset token, "" when none
}

// IsActive reports whether the account may log in.
func (u *User) IsActive() bool {
	return u.Active && !u.Banned
}

// UserState is an admin-requested account transition.
type UserState string

const (
	StateActivate   UserState = "activate"
	StateInactivate UserState = "inactivate"
	StateBan        UserState = "ban"
	StateUnban      UserState = "unban"
)

func (s UserState) Valid() bool {
	switch s {
	case StateActivate, StateInactivate, StateBan, StateUnban:
		return true
	}
	return false
}
