// Package common defines shared constants and sentinel errors used across
// the client and server layers of cropdb. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Token errors. The reason a token was rejected is never disclosed.
	ErrInvalidToken = errors.New("invalid token")

	// A reset token is still outstanding for the user.
	ErrResetPending = errors.New("reset already pending")
)
