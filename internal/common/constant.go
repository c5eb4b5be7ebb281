// Package common contains shared constants and sentinel errors used across
// cropdb components.
package common

// SessionTokenHeaderName is the gRPC metadata key carrying the session token
// on requests and the refreshed token on responses.
const SessionTokenHeaderName = "session_token"

// SessionExpiresHeaderName carries the refreshed session expiry (RFC 3339).
const SessionExpiresHeaderName = "session_expires"

// CSRFHeaderName carries the per-user CSRF nonce on mutating requests.
const CSRFHeaderName = "csrf_token"
