// Package token creates and verifies signed, time-limited tokens carrying a
// small payload. Every token is bound to a salt (its purpose namespace) so a
// token minted for one purpose never verifies for another.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Salts in use.
const (
	SaltSession = "session"
	SaltReset   = "reset"
)

// Payload is a flat string-keyed map of JSON-safe values. Numbers come back
// from Verify as json.Number.
type Payload map[string]any

// String returns the string stored under key.
func (p Payload) String(key string) (string, bool) {
	v, ok := p[key].(string)
	return v, ok
}

// Int64 returns the integer stored under key.
func (p Payload) Int64(key string) (int64, bool) {
	switch v := p[key].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		n := int64(v)
		return n, float64(n) == v
	}
	return 0, false
}

type claims struct {
	jwt.RegisteredClaims
	Namespace string  `json:"ns"`
	Data      Payload `json:"dat"`
}

// Codec signs and verifies tokens with a single secret.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret), now: time.Now}
}

// WithClock returns a copy of c that reads time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	return &Codec{secret: c.secret, now: now}
}

func (c *Codec) key(salt string) []byte {
	m := hmac.New(sha256.New, c.secret)
	m.Write([]byte("cropdb.token."))
	m.Write([]byte(salt))
	return m.Sum(nil)
}

// Create mints a token over payload that expires timeout from now.
// The only error is a payload that cannot be serialized.
func (c *Codec) Create(payload Payload, salt string, timeout time.Duration) (string, error) {
	if _, err := json.Marshal(payload); err != nil {
		return "", fmt.Errorf("token payload: %w", err)
	}

	now := c.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(timeout)),
		},
		Namespace: salt,
		Data:      payload,
	})

	s, err := t.SignedString(c.key(salt))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// Verify returns the payload of a token minted by Create with the same salt.
// Bad signature, wrong salt, expiry and malformed input all report false.
func (c *Codec) Verify(tokenString, salt string) (Payload, bool) {
	cl := &claims{}

	t, err := jwt.ParseWithClaims(tokenString, cl, func(*jwt.Token) (any, error) {
		return c.key(salt), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithJSONNumber(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !t.Valid {
		return nil, false
	}
	if !hmac.Equal([]byte(cl.Namespace), []byte(salt)) {
		return nil, false
	}
	if cl.Data == nil {
		cl.Data = Payload{}
	}
	return cl.Data, true
}

// CreateToken is a one-shot form of Codec.Create.
func CreateToken(payload Payload, secret, salt string, timeout time.Duration) (string, error) {
	return NewCodec(secret).Create(payload, salt, timeout)
}

// VerifyToken is a one-shot form of Codec.Verify.
func VerifyToken(secret, tokenString, salt string) (Payload, bool) {
	return NewCodec(secret).Verify(tokenString, salt)
}
