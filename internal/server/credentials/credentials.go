// Package credentials hashes and verifies user passwords.
//
// New hashes are argon2id in PHC format:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
//
// Verification reads the parameters from the stored hash, so raising the
// cost never invalidates existing hashes. Legacy bcrypt hashes still verify
// and are reported by NeedsRehash so callers can upgrade them on login.
package credentials

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const algorithmID = "argon2id"

// Params are the argon2id cost parameters.
type Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultParams = Params{
	Memory:      64 * 1024,
	Time:        3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

var ErrInvalidHash = errors.New("invalid password hash")

type Hasher struct {
	params Params
}

func NewHasher(p Params) (*Hasher, error) {
	switch {
	case p.Memory < 8*1024:
		return nil, errors.New("argon2 memory must be >= 8192 KiB")
	case p.Time < 1:
		return nil, errors.New("argon2 time must be >= 1")
	case p.Parallelism < 1:
		return nil, errors.New("argon2 parallelism must be >= 1")
	case p.SaltLength < 16:
		return nil, errors.New("argon2 salt length must be >= 16")
	case p.KeyLength < 16:
		return nil, errors.New("argon2 key length must be >= 16")
	}
	return &Hasher{params: p}, nil
}

// Hash returns a PHC-encoded argon2id hash of cleartext with a fresh salt.
func (h *Hasher) Hash(cleartext string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := argon2.IDKey([]byte(cleartext), salt, h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		h.params.Memory, h.params.Time, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether cleartext matches hash. Unknown formats never match.
func (h *Hasher) Verify(cleartext, hash string) bool {
	if isBcrypt(hash) {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(cleartext)) == nil
	}

	p, err := parsePHC(hash)
	if err != nil {
		return false
	}

	key := argon2.IDKey([]byte(cleartext), p.salt, p.Time, p.Memory, p.Parallelism, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(key, p.key) == 1
}

// NeedsRehash reports whether hash should be replaced by a fresh Hash call:
// bcrypt hashes, weaker argon2 parameters and unparseable values all do.
func (h *Hasher) NeedsRehash(hash string) bool {
	if isBcrypt(hash) {
		return true
	}
	p, err := parsePHC(hash)
	if err != nil {
		return true
	}
	return p.Memory < h.params.Memory ||
		p.Time < h.params.Time ||
		p.Parallelism < h.params.Parallelism ||
		uint32(len(p.key)) != h.params.KeyLength
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

type phc struct {
	Params
	salt []byte
	key  []byte
}

func parsePHC(s string) (*phc, error) {
	parts := strings.Split(s, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return nil, ErrInvalidHash
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, ErrInvalidHash
	}

	var out phc
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, ErrInvalidHash
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return nil, ErrInvalidHash
		}
		switch k {
		case "m":
			out.Memory = uint32(n)
		case "t":
			out.Time = uint32(n)
		case "p":
			if n > 255 {
				return nil, ErrInvalidHash
			}
			out.Parallelism = uint8(n)
		default:
			return nil, ErrInvalidHash
		}
	}
	if out.Memory == 0 || out.Time == 0 || out.Parallelism == 0 {
		return nil, ErrInvalidHash
	}

	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(out.salt) == 0 {
		return nil, ErrInvalidHash
	}
	if out.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(out.key) == 0 {
		return nil, ErrInvalidHash
	}
	out.SaltLength = uint32(len(out.salt))
	out.KeyLength = uint32(len(out.key))
	return &out, nil
}

const placeholderAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// PlaceholderLength is the length used for passwords of accounts that have
// not set one yet.
const PlaceholderLength = 100

// GeneratePlaceholderPassword returns a crypto-random alphanumeric string.
func GeneratePlaceholderPassword(length int) (string, error) {
	if length <= 0 {
		length = PlaceholderLength
	}
	limit := big.NewInt(int64(len(placeholderAlphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("placeholder password: %w", err)
		}
		b[i] = placeholderAlphabet[n.Int64()]
	}
	return string(b), nil
}
