// AngelaMos | 2026
// password.go

package core

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

var ErrMalformedHash = errors.New("malformed password hash")

// Argon2Params are the cost settings encoded into every stored
// users.password_hash value.
type Argon2Params struct {
	Memory  uint32
	Time    uint32
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

var DefaultArgon2 = Argon2Params{
	Memory:  64 * 1024,
	Time:    1,
	Threads: 4,
	KeyLen:  32,
	SaltLen: 16,
}

// PasswordCheck is the outcome of comparing a password with a stored
// hash. Rehash is set when the stored hash was derived with other cost
// settings; the caller writes it back to the account.
type PasswordCheck struct {
	Valid  bool
	Rehash string
}

func HashPassword(password string) (string, error) {
	return DefaultArgon2.Hash(password)
}

func (p Argon2Params) Hash(password string) (string, error) {
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.Memory,
		p.Time,
		p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Check verifies password against stored using the parameters recorded
// in stored, then offers a rehash under p when those differ.
func (p Argon2Params) Check(password, stored string) (PasswordCheck, error) {
	h, err := parseHash(stored)
	if err != nil {
		return PasswordCheck{}, err
	}

	if !h.matches(password) {
		return PasswordCheck{}, nil
	}

	check := PasswordCheck{Valid: true}
	if h.params.costDiffers(p) {
		if rehash, hashErr := p.Hash(password); hashErr == nil {
			check.Rehash = rehash
		}
	}
	return check, nil
}

var placeholderHash = sync.OnceValue(func() string {
	//nolint:errcheck // crypto/rand does not fail on supported platforms
	hash, _ := HashPassword("library-account-placeholder")
	return hash
})

// CheckPassword verifies a login attempt. A nil or empty stored hash
// still pays for one full derivation and never validates.
func CheckPassword(password string, stored *string) (PasswordCheck, error) {
	if stored == nil || *stored == "" {
		//nolint:errcheck // result discarded, only the cost matters
		_, _ = DefaultArgon2.Check(password, placeholderHash())
		return PasswordCheck{}, nil
	}
	return DefaultArgon2.Check(password, *stored)
}

func (p Argon2Params) costDiffers(o Argon2Params) bool {
	return p.Memory != o.Memory ||
		p.Time != o.Time ||
		p.Threads != o.Threads ||
		p.KeyLen != o.KeyLen
}

type storedHash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func (h storedHash) matches(password string) bool {
	other := argon2.IDKey(
		[]byte(password),
		h.salt,
		h.params.Time,
		h.params.Memory,
		h.params.Threads,
		h.params.KeyLen,
	)
	return subtle.ConstantTimeCompare(h.key, other) == 1
}

// parseHash reads "$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>".
func parseHash(encoded string) (storedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return storedHash{}, ErrMalformedHash
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return storedHash{}, fmt.Errorf("%w: unsupported %s", ErrMalformedHash, parts[2])
	}

	var h storedHash
	for _, field := range strings.Split(parts[3], ",") {
		name, value, ok := strings.Cut(field, "=")
		if !ok {
			return storedHash{}, fmt.Errorf("%w: parameter %q", ErrMalformedHash, field)
		}

		bits := 32
		if name == "p" {
			bits = 8
		}
		n, err := strconv.ParseUint(value, 10, bits)
		if err != nil || n == 0 {
			return storedHash{}, fmt.Errorf("%w: parameter %q", ErrMalformedHash, field)
		}

		switch name {
		case "m":
			h.params.Memory = uint32(n)
		case "t":
			h.params.Time = uint32(n)
		case "p":
			h.params.Threads = uint8(n)
		default:
			return storedHash{}, fmt.Errorf("%w: parameter %q", ErrMalformedHash, field)
		}
	}
	if h.params.Memory == 0 || h.params.Time == 0 || h.params.Threads == 0 {
		return storedHash{}, fmt.Errorf("%w: missing cost parameters", ErrMalformedHash)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return storedHash{}, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(h.key) == 0 {
		return storedHash{}, fmt.Errorf("%w: key", ErrMalformedHash)
	}

	//nolint:gosec // G115: derived keys are a few dozen bytes
	h.params.KeyLen = uint32(len(h.key))
	h.params.SaltLen = len(h.salt)

	return h, nil
}
