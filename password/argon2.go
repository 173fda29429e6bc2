package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrPasswordTooShort and ErrPasswordTooLong mirror the length rule of
	// Assess: both count runes of the NFC form.
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinLength)
	ErrPasswordTooLong  = fmt.Errorf("password must be at most %d characters", MaxLength)

	ErrMalformedHash = errors.New("malformed argon2id hash")
	ErrWeakConfig    = errors.New("argon2id parameters below minimum")
)

// Floors enforced on both Config and stored hashes.
const (
	floorMemoryKiB = 8 * 1024
	floorTime      = 1
	floorThreads   = 1
	floorSaltLen   = 16
	floorKeyLen    = 16
)

// Config holds Argon2id cost parameters.
type Config struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the parameters used by the bundled user repositories.
func DefaultConfig() Config {
	return Config{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

func (c Config) validate() error {
	switch {
	case c.Memory < floorMemoryKiB:
		return fmt.Errorf("%w: memory %d KiB < %d", ErrWeakConfig, c.Memory, floorMemoryKiB)
	case c.Time < floorTime:
		return fmt.Errorf("%w: time %d < %d", ErrWeakConfig, c.Time, floorTime)
	case c.Parallelism < floorThreads:
		return fmt.Errorf("%w: parallelism %d < %d", ErrWeakConfig, c.Parallelism, floorThreads)
	case c.SaltLength < floorSaltLen:
		return fmt.Errorf("%w: salt %d bytes < %d", ErrWeakConfig, c.SaltLength, floorSaltLen)
	case c.KeyLength < floorKeyLen:
		return fmt.Errorf("%w: key %d bytes < %d", ErrWeakConfig, c.KeyLength, floorKeyLen)
	}
	return nil
}

// Argon2 stores passwords as PHC strings. It accepts exactly the lengths the
// strength policy accepts, so an account can never hold a password Assess
// would reject on length.
type Argon2 struct {
	config Config
}

func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// prepare normalises pw the way Assess does and checks its length.
func prepare(pw string) ([]byte, error) {
	pw = norm.NFC.String(pw)
	switch n := utf8.RuneCountInString(pw); {
	case n < MinLength:
		return nil, ErrPasswordTooShort
	case n > MaxLength:
		return nil, ErrPasswordTooLong
	}
	return []byte(pw), nil
}

// Hash returns "$argon2id$v=19$m=..,t=..,p=..$salt$key" for the NFC form
// of pw.
func (a *Argon2) Hash(pw string) (string, error) {
	secret, err := prepare(pw)
	if err != nil {
		return "", err
	}
	salt := make([]byte, a.config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("argon2id salt: %w", err)
	}
	h := phc{
		memory:  a.config.Memory,
		time:    a.config.Time,
		threads: a.config.Parallelism,
		salt:    salt,
	}
	h.key = argon2.IDKey(secret, salt, h.time, h.memory, h.threads, a.config.KeyLength)
	return h.String(), nil
}

// Verify reports whether pw matches encoded. A password outside the policy
// lengths never matches and costs no key derivation.
func (a *Argon2) Verify(pw, encoded string) (bool, error) {
	h, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	secret, err := prepare(pw)
	if err != nil {
		return false, nil
	}
	return subtle.ConstantTimeCompare(h.derive(secret), h.key) == 1, nil
}

// NeedsUpgrade reports whether encoded was produced with cheaper parameters
// than the hasher's, or a different key length. Repositories call it after
// a successful Verify and store a fresh Hash when it returns true.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	h, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	weaker := h.memory < a.config.Memory ||
		h.time < a.config.Time ||
		h.threads < a.config.Parallelism ||
		uint32(len(h.key)) != a.config.KeyLength
	return weaker, nil
}

type phc struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func (h phc) derive(secret []byte) []byte {
	return argon2.IDKey(secret, h.salt, h.time, h.memory, h.threads, uint32(len(h.key)))
}

func (h phc) String() string {
	enc := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.memory, h.time, h.threads, enc.EncodeToString(h.salt), enc.EncodeToString(h.key))
}

func parsePHC(encoded string) (phc, error) {
	var h phc
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return h, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return h, fmt.Errorf("%w: version %q", ErrMalformedHash, parts[2])
	}
	var threads uint32
	if n, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &threads); err != nil || n != 3 {
		return h, fmt.Errorf("%w: parameters %q", ErrMalformedHash, parts[3])
	}
	if h.memory < floorMemoryKiB || h.time < floorTime || threads < floorThreads || threads > 255 {
		return h, fmt.Errorf("%w: parameters %q", ErrWeakConfig, parts[3])
	}
	h.threads = uint8(threads)

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(h.salt) < floorSaltLen {
		return h, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(h.key) < floorKeyLen {
		return h, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	return h, nil
}
