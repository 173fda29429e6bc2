package codes

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	minDigits = 4
	maxDigits = 10
)

var (
	// ErrInvalidDigits is returned when a code length is outside [4, 10].
	ErrInvalidDigits = errors.New("invalid code digits")
	// ErrInvalidCost is returned when the bcrypt cost is outside bcrypt's bounds.
	ErrInvalidCost = errors.New("invalid code hash cost")
)

// NewNumeric returns a uniformly random decimal string of exactly digits
// characters. Leading zeros are kept.
func NewNumeric(digits int) (string, error) {
	if digits < minDigits || digits > maxDigits {
		return "", ErrInvalidDigits
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}

// Hasher hashes offline codes with bcrypt at a fixed cost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher. A zero cost selects bcrypt.MinCost.
func NewHasher(cost int) (*Hasher, error) {
	if cost == 0 {
		cost = bcrypt.MinCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, ErrInvalidCost
	}
	return &Hasher{cost: cost}, nil
}

func (h *Hasher) Hash(code string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(code), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Compare reports whether code matches hash. A malformed hash never matches.
func (h *Hasher) Compare(hash, code string) bool {
	if hash == "" || code == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}

// Redact keeps the first n characters of a code for audit metadata.
func Redact(code string, n int) string {
	if n <= 0 {
		return "***"
	}
	if len(code) <= n {
		return code[:len(code)/2] + "***"
	}
	return code[:n] + "***"
}
