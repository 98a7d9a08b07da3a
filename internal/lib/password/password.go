// Package password hashes and verifies user passwords with bcrypt and
// enforces the registration password policy.
package password

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinLength = 8
	// MaxBytes is the longest input bcrypt accepts.
	MaxBytes = 72
)

var (
	ErrTooShort    = errors.New("Password must be at least 8 characters")
	ErrTooLong     = errors.New("Password must be at most 72 bytes")
	ErrNoUppercase = errors.New("Password must contain at least one uppercase letter")
	ErrNoLowercase = errors.New("Password must contain at least one lowercase letter")
	ErrNoDigit     = errors.New("Password must contain at least one digit")
	ErrHasSpace    = errors.New("Password must not contain spaces")
	ErrInvalidCost = errors.New("invalid bcrypt cost")
)

// PolicyErrors lists every error CheckPolicy can return.
var PolicyErrors = []error{ErrTooShort, ErrTooLong, ErrNoUppercase, ErrNoLowercase, ErrNoDigit, ErrHasSpace}

// Hasher is safe for concurrent use.
type Hasher struct {
	cost  int
	dummy []byte
}

func New(cost int) (*Hasher, error) {
	const op = "password.New"

	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%s: %w: %d", op, ErrInvalidCost, cost)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), cost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Hasher{
		cost:  cost,
		dummy: dummy,
	}, nil
}

func (h *Hasher) Hash(plain string) ([]byte, error) {
	const op = "password.Hash"

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return hash, nil
}

// Verify reports whether plain matches hash. A malformed hash never matches.
func (h *Hasher) Verify(plain string, hash []byte) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plain)) == nil
}

// Equalize spends the same work as a failed Verify so that a lookup miss
// takes as long as a wrong password.
func (h *Hasher) Equalize(plain string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plain))
}

// CheckPolicy returns the first policy rule plain violates, or nil.
func CheckPolicy(plain string) error {
	if len([]rune(plain)) < MinLength {
		return ErrTooShort
	}

	if len(plain) > MaxBytes {
		return ErrTooLong
	}

	var upper, lower, digit bool

	for _, r := range plain {
		switch {
		case unicode.IsSpace(r):
			return ErrHasSpace
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	switch {
	case !upper:
		return ErrNoUppercase
	case !lower:
		return ErrNoLowercase
	case !digit:
		return ErrNoDigit
	}

	return nil
}
