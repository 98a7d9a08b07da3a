// Package jwt encodes and decodes the signed access tokens handed to clients.
//
// Decoding checks structure, algorithm and signature only. Expiry is a
// separate step (Claims.Expired) so that callers can still read the subject
// of a token that has just expired.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HMAC secret New accepts.
const MinSecretLength = 32

var (
	ErrInvalidToken         = errors.New("invalid token")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrWeakSecret           = errors.New("signing secret is too short")
)

type Claims struct {
	Subject   string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token is no longer usable at now.
func (c Claims) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

type Codec struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	now    func() time.Time
}

func New(secret, algorithm string) (*Codec, error) {
	const op = "jwt.New"

	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrUnsupportedAlgorithm, algorithm)
	}

	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%s: %w", op, ErrWeakSecret)
	}

	return &Codec{
		secret: []byte(secret),
		method: method,
		now:    time.Now,
	}, nil
}

// Algorithm returns the configured algorithm identifier, e.g. "HS256".
func (c *Codec) Algorithm() string {
	return c.method.Alg()
}

func (c *Codec) Encode(claims Claims, expiresAt time.Time) (string, error) {
	const op = "jwt.Encode"

	token := jwt.NewWithClaims(c.method, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(c.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: claims.Role,
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// Decode returns the claims of a token signed by this codec. An expired
// token decodes successfully; check Claims.Expired before trusting it.
func (c *Codec) Decode(tokenStr string) (Claims, error) {
	const op = "jwt.Decode"

	var tc tokenClaims

	_, err := jwt.ParseWithClaims(tokenStr, &tc, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}

	if tc.Subject == "" || tc.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%s: %w: missing sub or exp", op, ErrInvalidToken)
	}

	claims := Claims{
		Subject:   tc.Subject,
		Role:      tc.Role,
		ExpiresAt: tc.ExpiresAt.Time,
	}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Time
	}

	return claims, nil
}
