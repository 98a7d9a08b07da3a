package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestCodec(t *testing.T, alg string) *Codec {
	t.Helper()

	c, err := New(testSecret, alg)
	require.NoError(t, err)

	return c
}

func TestEncodeDecode(t *testing.T) {
	c := newTestCodec(t, "HS256")
	exp := time.Now().Add(time.Minute).Truncate(time.Second)

	tok, err := c.Encode(Claims{Subject: "u@x.com", Role: "admin"}, exp)
	require.NoError(t, err)

	claims, err := c.Decode(tok)
	require.NoError(t, err)

	assert.Equal(t, "u@x.com", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
	assert.True(t, claims.ExpiresAt.Equal(exp))
	assert.False(t, claims.IssuedAt.IsZero())
	assert.False(t, claims.Expired(time.Now()))
	assert.Equal(t, "HS256", c.Algorithm())
}

func TestDecode_ExpiredTokenStillDecodes(t *testing.T) {
	c := newTestCodec(t, "HS256")
	exp := time.Now().Add(-time.Hour)

	tok, err := c.Encode(Claims{Subject: "u@x.com"}, exp)
	require.NoError(t, err)

	claims, err := c.Decode(tok)
	require.NoError(t, err)

	assert.Equal(t, "u@x.com", claims.Subject)
	assert.Empty(t, claims.Role)
	assert.True(t, claims.Expired(time.Now()))
}

func TestClaimsExpired_Boundary(t *testing.T) {
	exp := time.Now()
	c := Claims{ExpiresAt: exp}

	assert.True(t, c.Expired(exp))
	assert.False(t, c.Expired(exp.Add(-time.Nanosecond)))
}

func TestDecode_WrongSecret(t *testing.T) {
	c := newTestCodec(t, "HS256")

	other, err := New("ffffffffffffffffffffffffffffffff", "HS256")
	require.NoError(t, err)

	tok, err := other.Encode(Claims{Subject: "u@x.com"}, time.Now().Add(time.Minute))
	require.NoError(t, err)

	_, err = c.Decode(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecode_AlgorithmMismatch(t *testing.T) {
	c := newTestCodec(t, "HS256")
	other := newTestCodec(t, "HS512")

	tok, err := other.Encode(Claims{Subject: "u@x.com"}, time.Now().Add(time.Minute))
	require.NoError(t, err)

	_, err = c.Decode(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecode_NoneAlgorithm(t *testing.T) {
	c := newTestCodec(t, "HS256")

	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u@x.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = c.Decode(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecode_Tampered(t *testing.T) {
	c := newTestCodec(t, "HS256")

	tok, err := c.Encode(Claims{Subject: "u@x.com"}, time.Now().Add(time.Minute))
	require.NoError(t, err)

	tampered := tok[:len(tok)-2] + "xx"
	if tampered == tok {
		tampered = tok[:len(tok)-2] + "yy"
	}

	_, err = c.Decode(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecode_Malformed(t *testing.T) {
	c := newTestCodec(t, "HS256")

	for _, tok := range []string{"", "not.a.jwt", "abc"} {
		_, err := c.Decode(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, tok)
	}
}

func TestDecode_MissingRequiredClaims(t *testing.T) {
	c := newTestCodec(t, "HS256")

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "u@x.com",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = c.Decode(noSub)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = c.Decode(noExp)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(testSecret, "RS256")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = New(testSecret, "none")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = New("short", "HS256")
	assert.ErrorIs(t, err, ErrWeakSecret)
}
