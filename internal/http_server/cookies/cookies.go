// Package cookies writes, reads and clears the token cookies.
package cookies

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"session_auth/internal/models"
)

const (
	AccessTokenName  = "ACCESS_TOKEN"
	RefreshTokenName = "REFRESH_TOKEN"
)

var ErrUnknownSameSite = errors.New("unknown SameSite mode")

// Policy holds the attributes shared by both token cookies.
type Policy struct {
	Secure   bool
	SameSite http.SameSite
	Domain   string
}

// ParseSameSite maps "lax", "strict" and "none" to http.SameSite. An empty
// value means lax.
func ParseSameSite(mode string) (http.SameSite, error) {
	switch strings.ToLower(mode) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSameSite, mode)
	}
}

// SetTokens writes both cookies, each living as long as its token.
func (p Policy) SetTokens(w http.ResponseWriter, pair models.TokenPair) {
	now := time.Now()

	http.SetCookie(w, p.cookie(AccessTokenName, pair.AccessToken, pair.AccessExpiresAt, now))
	http.SetCookie(w, p.cookie(RefreshTokenName, pair.RefreshToken, pair.RefreshExpiresAt, now))
}

// Clear expires both cookies on the client.
func (p Policy) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenName, RefreshTokenName} {
		c := p.cookie(name, "", time.Unix(0, 0), time.Now())
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (p Policy) cookie(name, value string, expires, now time.Time) *http.Cookie {
	maxAge := int(expires.Sub(now).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}

	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   p.Domain,
		Expires:  expires.UTC(),
		MaxAge:   maxAge,
		Secure:   p.Secure,
		HttpOnly: true,
		SameSite: p.SameSite,
	}
}

// Read returns the token cookie values of r. Missing cookies read as "".
func Read(r *http.Request) (accessToken, refreshToken string) {
	if c, err := r.Cookie(AccessTokenName); err == nil {
		accessToken = c.Value
	}
	if c, err := r.Cookie(RefreshTokenName); err == nil {
		refreshToken = c.Value
	}

	return accessToken, refreshToken
}
