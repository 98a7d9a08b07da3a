// Package identity carries the authenticated session through a request
// context.
package identity

import (
	"context"

	"session_auth/internal/lib/jwt"
	"session_auth/internal/models"
)

type ctxKey struct{}

type Session struct {
	Claims jwt.Claims
	// Rotated holds the pair issued when the refresh middleware exchanged
	// the request's refresh cookie. The cookies on the request are stale
	// in that case.
	Rotated *models.TokenPair
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}
