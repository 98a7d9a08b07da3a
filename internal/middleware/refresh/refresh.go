// Package refresh keeps browser sessions alive: when the access cookie is
// missing or expired it spends the refresh cookie on a new pair before the
// request reaches its handler.
package refresh

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"session_auth/internal/http_server/cookies"
	"session_auth/internal/lib/identity"
	"session_auth/internal/lib/jwt"
	sl "session_auth/internal/lib/logger"
	"session_auth/internal/models"

	"github.com/go-chi/chi/middleware"
)

type AccessDecoder interface {
	Decode(token string) (jwt.Claims, error)
}

type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
}

// New never rejects a request. Whatever fails, the request continues
// without a session in its context.
func New(log *slog.Logger, decoder AccessDecoder, refresher Refresher, policy cookies.Policy) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.refresh.New"

			accessToken, refreshToken := cookies.Read(r)

			if accessToken != "" {
				claims, err := decoder.Decode(accessToken)
				if err == nil && !claims.Expired(time.Now()) {
					next.ServeHTTP(w, r.WithContext(identity.WithSession(r.Context(), identity.Session{Claims: claims})))
					return
				}
			}

			if refreshToken == "" {
				next.ServeHTTP(w, r)
				return
			}

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			pair, err := refresher.Refresh(ctx, refreshToken)
			cancel()
			if err != nil {
				log.Debug("session not refreshed", sl.Err(err))

				next.ServeHTTP(w, r)
				return
			}

			// The old refresh token is spent, so the new cookies go out
			// even if the rest of the request fails.
			policy.SetTokens(w, pair)

			session := identity.Session{Rotated: &pair}
			if claims, err := decoder.Decode(pair.AccessToken); err == nil {
				session.Claims = claims
			} else {
				log.Error("failed to decode issued access token", sl.Err(err))
			}

			log.Info("session refreshed")

			next.ServeHTTP(w, r.WithContext(identity.WithSession(r.Context(), session)))
		}

		return http.HandlerFunc(fn)
	}
}
