package refresh

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"session_auth/internal/auth"
	"session_auth/internal/http_server/cookies"
	resp "session_auth/internal/lib/api/response"
	"session_auth/internal/lib/identity"
	sl "session_auth/internal/lib/logger"
	"session_auth/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type SessionRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
}

func New(
	log *slog.Logger,
	refresher SessionRefresher,
	policy cookies.Policy,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.refresh.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		// Already rotated by the refresh middleware, which also wrote the cookies.
		if session, ok := identity.FromContext(r.Context()); ok && session.Rotated != nil {
			log.Info("Tokens refreshed by middleware")

			render.JSON(w, r, resp.OK())

			return
		}

		_, refreshToken := cookies.Read(r)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		pair, err := refresher.Refresh(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				log.Info("refresh rejected", sl.Err(err))

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Invalid token"))

				return
			}

			log.Error("failed to refresh tokens", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("Tokens refreshed successfully")

		policy.SetTokens(w, pair)
		render.JSON(w, r, resp.OK())
	}
}
