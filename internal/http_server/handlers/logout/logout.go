package logout

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"session_auth/internal/http_server/cookies"
	resp "session_auth/internal/lib/api/response"
	"session_auth/internal/lib/identity"
	sl "session_auth/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type SessionTerminator interface {
	Logout(ctx context.Context, refreshToken, accessToken string) error
}

// New revokes the caller's refresh tokens and clears both cookies. The
// cookies are cleared even when revocation fails.
func New(
	log *slog.Logger,
	terminator SessionTerminator,
	policy cookies.Policy,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.logout.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		accessToken, refreshToken := cookies.Read(r)

		// The refresh middleware may already have spent the cookie value.
		if session, ok := identity.FromContext(r.Context()); ok && session.Rotated != nil {
			accessToken = session.Rotated.AccessToken
			refreshToken = session.Rotated.RefreshToken
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		err := terminator.Logout(ctx, refreshToken, accessToken)

		policy.Clear(w)

		if err != nil {
			log.Error("failed to logout user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("user logged out successfully")

		render.JSON(w, r, resp.OK())
	}
}
