package login

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"session_auth/internal/auth"
	"session_auth/internal/http_server/cookies"
	resp "session_auth/internal/lib/api/response"
	sl "session_auth/internal/lib/logger"
	"session_auth/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Email string `json:"email" validate:"required,email"`
	Pass  string `json:"password" validate:"required"`
}

type Authenticator interface {
	Login(ctx context.Context, email, pass string) (models.TokenPair, error)
}

// New answers with the token pair in HTTP-only cookies only. The body
// carries the status envelope.
func New(
	log *slog.Logger,
	validate *validator.Validate,
	authenticator Authenticator,
	policy cookies.Policy,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			var validateErr validator.ValidationErrors
			if !errors.As(err, &validateErr) {
				log.Error("failed to validate request", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))

				return
			}

			log.Info("Invalid request", sl.Err(err))

			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		pair, err := authenticator.Login(ctx, req.Email, req.Pass)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrUserNotExists):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("User not exists"))
			case errors.Is(err, auth.ErrIncorrectPassword):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Incorrect password"))
			case errors.Is(err, auth.ErrInvalidCredentials):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Invalid credentials"))
			default:
				log.Error("failed to login user", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		log.Info("User logged in successfully")

		policy.SetTokens(w, pair)
		render.JSON(w, r, resp.OK())
	}
}
