package me

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
	"session_auth/internal/lib/jwt"
	sl "session_auth/internal/lib/logger"
	"session_auth/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type UserResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Role        string `json:"role,omitempty"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
	IsVerified  bool   `json:"is_verified"`
}

type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, accessToken string) (models.User, jwt.Claims, error)
}

func New(
	log *slog.Logger,
	resolver IdentityResolver,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.me.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		accessToken, _ := cookies.Read(r)
		if session, ok := identity.FromContext(r.Context()); ok && session.Rotated != nil {
			accessToken = session.Rotated.AccessToken
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		user, claims, err := resolver.ResolveIdentity(ctx, accessToken)
		if err == nil && claims.Expired(time.Now()) {
			err = auth.ErrInvalidToken
		}
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Invalid token"))

				return
			}

			log.Error("failed to resolve identity", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, UserResponse{
			ID:          user.ID,
			Email:       user.Email,
			PhoneNumber: user.PhoneNumber,
			Role:        string(user.Role),
			IsActive:    user.IsActive,
			IsSuperuser: user.IsSuperuser,
			IsVerified:  user.IsVerified,
		})
	}
}
