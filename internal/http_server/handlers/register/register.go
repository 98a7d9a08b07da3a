package register

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"session_auth/internal/auth"
	resp "session_auth/internal/lib/api/response"
	sl "session_auth/internal/lib/logger"
	"session_auth/internal/lib/password"
	"session_auth/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Pass        string `json:"password" validate:"required,password"`
	PhoneNumber string `json:"phone_number,omitempty" validate:"omitempty,phone"`
}

type Response struct {
	resp.Response
	UserID string `json:"user_id,omitempty"`
}

type UserRegistrar interface {
	RegisterNewUser(ctx context.Context, email, pass, phoneNumber string) (models.User, error)
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	registrar UserRegistrar,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.register.New"

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

		log.Info("Request body decoded")

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

		user, err := registrar.RegisterNewUser(ctx, req.Email, req.Pass, req.PhoneNumber)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrEmailTaken):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Email is already taken"))
			case errors.Is(err, auth.ErrPhoneNumberTaken):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Phone number is already taken"))
			case errors.Is(err, auth.ErrInvalidPassword):
				render.Status(r, http.StatusUnprocessableEntity)
				render.JSON(w, r, resp.Error(policyMessage(err)))
			case errors.Is(err, auth.ErrInvalidPhoneNumber):
				render.Status(r, http.StatusUnprocessableEntity)
				render.JSON(w, r, resp.Error("Invalid phone number"))
			default:
				log.Error("failed to register user", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		log.Info("User registered", slog.String("id", user.ID))

		render.Status(r, http.StatusCreated)
		ResponseOK(w, r, user.ID)
	}
}

func policyMessage(err error) string {
	for _, policyErr := range password.PolicyErrors {
		if errors.Is(err, policyErr) {
			return policyErr.Error()
		}
	}

	return "Invalid password"
}

func ResponseOK(w http.ResponseWriter, r *http.Request, userID string) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
		UserID:   userID,
	})
}
