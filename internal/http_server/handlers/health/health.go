package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	resp "session_auth/internal/lib/api/response"
	sl "session_auth/internal/lib/logger"

	"github.com/go-chi/render"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// New answers 200 while every dependency responds to a ping and 503 otherwise.
func New(log *slog.Logger, deps ...Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.health.New"

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for _, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				log.Warn("dependency unavailable", slog.String("op", op), sl.Err(err))

				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, resp.Error("Service unavailable"))

				return
			}
		}

		render.JSON(w, r, resp.OK())
	}
}
