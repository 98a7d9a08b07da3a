package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"session_auth/internal/auth"
	"session_auth/internal/cleanup"
	"session_auth/internal/config"
	"session_auth/internal/http_server/cookies"
	"session_auth/internal/http_server/handlers/health"
	"session_auth/internal/http_server/handlers/login"
	"session_auth/internal/http_server/handlers/logout"
	"session_auth/internal/http_server/handlers/me"
	"session_auth/internal/http_server/handlers/refresh"
	"session_auth/internal/http_server/handlers/register"
	"session_auth/internal/lib/jwt"
	sl "session_auth/internal/lib/logger"
	"session_auth/internal/lib/password"
	"session_auth/internal/lib/validation"
	rateLimit "session_auth/internal/middleware/ratelimit"
	refreshmw "session_auth/internal/middleware/refresh"
	"session_auth/internal/rabbitmq"
	"session_auth/internal/storage/memory"
	"session_auth/internal/storage/postgres"
	"session_auth/internal/storage/redis"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting auth service", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	stores, err := setupStorage(ctx, log, cfg)
	if err != nil {
		log.Error("failed to set up storage", sl.Err(err))
		os.Exit(1)
	}
	defer stores.close()

	var publisher auth.Publisher
	if cfg.RabbitMQ.URL != "" {
		msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
		if err != nil {
			log.Error("failed to connect rabbitmq", sl.Err(err))
			os.Exit(1)
		}
		defer msgBroker.Close()

		publisher = msgBroker
		stores.pingers = append(stores.pingers, msgBroker)
	}

	codec, err := jwt.New(cfg.Tokens.Secret, cfg.Tokens.Algorithm)
	if err != nil {
		log.Error("invalid token configuration", sl.Err(err))
		os.Exit(1)
	}

	hasher, err := password.New(cfg.Auth.BcryptCost)
	if err != nil {
		log.Error("invalid password hashing configuration", sl.Err(err))
		os.Exit(1)
	}

	sameSite, err := cookies.ParseSameSite(cfg.Cookies.SameSite)
	if err != nil {
		log.Error("invalid cookie configuration", sl.Err(err))
		os.Exit(1)
	}

	policy := cookies.Policy{
		Secure:   cfg.Cookies.Secure,
		SameSite: sameSite,
		Domain:   cfg.Cookies.Domain,
	}

	authService := auth.New(
		log,
		stores.users,
		stores.users,
		stores.tokens,
		hasher,
		codec,
		publisher,
		auth.Options{
			AccessTTL:        cfg.Tokens.AccessTokenTTL,
			RefreshTTL:       cfg.Tokens.RefreshTokenTTL,
			UnifyLoginErrors: cfg.Auth.UnifyLoginErrors,
			PhoneRegion:      cfg.Auth.PhoneRegion,
		},
	)

	go cleanup.New(log, stores.tokens, cfg.Tokens.CleanupInterval).Run(ctx)

	router := setupRouter(
		log,
		authService,
		codec,
		validation.New(cfg.Auth.PhoneRegion),
		policy,
		cfg.HTTPServer.RefreshMiddleware,
		stores.pingers...,
	)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", sl.Err(err))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", sl.Err(err))
	} else {
		log.Info("Server stopped gracefully")
	}

	log.Info("Main service stopped")
}

type userStore interface {
	auth.UserSaver
	auth.UserProvider
}

type tokenStore interface {
	auth.TokenStorage
	cleanup.ExpiredTokenDeleter
}

type storageSet struct {
	users   userStore
	tokens  tokenStore
	pingers []health.Pinger
	closers []func()
}

func (s *storageSet) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func setupStorage(ctx context.Context, log *slog.Logger, cfg *config.Config) (*storageSet, error) {
	const op = "main.setupStorage"

	set := &storageSet{}

	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		repo := memory.New()
		set.users = repo
		set.tokens = repo
	case config.StorageDriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if cfg.Postgres.MigrateOnStart {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			log.Info("database migrations applied")
		}

		repo := postgres.New(pool)
		set.users = repo
		set.tokens = repo
		set.pingers = append(set.pingers, repo)
		set.closers = append(set.closers, repo.Close)
	default:
		return nil, fmt.Errorf("%s: unknown storage driver %q", op, cfg.Storage.Driver)
	}

	switch cfg.Storage.RefreshTokens {
	case config.StorageDriverRedis:
		repo, err := redis.New(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			set.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		set.tokens = repo
		set.pingers = append(set.pingers, repo)
		set.closers = append(set.closers, repo.Close)
	case config.StorageDriverMemory:
		if cfg.Storage.Driver != config.StorageDriverMemory {
			set.tokens = memory.New()
		}
	}

	log.Info("storage ready",
		slog.String("users", cfg.Storage.Driver),
		slog.String("refresh_tokens", cfg.Storage.RefreshTokens),
	)

	return set, nil
}

func setupRouter(
	log *slog.Logger,
	authService *auth.Auth,
	codec *jwt.Codec,
	validate *validator.Validate,
	policy cookies.Policy,
	refreshMiddleware bool,
	pingers ...health.Pinger,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", health.New(log, pingers...))

	r.Route("/auth", func(r chi.Router) {
		if refreshMiddleware {
			r.Use(refreshmw.New(log, codec, authService, policy))
		}

		r.With(rateLimit.Register()).Post("/register",
			register.New(log, validate, authService),
		)
		r.With(rateLimit.Login()).Post("/login",
			login.New(log, validate, authService, policy),
		)
		r.With(rateLimit.Logout()).Post("/logout",
			logout.New(log, authService, policy),
		)
		r.With(rateLimit.Refresh()).Post("/refresh",
			refresh.New(log, authService, policy),
		)
		r.With(rateLimit.Me()).Get("/me",
			me.New(log, authService),
		)
	})

	return r
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
