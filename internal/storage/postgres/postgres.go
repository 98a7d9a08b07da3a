package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"session_auth/internal/config"
	"session_auth/internal/models"
	"session_auth/internal/storage"
	"session_auth/internal/storage/postgres/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const (
	uniqueViolation = "23505"

	constraintEmail = "users_email_lower_idx"
	constraintPhone = "users_phone_number_key"
)

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type PostgresRepo struct {
	db DB
}

func New(db DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Connect opens a pool for cfg and checks that the server answers.
func Connect(ctx context.Context, cfg config.Postgres) (*pgxpool.Pool, error) {
	const op = "storage.postgres.Connect"

	poolConfig, err := pgxpool.ParseConfig(dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return pool, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded schema migrations through pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	const op = "storage.postgres.Migrate"

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) SaveUser(ctx context.Context, user models.User) error {
	const op = "storage.postgres.SaveUser"

	const query = `
		INSERT INTO users (id, email, phone_number, password_hash, is_active, is_verified, is_superuser, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.Email,
		nullable(user.PhoneNumber),
		user.PassHash,
		user.IsActive,
		user.IsVerified,
		user.IsSuperuser,
		nullable(string(user.Role)),
		user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == constraintPhone {
				return fmt.Errorf("%s: %w", op, storage.ErrPhoneNumberExists)
			}

			return fmt.Errorf("%s: %w", op, storage.ErrEmailExists)
		}

		return fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return nil
}

const selectUser = `
	SELECT id::text, email, phone_number, password_hash, is_active, is_verified, is_superuser, role, created_at
	FROM users
`

// User looks the user up by email, ignoring case.
func (r *PostgresRepo) User(ctx context.Context, email string) (models.User, error) {
	const op = "storage.postgres.User"

	return r.user(ctx, op, selectUser+`WHERE LOWER(email) = LOWER($1);`, email)
}

func (r *PostgresRepo) UserByID(ctx context.Context, id string) (models.User, error) {
	const op = "storage.postgres.UserByID"

	return r.user(ctx, op, selectUser+`WHERE id = $1;`, id)
}

func (r *PostgresRepo) UserByPhone(ctx context.Context, phoneNumber string) (models.User, error) {
	const op = "storage.postgres.UserByPhone"

	return r.user(ctx, op, selectUser+`WHERE phone_number = $1;`, phoneNumber)
}

func (r *PostgresRepo) user(ctx context.Context, op, query string, arg string) (models.User, error) {
	var (
		u     models.User
		phone *string
		role  *string
	)

	err := r.db.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&phone,
		&u.PassHash,
		&u.IsActive,
		&u.IsVerified,
		&u.IsSuperuser,
		&role,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if phone != nil {
		u.PhoneNumber = *phone
	}
	if role != nil {
		u.Role = models.Role(*role)
	}

	return u, nil
}

func (r *PostgresRepo) SaveRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	const op = "storage.postgres.SaveRefreshToken"

	const query = `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3);
	`

	_, err := r.db.Exec(ctx, query, tokenHash, userID, expiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrRefreshTokenExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// TakeRefreshToken deletes and returns the token in one statement, so two
// concurrent callers can never both receive the row.
func (r *PostgresRepo) TakeRefreshToken(ctx context.Context, tokenHash string) (models.RefreshToken, error) {
	const op = "storage.postgres.TakeRefreshToken"

	const query = `
		DELETE FROM refresh_tokens
		WHERE token_hash = $1
		RETURNING token_hash, user_id::text, expires_at, created_at;
	`

	var rt models.RefreshToken

	err := r.db.QueryRow(ctx, query, tokenHash).Scan(&rt.TokenHash, &rt.UserID, &rt.ExpiresAt, &rt.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RefreshToken{}, fmt.Errorf("%s: %w", op, storage.ErrRefreshTokenNotFound)
		}

		return models.RefreshToken{}, fmt.Errorf("%s: %w", op, err)
	}

	return rt, nil
}

func (r *PostgresRepo) DeleteUserRefreshTokens(ctx context.Context, userID string) (int64, error) {
	const op = "storage.postgres.DeleteUserRefreshTokens"

	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1;`, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *PostgresRepo) DeleteExpiredRefreshTokens(ctx context.Context) (int64, error) {
	const op = "storage.postgres.DeleteExpiredRefreshTokens"

	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= NOW();`)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *PostgresRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *PostgresRepo) Close() {
	r.db.Close()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func dsn(cfg config.Postgres) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.SSLMode,
	)
}
