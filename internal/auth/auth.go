// Package auth coordinates registration, login, logout, session refresh
// and identity resolution on top of the user and refresh token stores.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"session_auth/internal/lib/jwt"
	sl "session_auth/internal/lib/logger"
	"session_auth/internal/lib/password"
	"session_auth/internal/lib/phone"
	"session_auth/internal/lib/random"
	"session_auth/internal/models"
	"session_auth/internal/storage"

	"github.com/google/uuid"
)

// maxIssueAttempts bounds retries when a generated refresh token collides
// with a stored one.
const maxIssueAttempts = 3

var (
	ErrEmailTaken         = errors.New("email is already taken")
	ErrPhoneNumberTaken   = errors.New("phone number is already taken")
	ErrUserNotExists      = errors.New("user not exists")
	ErrIncorrectPassword  = errors.New("incorrect password")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidPassword    = errors.New("password does not satisfy policy")
	ErrInvalidPhoneNumber = errors.New("invalid phone number")
)

type UserSaver interface {
	SaveUser(ctx context.Context, user models.User) error
}

type UserProvider interface {
	User(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id string) (models.User, error)
	UserByPhone(ctx context.Context, phoneNumber string) (models.User, error)
}

type TokenStorage interface {
	SaveRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	TakeRefreshToken(ctx context.Context, tokenHash string) (models.RefreshToken, error)
	DeleteUserRefreshTokens(ctx context.Context, userID string) (int64, error)
}

type PasswordHasher interface {
	Hash(plain string) ([]byte, error)
	Verify(plain string, hash []byte) bool
	Equalize(plain string)
}

type TokenCodec interface {
	Encode(claims jwt.Claims, expiresAt time.Time) (string, error)
	Decode(token string) (jwt.Claims, error)
}

// Publisher receives auth events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

type Options struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// UnifyLoginErrors reports both unknown email and wrong password as
	// ErrInvalidCredentials.
	UnifyLoginErrors bool
	// PhoneRegion is used for phone numbers given without a country code.
	PhoneRegion string
}

type Auth struct {
	log         *slog.Logger
	usrSaver    UserSaver
	usrProvider UserProvider
	tokens      TokenStorage
	hasher      PasswordHasher
	codec       TokenCodec
	publisher   Publisher
	opts        Options

	now    func() time.Time
	secret func(size int) (string, error)
}

// New wires the coordinator. publisher may be nil.
func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	tokens TokenStorage,
	hasher PasswordHasher,
	codec TokenCodec,
	publisher Publisher,
	opts Options,
) *Auth {
	return &Auth{
		log:         log,
		usrSaver:    userSaver,
		usrProvider: userProvider,
		tokens:      tokens,
		hasher:      hasher,
		codec:       codec,
		publisher:   publisher,
		opts:        opts,
		now:         time.Now,
		secret:      random.String,
	}
}

func (a *Auth) RegisterNewUser(
	ctx context.Context,
	email string,
	pass string,
	phoneNumber string,
) (models.User, error) {
	const op = "auth.RegisterNewUser"

	log := a.log.With(
		slog.String("op", op),
	)

	log.Info("registering new user")

	if err := password.CheckPolicy(pass); err != nil {
		log.Info("password rejected by policy", sl.Err(err))

		return models.User{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidPassword, err)
	}

	email = strings.ToLower(strings.TrimSpace(email))

	if phoneNumber != "" {
		normalized, err := phone.Normalize(phoneNumber, a.opts.PhoneRegion)
		if err != nil {
			return models.User{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidPhoneNumber, err)
		}
		phoneNumber = normalized
	}

	if _, err := a.usrProvider.User(ctx, email); err == nil {
		log.Warn("email already taken")

		return models.User{}, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		log.Error("failed to look up email", sl.Err(err))

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if phoneNumber != "" {
		if _, err := a.usrProvider.UserByPhone(ctx, phoneNumber); err == nil {
			log.Warn("phone number already taken")

			return models.User{}, fmt.Errorf("%s: %w", op, ErrPhoneNumberTaken)
		} else if !errors.Is(err, storage.ErrUserNotFound) {
			log.Error("failed to look up phone number", sl.Err(err))

			return models.User{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	passHash, err := a.hasher.Hash(pass)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		ID:          uuid.NewString(),
		Email:       email,
		PhoneNumber: phoneNumber,
		PassHash:    passHash,
		IsActive:    true,
		Role:        models.RoleUser,
		CreatedAt:   a.now().UTC(),
	}

	// The stores enforce uniqueness too; this covers concurrent registrations.
	if err := a.usrSaver.SaveUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, storage.ErrEmailExists):
			log.Warn("email already taken")

			return models.User{}, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		case errors.Is(err, storage.ErrPhoneNumberExists):
			log.Warn("phone number already taken")

			return models.User{}, fmt.Errorf("%s: %w", op, ErrPhoneNumberTaken)
		}

		log.Error("failed to save user", sl.Err(err))

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.String("uid", user.ID))

	a.publish(ctx, log, models.EventUserRegistered, user)

	return user, nil
}

// Login checks the credentials and issues a new token pair.
func (a *Auth) Login(ctx context.Context, email, pass string) (models.TokenPair, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.User(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// Burn the same bcrypt time as a wrong password would.
			a.hasher.Equalize(pass)

			log.Warn("user not found")

			return models.TokenPair{}, fmt.Errorf("%s: %w", op, a.loginError(ErrUserNotExists))
		}

		log.Error("failed to get user", sl.Err(err))

		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if !a.hasher.Verify(pass, user.PassHash) {
		log.Info("incorrect password", slog.String("uid", user.ID))

		return models.TokenPair{}, fmt.Errorf("%s: %w", op, a.loginError(ErrIncorrectPassword))
	}

	pair, err := a.issueTokens(ctx, user)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))

		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in successfully", slog.String("uid", user.ID))

	a.publish(ctx, log, models.EventUserLoggedIn, user)

	return pair, nil
}

func (a *Auth) loginError(err error) error {
	if a.opts.UnifyLoginErrors {
		return ErrInvalidCredentials
	}

	return err
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// consumed whether or not the exchange succeeds.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	const op = "auth.Refresh"

	log := a.log.With(slog.String("op", op))

	if refreshToken == "" {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	rt, err := a.tokens.TakeRefreshToken(ctx, random.Fingerprint(refreshToken))
	if err != nil {
		if errors.Is(err, storage.ErrRefreshTokenNotFound) {
			log.Warn("refresh token not found")
			a.publish(ctx, log, models.EventSessionRefreshRejected, models.User{})

			return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		log.Error("failed to take refresh token", sl.Err(err))

		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if rt.IsExpired(a.now()) {
		log.Warn("refresh token expired", slog.String("uid", rt.UserID))
		a.publish(ctx, log, models.EventSessionRefreshRejected, models.User{ID: rt.UserID})

		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	user, err := a.usrProvider.UserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("refresh token owner no longer exists", slog.String("uid", rt.UserID))

			return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		log.Error("failed to load user", sl.Err(err))

		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := a.issueTokens(ctx, user)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))

		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("refresh successful", slog.String("uid", user.ID))

	a.publish(ctx, log, models.EventSessionRefreshed, user)

	return pair, nil
}

// Logout revokes every refresh token of the user behind refreshToken, or
// behind an unexpired accessToken when the refresh token is unusable.
// Nothing to revoke is not an error.
func (a *Auth) Logout(ctx context.Context, refreshToken, accessToken string) error {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	var userID string

	if refreshToken != "" {
		rt, err := a.tokens.TakeRefreshToken(ctx, random.Fingerprint(refreshToken))
		switch {
		case err == nil:
			userID = rt.UserID
		case !errors.Is(err, storage.ErrRefreshTokenNotFound):
			log.Error("failed to take refresh token", sl.Err(err))

			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if userID == "" && accessToken != "" {
		claims, err := a.codec.Decode(accessToken)
		if err == nil && !claims.Expired(a.now()) {
			user, err := a.usrProvider.User(ctx, claims.Subject)
			switch {
			case err == nil:
				userID = user.ID
			case !errors.Is(err, storage.ErrUserNotFound):
				log.Error("failed to get user", sl.Err(err))

				return fmt.Errorf("%s: %w", op, err)
			}
		}
	}

	if userID == "" {
		log.Info("no session to revoke")

		return nil
	}

	revoked, err := a.tokens.DeleteUserRefreshTokens(ctx, userID)
	if err != nil {
		log.Error("failed to revoke refresh tokens", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("logout successful", slog.String("uid", userID), slog.Int64("revoked", revoked))

	a.publish(ctx, log, models.EventUserLoggedOut, models.User{ID: userID})

	return nil
}

// ResolveIdentity returns the user an access token was issued to along with
// its claims. Expiry is not checked here.
func (a *Auth) ResolveIdentity(ctx context.Context, accessToken string) (models.User, jwt.Claims, error) {
	const op = "auth.ResolveIdentity"

	if accessToken == "" {
		return models.User{}, jwt.Claims{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, err := a.codec.Decode(accessToken)
	if err != nil {
		return models.User{}, jwt.Claims{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}

	user, err := a.usrProvider.User(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, jwt.Claims{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return models.User{}, jwt.Claims{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, claims, nil
}

// issueTokens returns a pair only after the refresh token is persisted.
func (a *Auth) issueTokens(ctx context.Context, user models.User) (models.TokenPair, error) {
	const op = "auth.issueTokens"

	now := a.now()

	pair := models.TokenPair{
		AccessExpiresAt:  now.Add(a.opts.AccessTTL),
		RefreshExpiresAt: now.Add(a.opts.RefreshTTL),
	}

	access, err := a.codec.Encode(jwt.Claims{
		Subject: user.Email,
		Role:    string(user.Role),
	}, pair.AccessExpiresAt)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	pair.AccessToken = access

	for attempt := 1; ; attempt++ {
		value, err := a.secret(random.DefaultSecretSize)
		if err != nil {
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
		}

		err = a.tokens.SaveRefreshToken(ctx, user.ID, random.Fingerprint(value), pair.RefreshExpiresAt)
		if err == nil {
			pair.RefreshToken = value

			return pair, nil
		}

		if !errors.Is(err, storage.ErrRefreshTokenExists) || attempt == maxIssueAttempts {
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
		}
	}
}

func (a *Auth) publish(ctx context.Context, log *slog.Logger, typ models.EventType, user models.User) {
	if a.publisher == nil {
		return
	}

	event := models.Event{
		Type:       typ,
		UserID:     user.ID,
		Email:      user.Email,
		OccurredAt: a.now().UTC(),
	}

	if err := a.publisher.Publish(ctx, event); err != nil {
		log.Warn("failed to publish event", slog.String("type", string(typ)), sl.Err(err))
	}
}
