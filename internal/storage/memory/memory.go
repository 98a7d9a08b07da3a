// Package memory is a process-local user and refresh token store for
// local runs and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"session_auth/internal/models"
	"session_auth/internal/storage"
)

type MemoryRepo struct {
	mu      sync.Mutex
	users   map[string]models.User
	byEmail map[string]string
	byPhone map[string]string
	tokens  map[string]models.RefreshToken
	now     func() time.Time
}

func New() *MemoryRepo {
	return &MemoryRepo{
		users:   make(map[string]models.User),
		byEmail: make(map[string]string),
		byPhone: make(map[string]string),
		tokens:  make(map[string]models.RefreshToken),
		now:     time.Now,
	}
}

func (r *MemoryRepo) SaveUser(_ context.Context, user models.User) error {
	const op = "storage.memory.SaveUser"

	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := r.byEmail[email]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrEmailExists)
	}
	if user.PhoneNumber != "" {
		if _, ok := r.byPhone[user.PhoneNumber]; ok {
			return fmt.Errorf("%s: %w", op, storage.ErrPhoneNumberExists)
		}
		r.byPhone[user.PhoneNumber] = user.ID
	}

	r.byEmail[email] = user.ID
	r.users[user.ID] = user

	return nil
}

func (r *MemoryRepo) User(_ context.Context, email string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lookup("storage.memory.User", r.byEmail[strings.ToLower(email)])
}

func (r *MemoryRepo) UserByID(_ context.Context, id string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lookup("storage.memory.UserByID", id)
}

func (r *MemoryRepo) UserByPhone(_ context.Context, phoneNumber string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lookup("storage.memory.UserByPhone", r.byPhone[phoneNumber])
}

func (r *MemoryRepo) lookup(op, id string) (models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return u, nil
}

// DeleteUser removes the user and, like the SQL cascade, its refresh tokens.
func (r *MemoryRepo) DeleteUser(_ context.Context, id string) error {
	const op = "storage.memory.DeleteUser"

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	delete(r.users, id)
	delete(r.byEmail, strings.ToLower(u.Email))
	if u.PhoneNumber != "" {
		delete(r.byPhone, u.PhoneNumber)
	}

	for hash, t := range r.tokens {
		if t.UserID == id {
			delete(r.tokens, hash)
		}
	}

	return nil
}

func (r *MemoryRepo) SaveRefreshToken(_ context.Context, userID, tokenHash string, expiresAt time.Time) error {
	const op = "storage.memory.SaveRefreshToken"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[tokenHash]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrRefreshTokenExists)
	}

	r.tokens[tokenHash] = models.RefreshToken{
		TokenHash: tokenHash,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: r.now(),
	}

	return nil
}

func (r *MemoryRepo) TakeRefreshToken(_ context.Context, tokenHash string) (models.RefreshToken, error) {
	const op = "storage.memory.TakeRefreshToken"

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[tokenHash]
	if !ok {
		return models.RefreshToken{}, fmt.Errorf("%s: %w", op, storage.ErrRefreshTokenNotFound)
	}

	delete(r.tokens, tokenHash)

	return t, nil
}

func (r *MemoryRepo) DeleteUserRefreshTokens(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, hash)
			n++
		}
	}

	return n, nil
}

func (r *MemoryRepo) DeleteExpiredRefreshTokens(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	var n int64
	for hash, t := range r.tokens {
		if t.IsExpired(now) {
			delete(r.tokens, hash)
			n++
		}
	}

	return n, nil
}

// RefreshTokenCount is the number of stored refresh tokens.
func (r *MemoryRepo) RefreshTokenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.tokens)
}

// UserCount is the number of stored users.
func (r *MemoryRepo) UserCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.users)
}

func (r *MemoryRepo) Ping(context.Context) error {
	return nil
}

func (r *MemoryRepo) Close() {}
