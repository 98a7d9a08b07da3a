package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"session_auth/internal/models"
	"session_auth/internal/storage"

	"github.com/redis/go-redis/v9"
)

// RedisRepo keeps refresh tokens as JSON under refresh:<hash> with a TTL
// matching the token lifetime. refresh:user:<id> indexes a user's hashes
// for logout.
type RedisRepo struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*RedisRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewFromClient(client), nil
}

func NewFromClient(client *redis.Client) *RedisRepo {
	return &RedisRepo{
		client: client,
	}
}

func tokenKey(tokenHash string) string {
	return fmt.Sprintf("refresh:%s", tokenHash)
}

func userKey(userID string) string {
	return fmt.Sprintf("refresh:user:%s", userID)
}

func (r *RedisRepo) SaveRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	const op = "storage.redis.SaveRefreshToken"

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Already expired: a later take would miss it either way.
		return nil
	}

	data, err := json.Marshal(models.RefreshToken{
		TokenHash: tokenHash,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// SETNX keeps an existing token from being overwritten.
	ok, err := r.client.SetNX(ctx, tokenKey(tokenHash), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrRefreshTokenExists)
	}

	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, userKey(userID), tokenHash)
	pipe.Expire(ctx, userKey(userID), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// TakeRefreshToken uses GETDEL so that only one caller ever reads the value.
func (r *RedisRepo) TakeRefreshToken(ctx context.Context, tokenHash string) (models.RefreshToken, error) {
	const op = "storage.redis.TakeRefreshToken"

	data, err := r.client.GetDel(ctx, tokenKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.RefreshToken{}, fmt.Errorf("%s: %w", op, storage.ErrRefreshTokenNotFound)
		}

		return models.RefreshToken{}, fmt.Errorf("%s: %w", op, err)
	}

	var rt models.RefreshToken
	if err := json.Unmarshal(data, &rt); err != nil {
		return models.RefreshToken{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := r.client.SRem(ctx, userKey(rt.UserID), tokenHash).Err(); err != nil {
		return models.RefreshToken{}, fmt.Errorf("%s: %w", op, err)
	}

	return rt, nil
}

func (r *RedisRepo) DeleteUserRefreshTokens(ctx context.Context, userID string) (int64, error) {
	const op = "storage.redis.DeleteUserRefreshTokens"

	hashes, err := r.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	keys := make([]string, 0, len(hashes))
	for _, h := range hashes {
		keys = append(keys, tokenKey(h))
	}

	pipe := r.client.TxPipeline()
	var deleted *redis.IntCmd
	if len(keys) > 0 {
		deleted = pipe.Del(ctx, keys...)
	}
	pipe.Del(ctx, userKey(userID))

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if deleted == nil {
		return 0, nil
	}

	return deleted.Val(), nil
}

// DeleteExpiredRefreshTokens is a no-op: Redis expires the keys itself.
func (r *RedisRepo) DeleteExpiredRefreshTokens(context.Context) (int64, error) {
	return 0, nil
}

func (r *RedisRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepo) Close() {
	r.client.Close()
}
