package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domain "mongo-user-service/internal/domain/user"
)

// KeyPrefix prefixes every cached user key.
const KeyPrefix = "user:"

// Hash fields of a cached user entry.
const (
	fieldDocument = "doc"       // flat JSON form of the user
	fieldCachedAt = "cached_at" // unix seconds
)

// UserCache is a read-through store for users. Get reports a miss as nil, nil.
type UserCache interface {
	Get(ctx context.Context, id int64) (*domain.User, error)
	Set(ctx context.Context, user *domain.User) error
}

// RedisUserCache keeps each user in a Redis hash under user:<id>.
type RedisUserCache struct {
	client redis.Cmdable
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisUserCache creates a new Redis-backed user cache.
func NewRedisUserCache(client redis.Cmdable, ttl time.Duration, log *zap.Logger) *RedisUserCache {
	return &RedisUserCache{client: client, ttl: ttl, log: log.Named("user_cache")}
}

// Key returns the Redis key holding the user with the given id.
func Key(id int64) string {
	return KeyPrefix + strconv.FormatInt(id, 10)
}

// Get loads a cached user. An entry whose id disagrees with its key is
// reported as an error so the caller falls back to the store.
func (c *RedisUserCache) Get(ctx context.Context, id int64) (*domain.User, error) {
	data, err := c.client.HGet(ctx, Key(id), fieldDocument).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		c.log.Debug("cache miss", zap.Int64("user_id", id))
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read cached user %d: %w", id, err)
	}

	var u domain.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to decode cached user %d: %w", id, err)
	}
	if u.ID != id {
		return nil, fmt.Errorf("cached user id mismatch: key=%d value=%d", id, u.ID)
	}

	c.log.Debug("cache hit", zap.Int64("user_id", id))
	return &u, nil
}

// Set writes the user and its expiry in one MULTI/EXEC.
func (c *RedisUserCache) Set(ctx context.Context, user *domain.User) error {
	if user == nil {
		return errors.New("cannot cache nil user")
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user %d: %w", user.ID, err)
	}

	key := Key(user.ID)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldDocument, data, fieldCachedAt, time.Now().Unix())
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cache user %d: %w", user.ID, err)
	}

	c.log.Debug("cached user", zap.Int64("user_id", user.ID), zap.Duration("ttl", c.ttl))
	return nil
}
