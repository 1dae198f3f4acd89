package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domain "mongo-user-service/internal/domain/user"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, mr
}

func TestRedisUserCache_Set_Success(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisUserCache(client, 5*time.Minute, zaptest.NewLogger(t))

	user := &domain.User{
		ID:         1,
		DocumentID: "65f1c0ffee0000000000beef",
		Fields:     map[string]any{"name": "John Doe", "tags": []any{"a", "b"}},
	}

	require.NoError(t, cache.Set(context.Background(), user))

	raw := mr.HGet("user:1", "doc")
	require.NotEmpty(t, raw)
	assert.NotEmpty(t, mr.HGet("user:1", "cached_at"))

	var stored map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, float64(1), stored["id"])
	assert.Equal(t, "65f1c0ffee0000000000beef", stored["_id"])
	assert.Equal(t, "John Doe", stored["name"])

	assert.Equal(t, 5*time.Minute, mr.TTL("user:1"))
}

func TestRedisUserCache_Set_NilUser(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewRedisUserCache(client, 5*time.Minute, zaptest.NewLogger(t))

	err := cache.Set(context.Background(), nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot cache nil user")
}

func TestRedisUserCache_Get_RoundTrip(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewRedisUserCache(client, 5*time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	user := &domain.User{
		ID:         7,
		DocumentID: "65f1c0ffee0000000000beef",
		Fields:     map[string]any{"name": "Jane", "age": int64(41), "score": 9.5},
	}
	require.NoError(t, cache.Set(ctx, user))

	got, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user, got)
}

func TestRedisUserCache_Get_Miss(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewRedisUserCache(client, 5*time.Minute, zaptest.NewLogger(t))

	got, err := cache.Get(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisUserCache_Get_Expired(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisUserCache(client, time.Second, zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &domain.User{ID: 1, Fields: map[string]any{"name": "x"}}))
	mr.FastForward(2 * time.Second)

	got, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisUserCache_Get_CorruptedEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisUserCache(client, time.Minute, zaptest.NewLogger(t))

	mr.HSet("user:3", "doc", "{not json")

	got, err := cache.Get(context.Background(), 3)
	assert.Error(t, err)
	assert.Nil(t, got)
}

func TestRedisUserCache_Get_IDMismatch(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisUserCache(client, time.Minute, zaptest.NewLogger(t))

	mr.HSet("user:3", "doc", `{"id":4,"name":"wrong"}`)

	got, err := cache.Get(context.Background(), 3)
	assert.Error(t, err)
	assert.Nil(t, got)
}

func TestRedisUserCache_Get_WrongType(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisUserCache(client, time.Minute, zaptest.NewLogger(t))

	require.NoError(t, mr.Set("user:5", "plain string"))

	got, err := cache.Get(context.Background(), 5)
	assert.Error(t, err)
	assert.Nil(t, got)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "user:42", Key(42))
}

func TestRedisUserCache_RedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisUserCache(client, time.Minute, zaptest.NewLogger(t))
	mr.Close()

	_, err := cache.Get(context.Background(), 1)
	assert.Error(t, err)
	assert.Error(t, cache.Set(context.Background(), &domain.User{ID: 1}))
}
