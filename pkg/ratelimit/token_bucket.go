package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix prefixes every bucket key.
const KeyPrefix = "ratelimit:tb:"

// tokenBucket refills at ARGV[1] tokens per second up to ARGV[2] tokens and
// takes one token per call. Bucket state is {last_refill, tokens}.
var tokenBucket = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local bucket = redis.call('HMGET', key, 'last_refill', 'tokens')
	local last_refill = tonumber(bucket[1]) or now
	local tokens = tonumber(bucket[2]) or capacity

	local elapsed = math.max(0, now - last_refill)
	tokens = math.min(capacity, tokens + elapsed * rate)

	local allowed = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	end

	redis.call('HSET', key, 'last_refill', tostring(now), 'tokens', tostring(tokens))
	redis.call('EXPIRE', key, ttl)
	return allowed
`)

// Config holds the token bucket parameters.
type Config struct {
	RequestsPerSecond float64 // refill rate
	BurstCapacity     int     // bucket size
	BucketTTL         time.Duration
}

// Limiter is a Redis-backed token bucket shared by every server instance.
type Limiter struct {
	client redis.Scripter
	config Config
	now    func() time.Time
}

// New creates a limiter. A zero BucketTTL keeps idle buckets for a minute.
func New(client redis.Scripter, config Config) *Limiter {
	if config.BucketTTL <= 0 {
		config.BucketTTL = time.Minute
	}
	return &Limiter{client: client, config: config, now: time.Now}
}

// Allow takes one token from the bucket named key.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	now := float64(l.now().UnixMicro()) / 1e6
	ttl := int64(l.config.BucketTTL / time.Second)
	if ttl < 1 {
		ttl = 1
	}

	allowed, err := tokenBucket.Run(ctx, l.client, []string{KeyPrefix + key},
		l.config.RequestsPerSecond,
		l.config.BurstCapacity,
		now,
		ttl,
	).Int64()
	if err != nil {
		return false, err
	}
	return allowed == 1, nil
}

// Config returns the limiter parameters.
func (l *Limiter) Config() Config {
	return l.config
}
