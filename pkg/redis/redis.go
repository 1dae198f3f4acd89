package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultDialTimeout = 5 * time.Second

// Config holds Redis connection configuration.
type Config struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	PoolSize    int
	MinIdleConn int
	DialTimeout time.Duration
}

func (c Config) options() *redis.Options {
	dial := c.DialTimeout
	if dial <= 0 {
		dial = defaultDialTimeout
	}
	return &redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		MaxRetries:   c.MaxRetries,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConn,
		DialTimeout:  dial,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  dial,
	}
}

// Client is a go-redis client that logs its pool usage on close.
// The cache and the rate limiter use the embedded client directly.
type Client struct {
	*redis.Client
	log *zap.Logger
}

// NewClient connects and pings once. There is no retry: callers abort startup
// on error.
func NewClient(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	opts := cfg.options()
	rdb := redis.NewClient(opts)

	c := &Client{Client: rdb, log: log.Named("redis")}

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	c.log.Info("connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return c, nil
}

// Ping checks if the Redis connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Client) Close() error {
	s := c.PoolStats()
	c.log.Info("closing",
		zap.Uint32("hits", s.Hits),
		zap.Uint32("misses", s.Misses),
		zap.Uint32("timeouts", s.Timeouts),
		zap.Uint32("total_conns", s.TotalConns),
	)
	return c.Client.Close()
}
