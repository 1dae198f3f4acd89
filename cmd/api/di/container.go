package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"mongo-user-service/cmd/api/infrastructure"
	"mongo-user-service/internal/adapter/cache"
	"mongo-user-service/internal/adapter/db/gormdb"
	"mongo-user-service/internal/adapter/db/mongodb"
	ginhandler "mongo-user-service/internal/adapter/gin/handler"
	"mongo-user-service/internal/adapter/gin/router"
	"mongo-user-service/internal/adapter/repository/cached"
	"mongo-user-service/internal/config"
	"mongo-user-service/internal/usecase/user"
	"mongo-user-service/pkg/ratelimit"
	redisclient "mongo-user-service/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Mongo       *mongo.Client // set for the mongo driver
	DB          *gorm.DB      // set for the postgres and sqlite drivers
	RedisClient *redisclient.Client
	RateLimiter *ratelimit.Limiter
	UserUC      user.Usecase
	GinHandler  *ginhandler.UserHandler
	Ping        router.PingFunc
}

// NewContainer creates and initializes all application dependencies.
// Any failure releases what was already opened.
func NewContainer(ctx context.Context, cfg *config.Config, l *zap.Logger) (*Container, error) {
	// Validate configuration before initializing any dependencies
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	c := &Container{Config: cfg, Logger: l}
	if err := c.init(ctx); err != nil {
		if closeErr := c.Close(context.Background()); closeErr != nil {
			l.Warn("failed to release partially initialized dependencies", zap.Error(closeErr))
		}
		return nil, err
	}

	return c, nil
}

func (c *Container) init(ctx context.Context) error {
	cfg, l := c.Config, c.Logger

	repo, err := c.newRepository(ctx)
	if err != nil {
		return err
	}

	c.RedisClient, err = infrastructure.NewRedisClient(ctx, cfg, l)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}

	if c.RedisClient != nil {
		userCache := cache.NewRedisUserCache(
			c.RedisClient.Client,
			time.Duration(cfg.Redis.CacheTTL)*time.Second,
			l,
		)
		repo = cached.NewCachedUserRepository(repo, userCache, l)

		if cfg.RateLimit.Enabled {
			c.RateLimiter = ratelimit.New(c.RedisClient.Client, ratelimit.Config{
				RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
				BurstCapacity:     cfg.RateLimit.BurstCapacity,
				BucketTTL:         time.Duration(cfg.RateLimit.BucketTTLSeconds) * time.Second,
			})
		}
	}

	c.UserUC = user.New(repo, l)
	c.GinHandler = ginhandler.NewUserHandler(c.UserUC, l)
	return nil
}

// newRepository opens the store selected by STORAGE_DRIVER.
func (c *Container) newRepository(ctx context.Context) (user.Repository, error) {
	cfg, l := c.Config, c.Logger

	switch cfg.Storage.Driver {
	case config.DriverMongo:
		client, err := infrastructure.NewMongoClient(ctx, cfg, l)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mongo: %w", err)
		}
		c.Mongo = client
		c.Ping = func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		}

		repo := mongodb.NewUserRepoMongo(client.Database(cfg.Mongo.Database), cfg.Mongo.Collection, l)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		if err := repo.SyncSequence(ctx); err != nil {
			return nil, err
		}
		return repo, nil

	case config.DriverPostgres, config.DriverSQLite:
		db, err := infrastructure.NewSQLDatabase(cfg, l)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		c.DB = db
		c.Ping = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
		return gormdb.NewUserRepoGorm(db, l), nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// Close closes all resources held by the container
func (c *Container) Close(ctx context.Context) error {
	var errs []error

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	if c.Mongo != nil {
		if err := infrastructure.CloseMongo(ctx, c.Mongo); err != nil {
			errs = append(errs, err)
		}
	}

	if c.DB != nil {
		if err := infrastructure.CloseDatabase(c.DB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	return errors.Join(errs...)
}
