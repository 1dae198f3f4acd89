package cached

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"mongo-user-service/internal/adapter/cache"
	domain "mongo-user-service/internal/domain/user"
	"mongo-user-service/internal/usecase/user"
	"mongo-user-service/pkg/logger"
)

// CachedUserRepository implements user.Repository with caching support.
// It wraps a persistent repository and a cache implementation. Cache failures
// are logged and never surface to callers.
type CachedUserRepository struct {
	dbRepo user.Repository
	cache  cache.UserCache
	log    *zap.Logger
	group  singleflight.Group
}

// NewCachedUserRepository creates a new instance of CachedUserRepository.
func NewCachedUserRepository(dbRepo user.Repository, cache cache.UserCache, log *zap.Logger) *CachedUserRepository {
	return &CachedUserRepository{
		dbRepo: dbRepo,
		cache:  cache,
		log:    log,
	}
}

// Create delegates to the DB repository and warms the cache with the new user.
func (r *CachedUserRepository) Create(ctx context.Context, id int64, fields map[string]any) (*domain.User, error) {
	u, err := r.dbRepo.Create(ctx, id, fields)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, u); err != nil {
			logger.WithContext(ctx, r.log).Warn("failed to cache created user", zap.Int64("id", u.ID), zap.Error(err))
		}
	}

	return u, nil
}

// GetByID retrieves a user by ID using Cache-Aside pattern.
func (r *CachedUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	log := logger.WithContext(ctx, r.log)

	if r.cache != nil {
		cachedUser, err := r.cache.Get(ctx, id)
		if err != nil {
			log.Warn("cache get error, falling back to database", zap.Int64("id", id), zap.Error(err))
		} else if cachedUser != nil {
			log.Debug("user retrieved from cache", zap.Int64("id", id))
			return cachedUser, nil
		}
	}

	// Cache miss or cache disabled: one database read per id at a time
	key := fmt.Sprintf("user:%d", id)
	result, err, shared := r.group.Do(key, func() (any, error) {
		if r.cache != nil {
			cachedUser, err := r.cache.Get(ctx, id)
			if err == nil && cachedUser != nil {
				log.Debug("user retrieved from cache after single-flight wait", zap.Int64("id", id))
				return cachedUser, nil
			}
		}

		u, err := r.dbRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if r.cache != nil {
			if err := r.cache.Set(ctx, u); err != nil {
				log.Warn("failed to cache user", zap.Int64("id", id), zap.Error(err))
			}
		}

		return u, nil
	})
	if err != nil {
		return nil, err
	}

	u := result.(*domain.User)
	if shared {
		// callers must not share a mutable Fields map
		cp := *u
		cp.Fields = make(map[string]any, len(u.Fields))
		for k, v := range u.Fields {
			cp.Fields[k] = v
		}
		return &cp, nil
	}
	return u, nil
}

// List delegates to the DB repository. Listings are never cached.
func (r *CachedUserRepository) List(ctx context.Context) ([]domain.User, error) {
	return r.dbRepo.List(ctx)
}
