package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	_ "mongo-user-service/docs" // registers the swagger spec
	"mongo-user-service/internal/adapter/gin/handler"
	"mongo-user-service/internal/adapter/gin/middleware"
	"mongo-user-service/pkg/logger"
	"mongo-user-service/pkg/ratelimit"
)

// PingFunc reports whether the backing store is reachable.
type PingFunc func(ctx context.Context) error

// SetupRouter configures and returns a Gin router with all routes and middleware.
// A nil limiter disables rate limiting; a nil ping reports healthy unconditionally.
// Forwarding headers are honored only from trustedProxies.
func SetupRouter(
	userHandler *handler.UserHandler,
	limiter *ratelimit.Limiter,
	ping PingFunc,
	trustedProxies []string,
	serviceName string,
	log *zap.Logger,
) *gin.Engine {
	router := gin.New()

	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		log.Error("invalid trusted proxies, trusting none",
			zap.Strings("trusted_proxies", trustedProxies),
			zap.Error(err),
		)
		_ = router.SetTrustedProxies(nil)
	}

	// Global middleware
	router.Use(logger.GinRequestID())
	router.Use(logger.GinLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RateLimiter(limiter, log))

	router.GET("/", handler.Root)
	router.GET("/ok", handler.Welcome)
	router.GET("/koeibenamedede", handler.Message)

	router.GET("/health", func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				logger.WithContext(c.Request.Context(), log).Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": serviceName,
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": serviceName,
		})
	})

	router.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	)))

	api := router.Group("/api")
	{
		users := api.Group("/users")
		{
			users.GET("", userHandler.ListUsers)
			users.GET("/:id", userHandler.GetUser)
			users.POST("", userHandler.CreateUser)
		}
	}

	return router
}
