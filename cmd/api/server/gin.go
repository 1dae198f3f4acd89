package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mongo-user-service/cmd/api/di"
	ginrouter "mongo-user-service/internal/adapter/gin/router"
)

// SetupGinServer creates and configures the Gin REST API server
func SetupGinServer(c *di.Container, addr string, l *zap.Logger) *http.Server {
	if c.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := ginrouter.SetupRouter(
		c.GinHandler,
		c.RateLimiter,
		c.Ping,
		c.Config.App.TrustedProxies,
		c.Config.Logger.ServiceName,
		l,
	)

	l.Info("Gin REST API configured",
		zap.String("address", addr),
		zap.Bool("rate_limit", c.RateLimiter != nil),
		zap.Strings("trusted_proxies", c.Config.App.TrustedProxies),
	)

	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
