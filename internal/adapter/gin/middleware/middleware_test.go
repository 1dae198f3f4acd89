package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"mongo-user-service/pkg/ratelimit"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/api/users/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })
	return r
}

func do(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(w, req)
	return w
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	r := newEngine(Recovery(zap.New(core)))

	w := do(r, "/panic")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, w.Body.String())
	require.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
	assert.Equal(t, "kaboom", logs.All()[0].ContextMap()["panic"])
}

func setupLimiter(t *testing.T, burst int) (*ratelimit.Limiter, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	// refill is negligible for the duration of a test
	return ratelimit.New(client, ratelimit.Config{RequestsPerSecond: 0.001, BurstCapacity: burst}), mr
}

func TestRateLimiter_BurstThenDeny(t *testing.T) {
	limiter, _ := setupLimiter(t, 3)
	r := newEngine(RateLimiter(limiter, zaptest.NewLogger(t)))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(r, "/api/users/1").Code, "request %d", i)
	}

	w := do(r, "/api/users/1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"message":"Too many requests"}`, w.Body.String())
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRateLimiter_BucketPerRoute(t *testing.T) {
	limiter, mr := setupLimiter(t, 1)
	r := newEngine(RateLimiter(limiter, zaptest.NewLogger(t)))

	// different ids share the route template bucket
	assert.Equal(t, http.StatusOK, do(r, "/api/users/1").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, "/api/users/2").Code)

	assert.True(t, mr.Exists(ratelimit.KeyPrefix+"GET:/api/users/:id:10.0.0.1"))
}

func TestRateLimiter_FailOpen(t *testing.T) {
	limiter, mr := setupLimiter(t, 1)
	r := newEngine(RateLimiter(limiter, zaptest.NewLogger(t)))
	mr.Close()

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(r, "/api/users/1").Code)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	r := newEngine(RateLimiter(nil, zaptest.NewLogger(t)))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(r, "/api/users/1").Code)
	}
}
