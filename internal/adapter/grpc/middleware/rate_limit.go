package middleware

import (
	"context"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"mongo-user-service/pkg/logger"
	"mongo-user-service/pkg/ratelimit"
)

// RateLimiter implements gRPC rate limiting on the shared Redis token bucket.
type RateLimiter struct {
	limiter *ratelimit.Limiter
	log     *zap.Logger
}

// NewRateLimiter creates a new rate limiter interceptor. A nil limiter disables it.
func NewRateLimiter(limiter *ratelimit.Limiter, log *zap.Logger) *RateLimiter {
	return &RateLimiter{
		limiter: limiter,
		log:     log,
	}
}

// UnaryInterceptor returns a gRPC unary interceptor for rate limiting.
func (rl *RateLimiter) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if rl.limiter == nil {
			return handler(ctx, req)
		}

		ip := clientIP(ctx)
		key := info.FullMethod + ":" + ip

		allowed, err := rl.limiter.Allow(ctx, key)
		if err != nil {
			// fail open
			logger.WithContext(ctx, rl.log).Warn("rate limiter redis error, allowing request",
				zap.String("client_ip", ip),
				zap.String("method", info.FullMethod),
				zap.Error(err),
			)
			return handler(ctx, req)
		}

		if !allowed {
			cfg := rl.limiter.Config()
			logger.WithContext(ctx, rl.log).Warn("rate limit exceeded",
				zap.String("client_ip", ip),
				zap.String("method", info.FullMethod),
				zap.Float64("limit", cfg.RequestsPerSecond),
			)
			return nil, status.Errorf(codes.ResourceExhausted,
				"rate limit exceeded: %.2f requests/second (burst capacity: %d)",
				cfg.RequestsPerSecond, cfg.BurstCapacity)
		}

		return handler(ctx, req)
	}
}

// clientIP identifies the caller for bucketing by the peer host without its
// ephemeral port. Forwarding metadata is set by the caller and never consulted.
func clientIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
		return host
	}
	return p.Addr.String()
}
