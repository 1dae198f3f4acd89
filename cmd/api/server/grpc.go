package server

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpcadapter "mongo-user-service/internal/adapter/grpc"
	"mongo-user-service/internal/adapter/grpc/middleware"
	"mongo-user-service/internal/usecase/user"
	"mongo-user-service/pkg/logger"
	"mongo-user-service/pkg/ratelimit"
)

// SetupGRPC creates and configures the gRPC server
func SetupGRPC(userUC user.Usecase, limiter *ratelimit.Limiter, l *zap.Logger) *grpc.Server {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logger.RequestIDInterceptor(),
			middleware.NewRateLimiter(limiter, l).UnaryInterceptor(),
		),
	)
	grpcadapter.RegisterUserServiceServer(grpcServer, grpcadapter.NewUserServiceServer(userUC, l))
	reflection.Register(grpcServer)

	return grpcServer
}
