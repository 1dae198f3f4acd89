package grpc

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	domain "mongo-user-service/internal/domain/user"
	"mongo-user-service/internal/usecase/user"
	apperrors "mongo-user-service/pkg/errors"
	"mongo-user-service/pkg/logger"
)

// UserServiceServer implementation backed by the user usecase
type userServer struct {
	uc  user.Usecase
	log *zap.Logger
}

// NewUserServiceServer creates a new gRPC user service server
func NewUserServiceServer(uc user.Usecase, log *zap.Logger) UserServiceServer {
	return &userServer{uc: uc, log: log}
}

// ListUsers handles gRPC ListUsers request
func (s *userServer) ListUsers(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	resp, err := s.uc.ListUsers(ctx, user.ListUsersRequest{})
	if err != nil {
		return nil, apperrors.ToGRPC(err)
	}

	list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(resp.Users))}
	for _, u := range resp.Users {
		st, err := s.toStruct(ctx, u)
		if err != nil {
			return nil, status.Error(codes.Internal, user.MsgListUserFailed)
		}
		list.Values = append(list.Values, structpb.NewStructValue(st))
	}
	return list, nil
}

// GetUser handles gRPC GetUser request
func (s *userServer) GetUser(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	resp, err := s.uc.GetUser(ctx, user.GetUserRequest{ID: req.GetValue()})
	if err != nil {
		return nil, apperrors.ToGRPC(err)
	}

	st, err := s.toStruct(ctx, resp.User)
	if err != nil {
		return nil, status.Error(codes.Internal, user.MsgGetUserFailed)
	}
	return st, nil
}

// CreateUser handles gRPC CreateUser request. Every failure reports the same
// message as the HTTP surface.
func (s *userServer) CreateUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var fields map[string]any
	if req != nil {
		fields = req.AsMap()
	}

	resp, err := s.uc.CreateUser(ctx, user.CreateUserRequest{Fields: fields})
	if err != nil {
		return nil, status.Error(codes.Internal, user.MsgAddUserFailed)
	}

	st, err := s.toStruct(ctx, resp.User)
	if err != nil {
		return nil, status.Error(codes.Internal, user.MsgAddUserFailed)
	}
	return st, nil
}

// toStruct converts a user to its flat object form through its JSON encoding.
func (s *userServer) toStruct(ctx context.Context, u domain.User) (*structpb.Struct, error) {
	b, err := json.Marshal(u)
	if err != nil {
		logger.WithContext(ctx, s.log).Error("failed to encode user", zap.Int64("id", u.ID), zap.Error(err))
		return nil, err
	}

	st := &structpb.Struct{}
	if err := protojson.Unmarshal(b, st); err != nil {
		logger.WithContext(ctx, s.log).Error("failed to convert user to struct", zap.Int64("id", u.ID), zap.Error(err))
		return nil, err
	}
	return st, nil
}
