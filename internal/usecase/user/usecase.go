package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	domain "mongo-user-service/internal/domain/user"
	apperrors "mongo-user-service/pkg/errors"
	"mongo-user-service/pkg/logger"
	"mongo-user-service/pkg/security"
)

// Error messages surfaced to clients. Causes are logged, never returned.
const (
	MsgUserNotFound   = "User not found"
	MsgAddUserFailed  = "Error adding user"
	MsgGetUserFailed  = "Error fetching user"
	MsgListUserFailed = "Error fetching users"
)

// Repository defines the interface for user data access operations.
// It abstracts the data layer, allowing different implementations
// (MongoDB, PostgreSQL, SQLite) to be used interchangeably.
type Repository interface {
	Create(ctx context.Context, id int64, fields map[string]any) (*domain.User, error) // Persist a new user; id 0 lets the store assign one
	GetByID(ctx context.Context, id int64) (*domain.User, error)                       // Retrieve user by numeric id
	List(ctx context.Context) ([]domain.User, error)                                   // Retrieve every user, ordered by id
}

// Service implements the business logic for user management operations.
// It provides a clean separation between the transport layer and data layer.
type Service struct {
	repo     Repository          // Repository for data access
	log      *zap.Logger         // Logger for structured logging
	validate *validator.Validate // Validator for request validation
}

// New creates a new user service with the provided repository and logger.
func New(r Repository, log *zap.Logger) *Service {
	return &Service{repo: r, log: log, validate: validator.New()}
}

// formatValidationError converts validator.ValidationErrors into a ValidationError.
func formatValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.NewValidationError("", err.Error())
	}

	var messages []string
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", e.Field()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", e.Field()))
		}
	}
	return apperrors.NewValidationError("", strings.Join(messages, ", "))
}

// CreateUser persists the payload as a new user. A client-supplied id is kept;
// without one the store assigns the next free id. The store-native _id is
// never taken from clients.
func (s *Service) CreateUser(ctx context.Context, in CreateUserRequest) (*CreateUserResponse, error) {
	log := logger.WithContext(ctx, s.log)

	if err := s.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	var id int64
	fields := make(map[string]any, len(in.Fields))
	for k, v := range in.Fields {
		switch k {
		case domain.IDKey:
			parsed, err := domain.ParseID(v)
			if err != nil {
				log.Warn("rejected client-supplied id", zap.Any("id", v), zap.Error(err))
				return nil, apperrors.NewValidationError(domain.IDKey, err.Error())
			}
			id = parsed
		case domain.DocumentIDKey:
			log.Debug("ignoring client-supplied document id")
		default:
			fields[k] = v
		}
	}

	if err := security.ValidateDocument(fields); err != nil {
		log.Warn("rejected document keys", zap.Error(err))
		return nil, apperrors.NewValidationError("fields", err.Error())
	}

	log.Info("creating user", zap.Int("field_count", len(fields)), zap.Bool("client_id", id != 0))

	u, err := s.repo.Create(ctx, id, fields)
	if err != nil {
		log.Error("failed to create user", zap.Int64("requested_id", id), zap.Error(err))
		return nil, apperrors.NewInternalError(MsgAddUserFailed, err)
	}

	log.Info("user created", zap.Int64("id", u.ID))
	return &CreateUserResponse{User: *u}, nil
}

// GetUser retrieves a user by id. Ids are assigned from 1, so non-positive ids
// are reported as not found without touching the store.
func (s *Service) GetUser(ctx context.Context, in GetUserRequest) (*GetUserResponse, error) {
	log := logger.WithContext(ctx, s.log)

	if in.ID <= 0 {
		log.Debug("get user with non-positive id", zap.Int64("id", in.ID))
		return nil, apperrors.NewNotFoundError("user", MsgUserNotFound)
	}

	u, err := s.repo.GetByID(ctx, in.ID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			log.Debug("user not found", zap.Int64("id", in.ID))
			return nil, apperrors.NewNotFoundError("user", MsgUserNotFound)
		}
		log.Error("failed to get user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, apperrors.NewInternalError(MsgGetUserFailed, err)
	}

	return &GetUserResponse{User: *u}, nil
}

// ListUsers retrieves every stored user.
func (s *Service) ListUsers(ctx context.Context, _ ListUsersRequest) (*ListUsersResponse, error) {
	log := logger.WithContext(ctx, s.log)

	users, err := s.repo.List(ctx)
	if err != nil {
		log.Error("failed to list users", zap.Error(err))
		return nil, apperrors.NewInternalError(MsgListUserFailed, err)
	}

	if users == nil {
		users = []domain.User{}
	}

	log.Debug("listed users", zap.Int("count", len(users)))
	return &ListUsersResponse{Users: users}, nil
}
