package user

import "context"

// Usecase is the user API consumed by the HTTP and gRPC adapters.
// Errors are *errors.NotFoundError, *errors.ValidationError or
// *errors.InternalError from pkg/errors; their messages are safe to return
// to clients.
type Usecase interface {
	// CreateUser stores the request fields as a new user with a store-assigned id.
	CreateUser(ctx context.Context, in CreateUserRequest) (*CreateUserResponse, error)
	// GetUser returns the user with the given id.
	GetUser(ctx context.Context, in GetUserRequest) (*GetUserResponse, error)
	// ListUsers returns every user ordered by id.
	ListUsers(ctx context.Context, in ListUsersRequest) (*ListUsersResponse, error)
}

var _ Usecase = (*Service)(nil)
