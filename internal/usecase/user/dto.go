package user

import domain "mongo-user-service/internal/domain/user"

// CreateUserRequest represents the request payload for creating a new user.
// Fields must be a JSON object, possibly empty, and is stored verbatim.
type CreateUserRequest struct {
	Fields map[string]any `validate:"required"`
}

// CreateUserResponse represents the response payload after creating a user.
type CreateUserResponse struct {
	User domain.User
}

// GetUserRequest represents the request payload for retrieving a user.
type GetUserRequest struct {
	ID int64
}

// GetUserResponse represents the response payload for user details.
type GetUserResponse struct {
	User domain.User
}

// ListUsersRequest represents the request payload for listing users.
// The whole collection is returned; there is no paging or filtering.
type ListUsersRequest struct{}

// ListUsersResponse represents the response payload for user listing.
type ListUsersResponse struct {
	Users []domain.User
}
