package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: NewNotFoundError("user", "User not found"), want: http.StatusNotFound},
		{name: "wrapped not found", err: fmt.Errorf("lookup: %w", NewNotFoundError("user", "")), want: http.StatusNotFound},
		{name: "validation", err: NewValidationError("name", "is required"), want: http.StatusBadRequest},
		{name: "internal", err: NewInternalError("boom", errors.New("db down")), want: http.StatusInternalServerError},
		{name: "plain error", err: errors.New("anything"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("wrap: %w", NewNotFoundError("user", ""))))
	assert.False(t, IsNotFound(errors.New("other")))
	assert.True(t, IsValidation(NewValidationError("", "bad")))
}

func TestToGRPC_HidesInternalCause(t *testing.T) {
	err := ToGRPC(NewInternalError("Error adding user", errors.New("duplicate key on counters")))

	st, ok := status.FromError(err)
	assert.True(t, ok)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Equal(t, "Error adding user", st.Message())
}

func TestToGRPC_UnknownError(t *testing.T) {
	st, _ := status.FromError(ToGRPC(errors.New("socket closed")))
	assert.Equal(t, codes.Internal, st.Code())
	assert.NotContains(t, st.Message(), "socket")

	assert.NoError(t, ToGRPC(nil))
}

func TestNotFoundError_DefaultMessage(t *testing.T) {
	assert.Equal(t, "user not found", NewNotFoundError("user", "").Error())
	assert.Equal(t, "validation failed: name - is required", NewValidationError("name", "is required").Error())
}
