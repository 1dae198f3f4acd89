package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mongo-user-service/internal/usecase/user"
	apperrors "mongo-user-service/pkg/errors"
	"mongo-user-service/pkg/logger"
)

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	uc  user.Usecase
	log *zap.Logger
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(uc user.Usecase, log *zap.Logger) *UserHandler {
	return &UserHandler{
		uc:  uc,
		log: log,
	}
}

// MessageResponse is the body of every error response.
type MessageResponse struct {
	Message string `json:"message" example:"User not found"`
}

// ListUsers handles GET /api/users
//
//	@Summary	List users
//	@Tags		users
//	@Produce	json
//	@Success	200	{array}		map[string]any
//	@Failure	500	{object}	MessageResponse
//	@Router		/api/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()

	resp, err := h.uc.ListUsers(ctx, user.ListUsersRequest{})
	if err != nil {
		logger.WithContext(ctx, h.log).Error("Gin ListUsers failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, MessageResponse{Message: user.MsgListUserFailed})
		return
	}

	c.JSON(http.StatusOK, resp.Users)
}

// GetUser handles GET /api/users/:id
//
//	@Summary	Get a user by numeric id
//	@Description	Only the leading integer of the path segment is used, so /api/users/1abc reads user 1.
//	@Tags		users
//	@Produce	json
//	@Param		id	path		int	true	"User id"
//	@Success	200	{object}	map[string]any
//	@Failure	404	{object}	MessageResponse
//	@Failure	500	{object}	MessageResponse
//	@Router		/api/users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.WithContext(ctx, h.log)

	idStr := c.Param("id")
	id, err := parseUserID(idStr)
	if err != nil {
		// an id without leading digits can never match a stored user
		log.Debug("unparseable user id", zap.String("id", idStr), zap.Error(err))
		c.JSON(http.StatusNotFound, MessageResponse{Message: user.MsgUserNotFound})
		return
	}

	resp, err := h.uc.GetUser(ctx, user.GetUserRequest{ID: id})
	if err != nil {
		if apperrors.IsNotFound(err) {
			c.JSON(http.StatusNotFound, MessageResponse{Message: user.MsgUserNotFound})
			return
		}
		log.Error("Gin GetUser failed", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, MessageResponse{Message: user.MsgGetUserFailed})
		return
	}

	c.JSON(http.StatusOK, resp.User)
}

// parseUserID reads the leading integer of s the way lenient path parsing
// does: leading whitespace and an optional sign are accepted and anything
// after the digits is ignored, so "12abc" and "12.5" both name user 12.
func parseUserID(s string) (int64, error) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)

	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, fmt.Errorf("user id %q has no leading digits", s)
	}

	return strconv.ParseInt(s[:end], 10, 64)
}

// CreateUser handles POST /api/users
//
//	@Summary		Create a user
//	@Description	Stores the JSON object as a new user. A positive integer id is kept, otherwise the server assigns one.
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			user	body		map[string]any	true	"User attributes"
//	@Success		201		{object}	map[string]any
//	@Failure		500		{object}	MessageResponse
//	@Router			/api/users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.WithContext(ctx, h.log)

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		log.Warn("invalid create user body", zap.Error(err))
		c.JSON(http.StatusInternalServerError, MessageResponse{Message: user.MsgAddUserFailed})
		return
	}

	resp, err := h.uc.CreateUser(ctx, user.CreateUserRequest{Fields: body})
	if err != nil {
		log.Error("Gin CreateUser failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, MessageResponse{Message: user.MsgAddUserFailed})
		return
	}

	c.JSON(http.StatusCreated, resp.User)
}

// Root handles GET /
func Root(c *gin.Context) {
	c.String(http.StatusOK, "Hello, Go with Gin!")
}

// Welcome handles GET /ok
func Welcome(c *gin.Context) {
	c.String(http.StatusOK, "Welcome to Nodejs Basic!!!!")
}

// Message handles GET /koeibenamedede
func Message(c *gin.Context) {
	c.String(http.StatusOK, "Koei Be message Show kar de")
}
