package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chatrelay/internal/api/middleware"
	"chatrelay/internal/models"
	"chatrelay/internal/services"
	"chatrelay/internal/store"
)

type UserHandler struct {
	store        store.Store
	redisService *services.RedisService
	logger       *slog.Logger
}

func NewUserHandler(st store.Store, redisService *services.RedisService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{store: st, redisService: redisService, logger: logger}
}

// ListUsers godoc
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        page query int false "Page number" default(1)
// @Param        limit query int false "Page size" default(20)
// @Success      200 {object} models.UserListResponse
// @Failure      401 {object} models.ErrorResponse
// @Router       /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	users, total, err := h.store.ListUsers(c.Request.Context(), models.RoleUser, page, limit)
	if err != nil {
		h.logger.Error("failed to list users", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to list users",
		})
		return
	}

	c.JSON(http.StatusOK, models.UserListResponse{
		Success: true,
		Users:   users,
		Total:   total,
		Page:    page,
		Limit:   limit,
	})
}

// GetUser godoc
// @Summary      Get a user by id
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "User ID"
// @Success      200 {object} models.User
// @Failure      404 {object} models.ErrorResponse
// @Router       /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.store.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Code:    http.StatusNotFound,
				Message: "User not found",
			})
			return
		}
		h.logger.Error("failed to get user", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to get user",
		})
		return
	}
	c.JSON(http.StatusOK, user)
}

// Profile godoc
// @Summary      Get the authenticated user's profile
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} models.User
// @Failure      401 {object} models.ErrorResponse
// @Router       /users/me [get]
func (h *UserHandler) Profile(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Code:    http.StatusUnauthorized,
			Message: "Unauthorized",
		})
		return
	}
	c.JSON(http.StatusOK, user)
}

// OnlineUsers godoc
// @Summary      List currently connected user ids
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} map[string]interface{}
// @Failure      500 {object} models.ErrorResponse
// @Router       /users/online [get]
func (h *UserHandler) OnlineUsers(c *gin.Context) {
	ids, err := h.redisService.OnlineUsers(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list online users", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to list online users",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "userIds": ids})
}
