package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"chatrelay/internal/api/middleware"
	"chatrelay/internal/models"
	"chatrelay/internal/store"
)

type AdminHandler struct {
	store  store.Store
	logger *slog.Logger
}

func NewAdminHandler(st store.Store, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{store: st, logger: logger}
}

// CreateAdmin godoc
// @Summary      Create an admin account
// @Description  Creates a pre-verified account with the admin role
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body models.CreateAdminRequest true "Admin data"
// @Success      201 {object} models.SuccessResponse
// @Failure      403 {object} models.ErrorResponse
// @Failure      409 {object} models.ErrorResponse
// @Router       /admin/users [post]
func (h *AdminHandler) CreateAdmin(c *gin.Context) {
	var req models.CreateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("failed to hash password", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to create admin",
		})
		return
	}

	// Admin accounts are created by an existing admin, so no verification
	// round trip.
	user := &models.User{
		Name:       req.Name,
		FirstName:  req.FirstName,
		Email:      req.Email,
		Country:    req.Country,
		Password:   string(hashed),
		Role:       models.RoleAdmin,
		IsVerified: true,
	}

	created, err := h.store.CreateUser(c.Request.Context(), user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Code:    http.StatusConflict,
				Message: "Email already registered",
			})
			return
		}
		h.logger.Error("failed to create admin", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to create admin",
		})
		return
	}

	actor := middleware.CurrentUser(c)
	entry := &models.AuditLog{
		Level:     "warn",
		Action:    "admin.create",
		ActorID:   actor.ID,
		Detail:    "created admin account " + created.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateAuditLog(c.Request.Context(), entry); err != nil {
		h.logger.Error("failed to write audit log", "action", "admin.create", "error", err)
	}

	c.JSON(http.StatusCreated, models.SuccessResponse{
		Success: true,
		Message: "Admin account created",
	})
}

// ListAdmins godoc
// @Summary      List admin accounts
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        page query int false "Page number" default(1)
// @Param        limit query int false "Page size" default(20)
// @Success      200 {object} models.UserListResponse
// @Failure      403 {object} models.ErrorResponse
// @Router       /admin/users [get]
func (h *AdminHandler) ListAdmins(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	users, total, err := h.store.ListUsers(c.Request.Context(), models.RoleAdmin, page, limit)
	if err != nil {
		h.logger.Error("failed to list admins", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to list admins",
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

// ListAuditLogs godoc
// @Summary      List recent audit log entries
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "Max entries" default(100)
// @Success      200 {array} models.AuditLog
// @Failure      403 {object} models.ErrorResponse
// @Router       /admin/audit-logs [get]
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	entries, err := h.store.ListAuditLogs(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list audit logs", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to list audit logs",
		})
		return
	}
	c.JSON(http.StatusOK, entries)
}
