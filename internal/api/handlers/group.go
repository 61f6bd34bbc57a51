package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chatrelay/internal/api/middleware"
	"chatrelay/internal/models"
	"chatrelay/internal/store"
)

type GroupHandler struct {
	store  store.Store
	logger *slog.Logger
}

func NewGroupHandler(st store.Store, logger *slog.Logger) *GroupHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GroupHandler{store: st, logger: logger}
}

// CreateGroup godoc
// @Summary      Create a group
// @Description  Creates a group with the caller as its first member
// @Tags         groups
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body models.CreateGroupRequest true "Group data"
// @Success      201 {object} models.Group
// @Failure      400 {object} models.ErrorResponse
// @Router       /groups [post]
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req models.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	user := middleware.CurrentUser(c)
	group := &models.Group{
		Name:        req.Name,
		Description: req.Description,
		Members:     []string{user.ID},
	}

	created, err := h.store.CreateGroup(c.Request.Context(), group)
	if err != nil {
		h.logger.Error("failed to create group", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to create group",
		})
		return
	}

	h.audit(c, "group.create", user.ID, "group "+created.ID+" created")
	c.JSON(http.StatusCreated, created)
}

// ListGroups godoc
// @Summary      List all groups
// @Tags         groups
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} models.Group
// @Router       /groups [get]
func (h *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := h.store.ListGroups(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list groups", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to list groups",
		})
		return
	}
	c.JSON(http.StatusOK, groups)
}

// GetGroup godoc
// @Summary      Get a group by id
// @Tags         groups
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Group ID"
// @Success      200 {object} models.Group
// @Failure      404 {object} models.ErrorResponse
// @Router       /groups/{id} [get]
func (h *GroupHandler) GetGroup(c *gin.Context) {
	group, err := h.store.GetGroup(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.notFoundOr500(c, err, "Failed to get group")
		return
	}
	c.JSON(http.StatusOK, group)
}

// GetMembers godoc
// @Summary      List group members
// @Tags         groups
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Group ID"
// @Success      200 {array} models.User
// @Failure      404 {object} models.ErrorResponse
// @Router       /groups/{id}/members [get]
func (h *GroupHandler) GetMembers(c *gin.Context) {
	groupID := c.Param("id")
	if _, err := h.store.GetGroup(c.Request.Context(), groupID); err != nil {
		h.notFoundOr500(c, err, "Failed to get group")
		return
	}

	members, err := h.store.GetGroupMembers(c.Request.Context(), groupID)
	if err != nil {
		h.logger.Error("failed to list group members", "group_id", groupID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to list members",
		})
		return
	}
	c.JSON(http.StatusOK, members)
}

// JoinGroup godoc
// @Summary      Join a group
// @Tags         groups
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Group ID"
// @Success      200 {object} models.SuccessResponse
// @Failure      404 {object} models.ErrorResponse
// @Failure      409 {object} models.ErrorResponse
// @Router       /groups/{id}/join [post]
func (h *GroupHandler) JoinGroup(c *gin.Context) {
	groupID := c.Param("id")
	user := middleware.CurrentUser(c)

	group, err := h.store.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		h.notFoundOr500(c, err, "Failed to get group")
		return
	}
	if group.HasMember(user.ID) {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Code:    http.StatusConflict,
			Message: "You are already a member of this group",
		})
		return
	}

	if err := h.store.AddUserToGroup(c.Request.Context(), groupID, user.ID); err != nil {
		h.notFoundOr500(c, err, "Failed to join group")
		return
	}

	h.audit(c, "group.join", user.ID, "joined group "+groupID)
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "Joined group"})
}

// LeaveGroup godoc
// @Summary      Leave a group
// @Tags         groups
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Group ID"
// @Success      200 {object} models.SuccessResponse
// @Failure      403 {object} models.ErrorResponse
// @Failure      404 {object} models.ErrorResponse
// @Router       /groups/{id}/leave [post]
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	groupID := c.Param("id")
	user := middleware.CurrentUser(c)

	group, err := h.store.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		h.notFoundOr500(c, err, "Failed to get group")
		return
	}
	if !group.HasMember(user.ID) {
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Code:    http.StatusForbidden,
			Message: "You are not a member of this group",
		})
		return
	}

	if err := h.store.RemoveUserFromGroup(c.Request.Context(), user.ID, groupID); err != nil {
		h.notFoundOr500(c, err, "Failed to leave group")
		return
	}

	h.audit(c, "group.leave", user.ID, "left group "+groupID)
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "Left group"})
}

// MyGroups godoc
// @Summary      List groups the authenticated user belongs to
// @Tags         groups
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} models.Group
// @Router       /groups/mine [get]
func (h *GroupHandler) MyGroups(c *gin.Context) {
	user := middleware.CurrentUser(c)
	groups, err := h.store.GetUserGroups(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to list user groups", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to list groups",
		})
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *GroupHandler) audit(c *gin.Context, action, actorID, detail string) {
	entry := &models.AuditLog{
		Level:     "info",
		Action:    action,
		ActorID:   actorID,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateAuditLog(c.Request.Context(), entry); err != nil {
		h.logger.Error("failed to write audit log", "action", action, "error", err)
	}
}

func (h *GroupHandler) notFoundOr500(c *gin.Context, err error, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Code:    http.StatusNotFound,
			Message: "Group not found",
		})
		return
	}
	h.logger.Error(msg, "error", err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Code:    http.StatusInternalServerError,
		Message: msg,
	})
}
