package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatrelay/internal/api/middleware"
	"chatrelay/internal/models"
	"chatrelay/internal/store"
)

type MessageHandler struct {
	store  store.Store
	logger *slog.Logger
}

func NewMessageHandler(st store.Store, logger *slog.Logger) *MessageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageHandler{store: st, logger: logger}
}

// DirectHistory godoc
// @Summary      Direct message history with another user
// @Description  Returns messages between the caller and the given user, oldest first
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        userId path string true "Other user ID"
// @Success      200 {array} models.Message
// @Failure      404 {object} models.ErrorResponse
// @Router       /messages/direct/{userId} [get]
func (h *MessageHandler) DirectHistory(c *gin.Context) {
	user := middleware.CurrentUser(c)
	otherID := c.Param("userId")

	if _, err := h.store.GetUser(c.Request.Context(), otherID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Code:    http.StatusNotFound,
				Message: "User not found",
			})
			return
		}
		h.logger.Error("failed to load user", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to load history",
		})
		return
	}

	messages, err := h.store.MessagesBetweenUsers(c.Request.Context(), user.ID, otherID)
	if err != nil {
		h.logger.Error("failed to load direct history", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to load history",
		})
		return
	}
	c.JSON(http.StatusOK, messages)
}

// GroupHistory godoc
// @Summary      Group message history
// @Description  Returns a group's messages, oldest first. Members only.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        groupId path string true "Group ID"
// @Success      200 {array} models.Message
// @Failure      403 {object} models.ErrorResponse
// @Failure      404 {object} models.ErrorResponse
// @Router       /messages/group/{groupId} [get]
func (h *MessageHandler) GroupHistory(c *gin.Context) {
	user := middleware.CurrentUser(c)
	groupID := c.Param("groupId")

	if _, err := h.store.GetGroup(c.Request.Context(), groupID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Code:    http.StatusNotFound,
				Message: "Group not found",
			})
			return
		}
		h.logger.Error("failed to load group", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to load history",
		})
		return
	}

	member, err := h.store.IsUserInGroup(c.Request.Context(), user.ID, groupID)
	if err != nil {
		h.logger.Error("failed to check membership", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to load history",
		})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Code:    http.StatusForbidden,
			Message: "You are not a member of this group",
		})
		return
	}

	messages, err := h.store.GroupMessages(c.Request.Context(), groupID)
	if err != nil {
		h.logger.Error("failed to load group history", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to load history",
		})
		return
	}
	c.JSON(http.StatusOK, messages)
}
