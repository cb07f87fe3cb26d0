package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/tradetalk/internal/model"
)

// RoleBroadcaster delivers an event to every connection of a role
type RoleBroadcaster interface {
	SendToRole(role model.UserRole, eventType string, payload interface{})
}

// NotificationHandler lets admins announce something to a whole role
type NotificationHandler struct {
	hub RoleBroadcaster
}

func NewNotificationHandler(hub RoleBroadcaster) *NotificationHandler {
	return &NotificationHandler{hub: hub}
}

// NotifyRole godoc
// @Summary Send an in-app notification to every connected user of a role
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.RoleNotificationRequest true "Notification"
// @Success 202 {object} model.SuccessResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /admin/notifications [post]
func (h *NotificationHandler) NotifyRole(c *gin.Context) {
	var req model.RoleNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	h.hub.SendToRole(req.Role, model.WSEventNotification, model.NotificationEvent{
		Title: req.Title,
		Body:  req.Body,
		Data:  map[string]string{"type": "announcement", "role": string(req.Role)},
	})
	c.JSON(http.StatusAccepted, model.SuccessResponse{Message: "Notification sent"})
}
