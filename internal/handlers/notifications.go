package handlers

import (
	"net/http"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/notify"

	"github.com/gin-gonic/gin"
)

// NotificationHandler serves the caller's notification inbox
type NotificationHandler struct {
	notify *notify.Service
}

func NewNotificationHandler(n *notify.Service) *NotificationHandler {
	return &NotificationHandler{notify: n}
}

// List returns the caller's notifications, newest first
func (h *NotificationHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	list, unread, err := h.notify.List(c.Request.Context(), p.UserID, notify.ListOptions{
		UnreadOnly: queryBool(c, "unreadOnly"),
		Limit:      queryInt(c, "limit", 0),
	})
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": list,
		"unreadCount":   unread,
	})
}

// Create posts a notification to the caller, or to every admin for type ADMIN
func (h *NotificationHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var in notify.Input
	if !bind(c, &in) {
		return
	}
	created, err := h.notify.Send(c.Request.Context(), p.UserID, in)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"notifications": created})
}

// MarkRead marks one notification as read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req struct {
		NotificationID string `json:"notificationId"`
	}
	if !bind(c, &req) {
		return
	}
	if req.NotificationID == "" {
		apperror.Respond(c, apperror.Validation("notificationId is required"))
		return
	}
	n, err := h.notify.MarkRead(c.Request.Context(), p.UserID, req.NotificationID)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification": n})
}

// MarkAllRead marks every unread notification as read
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	n, err := h.notify.MarkAllRead(c.Request.Context(), p.UserID)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// Delete removes the notification named by ?id=, or all of them without it
func (h *NotificationHandler) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if id := c.Query("id"); id != "" {
		if err := h.notify.Delete(ctx, p.UserID, id); err != nil {
			apperror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": 1})
		return
	}
	n, err := h.notify.DeleteAll(ctx, p.UserID)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
