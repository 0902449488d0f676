package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echoforum/internal/middleware"
	"github.com/lalith-99/echoforum/internal/repository"
	"go.uber.org/zap"
)

const notificationLimit = 50

type NotificationHandler struct {
	repo   repository.NotificationRepository
	logger *zap.Logger
}

func NewNotificationHandler(repo repository.NotificationRepository, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{repo: repo, logger: logger}
}

type markReadRequest struct {
	NotificationID *int64 `json:"notification_id" binding:"omitempty,min=1"`
	All            bool   `json:"all"`
}

// List handles GET /api/notifications: the newest notifications plus the
// total unread count, which may exceed what is listed.
func (h *NotificationHandler) List(c *gin.Context) {
	id := middleware.GetIdentity(c)
	ctx := c.Request.Context()

	items, err := h.repo.ListByUser(ctx, id.TenantID, id.UserID, notificationLimit)
	if err != nil {
		serverError(c, h.logger, "failed to list notifications", err)
		return
	}
	unread, err := h.repo.UnreadCount(ctx, id.TenantID, id.UserID)
	if err != nil {
		serverError(c, h.logger, "failed to count notifications", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items, "unread_count": unread})
}

// MarkRead handles PUT /api/notifications with {notification_id} or {all: true}.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if !bindJSON(c, &req) {
		return
	}
	id := middleware.GetIdentity(c)
	ctx := c.Request.Context()

	switch {
	case req.All:
		n, err := h.repo.MarkAllRead(ctx, id.TenantID, id.UserID)
		if err != nil {
			serverError(c, h.logger, "failed to mark notifications read", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": n})
	case req.NotificationID != nil:
		ok, err := h.repo.MarkRead(ctx, id.TenantID, id.UserID, *req.NotificationID)
		if err != nil {
			serverError(c, h.logger, "failed to mark notification read", err)
			return
		}
		if !ok {
			respondMessage(c, http.StatusNotFound, "Notification not found")
			return
		}
		respondMessage(c, http.StatusOK, "Notification marked as read")
	default:
		respondMessage(c, http.StatusBadRequest, "Notification ID is required")
	}
}
