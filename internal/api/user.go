package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/echoforum/internal/middleware"
	"github.com/lalith-99/echoforum/internal/models"
	"github.com/lalith-99/echoforum/internal/repository"
	"go.uber.org/zap"
)

// UserHandler is the tenant admin's view of its members. Every route is
// behind RequireAdmin.
type UserHandler struct {
	repo   repository.UserRepository
	logger *zap.Logger
}

func NewUserHandler(repo repository.UserRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{repo: repo, logger: logger}
}

type updateUserRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Role   string    `json:"role" binding:"required,oneof=admin member"`
	Status string    `json:"status" binding:"required,oneof=active suspended"`
}

// List handles GET /api/users.
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.repo.ListByTenant(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		serverError(c, h.logger, "failed to list users", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// Update handles PUT /api/users. Only role and status change. An admin
// cannot demote or suspend themselves, so a tenant never loses its last
// admin by accident.
func (h *UserHandler) Update(c *gin.Context) {
	var req updateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	id := middleware.GetIdentity(c)

	if req.UserID == id.UserID && (req.Role != models.RoleAdmin || req.Status != models.StatusActive) {
		respondMessage(c, http.StatusBadRequest, "You cannot demote or suspend yourself")
		return
	}

	updated, err := h.repo.UpdateRoleStatus(c.Request.Context(), id.TenantID, req.UserID, req.Role, req.Status)
	if err != nil {
		serverError(c, h.logger, "failed to update user", err)
		return
	}
	if !updated {
		respondMessage(c, http.StatusNotFound, "User not found")
		return
	}

	h.logger.Info("user updated",
		zap.String("user_id", req.UserID.String()),
		zap.String("role", req.Role),
		zap.String("status", req.Status),
		zap.String("by", id.UserID.String()),
	)
	respondMessage(c, http.StatusOK, "User updated successfully")
}

// Delete handles DELETE /api/users?id=. The user's posts, replies, file
// records and notifications go with them.
func (h *UserHandler) Delete(c *gin.Context) {
	userID, ok := queryID(c, "id", "user_id")
	if !ok {
		respondMessage(c, http.StatusBadRequest, "User ID is required")
		return
	}
	id := middleware.GetIdentity(c)
	if userID == id.UserID {
		respondMessage(c, http.StatusBadRequest, "You cannot delete yourself")
		return
	}

	deleted, err := h.repo.Delete(c.Request.Context(), id.TenantID, userID)
	if err != nil {
		serverError(c, h.logger, "failed to delete user", err)
		return
	}
	if !deleted {
		respondMessage(c, http.StatusNotFound, "User not found")
		return
	}

	h.logger.Info("user deleted",
		zap.String("user_id", userID.String()),
		zap.String("by", id.UserID.String()),
	)
	respondMessage(c, http.StatusOK, "User deleted successfully")
}
