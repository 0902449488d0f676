package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echoforum/internal/middleware"
	"github.com/lalith-99/echoforum/internal/repository"
	"go.uber.org/zap"
)

type ProfileHandler struct {
	repo   repository.UserRepository
	logger *zap.Logger
}

func NewProfileHandler(repo repository.UserRepository, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{repo: repo, logger: logger}
}

type updateProfileRequest struct {
	Name      string  `json:"name" binding:"required,notblank,max=100"`
	AvatarURL *string `json:"avatar_url" binding:"omitempty,max=2048"`
}

// Get handles GET /api/profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	id := middleware.GetIdentity(c)
	user, err := h.repo.GetByID(c.Request.Context(), id.TenantID, id.UserID)
	if err != nil {
		serverError(c, h.logger, "failed to get profile", err)
		return
	}
	if user == nil {
		respondMessage(c, http.StatusNotFound, "User not found")
		return
	}
	c.JSON(http.StatusOK, user)
}

// Update handles PUT /api/profile. An empty avatar_url clears the avatar.
// Tokens issued earlier keep the old name until refreshed.
func (h *ProfileHandler) Update(c *gin.Context) {
	var req updateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	var avatar *string
	if req.AvatarURL != nil {
		if v := strings.TrimSpace(*req.AvatarURL); v != "" {
			avatar = &v
		}
	}

	id := middleware.GetIdentity(c)
	user, err := h.repo.UpdateProfile(c.Request.Context(), id.TenantID, id.UserID, strings.TrimSpace(req.Name), avatar)
	if err != nil {
		serverError(c, h.logger, "failed to update profile", err)
		return
	}
	if user == nil {
		respondMessage(c, http.StatusNotFound, "User not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": user})
}
