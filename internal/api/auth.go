package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/echoforum/internal/auth"
	"github.com/lalith-99/echoforum/internal/middleware"
	"github.com/lalith-99/echoforum/internal/models"
	"github.com/lalith-99/echoforum/internal/repository"
	"go.uber.org/zap"
)

// AuthHandler serves the /auth actions. login, register and register-admin
// are public; refresh and logout run behind the auth middleware.
type AuthHandler struct {
	users   repository.UserRepository
	tenants repository.TenantRepository
	signer  auth.Signer
	hasher  auth.Hasher
	revoker auth.Revoker
	logger  *zap.Logger
}

func NewAuthHandler(
	users repository.UserRepository,
	tenants repository.TenantRepository,
	signer auth.Signer,
	hasher auth.Hasher,
	revoker auth.Revoker,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:   users,
		tenants: tenants,
		signer:  signer,
		hasher:  hasher,
		revoker: revoker,
		logger:  logger,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Name     string    `json:"name" binding:"required,notblank,max=100"`
	Email    string    `json:"email" binding:"required,email,max=255"`
	Password string    `json:"password" binding:"required,min=8,max=72"`
	TenantID uuid.UUID `json:"tenant_id" binding:"required"`
}

type tenantRef struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	TenantName string    `json:"tenant_name"`
}

type userPayload struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Tenant    tenantRef `json:"tenant"`
	AvatarURL *string   `json:"avatar_url"`
}

type tokenResponse struct {
	Token string      `json:"token"`
	User  userPayload `json:"user"`
}

func identityOf(u *models.User) auth.Identity {
	return auth.Identity{
		UserID:    u.ID,
		TenantID:  u.TenantID,
		Email:     u.Email,
		Role:      u.Role,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
	}
}

func newTokenResponse(token string, u *models.User, t *models.Tenant) tokenResponse {
	return tokenResponse{
		Token: token,
		User: userPayload{
			ID:        u.ID,
			Name:      u.Name,
			Email:     u.Email,
			Role:      u.Role,
			Tenant:    tenantRef{TenantID: t.ID, TenantName: t.Name},
			AvatarURL: u.AvatarURL,
		},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login handles POST /api/auth?action=login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	user, err := h.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		serverError(c, h.logger, "failed to find user", err)
		return
	}
	// Unknown email and wrong password get the same answer.
	if user == nil {
		respondMessage(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	ok, err := h.hasher.Verify(user.PasswordHash, req.Password)
	if err != nil {
		serverError(c, h.logger, "failed to verify password", err)
		return
	}
	if !ok {
		respondMessage(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if user.Status == models.StatusSuspended {
		respondMessage(c, http.StatusForbidden, "Account suspended")
		return
	}

	tenant, err := h.tenants.GetByID(ctx, user.TenantID)
	if err != nil {
		serverError(c, h.logger, "failed to load tenant", err)
		return
	}
	if tenant == nil {
		respondMessage(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, _, err := h.signer.Issue(identityOf(user))
	if err != nil {
		serverError(c, h.logger, "failed to issue token", err)
		return
	}
	if err := h.users.TouchLastLogin(ctx, user.ID); err != nil {
		h.logger.Warn("failed to record last login", zap.Error(err), zap.String("user_id", user.ID.String()))
	}

	h.logger.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("tenant_id", user.TenantID.String()),
	)
	c.JSON(http.StatusOK, newTokenResponse(token, user, tenant))
}

// Register handles POST /api/auth?action=register. New accounts are members.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		serverError(c, h.logger, "failed to hash password", err)
		return
	}

	user, err := h.users.Create(c.Request.Context(), repository.NewUser{
		TenantID:     req.TenantID,
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         models.RoleMember,
	})
	switch {
	case errors.Is(err, repository.ErrConflict):
		respondMessage(c, http.StatusConflict, "Email already registered")
		return
	case errors.Is(err, repository.ErrInvalidReference):
		respondMessage(c, http.StatusNotFound, "Tenant not found")
		return
	case err != nil:
		serverError(c, h.logger, "failed to register user", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "user_id": user.ID})
}

// RegisterAdmin handles POST /api/auth?action=register-admin. It only
// succeeds while the tenant has no admin, which bootstraps a tenant created
// without one.
func (h *AuthHandler) RegisterAdmin(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		serverError(c, h.logger, "failed to hash password", err)
		return
	}

	user, err := h.users.CreateFirstAdmin(c.Request.Context(), repository.NewUser{
		TenantID:     req.TenantID,
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	})
	switch {
	case errors.Is(err, repository.ErrConflict):
		respondMessage(c, http.StatusConflict, "Email already registered")
		return
	case errors.Is(err, repository.ErrInvalidReference):
		respondMessage(c, http.StatusNotFound, "Tenant not found")
		return
	case err != nil:
		serverError(c, h.logger, "failed to register admin", err)
		return
	}
	if user == nil {
		respondMessage(c, http.StatusForbidden, "Tenant already has an admin")
		return
	}

	h.logger.Info("tenant admin registered",
		zap.String("user_id", user.ID.String()),
		zap.String("tenant_id", user.TenantID.String()),
	)
	c.JSON(http.StatusCreated, gin.H{"message": "Admin registered", "user_id": user.ID})
}

// Refresh handles POST /api/auth?action=refresh. The user is re-read so a
// role change or suspension takes effect, and the presented token is
// revoked once the new one is issued.
func (h *AuthHandler) Refresh(c *gin.Context) {
	id := middleware.GetIdentity(c)
	ctx := c.Request.Context()

	user, err := h.users.GetByID(ctx, id.TenantID, id.UserID)
	if err != nil {
		serverError(c, h.logger, "failed to load user", err)
		return
	}
	if user == nil {
		respondMessage(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if user.Status == models.StatusSuspended {
		respondMessage(c, http.StatusForbidden, "Account suspended")
		return
	}
	tenant, err := h.tenants.GetByID(ctx, user.TenantID)
	if err != nil {
		serverError(c, h.logger, "failed to load tenant", err)
		return
	}
	if tenant == nil {
		respondMessage(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	token, _, err := h.signer.Issue(identityOf(user))
	if err != nil {
		serverError(c, h.logger, "failed to issue token", err)
		return
	}
	if err := h.revoker.Revoke(ctx, middleware.GetTokenID(c), middleware.GetTokenExpiry(c)); err != nil {
		serverError(c, h.logger, "failed to revoke refreshed token", err)
		return
	}

	c.JSON(http.StatusOK, newTokenResponse(token, user, tenant))
}

// Logout handles POST /api/auth?action=logout. Without a revocation store
// this only acknowledges; the client drops the token.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.revoker.Revoke(c.Request.Context(), middleware.GetTokenID(c), middleware.GetTokenExpiry(c)); err != nil {
		serverError(c, h.logger, "failed to revoke token", err)
		return
	}
	respondMessage(c, http.StatusOK, "Logged out successfully")
}
