package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/echoforum/internal/auth"
	"github.com/lalith-99/echoforum/internal/middleware"
	"github.com/lalith-99/echoforum/internal/models"
	"github.com/lalith-99/echoforum/internal/repository"
	"github.com/lalith-99/echoforum/internal/storage"
	"go.uber.org/zap"
)

type TenantHandler struct {
	tenants       repository.TenantRepository
	signer        auth.Signer
	hasher        auth.Hasher
	ingestor      *storage.Ingestor
	publicBaseURL string
	logger        *zap.Logger
}

func NewTenantHandler(
	tenants repository.TenantRepository,
	signer auth.Signer,
	hasher auth.Hasher,
	ingestor *storage.Ingestor,
	publicBaseURL string,
	logger *zap.Logger,
) *TenantHandler {
	return &TenantHandler{
		tenants:       tenants,
		signer:        signer,
		hasher:        hasher,
		ingestor:      ingestor,
		publicBaseURL: publicBaseURL,
		logger:        logger,
	}
}

// createTenantForm arrives as multipart so a logo can ride along. The admin
// fields are optional but go together.
type createTenantForm struct {
	TenantName    string `form:"tenantName" binding:"required,notblank,max=255"`
	TenantDomain  string `form:"tenantDomain" binding:"required,notblank,max=255"`
	AdminName     string `form:"adminName" binding:"max=100"`
	AdminEmail    string `form:"adminEmail" binding:"omitempty,email,max=255"`
	AdminPassword string `form:"adminPassword" binding:"omitempty,min=8,max=72"`
}

func (f createTenantForm) hasAdmin() bool {
	return f.AdminName != "" || f.AdminEmail != "" || f.AdminPassword != ""
}

func (f createTenantForm) adminComplete() bool {
	return strings.TrimSpace(f.AdminName) != "" && f.AdminEmail != "" && f.AdminPassword != ""
}

// Create handles POST /api/auth?action=createTenant.
func (h *TenantHandler) Create(c *gin.Context) {
	var form createTenantForm
	if !bind(c, &form) {
		return
	}
	if form.hasAdmin() && !form.adminComplete() {
		respondMessage(c, http.StatusBadRequest, "adminName, adminEmail and adminPassword must be provided together")
		return
	}
	ctx := c.Request.Context()

	// Hash before storing the logo so a hashing failure leaves nothing behind.
	var adminHash string
	if form.hasAdmin() {
		var err error
		if adminHash, err = h.hasher.Hash(form.AdminPassword); err != nil {
			serverError(c, h.logger, "failed to hash password", err)
			return
		}
	}

	in := repository.NewTenant{
		Name:   strings.TrimSpace(form.TenantName),
		Domain: strings.ToLower(strings.TrimSpace(form.TenantDomain)),
	}

	var logoKey string
	if fh, err := c.FormFile("logoFile"); err == nil {
		stored, err := h.ingestor.Store(ctx, fh, storage.Logo)
		if err != nil {
			if storage.IsRejected(err) {
				respondMessage(c, http.StatusBadRequest, err.Error())
				return
			}
			serverError(c, h.logger, "failed to store tenant logo", err)
			return
		}
		logoKey = stored.Key
		url := h.ingestor.Backend().URL(requestBaseURL(c, h.publicBaseURL), stored.Key)
		in.LogoURL = &url
	}

	var (
		tenant *models.Tenant
		admin  *models.User
		err    error
	)
	if form.hasAdmin() {
		tenant, admin, err = h.tenants.CreateWithAdmin(ctx, in, repository.NewUser{
			Name:         strings.TrimSpace(form.AdminName),
			Email:        normalizeEmail(form.AdminEmail),
			PasswordHash: adminHash,
			Role:         models.RoleAdmin,
		})
	} else {
		tenant, err = h.tenants.Create(ctx, in)
	}
	if err != nil {
		h.discardLogo(ctx, logoKey)
		if errors.Is(err, repository.ErrConflict) {
			msg := "Domain already exists"
			if form.hasAdmin() {
				msg = "Domain or admin email already exists"
			}
			respondMessage(c, http.StatusConflict, msg)
			return
		}
		serverError(c, h.logger, "failed to create tenant", err)
		return
	}

	h.logger.Info("tenant created",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("domain", tenant.Domain),
		zap.Bool("with_admin", admin != nil),
	)

	resp := gin.H{"status": "success", "tenant_id": tenant.ID, "tenant": tenant}
	if admin != nil {
		token, _, err := h.signer.Issue(identityOf(admin))
		if err != nil {
			// The tenant exists; the admin can still log in normally.
			h.logger.Error("failed to issue token for new admin", zap.Error(err))
		} else {
			tr := newTokenResponse(token, admin, tenant)
			resp["token"] = tr.Token
			resp["user"] = tr.User
		}
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *TenantHandler) discardLogo(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := h.ingestor.Backend().Remove(context.WithoutCancel(ctx), key); err != nil {
		h.logger.Warn("failed to remove logo of rejected tenant", zap.Error(err), zap.String("key", key))
	}
}

// GetPublic handles GET /api/auth?action=get-tenant&tenant_id=. It is
// public so login and signup pages can show the tenant's branding.
func (h *TenantHandler) GetPublic(c *gin.Context) {
	id, ok := queryID(c, "tenant_id", "id")
	if !ok {
		respondMessage(c, http.StatusBadRequest, "tenant_id is required")
		return
	}
	h.respondTenant(c, id)
}

// GetOwn handles GET /api/tenant for the caller's tenant.
func (h *TenantHandler) GetOwn(c *gin.Context) {
	h.respondTenant(c, middleware.GetTenantID(c))
}

func (h *TenantHandler) respondTenant(c *gin.Context, id uuid.UUID) {
	tenant, err := h.tenants.GetByID(c.Request.Context(), id)
	if err != nil {
		serverError(c, h.logger, "failed to get tenant", err)
		return
	}
	if tenant == nil {
		respondMessage(c, http.StatusNotFound, "Tenant not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant": tenant})
}
