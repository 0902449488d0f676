package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/echoforum/internal/auth"
	"github.com/lalith-99/echoforum/internal/models"
	"go.uber.org/zap"
)

// Context keys for values the auth middleware resolves per request.
const (
	ContextKeyIdentity  = "identity"
	ContextKeyTokenID   = "token_id"
	ContextKeyExpiresAt = "token_expires_at"
)

// AuthMiddleware verifies the bearer token and stores the caller's identity
// on the gin.Context. Missing, malformed, invalid and revoked tokens all
// answer 401 before any handler runs.
func AuthMiddleware(signer auth.Signer, revoker auth.Revoker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}

		claims, err := signer.Verify(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			return
		}

		revoked, err := revoker.IsRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			logger.Error("failed to check token revocation", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
			return
		}
		if revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Token has been revoked"})
			return
		}

		c.Set(ContextKeyIdentity, claims.Identity())
		c.Set(ContextKeyTokenID, claims.ID)
		if claims.ExpiresAt != nil {
			c.Set(ContextKeyExpiresAt, claims.ExpiresAt.Time)
		}
		c.Next()
	}
}

// AccountLookup loads a user by id within a tenant; nil means gone.
type AccountLookup interface {
	GetByID(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID) (*models.User, error)
}

// CurrentAccount must run after AuthMiddleware. It re-reads the caller so a
// deletion, suspension or role change applies to tokens issued before it,
// and replaces the identity on the context with the stored one.
func CurrentAccount(users AccountLookup, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := GetIdentity(c)
		user, err := users.GetByID(c.Request.Context(), id.TenantID, id.UserID)
		if err != nil {
			logger.Error("failed to load account", zap.Error(err), zap.String("user_id", id.UserID.String()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Account no longer exists"})
			return
		}
		if user.Status == models.StatusSuspended {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Account suspended"})
			return
		}

		id.Email = user.Email
		id.Role = user.Role
		id.Name = user.Name
		id.AvatarURL = user.AvatarURL
		c.Set(ContextKeyIdentity, id)
		c.Next()
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetIdentity(c).Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden: admin access required"})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// GetIdentity returns the zero Identity when the middleware did not run.
func GetIdentity(c *gin.Context) auth.Identity {
	val, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return auth.Identity{}
	}
	id, ok := val.(auth.Identity)
	if !ok {
		return auth.Identity{}
	}
	return id
}

func GetUserID(c *gin.Context) uuid.UUID {
	return GetIdentity(c).UserID
}

func GetTenantID(c *gin.Context) uuid.UUID {
	return GetIdentity(c).TenantID
}

func GetTokenID(c *gin.Context) string {
	return c.GetString(ContextKeyTokenID)
}

func GetTokenExpiry(c *gin.Context) time.Time {
	return c.GetTime(ContextKeyExpiresAt)
}
