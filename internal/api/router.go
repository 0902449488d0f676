package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echoforum/internal/auth"
	"github.com/lalith-99/echoforum/internal/config"
	"github.com/lalith-99/echoforum/internal/middleware"
	"github.com/lalith-99/echoforum/internal/observ"
	"github.com/lalith-99/echoforum/internal/repository"
	"github.com/lalith-99/echoforum/internal/storage"
	"go.uber.org/zap"
)

// Deps is everything the HTTP layer needs. Metrics and Health are optional.
type Deps struct {
	Config *config.Config
	Logger *zap.Logger

	Signer  auth.Signer
	Hasher  auth.Hasher
	Revoker auth.Revoker

	Tenants       repository.TenantRepository
	Users         repository.UserRepository
	Categories    repository.CategoryRepository
	Posts         repository.PostRepository
	Replies       repository.ReplyRepository
	Notifications repository.NotificationRepository
	Files         repository.FileRepository
	Search        repository.SearchRepository
	Statistics    repository.StatisticsRepository

	Ingestor *storage.Ingestor
	Metrics  *observ.Metrics
	Health   func(ctx context.Context) error
}

// NewRouter builds the engine with middleware in this order: panic
// recovery, request logging, CORS, metrics, body limit.
func NewRouter(d Deps) *gin.Engine {
	setupValidation()

	cfg := d.Config
	logger := d.Logger
	revoker := d.Revoker
	if revoker == nil {
		revoker = auth.NopRevoker{}
	}

	r := gin.New()
	r.Use(
		middleware.Recovery(logger),
		middleware.RequestLogger(logger),
		middleware.CORS(cfg),
	)
	var uploads UploadRecorder
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
		uploads = d.Metrics
	}
	r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	r.GET("/health", func(c *gin.Context) {
		if d.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := d.Health(ctx); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if local, ok := d.Ingestor.Backend().(*storage.LocalBackend); ok {
		r.Group("", middleware.UploadHeaders()).Static(storage.PublicPath, local.Dir())
	}

	authn := middleware.AuthMiddleware(d.Signer, revoker, logger)
	account := middleware.CurrentAccount(d.Users, logger)
	admin := middleware.RequireAdmin()

	authH := NewAuthHandler(d.Users, d.Tenants, d.Signer, d.Hasher, revoker, logger)
	tenantH := NewTenantHandler(d.Tenants, d.Signer, d.Hasher, d.Ingestor, cfg.PublicBaseURL, logger)
	postH := NewPostHandler(d.Posts, d.Categories, logger)
	replyH := NewReplyHandler(d.Replies, d.Posts, logger)
	categoryH := NewCategoryHandler(d.Categories, logger)
	notificationH := NewNotificationHandler(d.Notifications, logger)
	searchH := NewSearchHandler(d.Search, logger)
	statsH := NewStatisticsHandler(d.Statistics, logger)
	profileH := NewProfileHandler(d.Users, logger)
	userH := NewUserHandler(d.Users, logger)
	fileH := NewFileHandler(d.Files, d.Posts, d.Ingestor, uploads, cfg.PublicBaseURL, logger)

	api := r.Group("/api")

	// /auth mixes public actions with two that need a token.
	api.POST("/auth", byAction("login", actions{
		"login":          authH.Login,
		"register":       authH.Register,
		"register-admin": authH.RegisterAdmin,
		"createTenant":   tenantH.Create,
		"refresh":        chain(authn, authH.Refresh),
		"logout":         chain(authn, authH.Logout),
	}))
	api.GET("/auth", byAction("get-tenant", actions{
		"get-tenant": tenantH.GetPublic,
	}))

	protected := api.Group("", authn, account)
	protected.GET("/tenant", tenantH.GetOwn)

	protected.GET("/posts", byAction("getPosts", actions{
		"getPosts":    postH.List,
		"getPostById": postH.Get,
	}))
	protected.POST("/posts", byAction("createPost", actions{"createPost": postH.Create}))
	protected.PUT("/posts", byAction("updatePost", actions{"updatePost": postH.Update}))
	protected.DELETE("/posts", byAction("deletePost", actions{"deletePost": postH.Delete}))

	protected.GET("/replies", replyH.List)
	protected.POST("/replies", replyH.Create)

	protected.GET("/categories", categoryH.List)
	protected.POST("/categories", admin, categoryH.Create)

	protected.GET("/notifications", notificationH.List)
	protected.PUT("/notifications", notificationH.MarkRead)

	protected.GET("/search", searchH.Search)
	protected.GET("/statistics", statsH.Get)

	protected.GET("/profile", profileH.Get)
	protected.PUT("/profile", profileH.Update)

	users := protected.Group("/users", admin)
	users.GET("", userH.List)
	users.PUT("", userH.Update)
	users.DELETE("", userH.Delete)

	protected.POST("/files", byAction("upload", actions{"upload": fileH.Upload}))

	return r
}
