package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echoforum/internal/api"
	"github.com/lalith-99/echoforum/internal/auth"
	"github.com/lalith-99/echoforum/internal/config"
	"github.com/lalith-99/echoforum/internal/db"
	"github.com/lalith-99/echoforum/internal/observ"
	"github.com/lalith-99/echoforum/internal/repository/postgres"
	"github.com/lalith-99/echoforum/internal/storage"
	"github.com/lalith-99/echoforum/internal/sweeper"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Config and logger
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(observ.LogOptionsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.JWTSecret == config.DevJWTSecret {
		logger.Warn("using the development JWT secret; set JWT_SECRET")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------------------------------------------------------
	// 2. Postgres
	// ---------------------------------------------------------------
	database, err := db.Open(ctx, db.PoolOptionsFromConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// ---------------------------------------------------------------
	// 3. Token revocation. Without Redis, logout is client-side only.
	// ---------------------------------------------------------------
	var (
		revoker     auth.Revoker = auth.NopRevoker{}
		redisClient *redis.Client
	)
	if cfg.RedisURL != "" {
		redisClient, err = auth.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisClient.Close()
		revoker = auth.NewRedisRevoker(redisClient)
		logger.Info("token revocation enabled")
	}

	// ---------------------------------------------------------------
	// 4. Upload storage
	// ---------------------------------------------------------------
	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("upload storage ready", zap.String("backend", cfg.StorageBackend))

	// ---------------------------------------------------------------
	// 5. Repositories, metrics, sweeper
	// ---------------------------------------------------------------
	pool := database.Pool()
	files := postgres.NewFileStore(pool)
	metrics := observ.NewMetrics()

	sweep := sweeper.New(files, backend, cfg.SweepGrace, metrics, logger)
	if err := sweep.Start(cfg.SweepSchedule); err != nil {
		return err
	}

	router := api.NewRouter(api.Deps{
		Config:        cfg,
		Logger:        logger,
		Signer:        auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL, cfg.JWTIssuer),
		Hasher:        auth.NewBcryptHasher(0),
		Revoker:       revoker,
		Tenants:       postgres.NewTenantStore(pool),
		Users:         postgres.NewUserStore(pool),
		Categories:    postgres.NewCategoryStore(pool),
		Posts:         postgres.NewPostStore(pool),
		Replies:       postgres.NewReplyStore(pool),
		Notifications: postgres.NewNotificationStore(pool),
		Files:         files,
		Search:        postgres.NewSearchStore(pool),
		Statistics:    postgres.NewStatisticsStore(pool),
		Ingestor:      storage.NewIngestor(backend),
		Metrics:       metrics,
		Health: func(ctx context.Context) error {
			if err := database.Health(ctx); err != nil {
				return err
			}
			if redisClient != nil {
				return redisClient.Ping(ctx).Err()
			}
			return nil
		},
	})

	// ---------------------------------------------------------------
	// 6. Serve until SIGINT/SIGTERM, then drain.
	// ---------------------------------------------------------------
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting EchoForum",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	sweep.Stop(shutdownCtx)
	logger.Info("stopped")
	return nil
}

func newBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.StorageBackend {
	case "minio":
		b, err := storage.NewMinioBackend(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to minio: %w", err)
		}
		return b, nil
	default:
		return storage.NewLocalBackend(cfg.UploadDir), nil
	}
}
