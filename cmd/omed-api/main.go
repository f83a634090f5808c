package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/omed-project/omed-api/api/swagger"
	"github.com/omed-project/omed-api/internal/handler"
	"github.com/omed-project/omed-api/internal/middleware"
	"github.com/omed-project/omed-api/internal/models"
	"github.com/omed-project/omed-api/internal/repository"
	"github.com/omed-project/omed-api/internal/service"
	"github.com/omed-project/omed-api/pkg/cache"
	"github.com/omed-project/omed-api/pkg/config"
	"github.com/omed-project/omed-api/pkg/database"
	"github.com/omed-project/omed-api/pkg/logger"
	corsmiddleware "github.com/omed-project/omed-api/pkg/middleware/cors"
	reqidmiddleware "github.com/omed-project/omed-api/pkg/middleware/requestid"
	"github.com/omed-project/omed-api/pkg/storage"
)

// @title OMeD API
// @version 1.0.0
// @description Medical dataset catalog with moderated submissions
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Caching is an optimisation, not a dependency.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories.
	datasetRepo := repository.NewDatasetRepository(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	roleSvc := service.NewRoleService(roleRepo, cacheRepo, userRepo, logr, cfg.Roles.CacheTTL)
	authSvc := service.NewAuthService(userRepo, roleSvc, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	datasetSvc := service.NewDatasetService(datasetRepo, cacheRepo, userRepo, nil, logr, service.DatasetConfig{
		CacheTTL:        cfg.Catalog.CacheTTL,
		DefaultPageSize: cfg.Catalog.DefaultPageSize,
		MaxPageSize:     cfg.Catalog.MaxPageSize,
	})
	moderationSvc := service.NewModerationService(datasetRepo, userRepo, datasetSvc, logr)
	commentSvc := service.NewCommentService(commentRepo, datasetRepo, logr)
	engagementSvc := service.NewEngagementService(voteRepo, datasetRepo, logr)
	profileSvc := service.NewProfileService(userRepo, nil, logr)

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(datasetRepo, exportStorage, signer, service.ExportServiceConfig{
			APIPrefix:  cfg.APIPrefix,
			ResultTTL:  cfg.Exports.SignedURLTTL,
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
		}, logr)
		exportSvc.Start(ctx)
		defer exportSvc.Stop()

		go func() {
			ticker := time.NewTicker(cfg.Exports.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if removed, err := exportSvc.Cleanup(); err != nil {
						logr.Sugar().Warnw("export cleanup failed", "error", err)
					} else if len(removed) > 0 {
						logr.Sugar().Infow("export cleanup", "removed", len(removed))
					}
				}
			}
		}()
	}

	// Handlers.
	datasetHandler := handler.NewDatasetHandler(datasetSvc)
	moderationHandler := handler.NewModerationHandler(moderationSvc, metricsSvc)
	commentHandler := handler.NewCommentHandler(commentSvc)
	engagementHandler := handler.NewEngagementHandler(engagementSvc)
	authHandler := handler.NewAuthHandler(authSvc)
	profileHandler := handler.NewProfileHandler(profileSvc)
	adminHandler := handler.NewAdminHandler(roleSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db, redisClient)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.PUT("/password", middleware.JWT(authSvc), authHandler.ChangePassword)
	}

	// Catalog browsing is public; the optional token plus per-request role
	// resolution decide how much each caller sees.
	datasets := api.Group("/datasets", middleware.OptionalJWT(authSvc), middleware.ResolveRole(roleSvc))
	{
		datasets.GET("", datasetHandler.List)
		datasets.GET("/mine", middleware.JWT(authSvc), middleware.ResolveRole(roleSvc), datasetHandler.MySubmissions)
		datasets.GET("/:id", datasetHandler.Get)
		datasets.POST("", middleware.JWT(authSvc), datasetHandler.Create)

		datasets.GET("/:id/comments", commentHandler.List)
		datasets.POST("/:id/comments", middleware.JWT(authSvc), commentHandler.Create)
		datasets.DELETE("/:id/comments/:commentId", middleware.JWT(authSvc), commentHandler.Delete)

		datasets.GET("/:id/upvote", middleware.JWT(authSvc), engagementHandler.HasUpvoted)
		datasets.POST("/:id/upvote", middleware.JWT(authSvc), engagementHandler.Upvote)
		datasets.DELETE("/:id/upvote", middleware.JWT(authSvc), engagementHandler.RemoveUpvote)
		datasets.POST("/:id/download", engagementHandler.RecordDownload)
	}

	moderation := api.Group("/moderation", middleware.JWT(authSvc), middleware.ResolveRole(roleSvc), middleware.RequireRole(models.RoleModerator))
	{
		moderation.GET("/queue", moderationHandler.Queue)
		moderation.POST("/datasets/:id/approve", moderationHandler.Approve)
		moderation.POST("/datasets/:id/reject", moderationHandler.Reject)
	}

	profiles := api.Group("/profiles")
	{
		profiles.GET("/me", middleware.JWT(authSvc), profileHandler.Me)
		profiles.PUT("/me", middleware.JWT(authSvc), profileHandler.Update)
		profiles.GET("/:id", profileHandler.Public)
	}

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.ResolveRole(roleSvc), middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/roles", adminHandler.ListRoles)
		admin.GET("/roles/:userId", adminHandler.GetRole)
		admin.PUT("/roles/:userId", adminHandler.AssignRole)
	}

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		exports := api.Group("/exports")
		{
			exports.POST("", middleware.JWT(authSvc), middleware.ResolveRole(roleSvc), exportHandler.Request)
			exports.GET("/:id", middleware.JWT(authSvc), middleware.ResolveRole(roleSvc), exportHandler.Status)
			exports.GET("/download/:token", exportHandler.Download)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
