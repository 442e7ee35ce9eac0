package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lms-admin-api/api/swagger"
	"github.com/noah-isme/lms-admin-api/internal/handler"
	"github.com/noah-isme/lms-admin-api/internal/middleware"
	"github.com/noah-isme/lms-admin-api/internal/repository"
	"github.com/noah-isme/lms-admin-api/internal/service"
	"github.com/noah-isme/lms-admin-api/pkg/cache"
	"github.com/noah-isme/lms-admin-api/pkg/config"
	"github.com/noah-isme/lms-admin-api/pkg/database"
	"github.com/noah-isme/lms-admin-api/pkg/export"
	"github.com/noah-isme/lms-admin-api/pkg/jobs"
	"github.com/noah-isme/lms-admin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lms-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-admin-api/pkg/middleware/requestid"
	"github.com/noah-isme/lms-admin-api/pkg/storage"
)

// @title LMS Admin API
// @version 1.0.0
// @description Course catalogue, registration and certificate administration
// @BasePath /api
// @schemes http

type handlers struct {
	courses      *handler.CourseHandler
	applications *handler.ApplicationHandler
	contents     *handler.ContentHandler
	certificates *handler.CertificateHandler
	dashboard    *handler.DashboardHandler
	statistics   *handler.StatisticsHandler
	metrics      *handler.MetricsHandler
}

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	h, queue, err := build(ctx, cfg, db, cacheRepo, metrics, logr)
	if err != nil {
		logr.Fatal("failed to wire services", zap.Error(err))
	}
	defer queue.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/health", "/ready", "/metrics"))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	registerRoutes(r.Group(cfg.APIPrefix), h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "prefix", cfg.APIPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func build(ctx context.Context, cfg *config.Config, db *sqlx.DB, cacheRepo *repository.CacheRepository, metrics *service.MetricsService, logr *zap.Logger) (*handlers, *jobs.Queue, error) {
	validate := validator.New()

	courseRepo := repository.NewCourseRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	contentRepo := repository.NewContentRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	statisticsRepo := repository.NewStatisticsRepository(db)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Courses.CacheTTL, logr, cacheRepo.Enabled())

	courseSvc := service.NewCourseService(courseRepo, applicationRepo, cacheSvc, validate, logr, service.CourseServiceConfig{
		CacheEnabled: cfg.Courses.CacheEnabled,
		CacheTTL:     cfg.Courses.CacheTTL,
	})
	registrationSvc := service.NewRegistrationService(courseRepo, applicationRepo, cacheSvc, metrics, validate, logr)
	applicationSvc := service.NewApplicationService(applicationRepo, cacheSvc, validate, logr)
	pdf := export.NewPDFExporter(cfg.Certificates.FontPath)
	rosterSvc := service.NewRosterService(courseRepo, applicationRepo, export.NewCSVExporter(), pdf, logr).WithLocation(cfg.Location())
	contentSvc := service.NewContentService(contentRepo, courseRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Courses:     courseRepo,
		Enrollments: applicationRepo,
		Cache:       cacheSvc,
		Metrics:     metrics,
		Logger:      logr,
		Config:      service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})
	statisticsSvc := service.NewStatisticsService(statisticsRepo, cfg.Statistics.DefaultMonths, logr)

	files, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		return nil, nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Certificates.SigningSecret, cfg.Certificates.LinkTTL)
	worker := service.NewCertificateWorker(certificateRepo, pdf, files, metrics, logr)
	queue := jobs.NewQueue("certificates", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Certificates.WorkerConcurrency,
		MaxRetries: cfg.Certificates.WorkerRetries,
		Logger:     logr,
		OnResult:   worker.OnResult,
	})
	queue.Start(ctx)

	certificateSvc := service.NewCertificateService(certificateRepo, applicationRepo, queue, files, signer, validate, logr, service.CertificateServiceConfig{
		APIPrefix:       cfg.APIPrefix,
		CleanupInterval: cfg.Certificates.CleanupInterval,
	})
	certificateSvc.RecoverPending(ctx)
	certificateSvc.StartCleanup(ctx)

	return &handlers{
		courses:      handler.NewCourseHandler(courseSvc, registrationSvc, rosterSvc),
		applications: handler.NewApplicationHandler(applicationSvc, registrationSvc),
		contents:     handler.NewContentHandler(contentSvc),
		certificates: handler.NewCertificateHandler(certificateSvc),
		dashboard:    handler.NewDashboardHandler(dashboardSvc),
		statistics:   handler.NewStatisticsHandler(statisticsSvc),
		metrics:      handler.NewMetricsHandler(metrics, db),
	}, queue, nil
}

func registerRoutes(api *gin.RouterGroup, h *handlers) {
	courses := api.Group("/courses")
	courses.GET("", h.courses.List)
	courses.GET("/available", h.courses.Available)
	courses.POST("", h.courses.Create)
	courses.GET("/:id", h.courses.Get)
	courses.PUT("/:id", h.courses.Update)
	courses.DELETE("/:id", h.courses.Delete)
	courses.GET("/:id/registration", h.courses.Registration)
	courses.GET("/:id/roster/export", h.courses.ExportRoster)

	applications := api.Group("/applications")
	applications.GET("", h.applications.List)
	applications.POST("", h.applications.Apply)
	applications.GET("/:id", h.applications.Get)
	applications.PATCH("/:id/status", h.applications.UpdateStatus)

	contents := api.Group("/contents")
	contents.GET("", h.contents.List)
	contents.POST("", h.contents.Create)
	contents.GET("/:id", h.contents.Get)
	contents.PUT("/:id", h.contents.Update)
	contents.DELETE("/:id", h.contents.Delete)

	certificates := api.Group("/certificates")
	certificates.GET("", h.certificates.List)
	certificates.POST("", h.certificates.Create)
	certificates.GET("/download/:token", h.certificates.Download)
	certificates.GET("/:id", h.certificates.Get)
	certificates.GET("/:id/link", h.certificates.Link)

	api.GET("/dashboard", h.dashboard.Summary)

	statistics := api.Group("/statistics")
	statistics.GET("/enrollments", h.statistics.Enrollments)
	statistics.GET("/completion", h.statistics.Completion)
	statistics.GET("/categories", h.statistics.Categories)

	api.GET("/metrics/summary", h.metrics.Snapshot)
}
