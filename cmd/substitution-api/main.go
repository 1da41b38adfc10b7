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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-substitution-api/api/swagger"
	"github.com/noah-isme/sma-substitution-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-substitution-api/internal/middleware"
	"github.com/noah-isme/sma-substitution-api/internal/repository"
	"github.com/noah-isme/sma-substitution-api/internal/service"
	"github.com/noah-isme/sma-substitution-api/pkg/cache"
	"github.com/noah-isme/sma-substitution-api/pkg/config"
	"github.com/noah-isme/sma-substitution-api/pkg/database"
	"github.com/noah-isme/sma-substitution-api/pkg/erpclient"
	"github.com/noah-isme/sma-substitution-api/pkg/jobs"
	"github.com/noah-isme/sma-substitution-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-substitution-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-substitution-api/pkg/middleware/requestid"
)

// @title SMA Substitution Console API
// @version 1.0.0
// @description Teacher substitution planning on top of the school ERP.
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	var redisClient *redis.Client
	if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		logr.Warn("redis unavailable, reference cache and saved selections disabled", zap.Error(err))
	} else {
		redisClient = client
		defer redisClient.Close() //nolint:errcheck
	}

	var db *sqlx.DB
	if cfg.SubmissionLog.Enabled {
		conn, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Warn("postgres unavailable, submission log disabled", zap.Error(err))
		} else if err := database.EnsureSchema(ctx, conn); err != nil {
			logr.Warn("submission log schema setup failed", zap.Error(err))
			_ = conn.Close()
		} else {
			db = conn
			defer db.Close() //nolint:errcheck
		}
	}

	erp := erpclient.New(erpclient.Options{
		BaseURL:  cfg.ERP.BaseURL,
		Timeout:  cfg.ERP.Timeout,
		Logger:   logr.Named("erp"),
		Observer: metricsSvc,
	})

	// A nil redis client turns every cache read into a miss and every write
	// into a no-op, so the console keeps working without persistence.
	cacheRepo := repository.NewCacheRepository(redisClient, "substitution:", logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Reference.CacheTTL, logr,
		cfg.Reference.CacheEnabled && redisClient != nil)

	referenceSvc := service.NewReferenceService(erp, cacheSvc, cfg.Reference.CacheTTL, logr)
	availabilitySvc := service.NewAvailabilityService(erp, cfg.ERP.WorkloadConcurrency, logr)
	sessionSvc := service.NewSessionService(repository.NewSessionRepository(cacheRepo), service.SessionConfig{
		StaleDateWindow: cfg.Session.StaleDateWindow,
		PreferenceTTL:   cfg.Session.PreferenceTTL,
	}, logr)
	tokenSvc := service.NewTokenService(cfg.JWT.Secret)

	var submissionLogSvc *service.SubmissionLogService
	if db != nil {
		submissionLogSvc = service.NewSubmissionLogService(repository.NewSubmissionLogRepository(db), nil, metricsSvc, logr)
		queue := jobs.NewQueue("submission-log", submissionLogSvc.Handle, jobs.QueueConfig{
			Workers:    cfg.SubmissionLog.Workers,
			MaxRetries: cfg.SubmissionLog.Retries,
			RetryDelay: 2 * time.Second,
			Logger:     logr,
		})
		queue.Start(context.Background())
		defer queue.Stop()
		submissionLogSvc.SetQueue(queue)
	}

	workspaceSvc := service.NewWorkspaceService(
		erp,
		referenceSvc,
		availabilitySvc,
		sessionSvc,
		submissionLogSvc,
		metricsSvc,
		validate,
		logr,
		service.WorkspaceConfig{IdleTTL: cfg.Session.IdleTTL},
	)
	go workspaceSvc.RunJanitor(ctx, time.Minute)

	checks := map[string]handler.ReadinessCheck{}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if db != nil {
		checks["postgres"] = func(ctx context.Context) error { return db.PingContext(ctx) }
	}

	referenceHandler := handler.NewReferenceHandler(referenceSvc)
	workspaceHandler := handler.NewWorkspaceHandler(workspaceSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.Session(tokenSvc))

	reference := api.Group("/reference")
	reference.GET("/teachers", referenceHandler.Teachers)
	reference.GET("/periods", referenceHandler.Periods)
	reference.GET("/holidays", referenceHandler.Holidays)

	workspace := api.Group("/workspace")
	workspace.GET("", workspaceHandler.Get)
	workspace.PUT("/teacher", workspaceHandler.SelectTeacher)
	workspace.PUT("/date", workspaceHandler.SelectDate)
	workspace.POST("/selection", workspaceHandler.SelectCell)
	workspace.GET("/availability", workspaceHandler.Availability)
	workspace.PUT("/cells/:key", workspaceHandler.AssignSubstitute)
	workspace.DELETE("/cells/:key", workspaceHandler.RemoveSubstitute)
	workspace.POST("/submit", workspaceHandler.Submit)
	workspace.POST("/submit-all", workspaceHandler.SubmitAll)
	workspace.GET("/submissions", workspaceHandler.Submissions)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "erp", cfg.ERP.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
