package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/deal-desk-api/api/swagger"
	"github.com/noah-isme/deal-desk-api/internal/handler"
	"github.com/noah-isme/deal-desk-api/internal/middleware"
	"github.com/noah-isme/deal-desk-api/internal/repository"
	"github.com/noah-isme/deal-desk-api/internal/service"
	"github.com/noah-isme/deal-desk-api/pkg/cache"
	"github.com/noah-isme/deal-desk-api/pkg/config"
	"github.com/noah-isme/deal-desk-api/pkg/database"
	"github.com/noah-isme/deal-desk-api/pkg/jobs"
	"github.com/noah-isme/deal-desk-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/deal-desk-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/deal-desk-api/pkg/middleware/requestid"
	"github.com/noah-isme/deal-desk-api/pkg/scheduler"
	"github.com/noah-isme/deal-desk-api/pkg/storage"
)

// @title Deal Desk API
// @version 1.0.0
// @description Equity deal capture, validation and review workflow
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	checks := map[string]handler.Pinger{}

	store, closeStore, err := openDealStore(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to open deal store", zap.Error(err))
	}
	defer closeStore()
	checks["deal_store"] = store

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, query cache disabled", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(client, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
			checks["redis"] = repo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cacheRepo != nil)
	deals := service.NewDealService(store, cacheSvc, logr)

	alerts := service.NewAlertService(cfg.Alerts.Count, gofakeit.New(0))
	sessions := service.NewSessionService(service.LifecycleDeps{
		Store:   store,
		Cache:   deals,
		Metrics: metrics,
		Logger:  logr,
	}, alerts, metrics, cfg.Sessions.IdleTTL, logr)

	files, err := storage.NewLocalStorage(cfg.Uploads.Dir)
	if err != nil {
		logr.Fatal("failed to prepare upload directory", zap.Error(err))
	}
	uploads := service.NewUploadService(files, storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL), metrics, logr, service.UploadServiceConfig{
		MaxFileSize:       cfg.Uploads.MaxFileSizeBytes,
		AllowedExtensions: cfg.Uploads.AllowedExtensions,
		RetentionTTL:      cfg.Uploads.RetentionTTL,
		APIPrefix:         cfg.APIPrefix,
	})

	var ingestion *service.IngestionService
	if cfg.Ingestion.Enabled {
		ingestion = service.NewIngestionService(store, deals, metrics, logr)
		queue := jobs.NewQueue("deal-ingestion", ingestion.Process, jobs.QueueConfig{
			Workers:    cfg.Ingestion.Workers,
			MaxRetries: cfg.Ingestion.Retries,
			RetryDelay: cfg.Ingestion.RetryDelay,
			OnFailure:  ingestion.Fail,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()
		ingestion.UseQueue(queue)
	}

	sched := scheduler.New(logr)
	if cfg.Sessions.SweepSchedule != "" {
		if err := sched.AddJob(cfg.Sessions.SweepSchedule, scheduler.JobFunc{JobName: "session-sweep", Fn: sessions.Sweep}); err != nil {
			logr.Fatal("invalid session sweep schedule", zap.Error(err))
		}
		cleanup := scheduler.JobFunc{JobName: "upload-cleanup", Fn: uploads.Cleanup}
		if err := sched.AddJob(cfg.Sessions.SweepSchedule, cleanup); err != nil {
			logr.Fatal("invalid upload cleanup schedule", zap.Error(err))
		}
		if err := sched.RunNow(cleanup); err != nil {
			logr.Warn("initial upload cleanup failed", zap.Error(err))
		}
	}
	sched.Start()
	defer sched.Stop()

	validate := validator.New()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics", "/health", "/ready"))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		deals:     deals,
		sessions:  sessions,
		alerts:    alerts,
		uploads:   uploads,
		ingestion: ingestion,
		validate:  validate,
		origins:   cfg.CORS.AllowedOrigins,
		logger:    logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Deals.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type dealStore interface {
	service.DealStore
	handler.Pinger
}

func openDealStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (dealStore, func(), error) {
	if cfg.Deals.Store != config.StorePostgres {
		logr.Info("using in-memory deal store", zap.Int("seed_count", cfg.Deals.SeedCount))
		return repository.NewMemoryDealRepository(cfg.Deals.SeedCount, cfg.Deals.Seed), func() {}, nil
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return repository.NewDealRepository(db), func() { _ = db.Close() }, nil
}
