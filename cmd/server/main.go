package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/subtrack/service-subscription/internal/application"
	"github.com/subtrack/service-subscription/internal/config"
	"github.com/subtrack/service-subscription/internal/domain/uow"
	"github.com/subtrack/service-subscription/internal/events"
	"github.com/subtrack/service-subscription/internal/handler"
	"github.com/subtrack/service-subscription/internal/platform/auth"
	"github.com/subtrack/service-subscription/internal/platform/database"
	"github.com/subtrack/service-subscription/internal/platform/health"
	"github.com/subtrack/service-subscription/internal/platform/kafka"
	"github.com/subtrack/service-subscription/internal/platform/logger"
	"github.com/subtrack/service-subscription/internal/platform/metrics"
	"github.com/subtrack/service-subscription/internal/platform/middleware"
	"github.com/subtrack/service-subscription/internal/repository"
	"github.com/subtrack/service-subscription/internal/repository/memory"
	"github.com/subtrack/service-subscription/internal/scheduler"
)

const serviceName = "service-subscription"

// store is a unit-of-work store that can also answer readiness probes.
type store interface {
	uow.Store
	health.Pinger
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("store", cfg.StoreDriver),
	)

	st := openStore(cfg, zapLogger)
	m := metrics.New()

	// Admin pin is fixed for the life of the process
	guard, err := application.NewAdminPinGuard(cfg.AdminPin, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to initialize admin pin", zap.Error(err))
	}

	// Initialize application services
	codes := application.NewCodeGenerator(cfg.CodeMaxAttempts, m, zapLogger)
	subscriberService := application.NewSubscriberService(st, codes, guard, m, zapLogger, time.Now)
	subscriptionService := application.NewSubscriptionService(st, guard, m, zapLogger, time.Now)
	queryService := application.NewQueryService(st, time.Now)
	notificationService := application.NewNotificationService(st, time.Now)

	// Backfill codes for legacy subscribers
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := subscriberService.AssignMissingCodes(startupCtx); err != nil {
		zapLogger.Fatal("failed to assign missing subscriber codes", zap.Error(err))
	}
	startupCancel()

	// Daily digest publishing
	var digestScheduler *scheduler.Scheduler
	if cfg.DigestConfig.Enabled {
		kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, zapLogger)
		defer kafkaProducer.Close()

		digests := events.NewDigestPublisher(notificationService, kafkaProducer, cfg.KafkaConfig.DigestTopic, m, zapLogger)
		digestScheduler = scheduler.New(zapLogger)
		if err := digestScheduler.Add("daily-digest", cfg.DigestConfig.Schedule, digests); err != nil {
			zapLogger.Fatal("failed to schedule daily digest", zap.Error(err))
		}
		digestScheduler.Start()
	}

	// Initialize JWT verifier
	jwtManager := auth.NewJWTManager(cfg.JWTSecret)
	if !jwtManager.Enabled() {
		zapLogger.Warn("JWT_SECRET not set, API routes are unauthenticated")
	}

	// Setup Gin router
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.LoggerMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(m.Middleware())

	// Register health and metrics routes
	health.NewHandler(st, serviceName).RegisterRoutes(router)
	router.GET("/metrics", m.Handler())

	// Register API routes
	apiV1 := router.Group("/api/v1")
	handler.NewSubscriberHandler(subscriberService).RegisterRoutes(apiV1, jwtManager)
	handler.NewSubscriptionHandler(subscriptionService, queryService).RegisterRoutes(apiV1, jwtManager)
	handler.NewNotificationHandler(notificationService).RegisterRoutes(apiV1, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down " + serviceName + "...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if digestScheduler != nil {
		select {
		case <-digestScheduler.Stop().Done():
		case <-shutdownCtx.Done():
			zapLogger.Warn("digest job still running at shutdown")
		}
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info(serviceName + " stopped")
}

// openStore connects the configured store driver and prepares its schema.
func openStore(cfg *config.ServiceConfig, zapLogger *zap.Logger) store {
	if cfg.StoreDriver == config.StoreMemory {
		zapLogger.Warn("using in-memory store, data is lost on restart")
		return memory.NewStore()
	}

	db, err := database.Connect(cfg.DBConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.IsDevelopment() {
		if err := repository.AutoMigrate(db); err != nil {
			zapLogger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		zapLogger.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), cfg.MigrationsDir, zapLogger); err != nil {
			zapLogger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	return repository.NewGormStore(db)
}
