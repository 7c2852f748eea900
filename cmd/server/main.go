package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/akeroyd/covnet/internal/api"
	"github.com/akeroyd/covnet/internal/api/handlers"
	"github.com/akeroyd/covnet/internal/cache"
	"github.com/akeroyd/covnet/internal/config"
	"github.com/akeroyd/covnet/internal/database"
	"github.com/akeroyd/covnet/internal/middleware"
	"github.com/akeroyd/covnet/internal/notifier"
	"github.com/akeroyd/covnet/internal/services"
	"github.com/akeroyd/covnet/internal/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx := context.Background()

	// Initialize telemetry
	provider, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("Telemetry shutdown failed")
		}
	}()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Redis is optional: without it every request recomputes.
	var redisClient *redis.Client
	redisConn, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, running without result cache")
	} else {
		redisClient = redisConn.Client
		defer redisConn.Close()
	}

	cacheTTL, err := time.ParseDuration(cfg.Redis.CacheTTL)
	if err != nil {
		cacheTTL = 15 * time.Minute
	}
	resultCache := cache.NewNetworkCache(redisClient, cacheTTL, logger)

	// Wire the engine over the test-history store
	repo := database.NewCovenantRepository(database.NewTracedPool(db.Pool, logger))
	engine := services.NewRiskEngine(repo, cfg.Analytics, logger)

	// Contagion alerting is optional
	telegramNotifier, err := notifier.NewTelegramNotifier(cfg.Telegram, cfg.Analytics.AlertCascadeThreshold, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize telegram notifier: %v", err)
	}

	auth := middleware.NewAuthMiddleware(cfg.Security.JWTSecret)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	if cfg.Telemetry.Enabled {
		router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}

	routeHandlers := api.Handlers{
		Network:   handlers.NewNetworkHandler(engine, resultCache, logger),
		Matrix:    handlers.NewMatrixHandler(engine, resultCache, logger),
		Contagion: handlers.NewContagionHandler(engine, resultCache, notifierOrNil(telegramNotifier), logger),
		Admin:     handlers.NewAdminHandler(resultCache, logger),
	}
	api.SetupRoutes(router, routeHandlers, auth, db, redisConn, repo)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// notifierOrNil keeps a typed-nil *TelegramNotifier from reaching the
// handler's interface field.
func notifierOrNil(n *notifier.TelegramNotifier) handlers.ContagionNotifier {
	if n == nil {
		return nil
	}
	return n
}
