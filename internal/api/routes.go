package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/akeroyd/covnet/internal/api/handlers"
	"github.com/akeroyd/covnet/internal/database"
	"github.com/akeroyd/covnet/internal/middleware"
	"github.com/akeroyd/covnet/internal/models"
)

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Services  Services          `json:"services"`
	Data      *DataAvailability `json:"data,omitempty"`
}

type Services struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// DataAvailability summarises the stored test history so operators can
// tell an empty store from a broken one.
type DataAvailability struct {
	TestRecords     int64     `json:"test_records"`
	LatestPeriodEnd time.Time `json:"latest_period_end"`
}

// DataReporter is the slice of the covenant repository the health
// endpoint needs.
type DataReporter interface {
	CountTestRecords(ctx context.Context, scope models.Scope) (int64, error)
	LatestPeriodEnd(ctx context.Context) (time.Time, error)
}

// Handlers bundles the route handlers wired by the server entrypoint.
type Handlers struct {
	Network   *handlers.NetworkHandler
	Matrix    *handlers.MatrixHandler
	Contagion *handlers.ContagionHandler
	Admin     *handlers.AdminHandler
}

func SetupRoutes(router *gin.Engine, h Handlers, auth *middleware.AuthMiddleware, db *database.PostgresDB, redis *database.RedisClient, reporter DataReporter) {
	// Health check endpoint
	router.GET("/health", healthCheck(db, redis, reporter))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		network := v1.Group("/network")
		{
			network.GET("", h.Network.GetNetwork)
			network.GET("/matrix", h.Matrix.GetMatrix)
			network.POST("/contagion", h.Contagion.AssessContagion)
		}

		admin := v1.Group("/admin")
		admin.Use(auth.RequireAuth(), auth.RequireAdmin())
		{
			admin.POST("/cache/invalidate", h.Admin.InvalidateCache)
			admin.GET("/cache/stats", h.Admin.CacheStats)
		}
	}
}

func healthCheck(db *database.PostgresDB, redis *database.RedisClient, reporter DataReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Version:   "1.0.0",
			Services: Services{
				Database: "ok",
				Redis:    "ok",
			},
		}

		// Check database health
		if db != nil {
			if err := db.HealthCheck(c.Request.Context()); err != nil {
				response.Services.Database = "error"
				response.Status = "degraded"
			}
		}

		// The cache is optional; a dead Redis degrades but does not fail.
		if redis == nil {
			response.Services.Redis = "disabled"
		} else if err := redis.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Redis = "error"
			response.Status = "degraded"
		}

		// Report data availability while the database is reachable.
		if reporter != nil && response.Services.Database == "ok" {
			if count, err := reporter.CountTestRecords(c.Request.Context(), models.Scope{}); err == nil {
				availability := &DataAvailability{TestRecords: count}
				if latest, err := reporter.LatestPeriodEnd(c.Request.Context()); err == nil {
					availability.LatestPeriodEnd = latest
				}
				response.Data = availability
			}
		}

		statusCode := http.StatusOK
		if response.Status == "degraded" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, response)
	}
}
