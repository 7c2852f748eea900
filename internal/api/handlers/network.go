package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/akeroyd/covnet/internal/cache"
	"github.com/akeroyd/covnet/internal/models"
	"github.com/akeroyd/covnet/internal/services"
)

// RiskEngine is the slice of the engine the HTTP layer depends on.
type RiskEngine interface {
	ComputeNetwork(ctx context.Context, scope models.Scope, asOf time.Time) (*models.CovenantNetwork, error)
	ComputeMatrix(ctx context.Context, scope models.Scope, asOf time.Time) (*models.CorrelationMatrix, error)
	AssessContagion(ctx context.Context, sourceCovenantID string, network *models.CovenantNetwork) (*models.ContagionAssessment, error)
}

// NetworkHandler serves the computed contagion network.
type NetworkHandler struct {
	engine RiskEngine
	cache  *cache.NetworkCache
	logger *logrus.Logger
}

// NewNetworkHandler creates a new network handler.
func NewNetworkHandler(engine RiskEngine, resultCache *cache.NetworkCache, logger *logrus.Logger) *NetworkHandler {
	return &NetworkHandler{
		engine: engine,
		cache:  resultCache,
		logger: logger,
	}
}

// parseScopeQuery extracts the run scope from query parameters.
// borrower_id and facility_id are mutually exclusive; neither means the
// whole portfolio.
func parseScopeQuery(c *gin.Context) (models.Scope, bool) {
	scope := models.Scope{
		BorrowerID: c.Query("borrower_id"),
		FacilityID: c.Query("facility_id"),
	}
	if scope.BorrowerID != "" && scope.FacilityID != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "borrower_id and facility_id are mutually exclusive"})
		return models.Scope{}, false
	}
	return scope, true
}

// parseAsOfQuery extracts the as-of date, accepting RFC 3339 or a bare
// date. Defaults to now.
func parseAsOfQuery(c *gin.Context) (time.Time, bool) {
	raw := c.Query("as_of")
	if raw == "" {
		return time.Now().UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid as_of parameter; expected RFC 3339 or YYYY-MM-DD"})
	return time.Time{}, false
}

// writeEngineError maps engine errors onto HTTP statuses.
func writeEngineError(c *gin.Context, logger *logrus.Logger, err error) {
	var scopeErr *services.InvalidScopeError
	if errors.As(err, &scopeErr) {
		c.JSON(http.StatusNotFound, gin.H{"error": scopeErr.Error()})
		return
	}
	logger.WithError(err).Error("Engine run failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute result"})
}

// GetNetwork computes (or serves from cache) the covenant network for a
// scope. refresh=true bypasses the cache.
func (h *NetworkHandler) GetNetwork(c *gin.Context) {
	scope, ok := parseScopeQuery(c)
	if !ok {
		return
	}
	asOf, ok := parseAsOfQuery(c)
	if !ok {
		return
	}

	refresh := c.Query("refresh") == "true"
	if !refresh {
		if network, hit := h.cache.GetNetwork(c.Request.Context(), scope, asOf); hit {
			c.JSON(http.StatusOK, network)
			return
		}
	}

	network, err := h.engine.ComputeNetwork(c.Request.Context(), scope, asOf)
	if err != nil {
		writeEngineError(c, h.logger, err)
		return
	}

	h.cache.SetNetwork(c.Request.Context(), network)
	c.JSON(http.StatusOK, network)
}
