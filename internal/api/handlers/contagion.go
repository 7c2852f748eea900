package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/akeroyd/covnet/internal/cache"
	"github.com/akeroyd/covnet/internal/models"
)

// ContagionNotifier receives completed assessments for alerting.
// Implementations must not block the request path.
type ContagionNotifier interface {
	NotifyAssessment(assessment *models.ContagionAssessment)
}

// ContagionHandler serves on-demand contagion assessments.
type ContagionHandler struct {
	engine   RiskEngine
	cache    *cache.NetworkCache
	notifier ContagionNotifier
	logger   *logrus.Logger
}

// NewContagionHandler creates a new contagion handler. notifier may be
// nil when alerting is disabled.
func NewContagionHandler(engine RiskEngine, resultCache *cache.NetworkCache, notifier ContagionNotifier, logger *logrus.Logger) *ContagionHandler {
	return &ContagionHandler{
		engine:   engine,
		cache:    resultCache,
		notifier: notifier,
		logger:   logger,
	}
}

// ContagionRequest is the body of a contagion assessment request.
type ContagionRequest struct {
	SourceCovenantID string `json:"source_covenant_id" binding:"required"`
	BorrowerID       string `json:"borrower_id"`
	FacilityID       string `json:"facility_id"`
	// AsOf bounds the test history; empty means now.
	AsOf string `json:"as_of"`
}

// AssessContagion computes the network for the requested scope (served
// from cache when possible) and runs the traversal from the source
// covenant.
func (h *ContagionHandler) AssessContagion(c *gin.Context) {
	var req ContagionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source_covenant_id is required"})
		return
	}
	if req.BorrowerID != "" && req.FacilityID != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "borrower_id and facility_id are mutually exclusive"})
		return
	}

	asOf := time.Now().UTC()
	if req.AsOf != "" {
		parsed, err := time.Parse(time.RFC3339, req.AsOf)
		if err != nil {
			parsed, err = time.Parse("2006-01-02", req.AsOf)
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid as_of field; expected RFC 3339 or YYYY-MM-DD"})
			return
		}
		asOf = parsed.UTC()
	}

	scope := models.Scope{BorrowerID: req.BorrowerID, FacilityID: req.FacilityID}

	network, hit := h.cache.GetNetwork(c.Request.Context(), scope, asOf)
	if !hit {
		computed, err := h.engine.ComputeNetwork(c.Request.Context(), scope, asOf)
		if err != nil {
			writeEngineError(c, h.logger, err)
			return
		}
		h.cache.SetNetwork(c.Request.Context(), computed)
		network = computed
	}

	assessment, err := h.engine.AssessContagion(c.Request.Context(), req.SourceCovenantID, network)
	if err != nil {
		writeEngineError(c, h.logger, err)
		return
	}

	if h.notifier != nil {
		h.notifier.NotifyAssessment(assessment)
	}

	c.JSON(http.StatusOK, assessment)
}
