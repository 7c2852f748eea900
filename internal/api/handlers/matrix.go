package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/akeroyd/covnet/internal/cache"
)

// MatrixHandler serves the dense correlation matrices.
type MatrixHandler struct {
	engine RiskEngine
	cache  *cache.NetworkCache
	logger *logrus.Logger
}

// NewMatrixHandler creates a new matrix handler.
func NewMatrixHandler(engine RiskEngine, resultCache *cache.NetworkCache, logger *logrus.Logger) *MatrixHandler {
	return &MatrixHandler{
		engine: engine,
		cache:  resultCache,
		logger: logger,
	}
}

// GetMatrix computes (or serves from cache) the correlation, p-value,
// and lead-lag matrices for a scope.
func (h *MatrixHandler) GetMatrix(c *gin.Context) {
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
		if matrix, hit := h.cache.GetMatrix(c.Request.Context(), scope, asOf); hit {
			c.JSON(http.StatusOK, matrix)
			return
		}
	}

	matrix, err := h.engine.ComputeMatrix(c.Request.Context(), scope, asOf)
	if err != nil {
		writeEngineError(c, h.logger, err)
		return
	}

	h.cache.SetMatrix(c.Request.Context(), matrix)
	c.JSON(http.StatusOK, matrix)
}
