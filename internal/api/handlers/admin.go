package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/akeroyd/covnet/internal/cache"
)

// AdminHandler serves cache administration endpoints.
type AdminHandler struct {
	cache  *cache.NetworkCache
	logger *logrus.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(resultCache *cache.NetworkCache, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		cache:  resultCache,
		logger: logger,
	}
}

// InvalidateCache drops every cached network and matrix. Called after a
// covenant test-data load so the next request recomputes.
func (h *AdminHandler) InvalidateCache(c *gin.Context) {
	removed, err := h.cache.Invalidate(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Cache invalidation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to invalidate cache"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// CacheStats reports hit/miss/set counters for the result cache.
func (h *AdminHandler) CacheStats(c *gin.Context) {
	hits, misses, sets := h.cache.Stats()
	c.JSON(http.StatusOK, gin.H{
		"hits":   hits,
		"misses": misses,
		"sets":   sets,
	})
}
