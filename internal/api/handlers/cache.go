package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/pan-api/internal/services"
	"github.com/nexconsult/pan-api/internal/utils"
	"github.com/sirupsen/logrus"
)

// CacheHandler handles cache management requests
type CacheHandler struct {
	cacheService services.CacheServiceInterface
	logger       *logrus.Logger
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(cacheService services.CacheServiceInterface, logger *logrus.Logger) *CacheHandler {
	return &CacheHandler{
		cacheService: cacheService,
		logger:       logger,
	}
}

// GetStats handles cache statistics request
// @Summary Get cache statistics
// @Description Get detailed cache statistics and metrics
// @Tags Cache
// @Produce json
// @Security AdminToken
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} models.ErrorResponse
// @Router /cache/stats [get]
func (h *CacheHandler) GetStats(c *gin.Context) {
	requestID := c.GetString("request_id")

	h.logger.WithField("request_id", requestID).Info("Getting cache statistics")

	stats, err := h.cacheService.GetStats(c.Request.Context())
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to get cache statistics")

		respondError(c, http.StatusInternalServerError, "Internal server error", "Failed to retrieve cache statistics", "CACHE_STATS_ERROR")
		return
	}

	// Add additional metadata
	response := map[string]interface{}{
		"stats":     stats,
		"timestamp": time.Now(),
		"health":    h.cacheService.Health(),
	}

	c.JSON(http.StatusOK, response)
}

// Clear handles cache clear request
// @Summary Clear all cache
// @Description Clear all cached PAN records
// @Tags Cache
// @Produce json
// @Security AdminToken
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} models.ErrorResponse
// @Router /cache/clear [delete]
func (h *CacheHandler) Clear(c *gin.Context) {
	requestID := c.GetString("request_id")

	h.logger.WithField("request_id", requestID).Info("Clearing all cache")

	err := h.cacheService.Clear(c.Request.Context())
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to clear cache")

		respondError(c, http.StatusInternalServerError, "Internal server error", "Failed to clear cache", "CACHE_CLEAR_ERROR")
		return
	}

	h.logger.WithField("request_id", requestID).Info("Cache cleared successfully")

	response := map[string]interface{}{
		"message":   "Cache cleared successfully",
		"timestamp": time.Now(),
		"success":   true,
	}

	c.JSON(http.StatusOK, response)
}

// Delete handles specific cache entry deletion
// @Summary Delete specific PAN from cache
// @Description Delete a specific PAN record from cache
// @Tags Cache
// @Param pan path string true "PAN number to delete from cache"
// @Produce json
// @Security AdminToken
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /cache/{pan} [delete]
func (h *CacheHandler) Delete(c *gin.Context) {
	requestID := c.GetString("request_id")
	panParam := c.Param("pan")

	pan, ok := utils.NormalizePAN(panParam)
	if !ok {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"pan":        panParam,
		}).Warn("Invalid PAN format for cache deletion")

		respondError(c, http.StatusBadRequest, "Invalid PAN format", "PAN must be alphanumeric, at most 32 characters", "INVALID_PAN")
		return
	}

	logger := h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"pan":        pan,
	})
	logger.Info("Deleting PAN from cache")

	cacheKey := services.CacheKey(pan)

	exists, err := h.cacheService.Exists(c.Request.Context(), cacheKey)
	if err != nil {
		logger.WithError(err).Error("Failed to check cache key existence")
		respondError(c, http.StatusInternalServerError, "Internal server error", "Failed to check cache", "CACHE_CHECK_ERROR")
		return
	}

	if !exists {
		logger.Info("PAN not found in cache")
		respondError(c, http.StatusNotFound, "Not found", "PAN not found in cache", "PAN_NOT_IN_CACHE")
		return
	}

	if err := h.cacheService.Delete(c.Request.Context(), cacheKey); err != nil {
		logger.WithError(err).Error("Failed to delete PAN from cache")
		respondError(c, http.StatusInternalServerError, "Internal server error", "Failed to delete from cache", "CACHE_DELETE_ERROR")
		return
	}

	logger.Info("PAN deleted from cache successfully")

	c.JSON(http.StatusOK, map[string]interface{}{
		"message":   "PAN deleted from cache successfully",
		"pan":       pan,
		"timestamp": time.Now(),
		"success":   true,
	})
}
