package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/pan-api/internal/models"
	"github.com/nexconsult/pan-api/internal/services"
	"github.com/nexconsult/pan-api/internal/utils"
	"github.com/sirupsen/logrus"
)

// PANHandler handles PAN lookup requests
type PANHandler struct {
	panService services.PANServiceInterface
	logger     *logrus.Logger
}

// NewPANHandler creates a new PAN handler
func NewPANHandler(panService services.PANServiceInterface, logger *logrus.Logger) *PANHandler {
	return &PANHandler{
		panService: panService,
		logger:     logger,
	}
}

// GetPAN handles single PAN lookup
// @Summary Get PAN record
// @Description Look a taxpayer up on the IRD PAN search portal. A record whose lookup failed is returned with status 502 and its error field set.
// @Tags PAN
// @Accept json
// @Produce json
// @Param pan path string true "PAN number" example(301234567)
// @Success 200 {object} models.Record
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 502 {object} models.Record
// @Failure 503 {object} models.ErrorResponse
// @Router /pan/{pan} [get]
func (h *PANHandler) GetPAN(c *gin.Context) {
	start := time.Now()
	requestID := c.GetString("request_id")
	panParam := c.Param("pan")

	pan, ok := utils.NormalizePAN(panParam)
	if !ok {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"pan":        panParam,
		}).Warn("Invalid PAN format")

		respondError(c, http.StatusBadRequest, "Invalid PAN format", "PAN must be alphanumeric, at most 32 characters", "INVALID_PAN")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"pan":        pan,
	}).Info("Processing PAN lookup")

	record, err := h.panService.Lookup(c.Request.Context(), pan)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"pan":        pan,
			"error":      err.Error(),
			"duration":   time.Since(start),
		}).Error("Failed to look PAN up")

		h.respondLookupError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"pan":        pan,
		"duration":   time.Since(start),
		"cache":      record.Cache,
		"failed":     record.Failed(),
	}).Info("PAN lookup completed")

	if record.Cache {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}

	if record.Failed() {
		c.JSON(http.StatusBadGateway, record)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.JSON(http.StatusOK, record)
}

func (h *PANHandler) respondLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusRequestTimeout, "Request timeout", "The request took too long to process. Please try again later", "TIMEOUT")
	case errors.Is(err, context.Canceled):
		respondError(c, http.StatusRequestTimeout, "Request cancelled", "The request was cancelled before the lookup finished", "CANCELLED")
	case errors.Is(err, services.ErrNoBrowserAvailable), errors.Is(err, services.ErrBrowserClosed):
		respondError(c, http.StatusServiceUnavailable, "Browser unavailable", "No browser session is free. Please try again later", "BROWSER_UNAVAILABLE")
	default:
		respondError(c, http.StatusInternalServerError, "Internal server error", "An unexpected error occurred while processing your request", "INTERNAL_ERROR")
	}
}

// GetBatchPAN handles batch PAN lookup
// @Summary Get multiple PAN records
// @Description Look up to 100 PANs. Results keep the input order; malformed PANs come back as error records.
// @Tags PAN
// @Accept json
// @Produce json
// @Param request body models.BatchRequest true "Batch PAN request"
// @Success 200 {object} models.BatchResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /pan/batch [post]
func (h *PANHandler) GetBatchPAN(c *gin.Context) {
	start := time.Now()
	requestID := c.GetString("request_id")

	var request models.BatchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Invalid batch request format")

		respondError(c, http.StatusBadRequest, "Invalid request format", err.Error(), "INVALID_REQUEST")
		return
	}

	results := make(models.ResultSet, len(request.PANs))
	validPANs := make([]string, 0, len(request.PANs))
	positions := make([]int, 0, len(request.PANs))
	for i, raw := range request.PANs {
		pan, ok := utils.NormalizePAN(raw)
		if !ok {
			results[i] = models.NewErrorRecord(strings.TrimSpace(raw), models.ErrorInvalidPAN)
			continue
		}
		validPANs = append(validPANs, pan)
		positions = append(positions, i)
	}

	if len(validPANs) == 0 {
		respondError(c, http.StatusBadRequest, "No valid PANs provided", "All provided PANs are invalid", "NO_VALID_PANS")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"total_pans": len(request.PANs),
		"valid_pans": len(validPANs),
	}).Info("Processing batch PAN lookup")

	found, err := h.panService.LookupBatch(c.Request.Context(), validPANs)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"duration":   time.Since(start),
		}).Error("Failed to process batch PAN lookup")

		respondError(c, http.StatusInternalServerError, "Internal server error", "An unexpected error occurred while processing batch request", "BATCH_ERROR")
		return
	}

	for j, record := range found {
		results[positions[j]] = record
	}

	duration := time.Since(start)
	success, failed := results.Summary()

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"total":      len(results),
		"success":    success,
		"errors":     failed,
		"duration":   duration,
	}).Info("Batch PAN lookup completed")

	c.JSON(http.StatusOK, models.BatchResponse{
		Results:    results,
		Total:      len(results),
		Success:    success,
		Errors:     failed,
		DurationMs: duration.Milliseconds(),
		Timestamp:  time.Now(),
	})
}
