package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/pan-api/internal/models"
	"github.com/nexconsult/pan-api/internal/services"
	"github.com/sirupsen/logrus"
)

// MetricsHandler handles metrics requests
type MetricsHandler struct {
	panService     services.PANServiceInterface
	browserService services.BrowserServiceInterface
	logger         *logrus.Logger
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(panService services.PANServiceInterface, browserService services.BrowserServiceInterface, logger *logrus.Logger) *MetricsHandler {
	return &MetricsHandler{
		panService:     panService,
		browserService: browserService,
		logger:         logger,
	}
}

// GetMetrics handles metrics request
// @Summary Get application metrics
// @Description Lookup counters, browser pool usage and runtime statistics
// @Tags Metrics
// @Produce json
// @Success 200 {object} models.MetricsResponse
// @Router /metrics [get]
func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	requestID := c.GetString("request_id")

	h.logger.WithField("request_id", requestID).Debug("Getting application metrics")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	browserStats := h.browserService.GetStats()

	response := models.MetricsResponse{
		Lookups: h.panService.Metrics(),
		Browser: models.BrowserMetrics{
			TotalBrowsers:   getIntFromStats(browserStats, "total_browsers"),
			HealthyBrowsers: getIntFromStats(browserStats, "healthy_browsers"),
			Available:       getIntFromStats(browserStats, "available"),
		},
		System: models.SystemMetrics{
			MemoryUsage: float64(m.Alloc) / 1024 / 1024, // MB
			Goroutines:  runtime.NumGoroutine(),
		},
		Timestamp: time.Now(),
	}

	c.JSON(http.StatusOK, response)
}

// Helper function to safely get int values from stats map
func getIntFromStats(stats map[string]interface{}, key string) int {
	if value, exists := stats[key]; exists {
		if intValue, ok := value.(int); ok {
			return intValue
		}
	}
	return 0
}
