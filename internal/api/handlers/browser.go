package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/pan-api/internal/services"
	"github.com/sirupsen/logrus"
)

// BrowserHandler exposes the lookup browser pool to operators
type BrowserHandler struct {
	browserService services.BrowserServiceInterface
	logger         *logrus.Logger
}

// NewBrowserHandler creates a new browser handler
func NewBrowserHandler(browserService services.BrowserServiceInterface, logger *logrus.Logger) *BrowserHandler {
	return &BrowserHandler{
		browserService: browserService,
		logger:         logger,
	}
}

// SessionsResponse lists the pool browsers and which ones lookups hold
type SessionsResponse struct {
	Sessions  []services.SessionInfo `json:"sessions"`
	InUse     int                    `json:"in_use"`
	Idle      int                    `json:"idle"`
	Timestamp time.Time              `json:"timestamp"`
}

func newSessionsResponse(sessions []services.SessionInfo) SessionsResponse {
	resp := SessionsResponse{Sessions: sessions, Timestamp: time.Now()}
	if resp.Sessions == nil {
		resp.Sessions = []services.SessionInfo{}
	}
	for _, s := range sessions {
		if s.InUse {
			resp.InUse++
		} else {
			resp.Idle++
		}
	}
	return resp
}

// GetStats handles browser pool statistics request
// @Summary Get browser pool statistics
// @Description Pool counters plus the sessions currently held by PAN lookups
// @Tags Browser
// @Produce json
// @Security AdminToken
// @Success 200 {object} map[string]interface{}
// @Router /browser/stats [get]
func (h *BrowserHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stats":     h.browserService.GetStats(),
		"sessions":  newSessionsResponse(h.browserService.Sessions()),
		"health":    h.browserService.Health(),
		"timestamp": time.Now(),
	})
}

// GetSessions lists every pool browser with its holder state
// @Summary List browser sessions
// @Description Which browsers are held by running PAN lookups, since when, and how many pages each loaded
// @Tags Browser
// @Produce json
// @Security AdminToken
// @Success 200 {object} SessionsResponse
// @Router /browser/sessions [get]
func (h *BrowserHandler) GetSessions(c *gin.Context) {
	c.JSON(http.StatusOK, newSessionsResponse(h.browserService.Sessions()))
}

// Restart handles browser pool restart request. Restarting kills the
// sessions held by running lookups, so it is refused while any are in use
// unless force=true.
// @Summary Restart browser pool
// @Description Restart all browsers; refused with 409 while lookups hold sessions unless force=true
// @Tags Browser
// @Produce json
// @Security AdminToken
// @Param force query bool false "Restart even while lookups hold sessions"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /browser/restart [post]
func (h *BrowserHandler) Restart(c *gin.Context) {
	requestID := c.GetString("request_id")
	logger := h.logger.WithField("request_id", requestID)

	force := false
	if raw := c.Query("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid parameter", "force must be a boolean", "INVALID_FORCE")
			return
		}
		force = parsed
	}

	held := newSessionsResponse(h.browserService.Sessions())
	if held.InUse > 0 && !force {
		logger.WithField("in_use", held.InUse).Warn("Browser restart refused while lookups hold sessions")
		respondError(c, http.StatusConflict, "Browsers in use", strconv.Itoa(held.InUse)+" session(s) held by running PAN lookups", "BROWSER_IN_USE")
		return
	}

	logger.WithFields(logrus.Fields{
		"in_use": held.InUse,
		"force":  force,
	}).Info("Restarting browser pool")

	if err := h.browserService.Restart(); err != nil {
		logger.WithError(err).Error("Failed to restart browser pool")
		respondError(c, http.StatusInternalServerError, "Internal server error", "Failed to restart browser pool", "BROWSER_RESTART_ERROR")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Browser pool restarted successfully",
		"interrupted": held.InUse,
		"success":     true,
		"stats":       h.browserService.GetStats(),
		"timestamp":   time.Now(),
	})
}

// GetHealth handles browser pool health check request
// @Summary Get browser pool health
// @Description Health of the browser pool that serves PAN lookups
// @Tags Browser
// @Produce json
// @Security AdminToken
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /browser/health [get]
func (h *BrowserHandler) GetHealth(c *gin.Context) {
	health := h.browserService.Health()

	status := http.StatusOK
	if health["status"] == "unhealthy" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"health":    health,
		"stats":     h.browserService.GetStats(),
		"timestamp": time.Now(),
	})
}
