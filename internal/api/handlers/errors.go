package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/pan-api/internal/models"
)

// respondError writes a models.ErrorResponse for the current request
func respondError(c *gin.Context, status int, title, message, code string) {
	c.JSON(status, models.ErrorResponse{
		Error:     title,
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	})
}
