package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/pan-api/internal/captcha"
	"github.com/nexconsult/pan-api/internal/captcha/imageproc"
	"github.com/nexconsult/pan-api/internal/captcha/ocr"
	"github.com/nexconsult/pan-api/internal/models"
	"github.com/sirupsen/logrus"
)

// CaptchaHandler exposes the captcha solvers directly
type CaptchaHandler struct {
	solver captcha.Solver
	logger *logrus.Logger
}

// NewCaptchaHandler creates a new captcha handler
func NewCaptchaHandler(solver captcha.Solver, logger *logrus.Logger) *CaptchaHandler {
	return &CaptchaHandler{
		solver: solver,
		logger: logger,
	}
}

// SolveImage handles image captcha recognition
// @Summary Solve an image captcha
// @Description Binarize an image captcha and read it as a 6 character code
// @Tags Captcha
// @Accept json
// @Produce json
// @Param request body models.ImageCaptchaRequest true "Data URI or base64 encoded image"
// @Success 200 {object} models.CaptchaResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /captcha/image [post]
func (h *CaptchaHandler) SolveImage(c *gin.Context) {
	var request models.ImageCaptchaRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request format", err.Error(), "INVALID_REQUEST")
		return
	}

	data := []byte(request.Image)
	if !imageproc.IsDataURI(request.Image) {
		decoded, err := imageproc.DecodeBase64(request.Image)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid image", "Image must be a data URI or base64 encoded", "INVALID_IMAGE")
			return
		}
		data = decoded
	}

	h.solve(c, captcha.ImageChallenge(data))
}

// SolveText handles arithmetic captcha prompts
// @Summary Solve an arithmetic captcha
// @Description Sum every integer in a prompt such as "What is 3 plus 4"
// @Tags Captcha
// @Accept json
// @Produce json
// @Param request body models.TextCaptchaRequest true "Captcha prompt"
// @Success 200 {object} models.CaptchaResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /captcha/text [post]
func (h *CaptchaHandler) SolveText(c *gin.Context) {
	var request models.TextCaptchaRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request format", err.Error(), "INVALID_REQUEST")
		return
	}

	h.solve(c, captcha.TextChallenge(request.Prompt))
}

func (h *CaptchaHandler) solve(c *gin.Context, challenge captcha.Challenge) {
	start := time.Now()
	requestID := c.GetString("request_id")

	solution, err := h.solver.Solve(c.Request.Context(), challenge)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"kind":       challenge.Kind.String(),
			"error":      err.Error(),
		}).Warn("Failed to solve captcha")

		switch {
		case errors.Is(err, captcha.ErrUnsupportedChallenge), errors.Is(err, ocr.ErrOCRNotEnabled):
			respondError(c, http.StatusServiceUnavailable, "Captcha solver unavailable", err.Error(), "SOLVER_UNAVAILABLE")
		case errors.Is(err, imageproc.ErrNoImage):
			respondError(c, http.StatusBadRequest, "Invalid image", err.Error(), "INVALID_IMAGE")
		default:
			respondError(c, http.StatusUnprocessableEntity, "Unsolvable captcha", err.Error(), "CAPTCHA_ERROR")
		}
		return
	}

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"kind":       challenge.Kind.String(),
		"duration":   time.Since(start),
	}).Info("Captcha solved")

	c.JSON(http.StatusOK, models.CaptchaResponse{
		Kind:       challenge.Kind.String(),
		Solution:   solution,
		DurationMs: time.Since(start).Milliseconds(),
		Timestamp:  time.Now(),
	})
}
