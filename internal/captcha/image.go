package captcha

import (
	"context"
	"fmt"

	"github.com/nexconsult/pan-api/internal/captcha/imageproc"
	"github.com/nexconsult/pan-api/internal/captcha/ocr"
	"github.com/sirupsen/logrus"
)

// ImageSolver answers image challenges: binarize, OCR, normalize to a
// fixed-length code
type ImageSolver struct {
	preprocessor *imageproc.Preprocessor
	recognizer   ocr.Recognizer
	logger       *logrus.Logger
}

// NewImageSolver creates an image solver
func NewImageSolver(preprocessor *imageproc.Preprocessor, recognizer ocr.Recognizer, logger *logrus.Logger) *ImageSolver {
	return &ImageSolver{
		preprocessor: preprocessor,
		recognizer:   recognizer,
		logger:       logger,
	}
}

// Solve implements Solver
func (s *ImageSolver) Solve(ctx context.Context, challenge Challenge) (string, error) {
	if challenge.Kind != KindImage {
		return "", fmt.Errorf("%w: image solver got %s", ErrUnsupportedChallenge, challenge.Kind)
	}

	binary, err := s.preprocessor.Process(challenge.Data)
	if err != nil {
		return "", err
	}

	raw, err := s.recognizer.Recognize(ctx, binary, ocr.AlphaNumeric, ocr.ModeSingleLine)
	if err != nil {
		return "", fmt.Errorf("image captcha recognition failed: %w", err)
	}

	code := ocr.NormalizeCode(raw, ocr.CodeLength, ocr.CodeFiller)
	s.logger.WithFields(logrus.Fields{
		"raw":  raw,
		"code": code,
	}).Debug("Image captcha recognized")

	return code, nil
}
