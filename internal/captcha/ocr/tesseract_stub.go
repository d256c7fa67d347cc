//go:build !ocr

package ocr

import (
	"context"
	"image"
)

// Enabled reports whether Tesseract support is compiled in
const Enabled = false

// TesseractRecognizer is a placeholder when built without the ocr tag
type TesseractRecognizer struct{}

// NewTesseract returns a recognizer that always fails with ErrOCRNotEnabled
func NewTesseract(language string) (*TesseractRecognizer, error) {
	return &TesseractRecognizer{}, nil
}

// Recognize always returns ErrOCRNotEnabled
func (t *TesseractRecognizer) Recognize(ctx context.Context, img image.Image, charset string, mode PageMode) (string, error) {
	return "", ErrOCRNotEnabled
}

// Close is a no-op
func (t *TesseractRecognizer) Close() error {
	return nil
}
