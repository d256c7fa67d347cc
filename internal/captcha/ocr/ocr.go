// Package ocr wraps a character recognition engine behind a small boundary
// and normalizes its output into fixed-length captcha codes.
//
// The Tesseract implementation needs libtesseract and the "ocr" build tag:
//
//	go build -tags ocr ./...
//
// Without the tag, Recognize returns ErrOCRNotEnabled.
package ocr

import (
	"context"
	"errors"
	"image"
	"strings"
)

// AlphaNumeric is the character set the portal captcha draws from
const AlphaNumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Captcha code shape
const (
	CodeLength = 6
	CodeFiller = 'X'
)

// PageMode mirrors Tesseract page segmentation modes
type PageMode int

// ModeSingleLine treats the image as a single text line
const ModeSingleLine PageMode = 7

// ErrOCRNotEnabled is returned when the binary was built without the ocr tag
var ErrOCRNotEnabled = errors.New("ocr: support not compiled in (build with -tags ocr)")

// Recognizer reads text from an image
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, charset string, mode PageMode) (string, error)
	Close() error
}

// NormalizeCode strips everything outside A-Z, a-z, 0-9 and forces the
// result to exactly length characters: longer input keeps a centred
// window, shorter input is right-padded with filler.
func NormalizeCode(raw string, length int, filler rune) string {
	var b strings.Builder
	for _, r := range raw {
		if isAlphaNumeric(r) {
			b.WriteRune(r)
		}
	}
	code := b.String()

	switch {
	case len(code) > length:
		start := (len(code) - length) / 2
		return code[start : start+length]
	case len(code) < length:
		return code + strings.Repeat(string(filler), length-len(code))
	default:
		return code
	}
}

func isAlphaNumeric(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
