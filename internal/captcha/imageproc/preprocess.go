// Package imageproc turns an embedded captcha image into a two-level image
// that an OCR engine can read.
//
// The pipeline is: decode, grayscale, crop a horizontal margin, autocontrast,
// local-mean adaptive threshold, median denoise.
package imageproc

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sort"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// ErrNoImage is returned when the payload cannot be decoded as an image.
// Callers treat it as "this page has no image challenge".
var ErrNoImage = errors.New("no image challenge present")

const (
	Foreground uint8 = 0
	Background uint8 = 255
)

// Options tunes the preprocessing pipeline
type Options struct {
	// MarginRatio is the share of the width cropped from each side.
	MarginRatio float64
	// Window is the side of the square neighbourhood used for the local mean.
	Window int
	// Offset is how far below the local mean a pixel must be to count as ink.
	Offset float64
	// MedianSize is the side of the median filter kernel.
	MedianSize int
	// DebugDir, when set, receives debug_cropped.png and debug_bin.png.
	DebugDir string
}

// DefaultOptions returns the tuning used against the PAN portal captcha
func DefaultOptions() Options {
	return Options{
		MarginRatio: 0.05,
		Window:      15,
		Offset:      10,
		MedianSize:  3,
	}
}

// Preprocessor binarizes captcha images
type Preprocessor struct {
	opts   Options
	logger *logrus.Logger
}

// New creates a preprocessor. logger may be nil.
func New(opts Options, logger *logrus.Logger) *Preprocessor {
	def := DefaultOptions()
	if opts.Window <= 0 {
		opts.Window = def.Window
	}
	if opts.MedianSize <= 0 {
		opts.MedianSize = def.MedianSize
	}
	if opts.MarginRatio < 0 || opts.MarginRatio >= 0.5 {
		opts.MarginRatio = def.MarginRatio
	}
	return &Preprocessor{opts: opts, logger: logger}
}

// Process decodes data (raw bytes or a data:image URI) and returns the
// binarized, denoised image.
func (p *Preprocessor) Process(data []byte) (*image.Gray, error) {
	if trimmed := bytes.TrimSpace(data); bytes.HasPrefix(trimmed, []byte("data:")) {
		decoded, err := DecodeDataURI(string(trimmed))
		if err != nil {
			return nil, err
		}
		data = decoded
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoImage, err)
	}

	gray := imaging.Grayscale(src)
	w := gray.Bounds().Dx()
	margin := int(float64(w) * p.opts.MarginRatio)
	cropped := imaging.Crop(gray, image.Rect(margin, 0, w-margin, gray.Bounds().Dy()))
	if cropped.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image too small to crop", ErrNoImage)
	}

	contrasted := Autocontrast(toGray(cropped))
	binary := Median(Threshold(contrasted, p.opts.Window, p.opts.Offset), p.opts.MedianSize)

	if p.opts.DebugDir != "" {
		p.snapshot(contrasted, "debug_cropped.png")
		p.snapshot(binary, "debug_bin.png")
	}

	return binary, nil
}

func (p *Preprocessor) snapshot(img image.Image, name string) {
	path := filepath.Join(p.opts.DebugDir, name)
	if err := imaging.Save(img, path); err != nil && p.logger != nil {
		p.logger.WithFields(logrus.Fields{
			"path":  path,
			"error": err.Error(),
		}).Warn("Failed to save captcha debug snapshot")
	}
}

// IsDataURI reports whether s looks like a data: URI
func IsDataURI(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "data:")
}

// DecodeBase64 decodes a bare base64 payload, padded or not
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	data, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoImage, err)
	}
	return data, nil
}

// DecodeDataURI extracts the payload of a base64 data URI
func DecodeDataURI(uri string) ([]byte, error) {
	comma := strings.IndexByte(uri, ',')
	if !strings.HasPrefix(uri, "data:") || comma < 0 {
		return nil, fmt.Errorf("%w: malformed data URI", ErrNoImage)
	}
	if !strings.Contains(uri[:comma], ";base64") {
		return nil, fmt.Errorf("%w: data URI is not base64 encoded", ErrNoImage)
	}
	payload, err := base64.StdEncoding.DecodeString(strings.TrimSpace(uri[comma+1:]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoImage, err)
	}
	return payload, nil
}

// toGray expects an NRGBA image anchored at the origin, as imaging returns
func toGray(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			// imaging.Grayscale leaves R == G == B
			dst.Pix[y*dst.Stride+x] = src.Pix[y*src.Stride+x*4]
		}
	}
	return dst
}

// Autocontrast stretches the intensity range linearly so the darkest pixel
// becomes 0 and the brightest 255. A flat image is returned unchanged.
func Autocontrast(src *image.Gray) *image.Gray {
	var hist [256]int
	for _, v := range src.Pix {
		hist[v]++
	}

	lo, hi := 0, 255
	for lo < 256 && hist[lo] == 0 {
		lo++
	}
	for hi >= 0 && hist[hi] == 0 {
		hi--
	}

	dst := image.NewGray(src.Rect)
	if hi <= lo {
		copy(dst.Pix, src.Pix)
		return dst
	}

	var lut [256]uint8
	scale := 255.0 / float64(hi-lo)
	offset := -float64(lo) * scale
	for i := range lut {
		v := int(float64(i)*scale + offset)
		switch {
		case v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		lut[i] = uint8(v)
	}
	for i, v := range src.Pix {
		dst.Pix[i] = lut[v]
	}
	return dst
}

// LocalMean returns the mean intensity of the size×size window centred on
// every pixel, mirroring the image at its borders.
func LocalMean(src *image.Gray, size int) []float64 {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	left := size / 2
	right := size - left - 1

	horiz := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		for x := 0; x < w; x++ {
			sum := 0.0
			for k := x - left; k <= x+right; k++ {
				sum += float64(row[reflect(k, w)])
			}
			horiz[y*w+x] = sum / float64(size)
		}
	}

	mean := make([]float64, w*h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			sum := 0.0
			for k := y - left; k <= y+right; k++ {
				sum += horiz[reflect(k, h)*w+x]
			}
			mean[y*w+x] = sum / float64(size)
		}
	}
	return mean
}

// reflect maps i into [0, n) by mirroring about the edges (d c b a | a b c d | d c b a)
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i - 1
	}
	return i
}

// Threshold marks a pixel as Foreground when it is more than offset below
// its local mean, Background otherwise.
func Threshold(src *image.Gray, window int, offset float64) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	mean := LocalMean(src, window)
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float64(src.Pix[y*src.Stride+x])
			if v < mean[y*w+x]-offset {
				dst.Pix[y*dst.Stride+x] = Foreground
			} else {
				dst.Pix[y*dst.Stride+x] = Background
			}
		}
	}
	return dst
}

// Median applies a size×size median filter, replicating edge pixels
func Median(src *image.Gray, size int) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	r := size / 2
	dst := image.NewGray(image.Rect(0, 0, w, h))
	window := make([]int, 0, size*size)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			window = window[:0]
			for dy := -r; dy <= r; dy++ {
				yy := clamp(y+dy, h)
				for dx := -r; dx <= r; dx++ {
					window = append(window, int(src.Pix[yy*src.Stride+clamp(x+dx, w)]))
				}
			}
			sort.Ints(window)
			dst.Pix[y*dst.Stride+x] = uint8(window[len(window)/2])
		}
	}
	return dst
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
