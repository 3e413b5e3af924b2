package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

const (
	defaultMaxDimension = 1600
	defaultQuality      = 85
	outputMIME          = "image/jpeg"
)

// ErrUnsupportedFormat is returned when the sniffed content type is not accepted.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Result holds a normalised image ready to persist.
type Result struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Normalizer validates uploads by content sniffing, bounds their size and re-encodes them as JPEG.
type Normalizer struct {
	allowed map[string]bool
	maxDim  int
	quality int
}

// NewNormalizer builds a Normalizer. Empty allowed falls back to JPEG and PNG.
func NewNormalizer(allowed []string, maxDimension int) *Normalizer {
	set := make(map[string]bool, len(allowed))
	for _, mime := range allowed {
		set[mime] = true
	}
	if len(set) == 0 {
		set["image/jpeg"] = true
		set["image/png"] = true
	}
	if maxDimension <= 0 {
		maxDimension = defaultMaxDimension
	}
	return &Normalizer{allowed: set, maxDim: maxDimension, quality: defaultQuality}
}

// Accepts reports whether the sniffed content type is allowed.
func (n *Normalizer) Accepts(mime string) bool {
	return n.allowed[mime]
}

// Process sniffs, decodes, downscales and re-encodes the image read from r.
func (n *Normalizer) Process(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image data: %w", err)
	}

	detected := http.DetectContentType(data)
	if !n.allowed[detected] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	img = downscale(img, n.maxDim)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: n.quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	bounds := img.Bounds()
	return &Result{Data: buf.Bytes(), MIME: outputMIME, Width: bounds.Dx(), Height: bounds.Dy()}, nil
}

// downscale keeps the aspect ratio and never upscales.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := w, h
	if w > h {
		newW = maxDim
		newH = int(float64(h) * float64(maxDim) / float64(w))
	} else {
		newH = maxDim
		newW = int(float64(w) * float64(maxDim) / float64(h))
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
