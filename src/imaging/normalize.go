// Package imaging turns arbitrary uploaded raster images into bounded,
// self-describing JPEG data URLs that can be stored inline in a document field.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	// Registered decoders for image.Decode.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	MaxSourceBytes         = int64(5 << 20) // 5 MiB
	MaxEdge                = 800
	DefaultMaxPayloadChars = 800_000
	PrimaryQuality         = 70
	FallbackQuality        = 50

	payloadPrefix = "data:image/jpeg;base64,"
)

var (
	ErrFileTooLarge = errors.New("image file is too large")
	ErrDecode       = errors.New("image could not be decoded")
)

type (
	// Normalizer holds the size policy. The zero value is not usable, use New.
	Normalizer struct {
		maxSourceBytes  int64
		maxEdge         int
		maxPayloadChars int
		scaler          draw.Scaler
	}

	Option func(*Normalizer)

	// Image is a normalized payload together with the dimensions it was rendered at.
	Image struct {
		Payload string `json:"payload"`
		Width   int    `json:"width"`
		Height  int    `json:"height"`
		Quality int    `json:"quality"`
	}
)

func WithMaxSourceBytes(n int64) Option {
	return func(nz *Normalizer) {
		if n > 0 {
			nz.maxSourceBytes = n
		}
	}
}

func WithMaxEdge(px int) Option {
	return func(nz *Normalizer) {
		if px > 0 {
			nz.maxEdge = px
		}
	}
}

// WithMaxPayloadChars sets the payload length above which the fallback
// quality is used. It mirrors the per-field size ceiling of the backing store.
func WithMaxPayloadChars(n int) Option {
	return func(nz *Normalizer) {
		if n > 0 {
			nz.maxPayloadChars = n
		}
	}
}

func New(opts ...Option) *Normalizer {
	nz := &Normalizer{
		maxSourceBytes:  MaxSourceBytes,
		maxEdge:         MaxEdge,
		maxPayloadChars: DefaultMaxPayloadChars,
		scaler:          draw.CatmullRom,
	}
	for _, opt := range opts {
		opt(nz)
	}
	return nz
}

func (n *Normalizer) MaxSourceBytes() int64 { return n.maxSourceBytes }

// NormalizeReader reads at most one byte past the limit, so an oversized
// upload is rejected without buffering it. A declared size above the limit is
// rejected before anything is read; pass a negative size when unknown.
func (n *Normalizer) NormalizeReader(r io.Reader, size int64) (*Image, error) {
	if size > n.maxSourceBytes {
		return nil, ErrFileTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(r, n.maxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return n.Normalize(data)
}

func (n *Normalizer) Normalize(data []byte) (*Image, error) {
	if int64(len(data)) > n.maxSourceBytes {
		return nil, ErrFileTooLarge
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := src.Bounds()
	width, height := TargetSize(bounds.Dx(), bounds.Dy(), n.maxEdge)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	n.scaler.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)

	payload, err := encode(dst, PrimaryQuality)
	if err != nil {
		return nil, err
	}
	quality := PrimaryQuality
	// One fallback pass only; the result is used even if still above the limit.
	if len(payload) > n.maxPayloadChars {
		if payload, err = encode(dst, FallbackQuality); err != nil {
			return nil, err
		}
		quality = FallbackQuality
	}
	return &Image{Payload: payload, Width: width, Height: height, Quality: quality}, nil
}

// TargetSize fits width x height into a maxEdge square keeping the aspect
// ratio. Images that already fit are never upscaled. Scaled edges are
// truncated to whole pixels.
func TargetSize(width, height, maxEdge int) (int, int) {
	switch {
	case width >= height && width > maxEdge:
		return maxEdge, atLeastOne(height * maxEdge / width)
	case height > width && height > maxEdge:
		return atLeastOne(width * maxEdge / height), maxEdge
	default:
		return width, height
	}
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

func encode(img image.Image, quality int) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	out := make([]byte, len(payloadPrefix)+base64.StdEncoding.EncodedLen(buf.Len()))
	copy(out, payloadPrefix)
	base64.StdEncoding.Encode(out[len(payloadPrefix):], buf.Bytes())
	return string(out), nil
}
