package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, noisy bool) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rnd := rand.New(rand.NewSource(42))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if noisy {
				img.Set(x, y, color.RGBA{uint8(rnd.Intn(256)), uint8(rnd.Intn(256)), uint8(rnd.Intn(256)), 255})
			} else {
				img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodePayload(t *testing.T, payload string) image.Config {
	t.Helper()
	require.True(t, strings.HasPrefix(payload, "data:image/jpeg;base64,"))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(payload, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	return cfg
}

func TestTargetSize(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"landscape", 1600, 1200, 800, 600},
		{"portrait", 1200, 1600, 600, 800},
		{"square", 2000, 2000, 800, 800},
		{"uneven", 1000, 333, 800, 266},
		{"fits", 640, 480, 640, 480},
		{"exact edge", 800, 800, 800, 800},
		{"tall sliver", 1, 5000, 1, 800},
		{"wide sliver", 5000, 2, 800, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := TargetSize(tt.w, tt.h, 800)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestNormalizeDownscalesLongestEdge(t *testing.T) {
	n := New()
	for _, dims := range [][2]int{{1200, 900}, {900, 1200}, {1000, 1000}} {
		img, err := n.Normalize(pngBytes(t, dims[0], dims[1], false))
		require.NoError(t, err)

		longest := img.Width
		if img.Height > longest {
			longest = img.Height
		}
		assert.Equal(t, 800, longest)

		srcRatio := float64(dims[0]) / float64(dims[1])
		gotRatio := float64(img.Width) / float64(img.Height)
		assert.InDelta(t, srcRatio, gotRatio, 0.01)

		cfg := decodePayload(t, img.Payload)
		assert.Equal(t, img.Width, cfg.Width)
		assert.Equal(t, img.Height, cfg.Height)
		assert.Equal(t, PrimaryQuality, img.Quality)
	}
}

func TestNormalizeNeverUpscales(t *testing.T) {
	img, err := New().Normalize(pngBytes(t, 320, 200, false))
	require.NoError(t, err)
	assert.Equal(t, 320, img.Width)
	assert.Equal(t, 200, img.Height)

	cfg := decodePayload(t, img.Payload)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
}

type countingReader struct {
	r    io.Reader
	read int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += n
	return n, err
}

func TestNormalizeRejectsOversizedSource(t *testing.T) {
	n := New()
	big := make([]byte, MaxSourceBytes+1)

	_, err := n.Normalize(big)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	r := &countingReader{r: bytes.NewReader(big)}
	_, err = n.NormalizeReader(r, int64(len(big)))
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Zero(t, r.read, "declared size must be rejected before reading")

	r = &countingReader{r: bytes.NewReader(big)}
	_, err = n.NormalizeReader(r, -1)
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.EqualValues(t, MaxSourceBytes+1, r.read)
}

func TestNormalizeDecodeError(t *testing.T) {
	_, err := New().Normalize([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestNormalizeFallbackQuality(t *testing.T) {
	data := pngBytes(t, 300, 300, true)

	primary, err := New().Normalize(data)
	require.NoError(t, err)
	require.Equal(t, PrimaryQuality, primary.Quality)

	n := New(WithMaxPayloadChars(len(primary.Payload) - 1))
	first, err := n.Normalize(data)
	require.NoError(t, err)
	assert.Equal(t, FallbackQuality, first.Quality)
	assert.Less(t, len(first.Payload), len(primary.Payload))

	second, err := n.Normalize(data)
	require.NoError(t, err)
	assert.Equal(t, first.Payload, second.Payload, "normalization must be deterministic")
}

func TestNormalizeFallbackUsedEvenWhenStillOversized(t *testing.T) {
	img, err := New(WithMaxPayloadChars(10)).Normalize(pngBytes(t, 64, 64, true))
	require.NoError(t, err)
	assert.Equal(t, FallbackQuality, img.Quality)
	assert.Greater(t, len(img.Payload), 10)
}

func TestBatchContinuesPastFailures(t *testing.T) {
	good := pngBytes(t, 100, 50, false)
	open := func(b []byte) func() (io.ReadCloser, error) {
		return func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(b)), nil }
	}
	boom := errors.New("disk gone")

	outcomes := New().Batch([]Source{
		{Name: "first.png", Size: int64(len(good)), Open: open(good)},
		{Name: "huge.png", Size: MaxSourceBytes + 1, Open: func() (io.ReadCloser, error) {
			t.Fatal("oversized file must not be opened")
			return nil, nil
		}},
		{Name: "text.png", Size: 4, Open: open([]byte("nope"))},
		{Name: "missing.png", Size: -1, Open: func() (io.ReadCloser, error) { return nil, boom }},
		{Name: "last.png", Size: int64(len(good)), Open: open(good)},
	})

	require.Len(t, outcomes, 5)
	assert.NoError(t, outcomes[0].Err)
	assert.ErrorIs(t, outcomes[1].Err, ErrFileTooLarge)
	assert.ErrorIs(t, outcomes[2].Err, ErrDecode)
	assert.ErrorIs(t, outcomes[3].Err, boom)
	assert.NoError(t, outcomes[4].Err)
	assert.Equal(t, "last.png", outcomes[4].Name)

	payloads := Succeeded(outcomes)
	assert.Len(t, payloads, 2)
	assert.Equal(t, payloads[0], payloads[1])
}
