// Package testutil generates fixture images for tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"
)

// Noise returns a w×h image of seeded random pixels. Noise compresses
// poorly, which keeps fixture sizes realistic.
func Noise(w, h int, seed int64) *image.RGBA {
	r := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(r.Intn(256)),
				G: uint8(x * 255 / max(w, 1)),
				B: uint8(y * 255 / max(h, 1)),
				A: 255,
			})
		}
	}
	return img
}

func JPEG(tb testing.TB, w, h, quality int) []byte {
	tb.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Noise(w, h, int64(w*h)), &jpeg.Options{Quality: quality}); err != nil {
		tb.Fatalf("encode jpeg fixture: %v", err)
	}
	return buf.Bytes()
}

func PNG(tb testing.TB, w, h int) []byte {
	tb.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, Noise(w, h, int64(w+h))); err != nil {
		tb.Fatalf("encode png fixture: %v", err)
	}
	return buf.Bytes()
}

// Dimensions decodes only the header of data.
func Dimensions(tb testing.TB, data []byte) (int, int, string) {
	tb.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		tb.Fatalf("decode fixture header: %v", err)
	}
	return cfg.Width, cfg.Height, format
}
