// Package compress turns one stored original into its compressed derivative:
// decode, fit inside a bounding box without enlarging, re-encode as JPEG.
package compress

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"math"

	// Decoders registered with image.Decode.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"

	"github.com/sdko-org/imgpress/internal/errdefs"
	"github.com/sdko-org/imgpress/internal/models"
	"github.com/sdko-org/imgpress/internal/storage"
	"github.com/sirupsen/logrus"
)

// maxPixels bounds the decoded canvas so a tiny header cannot claim a huge
// allocation.
const maxPixels = 64 << 20

type Options struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

func DefaultOptions() Options {
	return Options{MaxWidth: 800, MaxHeight: 800, Quality: 80}
}

// Result describes one compression. Ratio is the percentage of bytes saved
// and goes negative when re-encoding inflates the file.
type Result struct {
	SourceName     string
	OutputName     string
	Format         string
	OriginalSize   int64
	CompressedSize int64
	Ratio          float64
	Original       models.Dimensions
	Compressed     models.Dimensions
}

type Engine struct {
	store storage.Storage
	opts  Options
	log   *logrus.Entry
}

func NewEngine(logger *logrus.Logger, store storage.Storage, opts Options) *Engine {
	def := DefaultOptions()
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = def.MaxWidth
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = def.MaxHeight
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = def.Quality
	}
	return &Engine{
		store: store,
		opts:  opts,
		log:   logger.WithField("component", "compression_engine"),
	}
}

func (e *Engine) Options() Options {
	return e.opts
}

// Compress reads source from the store and writes compressed-<source> next
// to it. It never retries and never removes source.
func (e *Engine) Compress(ctx context.Context, source string) (*Result, error) {
	data, err := e.read(ctx, source)
	if err != nil {
		return nil, err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrDecode, fmt.Errorf("%s: %w", source, err))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		return nil, errdefs.Wrap(errdefs.ErrDecode, fmt.Errorf("%s: unsupported dimensions %dx%d", source, cfg.Width, cfg.Height))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrDecode, fmt.Errorf("%s: %w", source, err))
	}

	w, h := FitInside(cfg.Width, cfg.Height, e.opts.MaxWidth, e.opts.MaxHeight)
	out := Resize(img, w, h)

	if err := ctx.Err(); err != nil {
		return nil, errdefs.Wrap(errdefs.ErrIO, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: e.opts.Quality}); err != nil {
		return nil, errdefs.Wrap(errdefs.ErrIO, fmt.Errorf("encode %s: %w", source, err))
	}

	target := models.CompressedName(source)
	written, err := e.store.Put(ctx, target, &buf)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrIO, err)
	}

	res := &Result{
		SourceName:     source,
		OutputName:     target,
		Format:         format,
		OriginalSize:   int64(len(data)),
		CompressedSize: written,
		Ratio:          Ratio(int64(len(data)), written),
		Original:       models.Dimensions{Width: cfg.Width, Height: cfg.Height},
		Compressed:     models.Dimensions{Width: w, Height: h},
	}

	e.log.WithFields(logrus.Fields{
		"source":          source,
		"format":          format,
		"original_size":   res.OriginalSize,
		"compressed_size": res.CompressedSize,
		"ratio":           res.Ratio,
		"width":           w,
		"height":          h,
	}).Debug("Compressed image")
	return res, nil
}

func (e *Engine) read(ctx context.Context, source string) ([]byte, error) {
	rc, err := e.store.Get(ctx, source)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrIO, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrIO, fmt.Errorf("read %s: %w", source, err))
	}
	return data, nil
}

// FitInside scales w×h to fit the box, keeping aspect ratio. Images already
// inside the box are returned unchanged.
func FitInside(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := clamp(int(math.Round(float64(w)*scale)), 1, maxW)
	nh := clamp(int(math.Round(float64(h)*scale)), 1, maxH)
	return nw, nh
}

// Resize returns img scaled to w×h, or img itself when it already has that
// size.
func Resize(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Ratio is (original-compressed)/original*100, not clamped. A zero original
// size yields 0.
func Ratio(original, compressed int64) float64 {
	if original == 0 {
		return 0
	}
	return float64(original-compressed) / float64(original) * 100
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
