package compress

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/sdko-org/imgpress/internal/errdefs"
	"github.com/sdko-org/imgpress/internal/logging"
	"github.com/sdko-org/imgpress/internal/models"
	"github.com/sdko-org/imgpress/internal/storage"
	"github.com/sdko-org/imgpress/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) (*Engine, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	return NewEngine(logging.Discard(), store, DefaultOptions()), store
}

func put(t *testing.T, store storage.Storage, name string, data []byte) {
	t.Helper()
	_, err := store.Put(context.Background(), name, bytes.NewReader(data))
	require.NoError(t, err)
}

func readAll(t *testing.T, store storage.Storage, name string) []byte {
	t.Helper()
	rc, err := store.Get(context.Background(), name)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func TestCompressLargeJPEG(t *testing.T) {
	engine, store := newEngine(t)
	original := testutil.JPEG(t, 1600, 1200, 95)
	put(t, store, "1700000000000-a.jpg", original)

	res, err := engine.Compress(context.Background(), "1700000000000-a.jpg")
	require.NoError(t, err)

	assert.Equal(t, "compressed-1700000000000-a.jpg", res.OutputName)
	assert.Equal(t, "jpeg", res.Format)
	assert.Equal(t, models.Dimensions{Width: 1600, Height: 1200}, res.Original)
	assert.Equal(t, models.Dimensions{Width: 800, Height: 600}, res.Compressed)
	assert.Equal(t, int64(len(original)), res.OriginalSize)
	assert.Less(t, res.CompressedSize, res.OriginalSize)

	want := float64(res.OriginalSize-res.CompressedSize) / float64(res.OriginalSize) * 100
	assert.InDelta(t, want, res.Ratio, 1e-9)

	out := readAll(t, store, res.OutputName)
	assert.Equal(t, res.CompressedSize, int64(len(out)))
	w, h, format := testutil.Dimensions(t, out)
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
	assert.Equal(t, "jpeg", format)
}

func TestCompressSmallImageKeepsDimensions(t *testing.T) {
	engine, store := newEngine(t)
	put(t, store, "small.png", testutil.PNG(t, 300, 200))

	res, err := engine.Compress(context.Background(), "small.png")
	require.NoError(t, err)
	assert.Equal(t, "png", res.Format)
	assert.Equal(t, res.Original, res.Compressed)

	w, h, format := testutil.Dimensions(t, readAll(t, store, "compressed-small.png"))
	assert.Equal(t, 300, w)
	assert.Equal(t, 200, h)
	assert.Equal(t, "jpeg", format, "output is always re-encoded as jpeg")
}

func TestCompressNeverExceedsBoxOrOriginal(t *testing.T) {
	engine, store := newEngine(t)
	sizes := [][2]int{{2000, 500}, {500, 2000}, {801, 801}, {800, 800}, {799, 1}, {1, 1200}, {64, 64}}
	for _, sz := range sizes {
		name := fmt.Sprintf("img-%dx%d.jpg", sz[0], sz[1])
		put(t, store, name, testutil.JPEG(t, sz[0], sz[1], 90))

		res, err := engine.Compress(context.Background(), name)
		require.NoError(t, err, "%v", sz)
		assert.LessOrEqual(t, res.Compressed.Width, 800)
		assert.LessOrEqual(t, res.Compressed.Height, 800)
		assert.LessOrEqual(t, res.Compressed.Width, sz[0])
		assert.LessOrEqual(t, res.Compressed.Height, sz[1])
		if sz[0] <= 800 && sz[1] <= 800 {
			assert.Equal(t, models.Dimensions{Width: sz[0], Height: sz[1]}, res.Compressed)
		}
	}
}

func TestCompressNonImage(t *testing.T) {
	engine, store := newEngine(t)
	put(t, store, "notes.txt", []byte("definitely not an image"))

	_, err := engine.Compress(context.Background(), "notes.txt")
	require.Error(t, err)
	assert.True(t, errdefs.IsDecode(err))

	_, err = store.Stat(context.Background(), "compressed-notes.txt")
	assert.True(t, errdefs.IsNotFound(err), "no derivative on decode failure")
	_, err = store.Stat(context.Background(), "notes.txt")
	assert.NoError(t, err, "original is left alone")
}

func TestCompressTruncatedImage(t *testing.T) {
	engine, store := newEngine(t)
	data := testutil.JPEG(t, 400, 300, 90)
	put(t, store, "cut.jpg", data[:len(data)/3])

	_, err := engine.Compress(context.Background(), "cut.jpg")
	require.Error(t, err)
	assert.True(t, errdefs.IsDecode(err))
}

func TestCompressMissingSource(t *testing.T) {
	engine, _ := newEngine(t)
	_, err := engine.Compress(context.Background(), "ghost.jpg")
	require.Error(t, err)
	assert.True(t, errdefs.IsIO(err))
}

func TestCompressTargetExists(t *testing.T) {
	engine, store := newEngine(t)
	put(t, store, "a.png", testutil.PNG(t, 10, 10))
	put(t, store, "compressed-a.png", []byte("occupied"))

	_, err := engine.Compress(context.Background(), "a.png")
	require.Error(t, err)
	assert.True(t, errdefs.IsIO(err))
}

func TestNewEngineDefaults(t *testing.T) {
	engine := NewEngine(logging.Discard(), storage.NewMemoryStorage(), Options{Quality: 500})
	assert.Equal(t, DefaultOptions(), engine.Options())
}

func TestFitInside(t *testing.T) {
	cases := []struct {
		w, h, wantW, wantH int
	}{
		{1600, 1200, 800, 600},
		{1200, 1600, 600, 800},
		{800, 800, 800, 800},
		{100, 50, 100, 50},
		{4000, 10, 800, 2},
		{10, 4000, 2, 800},
		{3000, 1, 800, 1},
	}
	for _, c := range cases {
		w, h := FitInside(c.w, c.h, 800, 800)
		assert.Equal(t, c.wantW, w, "%dx%d", c.w, c.h)
		assert.Equal(t, c.wantH, h, "%dx%d", c.w, c.h)
	}
}

func TestRatio(t *testing.T) {
	assert.InDelta(t, 75.0, Ratio(400, 100), 1e-9)
	assert.InDelta(t, -50.0, Ratio(100, 150), 1e-9, "inflation is not clamped")
	assert.Equal(t, 0.0, Ratio(0, 10))
}
