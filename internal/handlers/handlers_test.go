package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/sdko-org/imgpress/internal/analytics"
	"github.com/sdko-org/imgpress/internal/compress"
	"github.com/sdko-org/imgpress/internal/config"
	"github.com/sdko-org/imgpress/internal/errdefs"
	"github.com/sdko-org/imgpress/internal/ingest"
	"github.com/sdko-org/imgpress/internal/logging"
	"github.com/sdko-org/imgpress/internal/models"
	"github.com/sdko-org/imgpress/internal/registry"
	"github.com/sdko-org/imgpress/internal/storage"
	"github.com/sdko-org/imgpress/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	cfg    *config.Config
	store  *storage.MemoryStorage
	router http.Handler
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	logger := logging.Discard()
	store := storage.NewMemoryStorage()
	engine := compress.NewEngine(logger, store, compress.Options{
		MaxWidth: cfg.MaxWidth, MaxHeight: cfg.MaxHeight, Quality: cfg.Quality,
	})
	svc := ingest.NewService(logger, store, engine, ingest.Options{PublicPrefix: cfg.PublicPathPrefix})
	scanner := registry.NewScanner(logger, store, cfg.PublicPathPrefix)
	h := NewImageHandler(logger, cfg, store, svc, scanner, analytics.NewAggregator(scanner))
	router := NewRouter(logger, h, RouterOptions{
		PublicPathPrefix: cfg.PublicPathPrefix,
		Limiter:          NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow),
	})
	return &testEnv{cfg: cfg, store: store, router: router}
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, "image", filename, contentType, data)
	req := httptest.NewRequest(http.MethodPost, "/api/images", body)
	req.Header.Set("Content-Type", ct)
	return e.do(req)
}

type envelopeOf[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) envelopeOf[T] {
	t.Helper()
	var env envelopeOf[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestUploadImage(t *testing.T) {
	env := newTestEnv(t, nil)
	original := testutil.JPEG(t, 1600, 1200, 95)

	rec := env.upload(t, "scenery.jpg", "image/jpeg", original)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	got := decode[models.TransformationReport](t, rec)
	assert.True(t, got.Success)
	r := got.Data
	assert.Equal(t, "scenery.jpg", r.OriginalName)
	assert.Equal(t, "image/jpeg", r.MimeType)
	assert.Equal(t, int64(len(original)), r.OriginalSize)
	assert.Less(t, r.CompressedSize, r.OriginalSize)
	assert.Equal(t, models.Dimensions{Width: 1600, Height: 1200}, r.Dimensions)
	assert.Equal(t, models.Dimensions{Width: 800, Height: 600}, r.CompressedDimensions)
	assert.Equal(t, "/uploads/"+models.CompressedName(r.ID), r.URL)

	_, err := env.store.Stat(context.Background(), r.ID)
	assert.NoError(t, err, "original persisted")
	_, err = env.store.Stat(context.Background(), models.CompressedName(r.ID))
	assert.NoError(t, err, "derivative persisted")
}

func TestUploadWithoutFile(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("empty multipart", func(t *testing.T) {
		body, ct := multipartBody(t, "other", "x.jpg", "image/jpeg", []byte("x"))
		req := httptest.NewRequest(http.MethodPost, "/api/images", body)
		req.Header.Set("Content-Type", ct)
		rec := env.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		got := decode[any](t, rec)
		assert.False(t, got.Success)
		assert.Equal(t, "No file uploaded", got.Message)
	})
	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/images", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		rec := env.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No file uploaded", decode[any](t, rec).Message)
	})
}

func TestUploadNonImage(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.upload(t, "notes.txt", "text/plain", []byte("hello there"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	got := decode[any](t, rec)
	assert.False(t, got.Success)
	assert.Equal(t, "Error processing image", got.Message)
	assert.NotEmpty(t, got.Error)

	all, err := env.store.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 1, "orphaned original stays")
	assert.False(t, models.IsCompressed(all[0]))
}

func TestUploadTooLarge(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.MaxUploadSize = 1024 })

	rec := env.upload(t, "big.png", "image/png", testutil.PNG(t, 200, 200))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.False(t, decode[any](t, rec).Success)
}

func TestListImages(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/images", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, rec.Body.String())

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusCreated, env.upload(t, fmt.Sprintf("p%d.png", i), "image/png", testutil.PNG(t, 40, 30)).Code)
	}
	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/images", nil))
	got := decode[[]models.ImageDescriptor](t, rec)
	require.Len(t, got.Data, 3)
	for _, d := range got.Data {
		assert.True(t, models.IsCompressed(d.Filename))
		assert.Equal(t, "/uploads/"+d.Filename, d.URL)
		assert.Positive(t, d.Size)
	}
}

func TestDownloadImage(t *testing.T) {
	env := newTestEnv(t, nil)
	up := decode[models.TransformationReport](t, env.upload(t, "a.png", "image/png", testutil.PNG(t, 64, 48)))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/images/"+up.Data.ID+"/download", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), models.CompressedName(up.Data.ID))
	assert.Equal(t, int(up.Data.CompressedSize), rec.Body.Len())

	w, h, format := testutil.Dimensions(t, rec.Body.Bytes())
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)
	assert.Equal(t, "jpeg", format)
}

func TestDownloadUnknownImage(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.store.Put(context.Background(), "raw-only.jpg", strings.NewReader("raw"))
	require.NoError(t, err)

	for _, id := range []string{"nope.jpg", "raw-only.jpg", ".tmp-upload"} {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/images/"+id+"/download", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, id)
		got := decode[any](t, rec)
		assert.False(t, got.Success)
	}
}

func TestServeUpload(t *testing.T) {
	env := newTestEnv(t, nil)
	up := decode[models.TransformationReport](t, env.upload(t, "a.png", "image/png", testutil.PNG(t, 20, 20)))

	rec := env.do(httptest.NewRequest(http.MethodGet, up.Data.URL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")

	head := env.do(httptest.NewRequest(http.MethodHead, up.Data.URL, nil))
	assert.Equal(t, http.StatusOK, head.Code)
	assert.Zero(t, head.Body.Len())

	rec = env.do(httptest.NewRequest(http.MethodGet, "/uploads/"+up.Data.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "originals are not served")
}

func TestAnalytics(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/analytics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"success":true,"data":{"summary":{"totalImages":0,"totalSize":0,"averageSize":0},"recentActivity":[]}}`,
		rec.Body.String())

	ctx := context.Background()
	for i := 0; i < 15; i++ {
		_, err := env.store.Put(ctx, models.CompressedName(fmt.Sprintf("%02d.jpg", i)), strings.NewReader(strings.Repeat("x", 10)))
		require.NoError(t, err)
	}
	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/analytics", nil))
	got := decode[models.AnalyticsSummary](t, rec)
	assert.Equal(t, 15, got.Data.Summary.TotalImages)
	assert.Equal(t, int64(150), got.Data.Summary.TotalSize)
	assert.InDelta(t, 10.0, got.Data.Summary.AverageSize, 1e-9)
	require.Len(t, got.Data.RecentActivity, 10)
	assert.Equal(t, "compressed-00.jpg", got.Data.RecentActivity[0].Filename)
	assert.Equal(t, "compressed-09.jpg", got.Data.RecentActivity[9].Filename)
}

type failingLister struct{}

func (failingLister) Scan(context.Context) ([]models.ImageDescriptor, error) {
	return nil, errdefs.Wrap(errdefs.ErrIO, errors.New("directory unreadable"))
}

func TestScanFailuresUseEnvelope(t *testing.T) {
	logger := logging.Discard()
	cfg := config.Default()
	h := NewImageHandler(logger, cfg, storage.NewMemoryStorage(), nil, failingLister{}, analytics.NewAggregator(failingLister{}))
	router := NewRouter(logger, h, RouterOptions{})

	for path, msg := range map[string]string{
		"/api/images":    "Error fetching images",
		"/api/analytics": "Error fetching analytics",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var got envelopeOf[any]
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.False(t, got.Success)
		assert.Equal(t, msg, got.Message)
		assert.Contains(t, got.Error, "directory unreadable")
	}
}

type panickingIngester struct{}

func (panickingIngester) Ingest(context.Context, *ingest.Upload) (*models.TransformationReport, error) {
	panic("codec exploded")
}

func TestPanicBecomesEnvelope(t *testing.T) {
	logger := logging.Discard()
	h := NewImageHandler(logger, config.Default(), storage.NewMemoryStorage(), panickingIngester{}, nil, nil)
	router := NewRouter(logger, h, RouterOptions{})

	body, ct := multipartBody(t, "image", "a.png", "image/png", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/images", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var got envelopeOf[any]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.Success)
	assert.Equal(t, "Internal server error", got.Message)
}

func TestUnknownRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/nothing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decode[any](t, rec).Success)

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}

func TestDownloadBodyMatchesStore(t *testing.T) {
	env := newTestEnv(t, nil)
	up := decode[models.TransformationReport](t, env.upload(t, "b.png", "image/png", testutil.PNG(t, 30, 30)))

	rc, err := env.store.Get(context.Background(), models.CompressedName(up.Data.ID))
	require.NoError(t, err)
	want, _ := io.ReadAll(rc)
	rc.Close()

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/images/"+up.Data.ID+"/download", nil))
	assert.Equal(t, want, rec.Body.Bytes())
}
