package handlers

import (
	"context"
	"net/http"

	"github.com/sdko-org/imgpress/internal/config"
	"github.com/sdko-org/imgpress/internal/errdefs"
	"github.com/sdko-org/imgpress/internal/ingest"
	"github.com/sdko-org/imgpress/internal/models"
	"github.com/sdko-org/imgpress/internal/storage"
	"github.com/sirupsen/logrus"
)

type Ingester interface {
	Ingest(ctx context.Context, u *ingest.Upload) (*models.TransformationReport, error)
}

type Lister interface {
	Scan(ctx context.Context) ([]models.ImageDescriptor, error)
}

type Summarizer interface {
	Summary(ctx context.Context) (models.AnalyticsSummary, error)
}

// ImageHandler serves the image API. Each request is an independent
// operation against the store.
type ImageHandler struct {
	cfg       *config.Config
	store     storage.Storage
	ingest    Ingester
	scanner   Lister
	analytics Summarizer
	log       *logrus.Entry
}

func NewImageHandler(logger *logrus.Logger, cfg *config.Config, store storage.Storage, ing Ingester, scanner Lister, analytics Summarizer) *ImageHandler {
	return &ImageHandler{
		cfg:       cfg,
		store:     store,
		ingest:    ing,
		scanner:   scanner,
		analytics: analytics,
		log:       logger.WithField("component", "image_handler"),
	}
}

func statusFor(err error) int {
	switch {
	case errdefs.IsMissingFile(err):
		return http.StatusBadRequest
	case errdefs.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
