package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/sdko-org/imgpress/internal/compress"
	"github.com/sdko-org/imgpress/internal/errdefs"
	"github.com/sdko-org/imgpress/internal/metrics"
	"github.com/sdko-org/imgpress/internal/models"
	"github.com/sdko-org/imgpress/internal/storage"
	"github.com/sirupsen/logrus"
)

// Upload is one file handed over by the transport.
type Upload struct {
	Filename string
	MimeType string
	Content  io.Reader
}

// Compressor is the capability the service needs from the compression engine.
type Compressor interface {
	Compress(ctx context.Context, source string) (*compress.Result, error)
}

type Options struct {
	Names NameGenerator
	// RemoveOrphans deletes the stored original when compression fails.
	// When false the original stays in the store.
	RemoveOrphans bool
	PublicPrefix  string
	Metrics       metrics.IngestMetrics
}

type Service struct {
	store         storage.Storage
	engine        Compressor
	names         NameGenerator
	removeOrphans bool
	publicPrefix  string
	metrics       metrics.IngestMetrics
	log           *logrus.Entry
}

func NewService(logger *logrus.Logger, store storage.Storage, engine Compressor, opts Options) *Service {
	if opts.Names == nil {
		opts.Names = NewTimeRandomGenerator()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}
	if opts.PublicPrefix == "" {
		opts.PublicPrefix = "/uploads/"
	}
	return &Service{
		store:         store,
		engine:        engine,
		names:         opts.Names,
		removeOrphans: opts.RemoveOrphans,
		publicPrefix:  opts.PublicPrefix,
		metrics:       opts.Metrics,
		log:           logger.WithField("component", "ingestion"),
	}
}

// Ingest persists the upload as an original and compresses it.
//
// A compression failure after the original was stored is returned as is.
// The original then stays behind unless RemoveOrphans is set.
func (s *Service) Ingest(ctx context.Context, u *Upload) (*models.TransformationReport, error) {
	if u == nil || u.Content == nil {
		s.metrics.ObserveIngestion(metrics.OutcomeMissingFile, 0, 0, 0)
		return nil, errdefs.ErrMissingFile
	}

	name := s.names.Next(u.Filename)
	log := s.log.WithFields(logrus.Fields{
		"original_name": u.Filename,
		"stored_name":   name,
		"mime_type":     u.MimeType,
	})

	if _, err := s.store.Put(ctx, name, u.Content); err != nil {
		log.WithError(err).Error("Failed to persist original")
		s.metrics.ObserveIngestion(metrics.OutcomeIOError, 0, 0, 0)
		return nil, errdefs.Wrap(errdefs.ErrIO, fmt.Errorf("persist original: %w", err))
	}

	res, err := s.engine.Compress(ctx, name)
	if err != nil {
		s.handleOrphan(ctx, log, name)
		log.WithError(err).Error("Compression failed")
		s.metrics.ObserveIngestion(Outcome(err), 0, 0, 0)
		return nil, err
	}

	report := &models.TransformationReport{
		ID:                   name,
		OriginalName:         u.Filename,
		OriginalSize:         res.OriginalSize,
		CompressedSize:       res.CompressedSize,
		CompressionRatio:     res.Ratio,
		MimeType:             u.MimeType,
		Dimensions:           res.Original,
		CompressedDimensions: res.Compressed,
		CompressedPath:       s.store.Location(res.OutputName),
		URL:                  s.publicPrefix + res.OutputName,
	}

	s.metrics.ObserveIngestion(metrics.OutcomeSuccess, res.OriginalSize, res.CompressedSize, res.Ratio)
	log.WithFields(logrus.Fields{
		"original_size":   report.OriginalSize,
		"compressed_size": report.CompressedSize,
		"ratio":           report.CompressionRatio,
	}).Info("Image compressed successfully")
	return report, nil
}

func (s *Service) handleOrphan(ctx context.Context, log *logrus.Entry, name string) {
	if !s.removeOrphans {
		log.Warn("Leaving orphaned original in store")
		return
	}
	if err := s.store.Delete(ctx, name); err != nil {
		log.WithError(err).Warn("Failed to remove orphaned original")
		return
	}
	log.Info("Removed orphaned original")
}

// Outcome maps an ingestion error to its metrics label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errdefs.IsMissingFile(err):
		return metrics.OutcomeMissingFile
	case errdefs.IsDecode(err):
		return metrics.OutcomeDecodeError
	default:
		return metrics.OutcomeIOError
	}
}
