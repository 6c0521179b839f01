// Package registry enumerates compressed artifacts. Listing and analytics
// read the store only through a Scanner.
package registry

import (
	"context"
	"fmt"

	"github.com/sdko-org/imgpress/internal/errdefs"
	"github.com/sdko-org/imgpress/internal/models"
	"github.com/sdko-org/imgpress/internal/storage"
	"github.com/sirupsen/logrus"
)

type Scanner struct {
	store        storage.Storage
	publicPrefix string
	log          *logrus.Entry
}

func NewScanner(logger *logrus.Logger, store storage.Storage, publicPrefix string) *Scanner {
	if publicPrefix == "" {
		publicPrefix = "/uploads/"
	}
	return &Scanner{
		store:        store,
		publicPrefix: publicPrefix,
		log:          logger.WithField("component", "registry_scanner"),
	}
}

// Scan returns one descriptor per compressed artifact in store enumeration
// order. An artifact that vanishes between listing and stat is skipped; any
// other stat failure aborts the scan.
func (s *Scanner) Scan(ctx context.Context) ([]models.ImageDescriptor, error) {
	names, err := s.store.List(ctx, models.CompressedPrefix)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrIO, err)
	}

	out := make([]models.ImageDescriptor, 0, len(names))
	for _, name := range names {
		if !models.IsCompressed(name) {
			continue
		}
		info, err := s.store.Stat(ctx, name)
		if errdefs.IsNotFound(err) {
			s.log.WithField("name", name).Debug("Artifact disappeared during scan, skipping")
			continue
		}
		if err != nil {
			return nil, errdefs.Wrap(errdefs.ErrIO, fmt.Errorf("stat %s: %w", name, err))
		}
		out = append(out, models.ImageDescriptor{
			Filename:  name,
			URL:       s.URL(name),
			Size:      info.Size,
			CreatedAt: info.CreatedAt,
		})
	}
	return out, nil
}

// URL is the public retrieval path for an artifact name.
func (s *Scanner) URL(name string) string {
	return s.publicPrefix + name
}
