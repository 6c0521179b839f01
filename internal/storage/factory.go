package storage

import (
	"fmt"

	"github.com/sdko-org/imgpress/internal/config"
	"github.com/sirupsen/logrus"
)

// New builds the backend named by cfg.StorageBackend.
func New(logger *logrus.Logger, cfg *config.Config) (Storage, error) {
	switch cfg.StorageBackend {
	case config.BackendFS, "":
		fs, err := NewFSStorage(logger, cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case config.BackendS3:
		s3, err := NewS3Storage(logger, cfg)
		if err != nil {
			return nil, err
		}
		return s3, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
