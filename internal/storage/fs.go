package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sdko-org/imgpress/internal/errdefs"
	"github.com/sirupsen/logrus"
)

const tempPrefix = ".tmp-"

// FSStorage keeps artifacts as files in one directory.
type FSStorage struct {
	dir string
	log *logrus.Entry
}

// NewFSStorage creates dir if needed and checks it is writable.
func NewFSStorage(logger *logrus.Logger, dir string) (*FSStorage, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	probe, err := os.CreateTemp(abs, tempPrefix+"probe-*")
	if err != nil {
		return nil, fmt.Errorf("upload dir not writable: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())

	log := logger.WithFields(logrus.Fields{
		"component": "fs_storage",
		"dir":       abs,
	})
	log.Info("Artifact store ready")
	return &FSStorage{dir: abs, log: log}, nil
}

func (s *FSStorage) Dir() string {
	return s.dir
}

func (s *FSStorage) Location(name string) string {
	return filepath.Join(s.dir, name)
}

// Put writes into a temp file first and links it into place, so readers only
// ever see complete artifacts.
func (s *FSStorage) Put(ctx context.Context, name string, content io.Reader) (int64, error) {
	if !ValidName(name) {
		return 0, errdefs.Wrap(errdefs.ErrIO, fmt.Errorf("invalid artifact name %q", name))
	}
	if err := ctx.Err(); err != nil {
		return 0, errdefs.Wrap(errdefs.ErrIO, err)
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return 0, errdefs.Wrap(errdefs.ErrIO, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	n, err := io.Copy(tmp, content)
	if err != nil {
		tmp.Close()
		return 0, errdefs.Wrap(errdefs.ErrIO, fmt.Errorf("write %s: %w", name, err))
	}
	if err := tmp.Close(); err != nil {
		return 0, errdefs.Wrap(errdefs.ErrIO, fmt.Errorf("close %s: %w", name, err))
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return 0, errdefs.Wrap(errdefs.ErrIO, err)
	}

	path := s.Location(name)
	if err := os.Link(tmpPath, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, alreadyExists(name)
		}
		// Filesystems without hard links.
		if _, statErr := os.Lstat(path); statErr == nil {
			return 0, alreadyExists(name)
		}
		if err := os.Rename(tmpPath, path); err != nil {
			return 0, errdefs.Wrap(errdefs.ErrIO, fmt.Errorf("commit %s: %w", name, err))
		}
	}

	s.log.WithFields(logrus.Fields{"name": name, "bytes": n}).Debug("Stored artifact")
	return n, nil
}

// List returns entry names in directory order.
func (s *FSStorage) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errdefs.Wrap(errdefs.ErrIO, err)
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrIO, fmt.Errorf("read upload dir: %w", err))
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, tempPrefix) {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (s *FSStorage) Stat(ctx context.Context, name string) (FileInfo, error) {
	if !ValidName(name) {
		return FileInfo{}, invalidName(name)
	}
	path := s.Location(name)
	fi, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, mapFSError(name, err)
	}
	if fi.IsDir() {
		return FileInfo{}, errdefs.Wrap(errdefs.ErrNotFound, fmt.Errorf("%s is a directory", name))
	}
	return FileInfo{
		Name:      name,
		Size:      fi.Size(),
		CreatedAt: birthTime(path, fi),
	}, nil
}

func (s *FSStorage) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	if !ValidName(name) {
		return nil, invalidName(name)
	}
	f, err := os.Open(s.Location(name))
	if err != nil {
		return nil, mapFSError(name, err)
	}
	return f, nil
}

func (s *FSStorage) Delete(ctx context.Context, name string) error {
	if !ValidName(name) {
		return invalidName(name)
	}
	if err := os.Remove(s.Location(name)); err != nil {
		return mapFSError(name, err)
	}
	s.log.WithField("name", name).Debug("Deleted artifact")
	return nil
}

func mapFSError(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return errdefs.Wrap(errdefs.ErrNotFound, fmt.Errorf("%s: %w", name, err))
	}
	return errdefs.Wrap(errdefs.ErrIO, err)
}
