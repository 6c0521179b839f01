package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sdko-org/imgpress/internal/errdefs"
)

// FileInfo is what a backend knows about one stored artifact.
type FileInfo struct {
	Name      string
	Size      int64
	CreatedAt time.Time
}

// Storage is the artifact store. It is a flat, append-only namespace: Put
// refuses to overwrite and nothing mutates an artifact once written.
//
// Missing names surface as errdefs.ErrNotFound, every other failure as
// errdefs.ErrIO.
type Storage interface {
	Put(ctx context.Context, name string, content io.Reader) (int64, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Stat(ctx context.Context, name string) (FileInfo, error)
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
	Location(name string) string
}

// ValidName reports whether name can live in a flat namespace.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return false
	}
	return !strings.HasPrefix(name, tempPrefix)
}

func invalidName(name string) error {
	return errdefs.Wrap(errdefs.ErrNotFound, fmt.Errorf("invalid artifact name %q", name))
}

func alreadyExists(name string) error {
	return errdefs.Wrap(errdefs.ErrIO, fmt.Errorf("artifact %q already exists", name))
}
