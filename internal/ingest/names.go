package ingest

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NameGenerator produces store names for new originals. Implementations
// must not repeat a name for the lifetime of the process.
type NameGenerator interface {
	Next(declared string) string
}

// TimeRandomGenerator yields "<unix millis>-<random hex><.ext>".
type TimeRandomGenerator struct {
	now   func() time.Time
	newID func() string
}

func NewTimeRandomGenerator() *TimeRandomGenerator {
	return &TimeRandomGenerator{
		now: time.Now,
		newID: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
}

func (g *TimeRandomGenerator) Next(declared string) string {
	return fmt.Sprintf("%d-%s%s", g.now().UnixMilli(), g.newID(), Extension(declared))
}

// Extension returns the lowercased extension of a client-declared filename,
// or "" when it is missing or not plain alphanumerics.
func Extension(declared string) string {
	base := path.Base(strings.ReplaceAll(declared, "\\", "/"))
	ext := strings.ToLower(path.Ext(base))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
