package analytics

import (
	"context"

	"github.com/sdko-org/imgpress/internal/models"
)

// RecentActivityLimit caps the recent activity window.
const RecentActivityLimit = 10

// Source yields the current set of compressed artifacts.
type Source interface {
	Scan(ctx context.Context) ([]models.ImageDescriptor, error)
}

// Aggregator recomputes the summary from a fresh scan on every call.
type Aggregator struct {
	source Source
}

func NewAggregator(source Source) *Aggregator {
	return &Aggregator{source: source}
}

func (a *Aggregator) Summary(ctx context.Context) (models.AnalyticsSummary, error) {
	descs, err := a.source.Scan(ctx)
	if err != nil {
		return models.AnalyticsSummary{}, err
	}
	return Summarize(descs), nil
}

// Summarize is a pure function of the scan. Recent activity is the first
// RecentActivityLimit descriptors in scan order; it is not sorted by time.
func Summarize(descs []models.ImageDescriptor) models.AnalyticsSummary {
	var total int64
	for _, d := range descs {
		total += d.Size
	}

	stats := models.SummaryStats{
		TotalImages: len(descs),
		TotalSize:   total,
	}
	if stats.TotalImages > 0 {
		stats.AverageSize = float64(total) / float64(stats.TotalImages)
	}

	n := min(len(descs), RecentActivityLimit)
	recent := make([]models.ImageDescriptor, n)
	copy(recent, descs[:n])

	return models.AnalyticsSummary{
		Summary:        stats,
		RecentActivity: recent,
	}
}
