package models

import (
	"strings"
	"time"
)

// CompressedPrefix separates derived artifacts from raw uploads that share
// the same store.
const CompressedPrefix = "compressed-"

// CompressedName returns the artifact name derived from an original name.
func CompressedName(original string) string {
	return CompressedPrefix + original
}

// IsCompressed reports whether name is a derived artifact.
func IsCompressed(name string) bool {
	return strings.HasPrefix(name, CompressedPrefix)
}

// OriginalName strips the derived prefix. ok is false for raw uploads.
func OriginalName(compressed string) (string, bool) {
	if !IsCompressed(compressed) {
		return "", false
	}
	return strings.TrimPrefix(compressed, CompressedPrefix), true
}

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TransformationReport describes one ingestion. It is returned to the caller
// and never persisted.
type TransformationReport struct {
	ID                   string     `json:"id"`
	OriginalName         string     `json:"originalName"`
	OriginalSize         int64      `json:"originalSize"`
	CompressedSize       int64      `json:"compressedSize"`
	CompressionRatio     float64    `json:"compressionRatio"`
	MimeType             string     `json:"mimeType"`
	Dimensions           Dimensions `json:"dimensions"`
	CompressedDimensions Dimensions `json:"compressedDimensions"`
	CompressedPath       string     `json:"compressedPath"`
	URL                  string     `json:"url"`
}

// ImageDescriptor is the listing view of a compressed artifact.
type ImageDescriptor struct {
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

type SummaryStats struct {
	TotalImages int     `json:"totalImages"`
	TotalSize   int64   `json:"totalSize"`
	AverageSize float64 `json:"averageSize"`
}

// AnalyticsSummary aggregates every compressed artifact. RecentActivity holds
// the first entries in scan order, not the newest ones.
type AnalyticsSummary struct {
	Summary        SummaryStats      `json:"summary"`
	RecentActivity []ImageDescriptor `json:"recentActivity"`
}
