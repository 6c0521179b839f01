package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingestion outcomes used as label values.
const (
	OutcomeSuccess     = "success"
	OutcomeMissingFile = "missing_file"
	OutcomeDecodeError = "decode_error"
	OutcomeIOError     = "io_error"
)

// IngestMetrics records finished ingestions.
type IngestMetrics interface {
	ObserveIngestion(outcome string, originalSize, compressedSize int64, ratio float64)
}

// HTTPMetrics records served requests.
type HTTPMetrics interface {
	ObserveRequest(method, route, status string, durationSeconds float64)
}

// Noop implements every metrics interface without emitting anything.
type Noop struct{}

func (Noop) ObserveIngestion(string, int64, int64, float64)   {}
func (Noop) ObserveRequest(string, string, string, float64) {}

// Prom implements the metrics interfaces with Prometheus collectors.
type Prom struct {
	ingestions      *prometheus.CounterVec
	originalBytes   prometheus.Counter
	compressedBytes prometheus.Counter
	ratio           prometheus.Histogram
	requests        *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// NewProm builds the collectors and registers them with reg.
func NewProm(namespace string, reg prometheus.Registerer) *Prom {
	p := &Prom{
		ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestions_total",
			Help:      "Image ingestions by outcome",
		}, []string{"outcome"}),
		originalBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "original_bytes_total",
			Help:      "Bytes of successfully compressed originals",
		}),
		compressedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compressed_bytes_total",
			Help:      "Bytes of compressed artifacts written",
		}),
		ratio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compression_ratio_percent",
			Help:      "Percentage of bytes saved per ingestion",
			Buckets:   []float64{-50, -10, 0, 10, 25, 50, 75, 90, 95, 99},
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(p.ingestions, p.originalBytes, p.compressedBytes, p.ratio, p.requests, p.latency)
	return p
}

func (p *Prom) ObserveIngestion(outcome string, originalSize, compressedSize int64, ratio float64) {
	p.ingestions.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSuccess {
		return
	}
	p.originalBytes.Add(float64(originalSize))
	p.compressedBytes.Add(float64(compressedSize))
	p.ratio.Observe(ratio)
}

func (p *Prom) ObserveRequest(method, route, status string, durationSeconds float64) {
	p.requests.WithLabelValues(method, route, status).Inc()
	p.latency.WithLabelValues(method, route).Observe(durationSeconds)
}

// Handler returns an HTTP handler for /metrics.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
