package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sdko-org/imgpress/internal/metrics"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type RouterOptions struct {
	PublicPathPrefix string
	// DB receives access logs when set.
	DB             *gorm.DB
	Metrics        metrics.HTTPMetrics
	MetricsHandler http.Handler
	Limiter        *RateLimiter
}

func RegisterRoutes(r *mux.Router, h *ImageHandler, publicPrefix string, metricsHandler http.Handler) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/images", h.UploadImage).Methods(http.MethodPost)
	api.HandleFunc("/images", h.ListImages).Methods(http.MethodGet)
	api.HandleFunc("/images/{id}/download", h.DownloadImage).Methods(http.MethodGet)
	api.HandleFunc("/analytics", h.GetAnalytics).Methods(http.MethodGet)

	r.HandleFunc(publicPrefix+"{filename}", h.ServeUpload).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/healthz", HandleHealth).Methods(http.MethodGet)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)
}

// NewRouter assembles routes and middleware into the server handler.
func NewRouter(logger *logrus.Logger, h *ImageHandler, opts RouterOptions) http.Handler {
	if opts.PublicPathPrefix == "" {
		opts.PublicPathPrefix = "/uploads/"
	}
	r := mux.NewRouter()
	r.Use(LoggingMiddleware(logger, opts.DB, opts.Metrics))
	if opts.Limiter.Enabled() {
		r.Use(opts.Limiter.Middleware)
	}
	RegisterRoutes(r, h, opts.PublicPathPrefix, opts.MetricsHandler)
	return RecoveryMiddleware(logger)(r)
}
