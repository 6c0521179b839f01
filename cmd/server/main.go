package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sdko-org/imgpress/internal/analytics"
	"github.com/sdko-org/imgpress/internal/compress"
	"github.com/sdko-org/imgpress/internal/config"
	"github.com/sdko-org/imgpress/internal/database"
	"github.com/sdko-org/imgpress/internal/handlers"
	httpserver "github.com/sdko-org/imgpress/internal/http"
	"github.com/sdko-org/imgpress/internal/ingest"
	"github.com/sdko-org/imgpress/internal/logging"
	"github.com/sdko-org/imgpress/internal/metrics"
	"github.com/sdko-org/imgpress/internal/registry"
	"github.com/sdko-org/imgpress/internal/storage"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "json").WithError(err).Fatal("Invalid configuration")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	store, err := storage.New(logger, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize storage")
	}

	var db *gorm.DB
	if cfg.AccessLogDB {
		db, err = database.NewPostgresDB(logger, cfg.PostgresDSN())
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize database")
		}
	}

	prom := metrics.NewProm(cfg.MetricsNamespace, prometheus.DefaultRegisterer)

	engine := compress.NewEngine(logger, store, compress.Options{
		MaxWidth:  cfg.MaxWidth,
		MaxHeight: cfg.MaxHeight,
		Quality:   cfg.Quality,
	})
	svc := ingest.NewService(logger, store, engine, ingest.Options{
		RemoveOrphans: cfg.OrphanPolicy == config.OrphanRemove,
		PublicPrefix:  cfg.PublicPathPrefix,
		Metrics:       prom,
	})
	scanner := registry.NewScanner(logger, store, cfg.PublicPathPrefix)
	handler := handlers.NewImageHandler(logger, cfg, store, svc, scanner, analytics.NewAggregator(scanner))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limiter := handlers.NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow)
	go limiter.Cleanup(ctx, time.Minute, 3*time.Minute)

	router := handlers.NewRouter(logger, handler, handlers.RouterOptions{
		PublicPathPrefix: cfg.PublicPathPrefix,
		DB:               db,
		Metrics:          prom,
		MetricsHandler:   metrics.Handler(prometheus.DefaultGatherer),
		Limiter:          limiter,
	})

	servers, err := httpserver.Start(logger, cfg, router)
	if err != nil {
		logger.WithError(err).Fatal("Failed to start servers")
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case serveErr = <-servers.Err():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := servers.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown error")
	}

	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}

	if serveErr != nil {
		logger.WithError(serveErr).Fatal("Server stopped unexpectedly")
	}
	logger.Info("Server exited")
}
