package main

import (
	"github.com/sdko-org/imgpress/internal/analytics"
	"github.com/sdko-org/imgpress/internal/compress"
	"github.com/sdko-org/imgpress/internal/config"
	"github.com/sdko-org/imgpress/internal/ingest"
	"github.com/sdko-org/imgpress/internal/logging"
	"github.com/sdko-org/imgpress/internal/registry"
	"github.com/sdko-org/imgpress/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	dir       string
	maxWidth  int
	maxHeight int
	quality   int
	logLevel  string
}

// app is the wiring shared by every subcommand.
type app struct {
	cfg       *config.Config
	log       *logrus.Logger
	store     storage.Storage
	ingest    *ingest.Service
	scanner   *registry.Scanner
	analytics *analytics.Aggregator
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "imgpress",
		Short:         "Compress images into the artifact store and inspect it",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.dir, "dir", "", "artifact directory (overrides UPLOAD_DIR)")
	flags.IntVar(&opts.maxWidth, "max-width", 0, "bounding box width (overrides COMPRESS_MAX_WIDTH)")
	flags.IntVar(&opts.maxHeight, "max-height", 0, "bounding box height (overrides COMPRESS_MAX_HEIGHT)")
	flags.IntVar(&opts.quality, "quality", 0, "JPEG quality 1-100 (overrides COMPRESS_QUALITY)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level")

	cmd.AddCommand(
		newCompressCmd(opts),
		newListCmd(opts),
		newStatsCmd(opts),
		newExportCmd(opts),
	)
	return cmd
}

func (o *rootOptions) build(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.dir != "" {
		cfg.StorageBackend = config.BackendFS
		cfg.UploadDir = o.dir
	}
	if o.maxWidth > 0 {
		cfg.MaxWidth = o.maxWidth
	}
	if o.maxHeight > 0 {
		cfg.MaxHeight = o.maxHeight
	}
	if o.quality > 0 {
		cfg.Quality = o.quality
	}
	cfg.LogLevel = o.logLevel
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewWithOutput(cmd.ErrOrStderr(), cfg.LogLevel, "text")
	store, err := storage.New(logger, cfg)
	if err != nil {
		return nil, err
	}

	engine := compress.NewEngine(logger, store, compress.Options{
		MaxWidth:  cfg.MaxWidth,
		MaxHeight: cfg.MaxHeight,
		Quality:   cfg.Quality,
	})
	scanner := registry.NewScanner(logger, store, cfg.PublicPathPrefix)

	return &app{
		cfg:   cfg,
		log:   logger,
		store: store,
		ingest: ingest.NewService(logger, store, engine, ingest.Options{
			RemoveOrphans: cfg.OrphanPolicy == config.OrphanRemove,
			PublicPrefix:  cfg.PublicPathPrefix,
		}),
		scanner:   scanner,
		analytics: analytics.NewAggregator(scanner),
	}, nil
}
