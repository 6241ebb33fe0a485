// Package app wires the composite source, tile stack, renderer, and publisher
// into a processor from configuration.
package app

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-radar-overlay/internal/adapter/dwd"
	"github.com/couchcryptid/storm-radar-overlay/internal/adapter/hdf5"
	kafkaadapter "github.com/couchcryptid/storm-radar-overlay/internal/adapter/kafka"
	"github.com/couchcryptid/storm-radar-overlay/internal/adapter/tilecache"
	"github.com/couchcryptid/storm-radar-overlay/internal/adapter/tileserver"
	"github.com/couchcryptid/storm-radar-overlay/internal/composite"
	"github.com/couchcryptid/storm-radar-overlay/internal/config"
	"github.com/couchcryptid/storm-radar-overlay/internal/domain"
	"github.com/couchcryptid/storm-radar-overlay/internal/observability"
	"github.com/couchcryptid/storm-radar-overlay/internal/processor"
	"github.com/couchcryptid/storm-radar-overlay/internal/render"
	"github.com/couchcryptid/storm-radar-overlay/internal/tiles"
)

// App is a wired processor plus the resources that must be released with it.
type App struct {
	Processor *processor.Processor
	publisher *kafkaadapter.FramePublisher
	logger    *slog.Logger
}

// New builds the processor described by cfg. publish=false leaves the Kafka
// publisher out even when KAFKA_ENABLED is set. A source that needs HDF5 is
// rejected in builds without it.
func New(cfg *config.Config, publish bool, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	source, opener := Source(cfg, logger)
	if _, ok := opener.(hdf5.Opener); ok && !hdf5.Available {
		return nil, fmt.Errorf("%s composite source needs HDF5 (%w); use a .json LOCAL_FILE fixture instead", cfg.DataSource, hdf5.ErrUnavailable)
	}

	tileClient := tileserver.NewClient(cfg.TileTimeout, cfg.TileUserAgent, logger, metrics)
	cache, err := tilecache.New(tileClient, cfg.TileCacheDir, cfg.TileMemoryCacheSize, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("tile cache: %w", err)
	}
	builder := tiles.NewBuilder(cache, cfg.TileWorkers, logger, metrics)

	a := &App{logger: logger}
	var publisher processor.Publisher
	if publish && cfg.KafkaEnabled {
		a.publisher = kafkaadapter.NewFramePublisher(cfg.KafkaBrokers, cfg.KafkaFrameTopic, logger)
		publisher = a.publisher
		logger.Info("frame notifications enabled", "topic", cfg.KafkaFrameTopic, "brokers", cfg.KafkaBrokers)
	}

	opts := processor.Options{
		Bounds:  cfg.Bounds(),
		Width:   cfg.ImageWidth,
		Height:  cfg.ImageHeight,
		Zoom:    cfg.ZoomLevel,
		Style:   cfg.BackgroundStyle,
		Sigma:   cfg.SmoothingSigma,
		Markers: cfg.Markers,
	}
	a.Processor = processor.New(opts, source, opener, builder, render.NewRenderer(logger, metrics), publisher, logger, metrics)

	logger.Info("processor configured",
		"source", cfg.DataSource,
		"style", cfg.BackgroundStyle,
		"zoom", cfg.ZoomLevel,
		"bounds", opts.Bounds.String(),
		"markers", len(cfg.Markers),
	)
	return a, nil
}

// Source returns the composite source for DATA_SOURCE and the opener that
// understands its payload. Local files ending in .json are JSON fixtures.
func Source(cfg *config.Config, logger *slog.Logger) (domain.CompositeSource, composite.Opener) {
	if cfg.DataSource == config.SourceLocal {
		var opener composite.Opener = hdf5.Opener{}
		if strings.EqualFold(filepath.Ext(cfg.LocalFile), ".json") {
			opener = composite.FixtureOpener{}
		}
		return dwd.NewFile(cfg.LocalFile, logger), opener
	}
	return dwd.NewRemote(cfg.RadarURL, cfg.RadarTimeout, clockwork.NewRealClock(), logger), hdf5.Opener{}
}

// Close releases the publisher, if any.
func (a *App) Close() {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Close(); err != nil {
		a.logger.Error("kafka publisher close error", "error", err)
	}
}
