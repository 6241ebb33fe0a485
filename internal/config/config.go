package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/couchcryptid/storm-radar-overlay/internal/domain"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Data source modes.
const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

// DefaultRadarURL is the DWD HX composite that is always the latest scan.
const DefaultRadarURL = "https://opendata.dwd.de/weather/radar/composite/hx/composite_hx_LATEST-hd5"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" validate:"required"`
	LogLevel        string        `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat       string        `env:"LOG_FORMAT" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`

	// Viewport and rendering.
	BackgroundStyle string  `env:"BACKGROUND_STYLE" validate:"oneof=osm esri_satellite esri_topo esri_street simple grid topographic"`
	ZoomLevel       int     `env:"ZOOM_LEVEL"`
	CenterLon       float64 `env:"CENTER_LON" validate:"gte=-180,lte=180"`
	CenterLat       float64 `env:"CENTER_LAT" validate:"gte=-85,lte=85"`
	ImageWidth      int     `env:"IMAGE_WIDTH" validate:"gte=16,lte=4096"`
	ImageHeight     int     `env:"IMAGE_HEIGHT" validate:"gte=16,lte=4096"`
	SmoothingSigma  float64 `env:"SMOOTHING_SIGMA" validate:"gte=0,lte=10"`
	Markers         []domain.Marker

	// Composite source.
	DataSource      string        `env:"DATA_SOURCE" validate:"oneof=remote local"`
	LocalFile       string        `env:"LOCAL_FILE" validate:"required_if=DataSource local"`
	RadarURL        string        `env:"RADAR_URL" validate:"url"`
	RadarTimeout    time.Duration `env:"RADAR_TIMEOUT" validate:"gt=0"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" validate:"gte=1s"`

	// Background tiles.
	TileCacheDir        string        `env:"TILE_CACHE_DIR" validate:"required"`
	TileTimeout         time.Duration `env:"TILE_TIMEOUT" validate:"gt=0"`
	TileWorkers         int           `env:"TILE_WORKERS" validate:"gte=1,lte=64"`
	TileMemoryCacheSize int           `env:"TILE_MEMORY_CACHE_SIZE" validate:"gte=0"`
	TileUserAgent       string        `env:"TILE_USER_AGENT" validate:"required"`

	// Frame notifications.
	KafkaEnabled    bool     `env:"KAFKA_ENABLED"`
	KafkaBrokers    []string `env:"KAFKA_BROKERS" validate:"required_if=KafkaEnabled true"`
	KafkaFrameTopic string   `env:"KAFKA_FRAME_TOPIC" validate:"required_if=KafkaEnabled true"`

	// Tracing.
	TracingEnabled     bool    `env:"TRACING_ENABLED"`
	TracingExporter    string  `env:"TRACING_EXPORTER" validate:"oneof=stdout otlp"`
	OTLPEndpoint       string  `env:"OTLP_ENDPOINT" validate:"required_if=TracingExporter otlp"`
	TracingSampleRatio float64 `env:"TRACING_SAMPLE_RATIO" validate:"gte=0,lte=1"`
}

// Bounds returns the viewport derived from the configured center, zoom, and size.
func (c *Config) Bounds() domain.Bounds {
	return domain.ComputeBounds(c.CenterLon, c.CenterLat, c.ZoomLevel, c.ImageWidth, c.ImageHeight)
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	p := &parser{}
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		BackgroundStyle: sharedcfg.EnvOrDefault("BACKGROUND_STYLE", "esri_topo"),
		ZoomLevel:       domain.ClampZoom(p.intVar("ZOOM_LEVEL", 11)),
		CenterLon:       p.floatVar("CENTER_LON", 8.862),
		CenterLat:       p.floatVar("CENTER_LAT", 48.806),
		ImageWidth:      p.intVar("IMAGE_WIDTH", 512),
		ImageHeight:     p.intVar("IMAGE_HEIGHT", 512),
		SmoothingSigma:  p.floatVar("SMOOTHING_SIGMA", 1.5),

		DataSource:      sharedcfg.EnvOrDefault("DATA_SOURCE", SourceRemote),
		LocalFile:       sharedcfg.EnvOrDefault("LOCAL_FILE", "composite_hx_test.hd5"),
		RadarURL:        sharedcfg.EnvOrDefault("RADAR_URL", DefaultRadarURL),
		RadarTimeout:    p.durationVar("RADAR_TIMEOUT", 60*time.Second),
		RefreshInterval: p.durationVar("REFRESH_INTERVAL", 60*time.Second),

		TileCacheDir:        sharedcfg.EnvOrDefault("TILE_CACHE_DIR", "tilecache"),
		TileTimeout:         p.durationVar("TILE_TIMEOUT", 15*time.Second),
		TileWorkers:         p.intVar("TILE_WORKERS", 8),
		TileMemoryCacheSize: p.intVar("TILE_MEMORY_CACHE_SIZE", 256),
		TileUserAgent:       sharedcfg.EnvOrDefault("TILE_USER_AGENT", "storm-radar-overlay/1.0"),

		KafkaEnabled:    p.boolVar("KAFKA_ENABLED", false),
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaFrameTopic: sharedcfg.EnvOrDefault("KAFKA_FRAME_TOPIC", "radar-frames"),

		TracingEnabled:     p.boolVar("TRACING_ENABLED", false),
		TracingExporter:    sharedcfg.EnvOrDefault("TRACING_EXPORTER", "stdout"),
		OTLPEndpoint:       os.Getenv("OTLP_ENDPOINT"),
		TracingSampleRatio: p.floatVar("TRACING_SAMPLE_RATIO", 1.0),
	}
	if p.err != nil {
		return nil, p.err
	}

	markers, err := loadMarkers()
	if err != nil {
		return nil, err
	}
	cfg.Markers = markers

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parser reads typed env vars and keeps the first error, naming the variable.
type parser struct {
	err error
}

func (p *parser) fail(name string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s", name)
	}
}

func (p *parser) intVar(name string, def int) int {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		p.fail(name)
		return def
	}
	return n
}

func (p *parser) floatVar(name string, def float64) float64 {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(name)
		return def
	}
	return f
}

func (p *parser) durationVar(name string, def time.Duration) time.Duration {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		p.fail(name)
		return def
	}
	return d
}

func (p *parser) boolVar(name string, def bool) bool {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(name)
		return def
	}
	return b
}

// markerFile is the YAML layout of MARKERS_FILE.
type markerFile struct {
	Markers []domain.Marker `yaml:"markers"`
}

// loadMarkers reads MARKERS (inline) or MARKERS_FILE (YAML). MARKERS wins when
// both are set; with neither, the default marker set is used.
func loadMarkers() ([]domain.Marker, error) {
	if s := os.Getenv("MARKERS"); s != "" {
		markers, err := domain.ParseMarkers(s)
		if err != nil {
			return nil, fmt.Errorf("invalid MARKERS: %w", err)
		}
		return markers, nil
	}

	path := os.Getenv("MARKERS_FILE")
	if path == "" {
		return domain.DefaultMarkers(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("invalid MARKERS_FILE: %w", err)
	}
	var f markerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid MARKERS_FILE: %w", err)
	}
	markers := make([]domain.Marker, 0, len(f.Markers))
	for _, m := range f.Markers {
		if strings.TrimSpace(m.Name) == "" {
			return nil, errors.New("invalid MARKERS_FILE: marker without name")
		}
		markers = append(markers, m.Normalize())
	}
	return markers, nil
}

var validate = newValidator()

func newValidator() func(*Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report env var names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})

	return func(cfg *Config) error {
		err := v.Struct(cfg)
		if err == nil {
			return nil
		}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Tag() == "required" || fe.Tag() == "required_if" {
				return fmt.Errorf("%s is required", fe.Field())
			}
			return fmt.Errorf("invalid %s: failed %q check", fe.Field(), fe.Tag())
		}
		return err
	}
}
