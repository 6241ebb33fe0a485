package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ServiceName identifies the service in logs, metrics, and traces.
const ServiceName = "storm-radar-overlay"

const namespace = "storm_radar"

// Metrics holds the Prometheus counters, histograms, and gauges for the radar overlay service.
type Metrics struct {
	// Composite refresh metrics.
	Refreshes      *prometheus.CounterVec // labels: outcome={loaded,unchanged,skipped,failed}
	DecodeDuration prometheus.Histogram
	ProjectedCells prometheus.Gauge
	DataAgeSeconds prometheus.Gauge
	ProcessorState prometheus.Gauge // 0=idle, 1=loaded, 2=rendered

	// Background tile metrics.
	TileRequests      *prometheus.CounterVec   // labels: style, outcome={success,fallback}
	TileCache         *prometheus.CounterVec   // labels: layer={memory,disk}, result={hit,miss,corrupt,evict}
	TileFetchDuration *prometheus.HistogramVec // labels: style

	// Rendering metrics.
	RenderDuration  prometheus.Histogram
	FramesRendered  *prometheus.CounterVec // labels: background={tiles,procedural}
	FramesPublished *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Refreshes,
		m.DecodeDuration,
		m.ProjectedCells,
		m.DataAgeSeconds,
		m.ProcessorState,
		m.TileRequests,
		m.TileCache,
		m.TileFetchDuration,
		m.RenderDuration,
		m.FramesRendered,
		m.FramesPublished,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Composite refresh attempts by outcome.",
		}, []string{"outcome"}),
		DecodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decode_duration_seconds",
			Help:      "Duration of composite decode and projection.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ProjectedCells: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "projected_cells",
			Help:      "Number of grid cells in the current cropped coordinate field.",
		}),
		DataAgeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "data_timestamp_seconds",
			Help:      "Unix time of the currently loaded composite, from the server's Last-Modified header.",
		}),
		ProcessorState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "processor_state",
			Help:      "0 when idle, 1 when a composite is loaded, 2 after the first render.",
		}),
		TileRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_requests_total",
			Help:      "Background tile lookups by style and outcome.",
		}, []string{"style", "outcome"}),
		TileCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_cache_total",
			Help:      "Tile cache lookups by layer and result.",
		}, []string{"layer", "result"}),
		TileFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tile_fetch_duration_seconds",
			Help:      "Remote tile server request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
		}, []string{"style"}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Duration of a complete frame render including the background.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		FramesRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rendered_total",
			Help:      "Rendered frames by background kind.",
		}, []string{"background"}),
		FramesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_published_total",
			Help:      "Frame notifications published by outcome.",
		}, []string{"outcome"}),
	}
}
