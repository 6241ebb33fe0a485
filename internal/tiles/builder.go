package tiles

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/couchcryptid/storm-radar-overlay/internal/domain"
	"github.com/couchcryptid/storm-radar-overlay/internal/observability"
)

const (
	// DefaultWorkers bounds concurrent tile fetches.
	DefaultWorkers = 8
	// DefaultMaxTiles rejects viewports that would need an unreasonable
	// number of tiles.
	DefaultMaxTiles = 256
)

var (
	// ErrNoTiles is returned when not a single tile could be obtained, or the
	// style has no tile server.
	ErrNoTiles = errors.New("no background tiles available")
	// ErrTooManyTiles is returned when the tile rectangle exceeds the builder's limit.
	ErrTooManyTiles = errors.New("too many background tiles")
)

// Mosaic is a stitched background and the geographic box it covers.
type Mosaic struct {
	Image     *image.RGBA
	Extent    domain.Bounds
	Range     Range
	Zoom      int
	Succeeded int
	Failed    int
}

// PixelAt maps a point to fractional pixel coordinates inside the mosaic.
func (m *Mosaic) PixelAt(lon, lat float64) (float64, float64) {
	px, py := LonLatToPixel(lon, lat, m.Zoom)
	return px - float64(m.Range.MinX*Size), py - float64(m.Range.MinY*Size)
}

// Builder fetches the tiles covering a viewport and stitches them together.
type Builder struct {
	src      Source
	workers  int
	maxTiles int
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewBuilder creates a Builder. A non-positive worker count uses DefaultWorkers.
func NewBuilder(src Source, workers int, logger *slog.Logger, metrics *observability.Metrics) *Builder {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Builder{
		src:      src,
		workers:  workers,
		maxTiles: DefaultMaxTiles,
		logger:   logger,
		metrics:  metrics,
	}
}

// Build returns the mosaic for the given style and viewport. Tiles that fail
// are replaced by a flat fallback tile; if every tile fails, ErrNoTiles is
// returned.
func (b *Builder) Build(ctx context.Context, styleName string, bounds domain.Bounds) (*Mosaic, error) {
	style, err := LookupStyle(styleName)
	if err != nil {
		return nil, err
	}
	if !style.Remote() {
		return nil, fmt.Errorf("%w: style %s is procedural", ErrNoTiles, styleName)
	}

	zoom := ZoomForSpan(bounds)
	r := RangeFor(bounds, zoom)
	if r.Count() > b.maxTiles {
		return nil, fmt.Errorf("%w: %d tiles at zoom %d", ErrTooManyTiles, r.Count(), zoom)
	}

	ctx, span := observability.Tracer().Start(ctx, "tiles.build")
	defer span.End()
	span.SetAttributes(
		attribute.String("tiles.style", styleName),
		attribute.Int("tiles.zoom", zoom),
		attribute.Int("tiles.count", r.Count()),
	)

	start := time.Now()
	grid, ok, failed := b.fetchAll(ctx, styleName, r)

	span.SetAttributes(attribute.Int("tiles.succeeded", ok), attribute.Int("tiles.failed", failed))
	if ok == 0 {
		span.SetStatus(codes.Error, "no tiles")
		b.logger.Warn("no background tiles fetched", "style", styleName, "zoom", zoom, "tiles", r.Count())
		return nil, ErrNoTiles
	}

	m := &Mosaic{
		Image:     Stitch(grid, Size),
		Extent:    r.Extent(),
		Range:     r,
		Zoom:      zoom,
		Succeeded: ok,
		Failed:    failed,
	}
	b.logger.Debug("background mosaic built",
		"style", styleName,
		"zoom", zoom,
		"succeeded", ok,
		"failed", failed,
		"duration", time.Since(start),
	)
	return m, nil
}

// fetchAll fetches every tile in r with at most b.workers in flight. Results
// are placed by absolute index, so completion order does not matter.
func (b *Builder) fetchAll(ctx context.Context, style string, r Range) ([][]image.Image, int, int) {
	grid := make([][]image.Image, r.Rows())
	for i := range grid {
		grid[i] = make([]image.Image, r.Cols())
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		ok     int
		failed int
	)
	sem := make(chan struct{}, b.workers)

	for ty := r.MinY; ty <= r.MaxY; ty++ {
		for tx := r.MinX; tx <= r.MaxX; tx++ {
			wg.Add(1)
			go func(tx, ty int) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				key := Key{Style: style, Z: r.Zoom, X: tx, Y: ty}
				img, err := b.src.Tile(ctx, key)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					b.logger.Debug("tile unavailable, using fallback", "tile", key.String(), "error", err)
					b.metrics.TileRequests.WithLabelValues(style, "fallback").Inc()
					failed++
					img = FallbackTile()
				} else {
					b.metrics.TileRequests.WithLabelValues(style, "success").Inc()
					ok++
				}
				grid[ty-r.MinY][tx-r.MinX] = img
			}(tx, ty)
		}
	}
	wg.Wait()
	return grid, ok, failed
}
