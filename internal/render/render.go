package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/couchcryptid/storm-radar-overlay/internal/domain"
	"github.com/couchcryptid/storm-radar-overlay/internal/observability"
	"github.com/couchcryptid/storm-radar-overlay/internal/tiles"
)

// ErrInvalidFrame is returned for frames without a positive size or area.
var ErrInvalidFrame = errors.New("invalid frame")

// Frame is everything needed to draw one overlay image.
type Frame struct {
	Bounds  domain.Bounds
	Width   int
	Height  int
	Style   string
	Sigma   float64
	Markers []domain.Marker

	// Radar is nil when no composite is loaded.
	Radar *Radar
	// Background is the tile mosaic; nil selects the procedural style.
	Background *tiles.Mosaic
}

// Result is the rendered image and what went into it.
type Result struct {
	Image         *image.RGBA
	RadarPixels   int
	MarkersDrawn  []string
	UsedMosaic    bool
	RenderedStyle string
}

// Renderer draws frames. It is safe for concurrent use.
type Renderer struct {
	logger  *slog.Logger
	metrics *observability.Metrics

	mu   sync.Mutex // font faces are not safe for concurrent use
	face labelFace
}

// NewRenderer creates a Renderer.
func NewRenderer(logger *slog.Logger, metrics *observability.Metrics) *Renderer {
	return &Renderer{logger: logger, metrics: metrics}
}

// Render draws background, radar overlay, and markers. A frame without radar
// data, or whose radar lies outside the viewport, still yields the background
// and markers.
func (r *Renderer) Render(ctx context.Context, f Frame) (*Result, error) {
	if f.Width <= 0 || f.Height <= 0 || !f.Bounds.Valid() {
		return nil, fmt.Errorf("%w: %dx%d %s", ErrInvalidFrame, f.Width, f.Height, f.Bounds)
	}

	_, span := observability.Tracer().Start(ctx, "render.frame")
	defer span.End()
	start := time.Now()

	vp := viewport{b: f.Bounds, w: f.Width, h: f.Height}
	res := &Result{RenderedStyle: f.Style}

	var canvas *image.RGBA
	if f.Background != nil {
		canvas = image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
		drawMosaic(canvas, vp, f.Background)
		res.UsedMosaic = true
		r.metrics.FramesRendered.WithLabelValues("tiles").Inc()
	} else {
		canvas = tiles.Procedural(f.Style, f.Bounds, f.Width, f.Height)
		r.metrics.FramesRendered.WithLabelValues("procedural").Inc()
	}

	if f.Radar != nil {
		if region, ok := f.Radar.Select(f.Bounds); ok {
			smoothed := GaussianBlur(region.Values, region.Rows, region.Cols, f.Sigma)
			res.RadarPixels = drawOverlay(canvas, vp, region, smoothed)
		} else {
			r.logger.Info("no radar cells inside viewport", "bounds", f.Bounds.String())
		}
	}

	r.mu.Lock()
	res.MarkersDrawn = drawMarkers(canvas, vp, f.Markers, r.face.get())
	r.mu.Unlock()

	res.Image = canvas
	r.metrics.RenderDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("render.radar_pixels", res.RadarPixels),
		attribute.Int("render.markers", len(res.MarkersDrawn)),
		attribute.Bool("render.mosaic", res.UsedMosaic),
	)
	return res, nil
}

// EncodePNG encodes an image as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
