// Package processor owns the loaded radar composite and turns it into
// overlay frames. It replaces process-wide state with one instance whose
// refreshes are serialized and whose readers never block.
package processor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/couchcryptid/storm-radar-overlay/internal/composite"
	"github.com/couchcryptid/storm-radar-overlay/internal/domain"
	"github.com/couchcryptid/storm-radar-overlay/internal/observability"
	"github.com/couchcryptid/storm-radar-overlay/internal/projection"
	"github.com/couchcryptid/storm-radar-overlay/internal/render"
	"github.com/couchcryptid/storm-radar-overlay/internal/tiles"
)

var (
	// ErrRefreshInFlight is returned when another refresh holds the lock.
	ErrRefreshInFlight = errors.New("refresh already in progress")
	// ErrNoProjection is returned when a composite's projection cannot be used
	// to place its cells.
	ErrNoProjection = errors.New("composite projection unusable")
)

// Background builds a tile mosaic for a viewport.
type Background interface {
	Build(ctx context.Context, style string, b domain.Bounds) (*tiles.Mosaic, error)
}

// Publisher announces rendered frames.
type Publisher interface {
	Publish(ctx context.Context, event domain.FrameEvent) error
}

// Options fixes the viewport and look of every frame.
type Options struct {
	Bounds  domain.Bounds
	Width   int
	Height  int
	Zoom    int
	Style   string
	Sigma   float64
	Markers []domain.Marker
}

// session is one successfully loaded composite. It is immutable once stored.
type session struct {
	composite    *composite.Composite
	field        *projection.Field
	radar        *render.Radar
	lastModified time.Time
	loadedAt     time.Time
	origin       string
}

// Frame is a rendered overlay.
type Frame struct {
	Event domain.FrameEvent
	Image *image.RGBA
	PNG   []byte
}

// Processor loads composites and renders frames.
type Processor struct {
	opts       Options
	source     domain.CompositeSource
	opener     composite.Opener
	background Background
	renderer   *render.Renderer
	publisher  Publisher
	logger     *slog.Logger
	metrics    *observability.Metrics

	refreshMu sync.Mutex
	renderMu  sync.Mutex
	session   atomic.Pointer[session]
	frame     atomic.Pointer[Frame]
	state     atomic.Int32
}

// New creates a Processor. background and publisher may be nil.
func New(opts Options, source domain.CompositeSource, opener composite.Opener, background Background,
	renderer *render.Renderer, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics) *Processor {
	return &Processor{
		opts:       opts,
		source:     source,
		opener:     opener,
		background: background,
		renderer:   renderer,
		publisher:  publisher,
		logger:     logger,
		metrics:    metrics,
	}
}

// State returns the current lifecycle stage.
func (p *Processor) State() State {
	return State(p.state.Load())
}

func (p *Processor) setState(s State) {
	p.state.Store(int32(s))
	p.metrics.ProcessorState.Set(float64(s))
}

// Latest returns the most recent frame, or nil before the first render.
func (p *Processor) Latest() *Frame {
	return p.frame.Load()
}

// CheckReadiness returns nil once a frame has been rendered.
func (p *Processor) CheckReadiness(_ context.Context) error {
	if p.frame.Load() == nil {
		return errors.New("no frame rendered yet")
	}
	return nil
}

// Refresh checks the source and, when it holds newer data, downloads and
// decodes it. Only one refresh runs at a time; a concurrent call returns
// ErrRefreshInFlight at once. On failure the previously loaded composite stays
// in place.
func (p *Processor) Refresh(ctx context.Context) (Outcome, error) {
	if !p.refreshMu.TryLock() {
		p.metrics.Refreshes.WithLabelValues(string(OutcomeSkipped)).Inc()
		return OutcomeSkipped, ErrRefreshInFlight
	}
	defer p.refreshMu.Unlock()

	ctx, span := observability.Tracer().Start(ctx, "processor.refresh")
	defer span.End()

	outcome, err := p.refresh(ctx)
	p.metrics.Refreshes.WithLabelValues(string(outcome)).Inc()
	span.SetAttributes(attribute.String("refresh.outcome", string(outcome)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return outcome, err
}

func (p *Processor) refresh(ctx context.Context) (Outcome, error) {
	var since time.Time
	if s := p.session.Load(); s != nil {
		since = s.lastModified
	}

	fresh, err := p.source.Check(ctx, since)
	if err != nil {
		p.logger.Warn("freshness check failed, keeping current data", "error", err)
		return OutcomeFailed, fmt.Errorf("check: %w", err)
	}
	if !fresh.Changed {
		p.logger.Debug("composite unchanged", "last_modified", fresh.LastModified)
		return OutcomeUnchanged, nil
	}

	payload, err := p.source.Fetch(ctx)
	if err != nil {
		p.logger.Error("composite fetch failed", "error", err)
		return OutcomeFailed, fmt.Errorf("fetch: %w", err)
	}

	s, err := p.load(ctx, payload)
	if err != nil {
		p.logger.Error("composite load failed", "error", err, "origin", payload.Origin)
		return OutcomeFailed, err
	}

	// The timestamp is only recorded once the data is usable, so a failed
	// decode is retried on the next tick.
	s.lastModified = fresh.LastModified
	if s.lastModified.IsZero() {
		s.lastModified = payload.LastModified
	}
	p.session.Store(s)
	p.setState(StateLoaded)

	if !s.lastModified.IsZero() {
		p.metrics.DataAgeSeconds.Set(float64(s.lastModified.Unix()))
	}
	p.logger.Info("composite loaded",
		"origin", s.origin,
		"last_modified", s.lastModified,
		"window_rows", s.composite.Window.Rows(),
		"window_cols", s.composite.Window.Cols(),
	)
	return OutcomeLoaded, nil
}

// load decodes, crops, and projects one payload.
func (p *Processor) load(ctx context.Context, payload domain.Payload) (*session, error) {
	start := time.Now()

	ctx, span := observability.Tracer().Start(ctx, "processor.decode")
	comp, err := composite.DecodeBytes(ctx, p.opener, payload.Data, p.opts.Bounds)
	span.End()
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if comp.Projection == nil {
		return nil, fmt.Errorf("%w: %w", ErrNoProjection, comp.ProjectionErr)
	}

	_, span = observability.Tracer().Start(ctx, "processor.project")
	field, err := projection.BuildField(ctx, comp.Projection, comp.Header.Grid, comp.Window)
	span.End()
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}

	radar, err := render.NewRadar(comp.Scaled, field.Lons, field.Lats, comp.Window.Rows(), comp.Window.Cols())
	if err != nil {
		return nil, err
	}

	p.metrics.DecodeDuration.Observe(time.Since(start).Seconds())
	p.metrics.ProjectedCells.Set(float64(comp.Window.Size()))
	return &session{
		composite: comp,
		field:     field,
		radar:     radar,
		loadedAt:  domain.Now(),
		origin:    payload.Origin,
	}, nil
}

// Render draws the current composite, or only background and markers when
// none is loaded, stores the frame, and publishes its event.
func (p *Processor) Render(ctx context.Context) (*Frame, error) {
	p.renderMu.Lock()
	defer p.renderMu.Unlock()

	s := p.session.Load()
	o := p.opts
	event := domain.NewFrameEvent(o.Bounds, o.Width, o.Height, o.Zoom, o.Style)

	f := render.Frame{
		Bounds:  o.Bounds,
		Width:   o.Width,
		Height:  o.Height,
		Style:   o.Style,
		Sigma:   o.Sigma,
		Markers: domain.VisibleMarkers(o.Bounds, o.Markers),
	}
	if s != nil {
		f.Radar = s.radar
		event.HasRadar = true
		event.DataTimestamp = s.lastModified
	}
	if m := p.mosaic(ctx); m != nil {
		f.Background = m
		event.TilesFetched = m.Succeeded
		event.TilesFailed = m.Failed
	}

	res, err := p.renderer.Render(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	data, err := render.EncodePNG(res.Image)
	if err != nil {
		return nil, err
	}
	event.Markers = res.MarkersDrawn

	frame := &Frame{Event: event, Image: res.Image, PNG: data}
	p.frame.Store(frame)
	if s != nil {
		p.setState(StateRendered)
	}
	p.logger.Info("frame rendered",
		"id", event.ID,
		"has_radar", event.HasRadar,
		"radar_pixels", res.RadarPixels,
		"markers", len(event.Markers),
		"mosaic", res.UsedMosaic,
	)

	p.publish(ctx, event)
	return frame, nil
}

// mosaic fetches tiles for remote styles. Any failure falls back to the
// procedural background.
func (p *Processor) mosaic(ctx context.Context) *tiles.Mosaic {
	if p.background == nil {
		return nil
	}
	if style, err := tiles.LookupStyle(p.opts.Style); err != nil || !style.Remote() {
		return nil
	}
	m, err := p.background.Build(ctx, p.opts.Style, p.opts.Bounds)
	if err != nil {
		p.logger.Warn("background tiles unavailable, using procedural background", "style", p.opts.Style, "error", err)
		return nil
	}
	return m
}

func (p *Processor) publish(ctx context.Context, event domain.FrameEvent) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, event); err != nil {
		p.logger.Warn("publish frame event failed", "id", event.ID, "error", err)
		p.metrics.FramesPublished.WithLabelValues("error").Inc()
		return
	}
	p.metrics.FramesPublished.WithLabelValues("success").Inc()
}

// Tick runs one refresh cycle: refresh, then render when new data arrived or
// nothing has been rendered yet. A refresh already in flight is not an error.
func (p *Processor) Tick(ctx context.Context) error {
	outcome, err := p.Refresh(ctx)
	if errors.Is(err, ErrRefreshInFlight) {
		p.logger.Debug("refresh still running, tick dropped")
		return nil
	}
	if outcome != OutcomeLoaded && p.frame.Load() != nil {
		return err
	}
	if _, rerr := p.Render(ctx); rerr != nil {
		return errors.Join(err, rerr)
	}
	return err
}
