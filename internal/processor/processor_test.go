package processor_test

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-radar-overlay/internal/composite"
	"github.com/couchcryptid/storm-radar-overlay/internal/domain"
	"github.com/couchcryptid/storm-radar-overlay/internal/observability"
	"github.com/couchcryptid/storm-radar-overlay/internal/processor"
	"github.com/couchcryptid/storm-radar-overlay/internal/projection"
	"github.com/couchcryptid/storm-radar-overlay/internal/render"
	"github.com/couchcryptid/storm-radar-overlay/internal/tiles"
)

const dwdProjDef = "+proj=stere +lat_0=90 +lat_ts=60 +lon_0=10 +a=6378137 +b=6356752.3142451802 +no_defs +x_0=543196.83521776402 +y_0=3622588.8619310018"

var (
	hxCalibration = composite.Calibration{Gain: 0.5, Offset: -32, Nodata: 255, Undetect: 0}
	t1            = time.Date(2026, 7, 14, 15, 45, 0, 0, time.UTC)
	t2            = t1.Add(5 * time.Minute)
)

// --- mocks ---

type fakeSource struct {
	mu       sync.Mutex
	fresh    domain.Freshness
	checkErr error
	payload  domain.Payload
	fetchErr error
	sinces   []time.Time
	fetches  int
	entered  chan struct{}
	release  chan struct{}
}

func (f *fakeSource) Check(ctx context.Context, since time.Time) (domain.Freshness, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinces = append(f.sinces, since)
	if f.checkErr != nil {
		return domain.Freshness{}, f.checkErr
	}
	fr := f.fresh
	if fr.LastModified.IsZero() || since.IsZero() || fr.LastModified.After(since) {
		fr.Changed = true
	}
	return fr, nil
}

func (f *fakeSource) Fetch(context.Context) (domain.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return domain.Payload{}, f.fetchErr
	}
	return f.payload, nil
}

func (f *fakeSource) set(fn func(*fakeSource)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.FrameEvent
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, e domain.FrameEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

type fakeBackground struct {
	calls int
	err   error
	color image.Image
}

func (b *fakeBackground) Build(ctx context.Context, style string, bounds domain.Bounds) (*tiles.Mosaic, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	src := tiles.SourceFunc(func(context.Context, tiles.Key) (image.Image, error) { return b.color, nil })
	return tiles.NewBuilder(src, 2, discardLogger(), observability.NewMetricsForTesting()).Build(ctx, style, bounds)
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() processor.Options {
	return processor.Options{
		Bounds: domain.ComputeBounds(8.862, 48.806, 11, 512, 512),
		Width:  512,
		Height: 512,
		Zoom:   11,
		Style:  "simple",
		Sigma:  1.5,
	}
}

// uniformGrid is a 25 km square of constant 40 dBZ near the viewport center.
func uniformGrid() *composite.MemContainer {
	g := projection.Grid{LLLon: 8.75, LLLat: 48.75, XScale: 250, YScale: 250, Rows: 100, Cols: 100}
	data := make([]int64, g.Rows*g.Cols)
	for i := range data {
		data[i] = 144 // 144*0.5-32 = 40 dBZ
	}
	return composite.NewGridContainer(g, dwdProjDef, hxCalibration, data)
}

func newSource() *fakeSource {
	return &fakeSource{
		fresh:   domain.Freshness{LastModified: t1},
		payload: domain.Payload{Data: []byte("hx"), Origin: "test"},
	}
}

func newProcessor(opts processor.Options, src domain.CompositeSource, opener composite.Opener, bg processor.Background, pub processor.Publisher) *processor.Processor {
	metrics := observability.NewMetricsForTesting()
	return processor.New(opts, src, opener, bg, render.NewRenderer(discardLogger(), metrics), pub, discardLogger(), metrics)
}

func memOpener() composite.Opener {
	return composite.MemOpener{Container: uniformGrid()}
}

// overlayPixels counts pixels showing 40 dBZ orange blended over the simple background.
func overlayPixels(img *image.RGBA) int {
	n := 0
	for i := 0; i < len(img.Pix); i += 4 {
		r, g, b := int(img.Pix[i]), int(img.Pix[i+1]), int(img.Pix[i+2])
		if abs(r-252) <= 3 && abs(g-210) <= 3 && abs(b-74) <= 3 {
			n++
		}
	}
	return n
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// --- tests ---

func TestProcessor_EndToEnd(t *testing.T) {
	src := newSource()
	p := newProcessor(testOptions(), src, memOpener(), nil, nil)
	assert.Equal(t, processor.StateIdle, p.State())
	require.Error(t, p.CheckReadiness(context.Background()))

	outcome, err := p.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, processor.OutcomeLoaded, outcome)
	assert.Equal(t, processor.StateLoaded, p.State())

	frame, err := p.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, processor.StateRendered, p.State())
	require.NoError(t, p.CheckReadiness(context.Background()))

	assert.Equal(t, image.Rect(0, 0, 512, 512), frame.Image.Bounds())
	assert.NotEmpty(t, frame.PNG)
	assert.True(t, frame.Event.HasRadar)
	assert.True(t, t1.Equal(frame.Event.DataTimestamp))
	assert.Greater(t, overlayPixels(frame.Image), 1000)
	assert.Same(t, frame, p.Latest())
}

func TestProcessor_RefreshUnchanged(t *testing.T) {
	src := newSource()
	p := newProcessor(testOptions(), src, memOpener(), nil, nil)

	_, err := p.Refresh(context.Background())
	require.NoError(t, err)
	outcome, err := p.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, processor.OutcomeUnchanged, outcome)
	assert.Equal(t, 1, src.fetches)
	require.Len(t, src.sinces, 2)
	assert.True(t, src.sinces[0].IsZero())
	assert.True(t, t1.Equal(src.sinces[1]))
}

func TestProcessor_RefreshNewerData(t *testing.T) {
	src := newSource()
	p := newProcessor(testOptions(), src, memOpener(), nil, nil)

	_, err := p.Refresh(context.Background())
	require.NoError(t, err)
	src.set(func(f *fakeSource) { f.fresh.LastModified = t2 })

	outcome, err := p.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, processor.OutcomeLoaded, outcome)
	assert.True(t, t2.Equal(p.Status().LastModified))
}

func TestProcessor_FailedFetchKeepsPreviousData(t *testing.T) {
	src := newSource()
	p := newProcessor(testOptions(), src, memOpener(), nil, nil)

	_, err := p.Refresh(context.Background())
	require.NoError(t, err)
	_, err = p.Render(context.Background())
	require.NoError(t, err)

	src.set(func(f *fakeSource) {
		f.fresh.LastModified = t2
		f.fetchErr = errors.New("connection reset")
	})
	outcome, err := p.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, processor.OutcomeFailed, outcome)
	assert.Equal(t, processor.StateRendered, p.State())
	assert.True(t, t1.Equal(p.Status().LastModified))
}

func TestProcessor_CheckErrorMeansNoNewData(t *testing.T) {
	src := newSource()
	src.checkErr = errors.New("timeout")
	p := newProcessor(testOptions(), src, memOpener(), nil, nil)

	outcome, err := p.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, processor.OutcomeFailed, outcome)
	assert.Equal(t, 0, src.fetches)
	assert.Equal(t, processor.StateIdle, p.State())
}

func TestProcessor_DecodeFailureDoesNotRecordTimestamp(t *testing.T) {
	src := newSource()
	p := newProcessor(testOptions(), src, composite.MemOpener{Err: errors.New("not hdf5")}, nil, nil)

	outcome, err := p.Refresh(context.Background())
	require.ErrorIs(t, err, composite.ErrMalformed)
	assert.Equal(t, processor.OutcomeFailed, outcome)

	_, _ = p.Refresh(context.Background())
	require.Len(t, src.sinces, 2)
	assert.True(t, src.sinces[1].IsZero(), "failed load must be retried")
	assert.Equal(t, 2, src.fetches)
}

func TestProcessor_EmptyPayload(t *testing.T) {
	src := newSource()
	src.payload = domain.Payload{}
	p := newProcessor(testOptions(), src, memOpener(), nil, nil)

	_, err := p.Refresh(context.Background())
	require.ErrorIs(t, err, composite.ErrEmptyPayload)
	assert.Equal(t, processor.StateIdle, p.State())
}

func TestProcessor_UnusableProjection(t *testing.T) {
	c := uniformGrid()
	c.SetAttr(composite.WhereGroup, "projdef", "+proj=merc +lon_0=10")
	p := newProcessor(testOptions(), newSource(), composite.MemOpener{Container: c}, nil, nil)

	_, err := p.Refresh(context.Background())
	require.ErrorIs(t, err, processor.ErrNoProjection)
	assert.Equal(t, processor.StateIdle, p.State())
}

func TestProcessor_SingleFlightRefresh(t *testing.T) {
	src := newSource()
	src.entered = make(chan struct{})
	src.release = make(chan struct{})
	p := newProcessor(testOptions(), src, memOpener(), nil, nil)

	done := make(chan processor.Outcome)
	go func() {
		o, _ := p.Refresh(context.Background())
		done <- o
	}()
	<-src.entered

	outcome, err := p.Refresh(context.Background())
	require.ErrorIs(t, err, processor.ErrRefreshInFlight)
	assert.Equal(t, processor.OutcomeSkipped, outcome)

	close(src.release)
	assert.Equal(t, processor.OutcomeLoaded, <-done)
	assert.Equal(t, 1, src.fetches)
}

func TestProcessor_RenderWithoutData(t *testing.T) {
	opts := testOptions()
	opts.Markers = domain.DefaultMarkers()
	p := newProcessor(opts, newSource(), memOpener(), nil, nil)

	frame, err := p.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, processor.StateIdle, p.State())
	assert.False(t, frame.Event.HasRadar)
	assert.True(t, frame.Event.DataTimestamp.IsZero())
	assert.Contains(t, frame.Event.Markers, "Heimsheim")
	assert.Equal(t, 0, overlayPixels(frame.Image))
}

func TestProcessor_Background(t *testing.T) {
	opts := testOptions()
	opts.Style = "osm"
	bg := &fakeBackground{color: image.NewUniform(image.Black)}
	p := newProcessor(opts, newSource(), memOpener(), bg, nil)

	frame, err := p.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, bg.calls)
	assert.Positive(t, frame.Event.TilesFetched)
	assert.Zero(t, frame.Event.TilesFailed)
}

func TestProcessor_BackgroundFailureFallsBack(t *testing.T) {
	opts := testOptions()
	opts.Style = "esri_topo"
	bg := &fakeBackground{err: tiles.ErrNoTiles}
	p := newProcessor(opts, newSource(), memOpener(), bg, nil)

	frame, err := p.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 512, 512), frame.Image.Bounds())
	assert.Zero(t, frame.Event.TilesFetched)
}

func TestProcessor_ProceduralStyleSkipsTiles(t *testing.T) {
	bg := &fakeBackground{color: image.NewUniform(image.Black)}
	p := newProcessor(testOptions(), newSource(), memOpener(), bg, nil)

	_, err := p.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, bg.calls)
}

func TestProcessor_Publishes(t *testing.T) {
	pub := &recordingPublisher{}
	p := newProcessor(testOptions(), newSource(), memOpener(), nil, pub)

	frame, err := p.Render(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, frame.Event.ID, pub.events[0].ID)

	pub.err = errors.New("broker down")
	_, err = p.Render(context.Background())
	require.NoError(t, err, "publish failures do not fail the render")
}

func TestProcessor_Tick(t *testing.T) {
	src := newSource()
	pub := &recordingPublisher{}
	p := newProcessor(testOptions(), src, memOpener(), nil, pub)

	require.NoError(t, p.Tick(context.Background()))
	first := p.Latest()
	require.NotNil(t, first)
	assert.Equal(t, processor.StateRendered, p.State())

	require.NoError(t, p.Tick(context.Background()))
	assert.Same(t, first, p.Latest(), "unchanged data is not re-rendered")

	src.set(func(f *fakeSource) { f.fresh.LastModified = t2 })
	require.NoError(t, p.Tick(context.Background()))
	assert.NotSame(t, first, p.Latest())
	assert.Len(t, pub.events, 2)
}

func TestProcessor_TickRendersBackgroundWhenSourceDown(t *testing.T) {
	src := newSource()
	src.checkErr = errors.New("dns failure")
	p := newProcessor(testOptions(), src, memOpener(), nil, nil)

	err := p.Tick(context.Background())
	require.Error(t, err)
	require.NotNil(t, p.Latest())
	assert.False(t, p.Latest().Event.HasRadar)
}

func TestProcessor_Status(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t2)
	domain.SetClock(clock)
	t.Cleanup(func() { domain.SetClock(nil) })

	opts := testOptions()
	p := newProcessor(opts, newSource(), memOpener(), nil, nil)
	_, err := p.Refresh(context.Background())
	require.NoError(t, err)
	_, err = p.Render(context.Background())
	require.NoError(t, err)

	got := p.Status()
	want := processor.Status{
		State:        "rendered",
		Bounds:       opts.Bounds,
		Style:        "simple",
		Width:        512,
		Height:       512,
		LastModified: t1,
		LoadedAt:     t2,
		Origin:       "test",
		GridCells:    got.GridCells,
		Calibration:  &hxCalibration,
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(processor.Status{}, "Frame")); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
	assert.Positive(t, got.GridCells)
	require.NotNil(t, got.Frame)
	assert.True(t, t2.Equal(got.Frame.RenderedAt))
}
