package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-radar-overlay/internal/adapter/dwd"
	"github.com/couchcryptid/storm-radar-overlay/internal/adapter/hdf5"
	"github.com/couchcryptid/storm-radar-overlay/internal/composite"
	"github.com/couchcryptid/storm-radar-overlay/internal/config"
	"github.com/couchcryptid/storm-radar-overlay/internal/domain"
	"github.com/couchcryptid/storm-radar-overlay/internal/observability"
	"github.com/couchcryptid/storm-radar-overlay/internal/processor"
)

const dwdProjDef = "+proj=stere +lat_0=90 +lat_ts=60 +lon_0=10 +a=6378137 +b=6356752.3142451802 +no_defs +x_0=543196.83521776402 +y_0=3622588.8619310018"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		BackgroundStyle:     "simple",
		ZoomLevel:           11,
		CenterLon:           8.862,
		CenterLat:           48.806,
		ImageWidth:          256,
		ImageHeight:         256,
		SmoothingSigma:      1.5,
		Markers:             domain.DefaultMarkers(),
		DataSource:          config.SourceRemote,
		RadarURL:            config.DefaultRadarURL,
		RadarTimeout:        time.Second,
		TileCacheDir:        filepath.Join(t.TempDir(), "tiles"),
		TileTimeout:         time.Second,
		TileWorkers:         2,
		TileMemoryCacheSize: 8,
		TileUserAgent:       "test",
		KafkaEnabled:        true,
		KafkaBrokers:        []string{"localhost:9092"},
		KafkaFrameTopic:     "radar-frames",
	}
}

func writeFixture(t *testing.T) string {
	t.Helper()
	data := make([]int64, 100*100)
	for i := range data {
		data[i] = 144
	}
	f := composite.Fixture{
		LLLon: 8.75, LLLat: 48.75, XScale: 250, YScale: 250, ProjDef: dwdProjDef,
		Calibration: composite.Calibration{Gain: 0.5, Offset: -32, Nodata: 255, Undetect: 0},
		Rows:        100, Cols: 100, Data: data,
	}
	b, err := json.Marshal(f)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "composite.json")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func TestSource(t *testing.T) {
	cfg := testConfig(t)

	src, opener := Source(cfg, discardLogger())
	assert.IsType(t, &dwd.Remote{}, src)
	assert.IsType(t, hdf5.Opener{}, opener)

	cfg.DataSource = config.SourceLocal
	cfg.LocalFile = "composite_hx_test.hd5"
	src, opener = Source(cfg, discardLogger())
	assert.IsType(t, &dwd.File{}, src)
	assert.IsType(t, hdf5.Opener{}, opener)

	cfg.LocalFile = "storm.JSON"
	_, opener = Source(cfg, discardLogger())
	assert.IsType(t, composite.FixtureOpener{}, opener)
}

func TestNew_RendersLocalFixture(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataSource = config.SourceLocal
	cfg.LocalFile = writeFixture(t)

	a, err := New(cfg, false, discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	assert.Nil(t, a.publisher, "publishing disabled by caller")

	require.NoError(t, a.Processor.Tick(context.Background()))
	frame := a.Processor.Latest()
	require.NotNil(t, frame)
	assert.True(t, frame.Event.HasRadar)
	assert.Equal(t, processor.StateRendered, a.Processor.State())
	assert.Equal(t, 256, frame.Image.Bounds().Dx())

	_, err = os.Stat(cfg.TileCacheDir)
	require.NoError(t, err, "tile cache directory should be created")
}

func TestNew_RejectsHDF5SourceWithoutSupport(t *testing.T) {
	if hdf5.Available {
		t.Skip("built with hdf5 support")
	}
	for _, local := range []bool{false, true} {
		cfg := testConfig(t)
		if local {
			cfg.DataSource = config.SourceLocal
			cfg.LocalFile = "composite_hx_test.hd5"
		}
		_, err := New(cfg, false, discardLogger(), observability.NewMetricsForTesting())
		require.ErrorIs(t, err, hdf5.ErrUnavailable, "source %s", cfg.DataSource)
		assert.Contains(t, err.Error(), cfg.DataSource)
	}
}

func TestNew_PublisherWhenEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataSource = config.SourceLocal
	cfg.LocalFile = writeFixture(t)

	a, err := New(cfg, true, discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, err)
	assert.NotNil(t, a.publisher)
	a.Close()
}
