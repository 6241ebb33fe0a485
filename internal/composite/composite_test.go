package composite

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/couchcryptid/storm-radar-overlay/internal/domain"
	"github.com/couchcryptid/storm-radar-overlay/internal/projection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dwdProjDef = "+proj=stere +lat_0=90 +lat_ts=60 +lon_0=10 +a=6378137 +b=6356752.3142451802 +no_defs +x_0=543196.83521776402 +y_0=3622588.8619310018"

var hxCalibration = Calibration{Gain: 0.5, Offset: -32, Nodata: 255, Undetect: 0}

// smallGrid is a 25 km square near Heimsheim, well inside the default viewport.
func smallGrid() projection.Grid {
	return projection.Grid{LLLon: 8.75, LLLat: 48.75, XScale: 250, YScale: 250, Rows: 100, Cols: 100}
}

func syntheticData(rows, cols int) []int64 {
	data := make([]int64, rows*cols)
	for i := range data {
		data[i] = int64(i % 256)
	}
	return data
}

func defaultAOI() domain.Bounds {
	return domain.ComputeBounds(8.862, 48.806, 11, 512, 512)
}

func TestDecode_SyntheticGrid(t *testing.T) {
	g := smallGrid()
	data := syntheticData(g.Rows, g.Cols)
	c := NewGridContainer(g, dwdProjDef, hxCalibration, data)

	comp, err := Decode(context.Background(), c, domain.ComputeBounds(8.95, 48.85, 8, 512, 512))
	require.NoError(t, err)
	require.NotNil(t, comp.Projection)
	require.Equal(t, projection.FullWindow(g), comp.Window, "large AOI should cover the whole grid")
	require.Len(t, comp.Scaled, len(data))

	for i, raw := range data {
		got := comp.Scaled[i]
		switch raw {
		case 0:
			assert.InDelta(t, UndetectSentinel, got, 0, "cell %d", i)
		case 255:
			assert.True(t, IsMissing(got), "cell %d", i)
		default:
			assert.InDelta(t, float64(raw)*0.5-32, got, 1e-9, "cell %d", i)
		}
	}
}

func TestDecode_ReadsOnlyCroppedWindow(t *testing.T) {
	g := projection.Grid{LLLon: 7.0, LLLat: 47.0, XScale: 1000, YScale: 1000, Rows: 400, Cols: 400}
	data := syntheticData(g.Rows, g.Cols)
	c := NewGridContainer(g, dwdProjDef, hxCalibration, data)

	comp, err := Decode(context.Background(), c, defaultAOI())
	require.NoError(t, err)

	w := comp.Window
	require.True(t, w.Within(g))
	assert.Less(t, w.Size(), g.Rows*g.Cols)
	require.Len(t, comp.Raw, w.Size())

	// Raw cells are window-relative.
	assert.Equal(t, data[w.RowStart*g.Cols+w.ColStart], comp.Raw[0])
	last := (w.RowEnd-1)*g.Cols + w.ColEnd - 1
	assert.Equal(t, data[last], comp.Raw[len(comp.Raw)-1])
}

func TestDecode_DefaultScale(t *testing.T) {
	g := smallGrid()
	c := NewGridContainer(g, dwdProjDef, hxCalibration, syntheticData(g.Rows, g.Cols))
	delete(c.Attrs[WhereGroup], "xscale")
	delete(c.Attrs[WhereGroup], "yscale")

	comp, err := Decode(context.Background(), c, defaultAOI())
	require.NoError(t, err)
	assert.InDelta(t, DefaultScale, comp.Header.Grid.XScale, 0)
	assert.InDelta(t, DefaultScale, comp.Header.Grid.YScale, 0)
}

func TestDecode_MissingRequiredAttributes(t *testing.T) {
	required := map[string][]string{
		WhereGroup: {"LL_lon", "LL_lat", "projdef"},
		WhatGroup:  {"gain", "offset", "nodata", "undetect"},
	}
	for group, names := range required {
		for _, name := range names {
			t.Run(name, func(t *testing.T) {
				g := smallGrid()
				c := NewGridContainer(g, dwdProjDef, hxCalibration, syntheticData(g.Rows, g.Cols))
				delete(c.Attrs[group], name)

				_, err := Decode(context.Background(), c, defaultAOI())
				require.ErrorIs(t, err, ErrMalformed)
				assert.Contains(t, err.Error(), name)
			})
		}
	}
}

func TestDecode_MissingDataset(t *testing.T) {
	g := smallGrid()
	c := NewGridContainer(g, dwdProjDef, hxCalibration, nil)
	delete(c.Datasets, DataPath)

	_, err := Decode(context.Background(), c, defaultAOI())
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecode_TruncatedPayload(t *testing.T) {
	g := smallGrid()
	data := syntheticData(g.Rows, g.Cols)[:g.Rows*g.Cols/2]
	c := NewGridContainer(g, dwdProjDef, hxCalibration, data)

	_, err := Decode(context.Background(), c, domain.ComputeBounds(8.95, 48.85, 8, 512, 512))
	require.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "truncated")
}

func TestDecode_BadProjectionFallsBackToFullGrid(t *testing.T) {
	g := smallGrid()
	c := NewGridContainer(g, "+proj=lcc +lat_1=48", hxCalibration, syntheticData(g.Rows, g.Cols))

	comp, err := Decode(context.Background(), c, defaultAOI())
	require.NoError(t, err)
	assert.Nil(t, comp.Projection)
	require.ErrorIs(t, comp.ProjectionErr, projection.ErrUnsupported)
	assert.Equal(t, projection.FullWindow(g), comp.Window)
}

func TestDecode_CanceledContext(t *testing.T) {
	g := smallGrid()
	c := NewGridContainer(g, dwdProjDef, hxCalibration, syntheticData(g.Rows, g.Cols))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Decode(ctx, c, defaultAOI())
	require.ErrorIs(t, err, context.Canceled)
}

func TestDecodeBytes(t *testing.T) {
	g := smallGrid()
	c := NewGridContainer(g, dwdProjDef, hxCalibration, syntheticData(g.Rows, g.Cols))

	_, err := DecodeBytes(context.Background(), MemOpener{Container: c}, nil, defaultAOI())
	require.ErrorIs(t, err, ErrEmptyPayload)

	_, err = DecodeBytes(context.Background(), MemOpener{Err: errors.New("bad magic")}, []byte{1}, defaultAOI())
	require.ErrorIs(t, err, ErrMalformed)

	comp, err := DecodeBytes(context.Background(), MemOpener{Container: c}, []byte{1}, defaultAOI())
	require.NoError(t, err)
	assert.NotEmpty(t, comp.Scaled)
	assert.True(t, c.Closed(), "container should be closed after decoding")
}

func TestCalibrate(t *testing.T) {
	got := Calibrate([]int64{0, 1, 64, 254, 255}, hxCalibration)

	assert.InDelta(t, UndetectSentinel, got[0], 0)
	assert.InDelta(t, -31.5, got[1], 1e-12)
	assert.InDelta(t, 0.0, got[2], 1e-12)
	assert.InDelta(t, 95.0, got[3], 1e-12)
	assert.True(t, math.IsNaN(got[4]))
}
