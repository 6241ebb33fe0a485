package projection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dwdProjDef = "+proj=stere +lat_0=90 +lat_ts=60 +lon_0=10 +a=6378137 +b=6356752.3142451802 +no_defs +x_0=543196.83521776402 +y_0=3622588.8619310018"

func TestParseProjDef_DWD(t *testing.T) {
	p, err := ParseProjDef(dwdProjDef)
	require.NoError(t, err)

	assert.Equal(t, "stere", p.Proj)
	assert.InDelta(t, 90.0, p.Lat0, 0)
	assert.InDelta(t, 60.0, p.LatTS, 0)
	assert.InDelta(t, 10.0, p.Lon0, 0)
	assert.InDelta(t, 6378137.0, p.A, 0)
	assert.InDelta(t, 6356752.3142451802, p.B, 1e-9)
	assert.InDelta(t, 543196.83521776402, p.X0, 1e-9)
	assert.InDelta(t, 3622588.8619310018, p.Y0, 1e-9)
}

func TestParseProjDef_EllipsoidDefaults(t *testing.T) {
	p, err := ParseProjDef("+proj=stere +lat_0=90 +ellps=WGS84")
	require.NoError(t, err)
	assert.InDelta(t, 6378137.0, p.A, 0)
	assert.InDelta(t, 6356752.314245, p.B, 1e-5)
	assert.InDelta(t, 90.0, p.LatTS, 0, "lat_ts defaults to lat_0")

	p, err = ParseProjDef("+proj=stere +lat_0=-90 +R=6370040")
	require.NoError(t, err)
	assert.InDelta(t, p.A, p.B, 0)
}

func TestParseProjDef_UPS(t *testing.T) {
	north, err := ParseProjDef("+proj=ups +ellps=WGS84")
	require.NoError(t, err)
	assert.InDelta(t, 90.0, north.Lat0, 0)
	assert.InDelta(t, 90.0, north.LatTS, 0)
	assert.InDelta(t, 0.994, north.K0, 0)
	assert.InDelta(t, 2000000.0, north.X0, 0)
	assert.InDelta(t, 2000000.0, north.Y0, 0)

	south, err := ParseProjDef("+proj=ups +south +ellps=WGS84 +no_defs")
	require.NoError(t, err)
	assert.InDelta(t, -90.0, south.Lat0, 0)
	assert.InDelta(t, -90.0, south.LatTS, 0)

	// The pole sits at the false origin.
	s, err := New("+proj=ups +south +ellps=WGS84")
	require.NoError(t, err)
	x, y, err := s.Forward(0, -90)
	require.NoError(t, err)
	assert.InDelta(t, 2000000.0, x, 1e-6)
	assert.InDelta(t, 2000000.0, y, 1e-6)
}

func TestParseProjDef_Errors(t *testing.T) {
	tests := map[string]struct {
		def  string
		want error
	}{
		"empty":        {"", ErrInvalidDefinition},
		"no proj":      {"+lat_0=90", ErrInvalidDefinition},
		"mercator":     {"+proj=merc +lon_0=0", ErrUnsupported},
		"oblique":      {"+proj=stere +lat_0=45", ErrUnsupported},
		"double stere": {"+proj=sterea +lat_0=90 +lon_0=10", ErrUnsupported},
		"bad number":   {"+proj=stere +lat_0=north", ErrInvalidDefinition},
		"feet":         {"+proj=stere +lat_0=90 +units=ft", ErrUnsupported},
		"inverted axe": {"+proj=stere +lat_0=90 +a=1 +b=2", ErrInvalidDefinition},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseProjDef(tt.def)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestForward_CentralMeridianMapsToFalseEasting(t *testing.T) {
	s, err := New(dwdProjDef)
	require.NoError(t, err)

	x, _, err := s.Forward(10, 51)
	require.NoError(t, err)
	assert.InDelta(t, s.Params().X0, x, 1e-6)

	// North pole maps to the false origin.
	x, y, err := s.Forward(10, 90)
	require.NoError(t, err)
	assert.InDelta(t, s.Params().X0, x, 1e-6)
	assert.InDelta(t, s.Params().Y0, y, 1e-6)
}

func TestForward_TrueScaleAtLatTS(t *testing.T) {
	s, err := New(dwdProjDef)
	require.NoError(t, err)

	const dLat = 0.001
	_, y1, err := s.Forward(10, 60)
	require.NoError(t, err)
	_, y2, err := s.Forward(10, 60+dLat)
	require.NoError(t, err)

	// Meridian arc length on the ellipsoid for dLat at 60°.
	p := s.Params()
	e2 := 1 - (p.B*p.B)/(p.A*p.A)
	sinPhi := math.Sin(60 * math.Pi / 180)
	m := p.A * (1 - e2) / math.Pow(1-e2*sinPhi*sinPhi, 1.5)
	arc := m * dLat * math.Pi / 180

	assert.InEpsilon(t, arc, math.Abs(y2-y1), 1e-4, "scale factor should be 1 at lat_ts")
}

func TestForward_SphereMatchesClosedForm(t *testing.T) {
	s, err := New("+proj=stere +lat_0=90 +lat_ts=90 +lon_0=0 +R=6371000")
	require.NoError(t, err)

	lat := 50.0
	x, y, err := s.Forward(0, lat)
	require.NoError(t, err)

	want := 2 * 6371000 * math.Tan(math.Pi/4-lat*math.Pi/360)
	assert.InDelta(t, 0, x, 1e-6)
	assert.InDelta(t, -want, y, 1e-6)
}

func TestRoundTrip(t *testing.T) {
	defs := map[string]string{
		"dwd":   dwdProjDef,
		"south": "+proj=stere +lat_0=-90 +lat_ts=-71 +lon_0=0 +ellps=WGS84",
		"ups":   "+proj=ups +ellps=WGS84",
		"ups_s": "+proj=ups +south +ellps=WGS84",
	}
	for name, def := range defs {
		t.Run(name, func(t *testing.T) {
			s, err := New(def)
			require.NoError(t, err)

			sign := 1.0
			if s.Params().Lat0 < 0 {
				sign = -1
			}
			for lon := -170.0; lon <= 170; lon += 17 {
				for lat := 40.0; lat < 89.5; lat += 7 {
					x, y, err := s.Forward(lon, sign*lat)
					require.NoError(t, err)

					gotLon, gotLat, err := s.Inverse(x, y)
					require.NoError(t, err)
					assert.InDelta(t, lon, gotLon, 1e-9)
					assert.InDelta(t, sign*lat, gotLat, 1e-9)
				}
			}
		})
	}
}

func TestForward_OppositePole(t *testing.T) {
	s, err := New(dwdProjDef)
	require.NoError(t, err)

	_, _, err = s.Forward(10, -90)
	require.ErrorIs(t, err, ErrOutOfDomain)

	_, _, err = s.Forward(10, 91)
	require.ErrorIs(t, err, ErrOutOfDomain)
}
