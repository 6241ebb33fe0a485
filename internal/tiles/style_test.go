package tiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStyle_URL(t *testing.T) {
	osm, err := LookupStyle("osm")
	require.NoError(t, err)
	assert.Equal(t, "https://tile.openstreetmap.org/10/530/350.png", osm.URL(10, 530, 350))

	topo, err := LookupStyle("esri_topo")
	require.NoError(t, err)
	assert.Equal(t,
		"https://services.arcgisonline.com/ArcGIS/rest/services/World_Topo_Map/MapServer/tile/10/350/530",
		topo.URL(10, 530, 350))
}

func TestLookupStyle(t *testing.T) {
	for _, name := range []string{"osm", "esri_satellite", "esri_topo", "esri_street"} {
		s, err := LookupStyle(name)
		require.NoError(t, err)
		assert.True(t, s.Remote(), name)
	}
	for _, name := range []string{"simple", "grid", "topographic"} {
		s, err := LookupStyle(name)
		require.NoError(t, err)
		assert.False(t, s.Remote(), name)
	}

	_, err := LookupStyle("watercolor")
	require.Error(t, err)
	assert.Len(t, StyleNames(), 7)
}

func TestKey_Filename(t *testing.T) {
	k := Key{Style: "esri_satellite", Z: 11, X: 1074, Y: 705}
	assert.Equal(t, "esri_satellite_11_1074_705.png", k.Filename())
	assert.Equal(t, "esri_satellite/11/1074/705", k.String())
}
