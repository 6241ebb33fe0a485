package tiles

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const esriBase = "https://services.arcgisonline.com/ArcGIS/rest/services/"

// Style describes a background. Remote styles have a URL template with {z},
// {x}, and {y} placeholders; procedural styles are drawn locally.
type Style struct {
	Name        string
	URLTemplate string
}

// Remote reports whether the style is served by a tile server.
func (s Style) Remote() bool { return s.URLTemplate != "" }

// URL expands the template for one tile.
func (s Style) URL(z, x, y int) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(z),
		"{x}", strconv.Itoa(x),
		"{y}", strconv.Itoa(y),
	)
	return r.Replace(s.URLTemplate)
}

// Known background styles. Esri services address tiles as {z}/{y}/{x}.
var styles = map[string]Style{
	"osm":            {Name: "osm", URLTemplate: "https://tile.openstreetmap.org/{z}/{x}/{y}.png"},
	"esri_satellite": {Name: "esri_satellite", URLTemplate: esriBase + "World_Imagery/MapServer/tile/{z}/{y}/{x}"},
	"esri_topo":      {Name: "esri_topo", URLTemplate: esriBase + "World_Topo_Map/MapServer/tile/{z}/{y}/{x}"},
	"esri_street":    {Name: "esri_street", URLTemplate: esriBase + "World_Street_Map/MapServer/tile/{z}/{y}/{x}"},
	"simple":         {Name: "simple"},
	"grid":           {Name: "grid"},
	"topographic":    {Name: "topographic"},
}

// LookupStyle returns the named style.
func LookupStyle(name string) (Style, error) {
	s, ok := styles[name]
	if !ok {
		return Style{}, fmt.Errorf("unknown background style %q", name)
	}
	return s, nil
}

// StyleNames lists every known style, sorted.
func StyleNames() []string {
	names := make([]string, 0, len(styles))
	for n := range styles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
