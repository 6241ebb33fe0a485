package domain

import (
	"fmt"
	"math"
)

// Zoom limits for the output viewport.
const (
	MinZoom = 8
	MaxZoom = 12
)

const (
	kmPerTileAtZoom10 = 39.0
	tilePixels        = 256.0
	kmPerDegree       = 111.0
)

// Bounds is an axis-aligned geographic rectangle in decimal degrees.
type Bounds struct {
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
}

// ClampZoom limits z to [MinZoom, MaxZoom].
func ClampZoom(z int) int {
	return max(MinZoom, min(MaxZoom, z))
}

// ComputeBounds derives the viewport rectangle for a center point, zoom level,
// and output size in pixels. See the package documentation for the formula.
func ComputeBounds(centerLon, centerLat float64, zoom, width, height int) Bounds {
	zoom = ClampZoom(zoom)
	cosLat := math.Cos(centerLat * math.Pi / 180)

	kmPerTile := kmPerTileAtZoom10 * cosLat
	scale := math.Pow(2, float64(10-zoom))
	kmPerPixel := kmPerTile * scale / tilePixels

	halfWidth := (float64(width) * kmPerPixel / 2) / (kmPerDegree * cosLat)
	halfHeight := (float64(height) * kmPerPixel / 2) / kmPerDegree

	return Bounds{
		LonMin: centerLon - halfWidth,
		LonMax: centerLon + halfWidth,
		LatMin: centerLat - halfHeight,
		LatMax: centerLat + halfHeight,
	}
}

// Contains reports whether the point lies inside b. Edges are inclusive.
func (b Bounds) Contains(lon, lat float64) bool {
	return lon >= b.LonMin && lon <= b.LonMax && lat >= b.LatMin && lat <= b.LatMax
}

// Expand grows b by deg on every side.
func (b Bounds) Expand(deg float64) Bounds {
	return Bounds{
		LonMin: b.LonMin - deg,
		LonMax: b.LonMax + deg,
		LatMin: b.LatMin - deg,
		LatMax: b.LatMax + deg,
	}
}

// Width is the longitude span in degrees.
func (b Bounds) Width() float64 { return b.LonMax - b.LonMin }

// Height is the latitude span in degrees.
func (b Bounds) Height() float64 { return b.LatMax - b.LatMin }

// Span is the larger of the longitude and latitude spans.
func (b Bounds) Span() float64 {
	return math.Max(b.Width(), b.Height())
}

// Valid reports whether b has a positive area and finite edges.
func (b Bounds) Valid() bool {
	for _, v := range []float64{b.LonMin, b.LonMax, b.LatMin, b.LatMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.LonMax > b.LonMin && b.LatMax > b.LatMin
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%.4f,%.4f]x[%.4f,%.4f]", b.LonMin, b.LonMax, b.LatMin, b.LatMax)
}
