package tiles

import (
	"math"

	"github.com/couchcryptid/storm-radar-overlay/internal/domain"
)

// Size is the edge length of a tile in pixels.
const Size = 256

// MaxLatitude is the northern limit of the Web-Mercator square. Latitudes
// beyond ±MaxLatitude are clamped before indexing.
const MaxLatitude = 85.05112877980659

// ZoomForSpan picks a tile zoom from the larger of the box's spans.
func ZoomForSpan(b domain.Bounds) int {
	span := b.Span()
	switch {
	case span > 1.0:
		return 8
	case span > 0.5:
		return 9
	case span > 0.25:
		return 10
	case span > 0.125:
		return 11
	default:
		return 12
	}
}

// LonLatToTile returns the index of the tile containing the point at zoom z.
func LonLatToTile(lon, lat float64, z int) (int, int) {
	n := math.Exp2(float64(z))
	lat = math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
	latRad := lat * math.Pi / 180

	fx := (lon + 180) / 360 * n
	fy := (1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * n

	// The epsilon keeps a tile's own corner from rounding into its neighbor.
	x := int(math.Floor(fx + 1e-9))
	y := int(math.Floor(fy + 1e-9))

	last := int(n) - 1
	return max(0, min(last, x)), max(0, min(last, y))
}

// TileToLonLat returns the north-west corner of tile (x, y) at zoom z.
// Fractional indices address points inside the tile.
func TileToLonLat(x, y float64, z int) (float64, float64) {
	n := math.Exp2(float64(z))
	lon := x/n*360 - 180
	lat := math.Atan(math.Sinh(math.Pi*(1-2*y/n))) * 180 / math.Pi
	return lon, lat
}

// LonLatToPixel returns the global pixel position of a point at zoom z.
func LonLatToPixel(lon, lat float64, z int) (float64, float64) {
	n := math.Exp2(float64(z))
	lat = math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
	latRad := lat * math.Pi / 180
	px := (lon + 180) / 360 * n * Size
	py := (1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * n * Size
	return px, py
}

// Range is an inclusive rectangle of tile indices at one zoom level.
type Range struct {
	Zoom       int
	MinX, MaxX int
	MinY, MaxY int
}

// RangeFor returns the tiles covering b at zoom z. Tile y grows southwards,
// so the south-west corner gives MaxY.
func RangeFor(b domain.Bounds, z int) Range {
	minX, maxY := LonLatToTile(b.LonMin, b.LatMin, z)
	maxX, minY := LonLatToTile(b.LonMax, b.LatMax, z)
	return Range{Zoom: z, MinX: minX, MaxX: maxX, MinY: minY, MaxY: maxY}
}

func (r Range) Cols() int  { return r.MaxX - r.MinX + 1 }
func (r Range) Rows() int  { return r.MaxY - r.MinY + 1 }
func (r Range) Count() int { return r.Cols() * r.Rows() }

// Extent is the geographic box covered by the whole tile rectangle.
func (r Range) Extent() domain.Bounds {
	lonMin, latMin := TileToLonLat(float64(r.MinX), float64(r.MaxY+1), r.Zoom)
	lonMax, latMax := TileToLonLat(float64(r.MaxX+1), float64(r.MinY), r.Zoom)
	return domain.Bounds{LonMin: lonMin, LonMax: lonMax, LatMin: latMin, LatMax: latMax}
}
