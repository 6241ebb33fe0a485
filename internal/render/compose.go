package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/couchcryptid/storm-radar-overlay/internal/domain"
	"github.com/couchcryptid/storm-radar-overlay/internal/tiles"
)

// OverlayAlpha is the opacity of the reflectivity layer.
const OverlayAlpha = 0.7

// viewport maps geographic coordinates linearly onto a w×h canvas.
type viewport struct {
	b    domain.Bounds
	w, h int
}

func (v viewport) toPixel(lon, lat float64) (float64, float64) {
	x := (lon - v.b.LonMin) / v.b.Width() * float64(v.w)
	y := (v.b.LatMax - lat) / v.b.Height() * float64(v.h)
	return x, y
}

// center returns the coordinates of pixel (x, y)'s center.
func (v viewport) center(x, y int) (float64, float64) {
	lon := v.b.LonMin + (float64(x)+0.5)/float64(v.w)*v.b.Width()
	lat := v.b.LatMax - (float64(y)+0.5)/float64(v.h)*v.b.Height()
	return lon, lat
}

// drawMosaic resamples the tile mosaic onto the canvas, locating every pixel
// through the exact Web-Mercator transform.
func drawMosaic(dst *image.RGBA, vp viewport, m *tiles.Mosaic) {
	src := m.Image
	for y := 0; y < vp.h; y++ {
		for x := 0; x < vp.w; x++ {
			lon, lat := vp.center(x, y)
			sx, sy := m.PixelAt(lon, lat)
			dst.SetRGBA(x, y, bilinearRGBA(src, sx-0.5, sy-0.5))
		}
	}
}

func bilinearRGBA(src *image.RGBA, x, y float64) color.RGBA {
	b := src.Bounds()
	x = math.Max(0, math.Min(float64(b.Dx()-1), x))
	y = math.Max(0, math.Min(float64(b.Dy()-1), y))
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, b.Dx()-1), min(y0+1, b.Dy()-1)
	fx, fy := x-float64(x0), y-float64(y0)

	p00 := src.RGBAAt(b.Min.X+x0, b.Min.Y+y0)
	p01 := src.RGBAAt(b.Min.X+x1, b.Min.Y+y0)
	p10 := src.RGBAAt(b.Min.X+x0, b.Min.Y+y1)
	p11 := src.RGBAAt(b.Min.X+x1, b.Min.Y+y1)
	lerp := func(a, b, c, d uint8) uint8 {
		top := float64(a)*(1-fx) + float64(b)*fx
		bottom := float64(c)*(1-fx) + float64(d)*fx
		return uint8(math.Round(top*(1-fy) + bottom*fy))
	}
	return color.RGBA{
		R: lerp(p00.R, p01.R, p10.R, p11.R),
		G: lerp(p00.G, p01.G, p10.G, p11.G),
		B: lerp(p00.B, p01.B, p10.B, p11.B),
		A: lerp(p00.A, p01.A, p10.A, p11.A),
	}
}

// drawOverlay composites the smoothed region over dst. The region image is
// stretched over its own extent with row 0 at the top.
func drawOverlay(dst *image.RGBA, vp viewport, region *Region, smoothed []float64) int {
	ext := region.Extent
	grid := &Region{Values: smoothed, Rows: region.Rows, Cols: region.Cols, Extent: ext}
	layer := image.NewNRGBA(dst.Bounds())
	alpha := uint8(math.Round(OverlayAlpha * 255))

	var painted int
	for y := 0; y < vp.h; y++ {
		for x := 0; x < vp.w; x++ {
			lon, lat := vp.center(x, y)
			if lon < ext.LonMin || lon > ext.LonMax || lat < ext.LatMin || lat > ext.LatMax {
				continue
			}
			gx := cellCoord(lon-ext.LonMin, ext.Width(), region.Cols)
			gy := cellCoord(ext.LatMax-lat, ext.Height(), region.Rows)
			c, ok := Classify(grid.Sample(gx, gy))
			if !ok {
				continue
			}
			c.A = uint8(uint16(c.A) * uint16(alpha) / 255)
			layer.SetNRGBA(x, y, c)
			painted++
		}
	}
	draw.Draw(dst, dst.Bounds(), layer, image.Point{}, draw.Over)
	return painted
}

// cellCoord converts an offset into an n-cell span to a fractional cell index
// measured between cell centers.
func cellCoord(offset, span float64, n int) float64 {
	if span <= 0 || n <= 1 {
		return 0
	}
	return offset/span*float64(n) - 0.5
}
