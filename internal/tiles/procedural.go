package tiles

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/couchcryptid/storm-radar-overlay/internal/domain"
)

const (
	gridDivisions = 10
	terrainLevels = 15
	terrainAlpha  = 0.3
	gridAlpha     = 0.7
)

var (
	simpleColor  = hexColor("#f5f5f5")
	gridColor    = hexColor("#f8f8f8")
	terrainColor = hexColor("#e8f4e8")
	defaultColor = hexColor("#f0f0f0")
	lightGray    = hexColor("#d3d3d3")

	terrainBands = []color.NRGBA{hexColor("#d4e6d4"), hexColor("#e0f0e0"), hexColor("#ecf5ec")}
)

// Procedural draws an offline background for b at w×h pixels. Unknown styles,
// remote ones included, produce a neutral gray canvas.
func Procedural(style string, b domain.Bounds, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	switch style {
	case "simple":
		fill(img, simpleColor)
	case "grid":
		fill(img, gridColor)
		drawGrid(img, b)
	case "topographic":
		fill(img, terrainColor)
		drawTerrain(img)
	default:
		fill(img, defaultColor)
	}
	return img
}

func fill(img *image.RGBA, c color.Color) {
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// drawGrid draws evenly spaced lines of longitude and latitude, edges included.
func drawGrid(img *image.RGBA, b domain.Bounds) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if !b.Valid() || w == 0 || h == 0 {
		return
	}
	lonStep := b.Width() / gridDivisions
	latStep := b.Height() / gridDivisions
	for i := 0; i <= gridDivisions; i++ {
		lon := b.LonMin + float64(i)*lonStep
		x := int(math.Round((lon - b.LonMin) / b.Width() * float64(w-1)))
		for y := 0; y < h; y++ {
			blend(img, x, y, lightGray, gridAlpha)
		}
		lat := b.LatMin + float64(i)*latStep
		y := int(math.Round((b.LatMax - lat) / b.Height() * float64(h-1)))
		for x := 0; x < w; x++ {
			blend(img, x, y, lightGray, gridAlpha)
		}
	}
}

// drawTerrain shades pseudo-elevation bands over the canvas.
func drawTerrain(img *image.RGBA) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	for y := 0; y < h; y++ {
		v := 1 - float64(y)/math.Max(1, float64(h-1))
		for x := 0; x < w; x++ {
			u := float64(x) / math.Max(1, float64(w-1))
			z := TerrainHeight(u, v)
			level := int((z + 0.4) / 0.8 * terrainLevels)
			level = max(0, min(terrainLevels-1, level))
			blend(img, x, y, terrainBands[level%len(terrainBands)], terrainAlpha)
		}
	}
}

// TerrainHeight is the synthetic elevation at fractional position (u, v),
// where u runs west to east and v south to north. It ranges over [-0.4, 0.4].
func TerrainHeight(u, v float64) float64 {
	return math.Sin(u*4*math.Pi)*math.Cos(v*3*math.Pi)*0.3 + math.Sin(u*7*math.Pi)*0.1
}

func blend(img *image.RGBA, x, y int, c color.NRGBA, alpha float64) {
	if !(image.Point{X: x, Y: y}).In(img.Rect) {
		return
	}
	i := img.PixOffset(x, y)
	p := img.Pix[i : i+4 : i+4]
	p[0] = mix(p[0], c.R, alpha)
	p[1] = mix(p[1], c.G, alpha)
	p[2] = mix(p[2], c.B, alpha)
}

func mix(dst, src uint8, alpha float64) uint8 {
	return uint8(math.Round(float64(dst)*(1-alpha) + float64(src)*alpha))
}
