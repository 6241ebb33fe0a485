package tiles

import (
	"image"
	"image/color"

	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/draw"
)

var fallbackColor = hexColor("#e8f4e8")

// FallbackTile is the flat tile drawn in place of a tile that failed to load.
func FallbackTile() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Size, Size))
	draw.Draw(img, img.Bounds(), image.NewUniform(fallbackColor), image.Point{}, draw.Src)
	return img
}

// Stitch places grid[row][col] at (col*tileSize, row*tileSize). Nil cells are
// filled with the fallback tile. Tiles larger than tileSize are cropped.
func Stitch(grid [][]image.Image, tileSize int) *image.RGBA {
	rows := len(grid)
	cols := 0
	if rows > 0 {
		cols = len(grid[0])
	}
	out := image.NewRGBA(image.Rect(0, 0, cols*tileSize, rows*tileSize))
	for r, row := range grid {
		for c, tile := range row {
			dst := image.Rect(c*tileSize, r*tileSize, (c+1)*tileSize, (r+1)*tileSize)
			if tile == nil {
				draw.Draw(out, dst, image.NewUniform(fallbackColor), image.Point{}, draw.Src)
				continue
			}
			draw.Draw(out, dst, tile, tile.Bounds().Min, draw.Src)
		}
	}
	return out
}

func hexColor(hex string) color.NRGBA {
	c := drawing.ColorFromHex(hex)
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}
