package render

import (
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/couchcryptid/storm-radar-overlay/internal/domain"
)

const (
	markerRadius = 5
	labelSize    = 8
	labelOffset  = 0.005 // degrees north of the marker
	labelPad     = 2
)

var (
	black      = color.NRGBA{A: 255}
	white      = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	labelBox   = color.NRGBA{A: 204}
	defaultDot = hex("#ff0000")
)

// labelFace lazily loads the bold Go font, falling back to the built-in
// bitmap face.
type labelFace struct {
	once sync.Once
	face font.Face
}

func (l *labelFace) get() font.Face {
	l.once.Do(func() {
		l.face = basicfont.Face7x13
		f, err := opentype.Parse(gobold.TTF)
		if err != nil {
			return
		}
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    labelSize,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return
		}
		l.face = face
	})
	return l.face
}

// drawMarkers draws every marker inside the exact viewport and returns the
// names drawn.
func drawMarkers(dst *image.RGBA, vp viewport, markers []domain.Marker, face font.Face) []string {
	drawn := []string{}
	for _, m := range markers {
		if !vp.b.Contains(m.Lon, m.Lat) {
			continue
		}
		fill, ok := parseColor(m.Color)
		if !ok {
			fill = defaultDot
		}
		cx, cy := vp.toPixel(m.Lon, m.Lat)
		drawDot(dst, cx, cy, fill)

		lx, ly := vp.toPixel(m.Lon, m.Lat+labelOffset)
		drawLabel(dst, m.Name, int(math.Round(lx)), int(math.Round(ly)), face)
		drawn = append(drawn, m.Name)
	}
	return drawn
}

// drawDot fills a circle with a one-pixel black rim.
func drawDot(dst *image.RGBA, cx, cy float64, fill color.NRGBA) {
	r := float64(markerRadius)
	for y := int(math.Floor(cy - r)); y <= int(math.Ceil(cy+r)); y++ {
		for x := int(math.Floor(cx - r)); x <= int(math.Ceil(cx+r)); x++ {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			switch {
			case d <= r-1:
				dst.Set(x, y, fill)
			case d <= r:
				dst.Set(x, y, black)
			}
		}
	}
}

// drawLabel writes text centered on x with its box bottom at y.
func drawLabel(dst *image.RGBA, text string, x, y int, face font.Face) {
	width := font.MeasureString(face, text).Ceil()
	metrics := face.Metrics()
	ascent, descent := metrics.Ascent.Ceil(), metrics.Descent.Ceil()

	box := image.Rect(
		x-width/2-labelPad,
		y-ascent-descent-2*labelPad,
		x-width/2+width+labelPad,
		y,
	)
	draw.Draw(dst, box, image.NewUniform(labelBox), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(white),
		Face: face,
		Dot:  fixed.P(x-width/2, y-labelPad-descent),
	}
	d.DrawString(text)
}
