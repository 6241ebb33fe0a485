package render

import (
	"image/color"
	"math"
	"sort"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// MaskThreshold hides smoothed values below it entirely.
const MaskThreshold = -30.0

// Boundaries are the dBZ class edges. Class i covers [Boundaries[i], Boundaries[i+1]).
var Boundaries = []float64{0, 1, 5.5, 10, 14.5, 19, 23.5, 28, 32.5, 37, 41.5, 46, 50.5, 55, 60, 65, 75, 85}

// Palette holds one color per class, from drizzle to extreme hail. The first
// class is fully transparent.
var Palette = []color.NRGBA{
	{R: 0x99, G: 0xff, B: 0xff, A: 0x00},
	hex("#99ffff"),
	hex("#33ffff"),
	hex("#00caca"),
	hex("#009934"),
	hex("#4dbf1a"),
	hex("#99cc00"),
	hex("#cce600"),
	hex("#ffff00"),
	hex("#ffc400"),
	hex("#ff8900"),
	hex("#ff0000"),
	hex("#b40000"),
	hex("#4848ff"),
	hex("#0000ca"),
	hex("#990099"),
	hex("#ff33ff"),
}

// Class returns the palette index for v. Values outside the boundaries clip
// to the first or last class.
func Class(v float64) int {
	i := sort.SearchFloat64s(Boundaries, v)
	// SearchFloat64s finds the first edge >= v; an exact hit opens that class.
	if i < len(Boundaries) && Boundaries[i] == v {
		i++
	}
	return max(0, min(len(Palette)-1, i-1))
}

// Classify maps a smoothed dBZ value to its color. The bool is false when the
// value is masked or falls in a transparent class.
func Classify(v float64) (color.NRGBA, bool) {
	if math.IsNaN(v) || v < MaskThreshold {
		return color.NRGBA{}, false
	}
	c := Palette[Class(v)]
	return c, c.A > 0
}

func hex(s string) color.NRGBA {
	c := drawing.ColorFromHex(s)
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// parseColor accepts hex codes and the basic CSS color names. Unknown names
// yield ok=false.
func parseColor(s string) (color.NRGBA, bool) {
	c := drawing.ParseColor(s)
	if c.IsZero() {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, true
}
