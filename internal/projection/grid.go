package projection

import (
	"context"
	"fmt"
	"math"

	"github.com/couchcryptid/storm-radar-overlay/internal/domain"
)

const (
	// cropBuffer widens the area of interest before it is mapped to pixels.
	cropBuffer = 0.1
	// fallbackHalf is half the edge of the window used when the crop collapses.
	fallbackHalf = 100
)

// Grid georeferences a full composite grid: its lower-left geographic anchor,
// pixel size in projected meters, and dimensions.
type Grid struct {
	LLLon  float64
	LLLat  float64
	XScale float64
	YScale float64
	Rows   int
	Cols   int
}

// Window is a half-open row/column range [RowStart,RowEnd) × [ColStart,ColEnd)
// into a full grid.
type Window struct {
	RowStart int `json:"row_start"`
	RowEnd   int `json:"row_end"`
	ColStart int `json:"col_start"`
	ColEnd   int `json:"col_end"`
}

// FullWindow covers the whole grid.
func FullWindow(g Grid) Window {
	return Window{RowStart: 0, RowEnd: g.Rows, ColStart: 0, ColEnd: g.Cols}
}

func (w Window) Rows() int   { return w.RowEnd - w.RowStart }
func (w Window) Cols() int   { return w.ColEnd - w.ColStart }
func (w Window) Size() int   { return w.Rows() * w.Cols() }
func (w Window) Empty() bool { return w.Rows() <= 0 || w.Cols() <= 0 }
func (w Window) Within(g Grid) bool {
	return w.RowStart >= 0 && w.ColStart >= 0 && w.RowEnd <= g.Rows && w.ColEnd <= g.Cols && !w.Empty()
}

// Origin returns the projected coordinate of the grid's lower-left anchor.
func (g Grid) Origin(p Projection) (float64, float64, error) {
	return p.Forward(g.LLLon, g.LLLat)
}

// PixelCenter returns the projected center of a full-grid cell. Row 0 is the
// northern edge.
func (g Grid) PixelCenter(originX, originY float64, row, col int) (float64, float64) {
	x := originX + (float64(col)+0.5)*g.XScale
	y := originY + (float64(g.Rows-1-row)+0.5)*g.YScale
	return x, y
}

// CropWindow maps the area of interest, widened by 0.1°, onto the grid and
// returns the covering pixel window. A window that collapses after clamping is
// replaced by a fixed window around the grid center. If any corner cannot be
// projected the full grid is returned.
func CropWindow(p Projection, g Grid, aoi domain.Bounds) Window {
	if g.Rows <= 0 || g.Cols <= 0 {
		return Window{}
	}
	full := FullWindow(g)
	if p == nil || g.XScale <= 0 || g.YScale <= 0 {
		return full
	}

	ox, oy, err := g.Origin(p)
	if err != nil {
		return full
	}

	buf := aoi.Expand(cropBuffer)
	corners := [4][2]float64{
		{buf.LonMin, buf.LatMin},
		{buf.LonMax, buf.LatMin},
		{buf.LonMin, buf.LatMax},
		{buf.LonMax, buf.LatMax},
	}

	xMin, yMin := math.Inf(1), math.Inf(1)
	xMax, yMax := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		x, y, err := p.Forward(c[0], c[1])
		if err != nil {
			return full
		}
		xMin, xMax = math.Min(xMin, x), math.Max(xMax, x)
		yMin, yMax = math.Min(yMin, y), math.Max(yMax, y)
	}

	rows := float64(g.Rows)
	lastCol, lastRow := float64(g.Cols-1), rows-1
	// Clamp before truncating so far-off corners cannot overflow int.
	colMin := int(clamp((xMin-ox)/g.XScale-0.5, 0, lastCol))
	colMax := int(clamp((xMax-ox)/g.XScale+0.5, 0, lastCol))
	rowMin := int(clamp(rows-1-(yMax-oy)/g.YScale+0.5, 0, lastRow))
	rowMax := int(clamp(rows-1-(yMin-oy)/g.YScale+0.5, 0, lastRow))

	if colMax <= colMin || rowMax <= rowMin {
		return FallbackWindow(g)
	}
	return Window{RowStart: rowMin, RowEnd: rowMax + 1, ColStart: colMin, ColEnd: colMax + 1}
}

// FallbackWindow is the fixed window around the grid center used when the
// area of interest does not overlap the grid.
func FallbackWindow(g Grid) Window {
	cr, cc := g.Rows/2, g.Cols/2
	return Window{
		RowStart: max(0, cr-fallbackHalf),
		RowEnd:   min(g.Rows-1, cr+fallbackHalf) + 1,
		ColStart: max(0, cc-fallbackHalf),
		ColEnd:   min(g.Cols-1, cc+fallbackHalf) + 1,
	}
}

// Field holds the geographic coordinate of every cell in a window, row-major.
type Field struct {
	Window Window
	Lons   []float64
	Lats   []float64
}

// At returns the coordinate of window-relative cell (r, c).
func (f *Field) At(r, c int) (float64, float64) {
	i := r*f.Window.Cols() + c
	return f.Lons[i], f.Lats[i]
}

// BuildField inverse-projects the center of every cell in w. Only the window is
// transformed, never the full grid.
func BuildField(ctx context.Context, p Projection, g Grid, w Window) (*Field, error) {
	if w.Empty() || !w.Within(g) {
		return nil, fmt.Errorf("build field: window %+v outside %dx%d grid", w, g.Rows, g.Cols)
	}
	ox, oy, err := g.Origin(p)
	if err != nil {
		return nil, fmt.Errorf("build field: origin: %w", err)
	}

	n := w.Size()
	f := &Field{Window: w, Lons: make([]float64, n), Lats: make([]float64, n)}

	i := 0
	for row := w.RowStart; row < w.RowEnd; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for col := w.ColStart; col < w.ColEnd; col++ {
			x, y := g.PixelCenter(ox, oy, row, col)
			lon, lat, err := p.Inverse(x, y)
			if err != nil {
				return nil, fmt.Errorf("build field: cell (%d,%d): %w", row, col, err)
			}
			f.Lons[i] = clamp(lon, -180, 180)
			f.Lats[i] = clamp(lat, -90, 90)
			i++
		}
	}
	return f, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
