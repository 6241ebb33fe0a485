package render

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/couchcryptid/storm-radar-overlay/internal/domain"
)

const (
	noEcho     = -50.0
	noiseFloor = -10.0
)

// ErrShape is returned when the value and coordinate slices disagree.
var ErrShape = errors.New("radar grid shape mismatch")

// Radar is a calibrated reflectivity grid with a coordinate per cell. Row 0
// is the northernmost row.
type Radar struct {
	Values []float64
	Lons   []float64
	Lats   []float64
	Rows   int
	Cols   int
}

// NewRadar checks that all slices hold rows*cols cells.
func NewRadar(values, lons, lats []float64, rows, cols int) (*Radar, error) {
	n := rows * cols
	if rows <= 0 || cols <= 0 || len(values) != n || len(lons) != n || len(lats) != n {
		return nil, ErrShape
	}
	return &Radar{Values: values, Lons: lons, Lats: lats, Rows: rows, Cols: cols}, nil
}

// Region is the part of a Radar inside a viewport, cleaned and ready to smooth.
type Region struct {
	Values []float64
	Rows   int
	Cols   int
	Extent domain.Bounds
}

// Select returns the bounding box of all cells whose coordinates fall inside
// b. The bool is false when no cell does.
func (r *Radar) Select(b domain.Bounds) (*Region, bool) {
	rowMin, rowMax, colMin, colMax := r.Rows, -1, r.Cols, -1
	for row := 0; row < r.Rows; row++ {
		for col := 0; col < r.Cols; col++ {
			i := row*r.Cols + col
			if !b.Contains(r.Lons[i], r.Lats[i]) {
				continue
			}
			rowMin, rowMax = min(rowMin, row), max(rowMax, row)
			colMin, colMax = min(colMin, col), max(colMax, col)
		}
	}
	if rowMax < 0 {
		return nil, false
	}

	rows, cols := rowMax-rowMin+1, colMax-colMin+1
	values := make([]float64, 0, rows*cols)
	lons := make([]float64, 0, rows*cols)
	lats := make([]float64, 0, rows*cols)
	for row := rowMin; row <= rowMax; row++ {
		start := row*r.Cols + colMin
		values = append(values, r.Values[start:start+cols]...)
		lons = append(lons, r.Lons[start:start+cols]...)
		lats = append(lats, r.Lats[start:start+cols]...)
	}
	Clean(values)

	return &Region{
		Values: values,
		Rows:   rows,
		Cols:   cols,
		Extent: domain.Bounds{
			LonMin: floats.Min(lons),
			LonMax: floats.Max(lons),
			LatMin: floats.Min(lats),
			LatMax: floats.Max(lats),
		},
	}, true
}

// Clean replaces missing values and echoes below the noise floor with a
// no-echo level, in place.
func Clean(values []float64) {
	for i, v := range values {
		if math.IsNaN(v) || v < noiseFloor {
			values[i] = noEcho
		}
	}
}

// Sample interpolates bilinearly between cell centers. (x, y) are fractional
// cell coordinates; positions beyond the outer centers take the edge value.
func (g *Region) Sample(x, y float64) float64 {
	x = math.Max(0, math.Min(float64(g.Cols-1), x))
	y = math.Max(0, math.Min(float64(g.Rows-1), y))
	c0, r0 := int(x), int(y)
	c1, r1 := min(c0+1, g.Cols-1), min(r0+1, g.Rows-1)
	fx, fy := x-float64(c0), y-float64(r0)

	v00 := g.Values[r0*g.Cols+c0]
	v01 := g.Values[r0*g.Cols+c1]
	v10 := g.Values[r1*g.Cols+c0]
	v11 := g.Values[r1*g.Cols+c1]
	top := v00*(1-fx) + v01*fx
	bottom := v10*(1-fx) + v11*fx
	return top*(1-fy) + bottom*fy
}
