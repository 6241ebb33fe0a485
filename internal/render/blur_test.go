package render

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func constGrid(rows, cols int, v float64) []float64 {
	g := make([]float64, rows*cols)
	for i := range g {
		g[i] = v
	}
	return g
}

func TestGaussianKernel(t *testing.T) {
	for _, sigma := range []float64{0.5, 1, 1.5, 2, 3.3} {
		k := GaussianKernel(sigma)
		assert.Len(t, k, 2*int(3*sigma)+1)
		assert.InDelta(t, 1.0, floats.Sum(k), 1e-12)
		mid := len(k) / 2
		assert.Equal(t, floats.Max(k), k[mid])
		for i := range k {
			assert.InDelta(t, k[i], k[len(k)-1-i], 1e-15)
		}
	}
}

func TestGaussianBlur_PreservesShape(t *testing.T) {
	data := constGrid(17, 23, 12)
	out := GaussianBlur(data, 17, 23, 1.5)
	assert.Len(t, out, 17*23)
}

func TestGaussianBlur_ZeroSigmaIsIdentity(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	for _, sigma := range []float64{0, -1} {
		out := GaussianBlur(data, 2, 3, sigma)
		assert.Equal(t, data, out)
		out[0] = 99
		assert.Equal(t, 1.0, data[0], "result must not alias input")
	}
}

func TestGaussianBlur_ConstantInterior(t *testing.T) {
	rows, cols := 30, 30
	out := GaussianBlur(constGrid(rows, cols, 40), rows, cols, 1.5)

	assert.InDelta(t, 40, out[15*cols+15], 1e-9)
	assert.Less(t, out[0], 40.0, "zero padding darkens corners")
	assert.Greater(t, out[0], 0.0)
}

func TestGaussianBlur_ImpulseSpreadsSymmetrically(t *testing.T) {
	rows, cols := 11, 11
	data := make([]float64, rows*cols)
	data[5*cols+5] = 100

	out := GaussianBlur(data, rows, cols, 1)
	assert.InDelta(t, 100, floats.Sum(out), 1e-9, "mass is kept away from the edges")
	assert.InDelta(t, out[5*cols+4], out[5*cols+6], 1e-12)
	assert.InDelta(t, out[4*cols+5], out[6*cols+5], 1e-12)
	assert.InDelta(t, out[4*cols+5], out[5*cols+4], 1e-12)
	assert.Less(t, out[5*cols+5], 100.0)
}

func TestGaussianBlur_KernelWiderThanGrid(t *testing.T) {
	out := GaussianBlur([]float64{10, 10}, 1, 2, 3)
	require.Len(t, out, 2)
	for _, v := range out {
		assert.False(t, math.IsNaN(v))
		assert.Less(t, v, 10.0)
	}
}

func TestGaussianBlur_ShapeMismatchReturnsCopy(t *testing.T) {
	data := []float64{1, 2, 3}
	assert.Equal(t, data, GaussianBlur(data, 2, 2, 1.5))
}
