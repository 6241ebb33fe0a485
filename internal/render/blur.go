package render

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// GaussianBlur smooths a row-major grid with a separable Gaussian kernel of
// radius int(3σ), first along rows and then along columns. Each pass keeps
// the input length and treats cells beyond the edge as zero. For σ <= 0 the
// result is a copy of data.
func GaussianBlur(data []float64, rows, cols int, sigma float64) []float64 {
	out := slices.Clone(data)
	if sigma <= 0 || rows <= 0 || cols <= 0 || len(data) != rows*cols {
		return out
	}
	kernel := GaussianKernel(sigma)

	tmp := make([]float64, len(data))
	for r := 0; r < rows; r++ {
		convolveSame(data[r*cols:(r+1)*cols], kernel, tmp[r*cols:(r+1)*cols])
	}

	col := make([]float64, rows)
	res := make([]float64, rows)
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			col[r] = tmp[r*cols+c]
		}
		convolveSame(col, kernel, res)
		for r := 0; r < rows; r++ {
			out[r*cols+c] = res[r]
		}
	}
	return out
}

// GaussianKernel returns the normalized 1-D kernel for sigma.
func GaussianKernel(sigma float64) []float64 {
	radius := int(3 * sigma)
	k := make([]float64, 2*radius+1)
	for i := range k {
		x := float64(i - radius)
		k[i] = math.Exp(-(x * x) / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(k), k)
	return k
}

// convolveSame writes the centered part of the full convolution of in with
// the symmetric kernel k into out, which has len(in).
func convolveSame(in, k, out []float64) {
	radius := len(k) / 2
	n := len(in)
	for i := 0; i < n; i++ {
		var sum float64
		lo := max(0, i-radius)
		hi := min(n-1, i+radius)
		for j := lo; j <= hi; j++ {
			sum += in[j] * k[j-i+radius]
		}
		out[i] = sum
	}
}
