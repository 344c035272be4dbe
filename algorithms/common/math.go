package common

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical helpers shared by the spectral and harmonic packages,
// backed by gonum.

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// StandardDeviation calculates the population standard deviation
func StandardDeviation(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	_, std := stat.PopMeanStdDev(data, nil)
	return std
}

// Max returns the largest value, or 0 for an empty slice.
func Max(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Max(data)
}

// MatrixMax returns the largest value across all rows.
func MatrixMax(matrix [][]float64) float64 {
	maxVal := math.Inf(-1)
	for _, row := range matrix {
		if len(row) == 0 {
			continue
		}
		maxVal = math.Max(maxVal, floats.Max(row))
	}
	if math.IsInf(maxVal, -1) {
		return 0.0
	}
	return maxVal
}

// MatrixMean returns the mean over every cell of a rectangular matrix.
func MatrixMean(matrix [][]float64) float64 {
	count := 0
	sum := 0.0
	for _, row := range matrix {
		sum += floats.Sum(row)
		count += len(row)
	}
	if count == 0 {
		return 0.0
	}
	return sum / float64(count)
}

// ColumnMeans returns the per-column average of a rectangular matrix.
func ColumnMeans(matrix [][]float64) []float64 {
	if len(matrix) == 0 {
		return nil
	}
	means := make([]float64, len(matrix[0]))
	for _, row := range matrix {
		floats.Add(means, row)
	}
	floats.Scale(1/float64(len(matrix)), means)
	return means
}

// Percentile calculates the p-th percentile (p between 0 and 1)
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 || p < 0 || p > 1 {
		return 0.0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// ConvolveSame convolves data with kernel and returns the centre part of the
// full convolution, len(data) long ("same" mode). For an even kernel the
// window reaches one sample further back than forward.
func ConvolveSame(data, kernel []float64) []float64 {
	n := len(data)
	k := len(kernel)
	if n == 0 || k == 0 {
		return make([]float64, n)
	}

	// index of the full convolution that lines up with data[0]
	shift := (k - 1) - k/2

	result := make([]float64, n)
	for i := range n {
		full := i + shift
		sum := 0.0
		for j := range k {
			idx := full - j
			if idx < 0 || idx >= n {
				continue
			}
			sum += data[idx] * kernel[j]
		}
		result[i] = sum
	}
	return result
}
