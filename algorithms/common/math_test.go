package common

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestConvolveSameOddKernel(t *testing.T) {
	got := ConvolveSame([]float64{1, 2, 3}, []float64{0, 1, 0.5})
	want := []float64{1, 2.5, 4}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Fatalf("ConvolveSame = %v, want %v", got, want)
		}
	}
}

func TestConvolveSameEvenKernel(t *testing.T) {
	// full convolution of five ones with four ones is [1 2 3 4 4 3 2 1];
	// "same" keeps [2 3 4 4 3]
	data := []float64{1, 1, 1, 1, 1}
	got := ConvolveSame(data, []float64{1, 1, 1, 1})
	want := []float64{2, 3, 4, 4, 3}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Fatalf("ConvolveSame = %v, want %v", got, want)
		}
	}
}

func TestConvolveSameKernelLongerThanData(t *testing.T) {
	got := ConvolveSame([]float64{2, 4}, []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5})
	if len(got) != 2 {
		t.Fatalf("length = %d, want 2", len(got))
	}
	for i, v := range got {
		if !almostEqual(v, 3) {
			t.Errorf("got[%d] = %v, want 3", i, v)
		}
	}
}

func TestMatrixHelpers(t *testing.T) {
	m := [][]float64{
		{0, 2, 4},
		{2, 2, 8},
	}
	if got := MatrixMax(m); got != 8 {
		t.Errorf("MatrixMax = %v, want 8", got)
	}
	if got := MatrixMean(m); !almostEqual(got, 3) {
		t.Errorf("MatrixMean = %v, want 3", got)
	}
	cols := ColumnMeans(m)
	want := []float64{1, 2, 6}
	for i := range want {
		if !almostEqual(cols[i], want[i]) {
			t.Errorf("ColumnMeans[%d] = %v, want %v", i, cols[i], want[i])
		}
	}
	if got := MatrixMax(nil); got != 0 {
		t.Errorf("MatrixMax(nil) = %v, want 0", got)
	}
}

func TestStatistics(t *testing.T) {
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := Mean(data); !almostEqual(got, 5) {
		t.Errorf("Mean = %v, want 5", got)
	}
	if got := StandardDeviation(data); !almostEqual(got, 2) {
		t.Errorf("StandardDeviation = %v, want 2", got)
	}
	if got := Max(data); got != 9 {
		t.Errorf("Max = %v, want 9", got)
	}
	if got := Percentile(data, 1); got != 9 {
		t.Errorf("Percentile(1) = %v, want 9", got)
	}
	if got := Percentile(nil, 0.5); got != 0 {
		t.Errorf("Percentile(nil) = %v, want 0", got)
	}
}
