package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT computes fixed-size magnitude spectra with mjibson/go-dsp
type FFT struct {
	size int
}

// NewFFT creates an FFT calculator for windows of size samples
func NewFFT(size int) *FFT {
	return &FFT{size: size}
}

// Size returns the transform length
func (f *FFT) Size() int {
	return f.size
}

// Compute computes the transform of x zero-padded (or truncated) to Size.
// buf is reused when it has the right length.
func (f *FFT) Compute(x []float64, buf []float64) []complex128 {
	if len(buf) != f.size {
		buf = make([]float64, f.size)
	}
	n := copy(buf, x)
	clear(buf[n:])

	// mjibson/go-dsp handles all sizes efficiently, including non-power-of-2
	return fft.FFTReal(buf)
}

// MagnitudeBand returns |X[k]| for k in [lo, hi) of the padded transform of x.
func (f *FFT) MagnitudeBand(x []float64, lo, hi int, buf []float64, dst []float64) []float64 {
	spectrum := f.Compute(x, buf)
	if len(dst) != hi-lo {
		dst = make([]float64, hi-lo)
	}
	for k := lo; k < hi; k++ {
		dst[k-lo] = cmplx.Abs(spectrum[k])
	}
	return dst
}
