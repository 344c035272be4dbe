package spectral

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/pikawatch/pika-sonar/algorithms/common"
	"github.com/pikawatch/pika-sonar/logging"
)

// ErrEmptySignal is returned when there are no samples to transform.
var ErrEmptySignal = errors.New("empty signal")

// BuilderConfig controls how a band-limited spectrogram is produced.
type BuilderConfig struct {
	SampleRate int // Hz
	FrameSize  int // FFT length in samples
	HopDivisor int // hop = FrameSize / HopDivisor
	BinLow     int // first kept FFT bin (inclusive)
	BinHigh    int // last kept FFT bin (exclusive)

	// NormalizationFloor is the smallest divisor used when scaling by the
	// matrix maximum. Keeps near-silent chunks from being amplified.
	NormalizationFloor float64
	// NoiseMargin is added to the matrix mean to get the cut-off below
	// which cells are zeroed.
	NoiseMargin float64
}

// HopSize returns the step between frames in samples
func (c BuilderConfig) HopSize() int {
	if c.HopDivisor <= 0 {
		return 0
	}
	return c.FrameSize / c.HopDivisor
}

// Validate checks that the band and hop make sense for the frame size
func (c BuilderConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive: %d", c.SampleRate)
	}
	if c.FrameSize <= 0 {
		return fmt.Errorf("frame size must be positive: %d", c.FrameSize)
	}
	if c.HopSize() <= 0 {
		return fmt.Errorf("hop divisor %d too large for frame size %d", c.HopDivisor, c.FrameSize)
	}
	if c.BinLow < 0 || c.BinHigh <= c.BinLow || c.BinHigh > c.FrameSize {
		return fmt.Errorf("invalid bin window [%d, %d) for frame size %d", c.BinLow, c.BinHigh, c.FrameSize)
	}
	if c.NormalizationFloor <= 0 {
		return fmt.Errorf("normalization floor must be positive: %v", c.NormalizationFloor)
	}
	return nil
}

// Spectrogram is a normalised, noise-reduced, thresholded time x frequency
// matrix restricted to [BinLow, BinHigh). Every cell lies in [0, 1].
type Spectrogram struct {
	Frames          [][]float64 `json:"frames"`
	SecondsPerFrame float64     `json:"seconds_per_frame"`
	SampleRate      int         `json:"sample_rate"`
	FrameSize       int         `json:"frame_size"`
	HopSize         int         `json:"hop_size"`
	BinLow          int         `json:"bin_low"`
	BinHigh         int         `json:"bin_high"`
	RawMax          float64     `json:"raw_max"` // maximum magnitude before normalisation
}

// NumBins returns the width of each frame
func (s *Spectrogram) NumBins() int {
	return s.BinHigh - s.BinLow
}

// FrameTime returns the start of frame i in seconds, relative to the buffer
func (s *Spectrogram) FrameTime(i int) float64 {
	return float64(i) * s.SecondsPerFrame
}

// BinFrequency returns the frequency in Hz of a band-relative bin, i.e. bin 0
// is FFT bin BinLow.
func (s *Spectrogram) BinFrequency(bin int) float64 {
	binWidth := float64(s.SampleRate) / float64(s.FrameSize)
	return float64(1+bin+s.BinLow) * binWidth
}

// Builder turns sample buffers into Spectrograms
type Builder struct {
	config BuilderConfig
	fft    *FFT
	logger logging.Logger
}

// NewBuilder creates a spectrogram builder. A nil logger disables logging.
func NewBuilder(config BuilderConfig, logger logging.Logger) (*Builder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &Builder{
		config: config,
		fft:    NewFFT(config.FrameSize),
		logger: logger.WithFields(logging.Fields{"component": "spectrogram_builder"}),
	}, nil
}

// Config returns the builder configuration
func (b *Builder) Config() BuilderConfig {
	return b.config
}

// Build computes the filtered spectrogram of samples.
//
// Each frame is the magnitude of the FrameSize-point transform of the window
// starting at a hop boundary; the final windows run past the end of the
// buffer and are zero-padded. The matrix is then divided by
// max(globalMax, NormalizationFloor), the per-bin time average is subtracted
// (clamped at zero) and anything not above mean+NoiseMargin is zeroed.
func (b *Builder) Build(samples []float64) (*Spectrogram, error) {
	if len(samples) == 0 {
		return nil, ErrEmptySignal
	}

	hop := b.config.HopSize()
	numFrames := (len(samples) + hop - 1) / hop

	frames := b.magnitudes(samples, numFrames, hop)

	rawMax := common.MatrixMax(frames)
	scale := 1 / math.Max(rawMax, b.config.NormalizationFloor)
	for _, frame := range frames {
		for j := range frame {
			frame[j] *= scale
		}
	}

	// noise reduction
	avg := common.ColumnMeans(frames)
	for _, frame := range frames {
		for j, v := range frame {
			frame[j] = math.Max(v-avg[j], 0)
		}
	}

	// drop quiet cells
	cutoff := common.MatrixMean(frames) + b.config.NoiseMargin
	for _, frame := range frames {
		for j, v := range frame {
			if v <= cutoff {
				frame[j] = 0
			}
		}
	}

	b.logger.Debug("Spectrogram built", logging.Fields{
		"frames":      numFrames,
		"bins":        b.config.BinHigh - b.config.BinLow,
		"segment_max": rawMax,
		"cutoff":      cutoff,
	})

	return &Spectrogram{
		Frames:          frames,
		SecondsPerFrame: float64(hop) / float64(b.config.SampleRate),
		SampleRate:      b.config.SampleRate,
		FrameSize:       b.config.FrameSize,
		HopSize:         hop,
		BinLow:          b.config.BinLow,
		BinHigh:         b.config.BinHigh,
		RawMax:          rawMax,
	}, nil
}

// magnitudes fills the raw band-limited magnitude matrix. Frames are
// independent so they are spread over a worker pool; each worker writes only
// its own rows.
func (b *Builder) magnitudes(samples []float64, numFrames, hop int) [][]float64 {
	lo, hi := b.config.BinLow, b.config.BinHigh
	size := b.fft.Size()
	frames := make([][]float64, numFrames)
	for i := range frames {
		frames[i] = make([]float64, hi-lo)
	}

	jobs := make(chan int, numFrames)
	var wg sync.WaitGroup

	for range workerCount(numFrames) {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// reuse the padding buffer for this worker
			buf := make([]float64, size)

			for frameIdx := range jobs {
				start := frameIdx * hop
				end := min(start+size, len(samples))
				b.fft.MagnitudeBand(samples[start:end], lo, hi, buf, frames[frameIdx])
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameIdx
	}
	close(jobs)
	wg.Wait()

	return frames
}

// workerCount determines the number of workers based on workload
func workerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
