package temporal

import (
	"github.com/pikawatch/pika-sonar/algorithms/common"
	"github.com/pikawatch/pika-sonar/logging"
)

const (
	// kernelTapWeight is the weight of every tap in the smoothing kernel
	kernelTapWeight = 0.5
	// coarseResolution separates coarse frames (short kernel) from fine ones
	coarseResolution = 0.05
	coarseTaps       = 3
	fineTaps         = 10
)

// Interval is a span of a buffer in seconds
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End - Start
func (iv Interval) Duration() float64 {
	return iv.End - iv.Start
}

// RidgeConfig holds the smoothing threshold and minimum ridge length
type RidgeConfig struct {
	Threshold   float64 `json:"threshold"`    // smoothed score a ridge must exceed
	MinDuration float64 `json:"min_duration"` // seconds; shorter ridges are dropped
}

// RidgeExtractor finds runs of frames whose smoothed score stays above a
// threshold.
type RidgeExtractor struct {
	config RidgeConfig
	logger logging.Logger
}

// NewRidgeExtractor creates an extractor. A nil logger disables logging.
func NewRidgeExtractor(config RidgeConfig, logger logging.Logger) *RidgeExtractor {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &RidgeExtractor{
		config: config,
		logger: logger.WithFields(logging.Fields{"component": "ridge_extractor"}),
	}
}

// SmoothingKernel returns the moving-sum kernel for a frame resolution.
// Finer frames get a wider kernel to suppress frame-level jitter.
func SmoothingKernel(secondsPerFrame float64) []float64 {
	taps := fineTaps
	if secondsPerFrame > coarseResolution {
		taps = coarseTaps
	}
	kernel := make([]float64, taps)
	for i := range kernel {
		kernel[i] = kernelTapWeight
	}
	return kernel
}

// Smooth applies the smoothing kernel with edge-truncated "same" alignment;
// the result has the same length as scores.
func Smooth(scores []float64, secondsPerFrame float64) []float64 {
	return common.ConvolveSame(scores, SmoothingKernel(secondsPerFrame))
}

// Extract smooths scores and returns the ascending, disjoint intervals where
// the smoothed score rises above the threshold for longer than MinDuration.
//
// A ridge opens at the first frame whose smoothed score is above the
// threshold and closes at the frame before the first one that drops below
// it. A ridge still open at the end closes at the last frame.
func (re *RidgeExtractor) Extract(scores []float64, secondsPerFrame float64) []Interval {
	smoothed := Smooth(scores, secondsPerFrame)
	return re.ExtractSmoothed(smoothed, secondsPerFrame)
}

// ExtractSmoothed runs the ridge scan over an already smoothed sequence
func (re *RidgeExtractor) ExtractSmoothed(smoothed []float64, secondsPerFrame float64) []Interval {
	var ridges []Interval
	start := -1

	for i, s := range smoothed {
		if start >= 0 {
			if s < re.config.Threshold {
				ridges = append(ridges, Interval{
					Start: float64(start) * secondsPerFrame,
					End:   float64(i-1) * secondsPerFrame,
				})
				start = -1
			}
		} else if s > re.config.Threshold {
			start = i
		}
	}
	if start >= 0 {
		ridges = append(ridges, Interval{
			Start: float64(start) * secondsPerFrame,
			End:   float64(len(smoothed)-1) * secondsPerFrame,
		})
	}

	kept := ridges[:0]
	for _, r := range ridges {
		if r.Duration() > re.config.MinDuration {
			kept = append(kept, r)
		} else {
			re.logger.Debug("Ridge too short", logging.Fields{
				"start":    r.Start,
				"duration": r.Duration(),
			})
		}
	}
	return kept
}
