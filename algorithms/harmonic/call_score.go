package harmonic

import (
	"github.com/pikawatch/pika-sonar/algorithms/common"
	"github.com/pikawatch/pika-sonar/logging"
)

const (
	// HarmonicWeight is split across the harmonics of a frame: each check is
	// worth HarmonicWeight / (peaks - 2).
	HarmonicWeight = 5.0
	// MissPenalty is the score of a frame that cannot be a call at all.
	MissPenalty = -1.0
	// MinPeaks is the number of peaks a frame needs before it is scored.
	MinPeaks = 3
)

// debugWindow is the number of recent scores summed in debug output.
const debugWindow = 3

// Range is an inclusive [Low, High] bin range.
type Range struct {
	Low  int `json:"low" yaml:"low"`
	High int `json:"high" yaml:"high"`
}

// Contains reports whether Low <= v <= High
func (r Range) Contains(v int) bool {
	return v >= r.Low && v <= r.High
}

// ScorerConfig holds the harmonic-spacing heuristic parameters
type ScorerConfig struct {
	MinPeakDistance int     `json:"min_peak_distance"` // bins
	BasePeakFilter  Range   `json:"base_peak_filter"`  // accepted position of the first peak
	BasePeakFloor   int     `json:"base_peak_floor"`   // first peak at or below this rejects the frame; 0 disables
	BasePeakCeiling int     `json:"base_peak_ceiling"` // first peak at or above this rejects the frame
	HarmonicFilters []Range `json:"harmonic_filters"`  // accepted spacings between consecutive peaks
	PenalizeMisses  bool    `json:"penalize_misses"`   // subtract for spacings outside every filter
	Debug           bool    `json:"debug"`             // log per-frame statistics
}

// CallScorer rates spectrogram frames for how much they look like a call:
// a base peak at a characteristic position followed by evenly spaced
// harmonics.
type CallScorer struct {
	config ScorerConfig
	logger logging.Logger
}

// NewCallScorer creates a scorer. A nil logger disables logging.
func NewCallScorer(config ScorerConfig, logger logging.Logger) *CallScorer {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &CallScorer{
		config: config,
		logger: logger.WithFields(logging.Fields{"component": "call_scorer"}),
	}
}

// Score turns the ascending peak positions of one frame into a likelihood
// score.
//
// Frames with fewer than MinPeaks peaks, or whose first peak is not strictly
// between BasePeakFloor and BasePeakCeiling, get MissPenalty. Otherwise, with amount =
// HarmonicWeight/(n-2): the first peak's position adds amount when inside
// BasePeakFilter and subtracts amount/2 when not, and every gap between
// consecutive peaks adds amount when inside any harmonic filter. Gaps that
// miss subtract amount/2 only when PenalizeMisses is set.
func (cs *CallScorer) Score(peaks []int) float64 {
	score, _ := cs.score(peaks)
	return score
}

func (cs *CallScorer) score(peaks []int) (score float64, matches int) {
	if len(peaks) < MinPeaks || peaks[0] >= cs.config.BasePeakCeiling || peaks[0] <= cs.config.BasePeakFloor {
		return MissPenalty, 0
	}

	amount := HarmonicWeight / float64(len(peaks)-2)

	// the first peak is judged on its raw position in the band
	if cs.config.BasePeakFilter.Contains(peaks[0]) {
		score += amount
	} else {
		score -= amount / 2
	}

	for i := 1; i < len(peaks); i++ {
		if cs.matchesHarmonic(peaks[i] - peaks[i-1]) {
			score += amount
			matches++
		} else if cs.config.PenalizeMisses {
			score -= amount / 2
		}
	}

	return score, matches
}

func (cs *CallScorer) matchesHarmonic(spacing int) bool {
	for _, r := range cs.config.HarmonicFilters {
		if r.Contains(spacing) {
			return true
		}
	}
	return false
}

// ScoreFrames detects peaks in each frame and returns one score per frame.
// Each score depends on its own frame only.
func (cs *CallScorer) ScoreFrames(frames [][]float64, secondsPerFrame float64) []float64 {
	scores := make([]float64, len(frames))

	// recent holds the last debugWindow scores for debug output only
	recent := make([]float64, 0, debugWindow)
	running := 0.0

	for i, frame := range frames {
		peaks := DetectPeaks(frame, cs.config.MinPeakDistance)
		score, matches := cs.score(peaks)
		scores[i] = score

		if len(recent) == debugWindow {
			running -= recent[0]
			recent = recent[1:]
		}
		recent = append(recent, score)
		running += score

		if cs.config.Debug && len(peaks) > 0 {
			cs.logFrame(i, frame, peaks, score, running, matches, secondsPerFrame)
		}
	}

	return scores
}

func (cs *CallScorer) logFrame(i int, frame []float64, peaks []int, score, running float64, matches int, secondsPerFrame float64) {
	spacings := make([]float64, 0, len(peaks)-1)
	for j := 1; j < len(peaks); j++ {
		spacings = append(spacings, float64(peaks[j]-peaks[j-1]))
	}

	frameMax := common.Max(frame)
	fields := logging.Fields{
		"t":           secondsPerFrame * float64(i),
		"frame":       i,
		"peaks":       peaks,
		"matches":     matches,
		"score":       score,
		"running":     running,
		"frame_max":   frameMax,
		"spacing_avg": common.Mean(spacings),
		"spacing_sd":  common.StandardDeviation(spacings),
	}
	if frameMax > 0 {
		fields["p85_rel"] = common.Percentile(frame, 0.85) / frameMax
		fields["mean_rel"] = common.Mean(frame) / frameMax
		fields["sd_rel"] = common.StandardDeviation(frame) / frameMax
	}
	cs.logger.Debug("Frame scored", fields)
}
