package detector

import (
	"fmt"
	"iter"

	"github.com/pikawatch/pika-sonar/algorithms/harmonic"
	"github.com/pikawatch/pika-sonar/algorithms/spectral"
	"github.com/pikawatch/pika-sonar/algorithms/temporal"
	"github.com/pikawatch/pika-sonar/detector/config"
	"github.com/pikawatch/pika-sonar/logging"
)

// DetectedCall is a candidate call resolved against the full recording
type DetectedCall struct {
	Offset   float64   `json:"offset"`   // seconds from the start of the recording
	Duration float64   `json:"duration"` // seconds
	Samples  []float64 `json:"-"`        // the clip covering the call
}

// Detector runs the spectrogram -> peaks -> scores -> ridges pipeline over
// a recording, one chunk at a time.
type Detector struct {
	config *config.Config
	coarse *spectral.Builder
	fine   *spectral.Builder
	scorer *harmonic.CallScorer
	ridges *temporal.RidgeExtractor
	logger logging.Logger
}

// New creates a detector. A nil config means config.DefaultConfig and a nil
// logger the global logger.
func New(cfg *config.Config, logger logging.Logger) (*Detector, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	coarse, err := spectral.NewBuilder(cfg.BuilderConfig(cfg.HopDivisor), logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	fine, err := spectral.NewBuilder(cfg.BuilderConfig(cfg.VerifyHopDivisor), logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	return &Detector{
		config: cfg,
		coarse: coarse,
		fine:   fine,
		scorer: harmonic.NewCallScorer(cfg.ScorerConfig(), logger),
		ridges: temporal.NewRidgeExtractor(cfg.RidgeConfig(), logger),
		logger: logger.WithFields(logging.Fields{
			"component": "detector",
			"preset":    cfg.Preset,
		}),
	}, nil
}

// Config returns the detector's configuration
func (d *Detector) Config() *config.Config {
	return d.config
}

// Intervals runs the pipeline over one buffer and returns the passing
// intervals in seconds relative to its start.
func (d *Detector) Intervals(samples []float64) ([]temporal.Interval, error) {
	spec, err := d.coarse.Build(samples)
	if err != nil {
		return nil, err
	}
	scores := d.scorer.ScoreFrames(spec.Frames, spec.SecondsPerFrame)
	return d.ridges.Extract(scores, spec.SecondsPerFrame), nil
}

type chunk struct {
	start, end int // sample range in the signal
}

// chunks splits the signal into consecutive, non-overlapping pieces of
// ChunkSeconds. The last piece may be shorter.
func (d *Detector) chunks(sig *Signal) iter.Seq[chunk] {
	size := max(1, int(d.config.ChunkSeconds*float64(sig.SampleRate)))
	return func(yield func(chunk) bool) {
		for start := 0; start < len(sig.Samples); start += size {
			if !yield(chunk{start: start, end: min(start+size, len(sig.Samples))}) {
				return
			}
		}
	}
}

// Calls lazily yields the calls found in sig, chunk by chunk. Chunks are
// analysed independently, so a call that straddles a chunk boundary is not
// found.
func (d *Detector) Calls(sig *Signal) iter.Seq2[DetectedCall, error] {
	return func(yield func(DetectedCall, error) bool) {
		rate := float64(sig.SampleRate)

		for c := range d.chunks(sig) {
			chunkOffset := float64(c.start) / rate

			intervals, err := d.Intervals(sig.Samples[c.start:c.end])
			if err != nil {
				yield(DetectedCall{}, fmt.Errorf("chunk at %.2fs: %w", sig.Offset+chunkOffset, err))
				return
			}

			d.logger.Debug("Chunk analysed", logging.Fields{
				"chunk_offset": sig.Offset + chunkOffset,
				"intervals":    len(intervals),
			})

			for _, iv := range intervals {
				from := c.start + int(iv.Start*rate)
				to := min(c.start+int(iv.End*rate), len(sig.Samples))

				call := DetectedCall{
					Offset:   sig.Offset + chunkOffset + iv.Start,
					Duration: iv.Duration(),
					Samples:  sig.Samples[from:to],
				}
				if !yield(call, nil) {
					return
				}
			}
		}
	}
}

// Run feeds every call in sig to sink and returns how many were accepted.
// sink.Exit is called on every path once sink.Enter has succeeded.
func (d *Detector) Run(sig *Signal, sink Sink) (count int, err error) {
	if err := sink.Enter(); err != nil {
		return 0, fmt.Errorf("failed to open sink: %w", err)
	}
	defer func() {
		if exitErr := sink.Exit(err); exitErr != nil && err == nil {
			err = fmt.Errorf("failed to close sink: %w", exitErr)
		}
	}()

	for call, callErr := range d.Calls(sig) {
		if callErr != nil {
			return count, callErr
		}
		if err := sink.HandleCall(call); err != nil {
			return count, fmt.Errorf("sink rejected call at %.2fs: %w", call.Offset, err)
		}
		count++
	}

	d.logger.Info("Recording parsed", logging.Fields{
		"offset":   sig.Offset,
		"duration": sig.Duration(),
		"calls":    count,
	})

	return count, nil
}
