package detector

import (
	"fmt"

	"github.com/pikawatch/pika-sonar/algorithms/spectral"
	"github.com/pikawatch/pika-sonar/algorithms/temporal"
)

// Analysis is a per-frame breakdown of one stretch of a recording, used to
// tune presets against known calls.
type Analysis struct {
	Interval    temporal.Interval     `json:"interval"` // seconds within the signal
	Spectrogram *spectral.Spectrogram `json:"-"`
	Scores      []float64             `json:"scores"`
	Smoothed    []float64             `json:"smoothed"`
	Passing     []temporal.Interval   `json:"passing"` // relative to Interval.Start
}

// Analyze runs the scoring stages over iv of sig and returns every
// intermediate result. With fine set the verification hop is used.
func (d *Detector) Analyze(sig *Signal, iv temporal.Interval, fine bool) (*Analysis, error) {
	builder := d.coarse
	if fine {
		builder = d.fine
	}

	samples := sig.Slice(iv.Start, iv.End)
	if len(samples) == 0 {
		return nil, fmt.Errorf("interval [%.2f, %.2f] is outside the %.2fs signal: %w",
			iv.Start, iv.End, sig.Duration(), spectral.ErrEmptySignal)
	}

	spec, err := builder.Build(samples)
	if err != nil {
		return nil, err
	}

	scores := d.scorer.ScoreFrames(spec.Frames, spec.SecondsPerFrame)
	smoothed := temporal.Smooth(scores, spec.SecondsPerFrame)

	return &Analysis{
		Interval:    iv,
		Spectrogram: spec,
		Scores:      scores,
		Smoothed:    smoothed,
		Passing:     d.ridges.ExtractSmoothed(smoothed, spec.SecondsPerFrame),
	}, nil
}
