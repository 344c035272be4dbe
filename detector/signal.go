package detector

import (
	"errors"
	"fmt"

	"github.com/pikawatch/pika-sonar/detector/config"
	"github.com/pikawatch/pika-sonar/transcode"
)

// ErrSampleRate is returned for audio that is not at config.RequiredSampleRate
var ErrSampleRate = errors.New("unsupported sample rate")

// Signal is a single-channel buffer of samples. Offset is where the buffer
// starts within the original recording, in seconds.
type Signal struct {
	Samples    []float64
	SampleRate int
	Offset     float64
}

// NewSignal checks the sample rate and wraps samples. Bin positions in the
// detector config only mean anything at config.RequiredSampleRate.
func NewSignal(samples []float64, sampleRate int, offset float64) (*Signal, error) {
	if sampleRate != config.RequiredSampleRate {
		return nil, fmt.Errorf("%w: got %d Hz, expected %d Hz", ErrSampleRate, sampleRate, config.RequiredSampleRate)
	}
	return &Signal{
		Samples:    samples,
		SampleRate: sampleRate,
		Offset:     offset,
	}, nil
}

// SignalFromAudio wraps decoded audio
func SignalFromAudio(audio *transcode.AudioData, offset float64) (*Signal, error) {
	if audio == nil {
		return nil, errors.New("nil audio data")
	}
	sig, err := NewSignal(audio.PCM, audio.SampleRate, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", audio.Source, err)
	}
	return sig, nil
}

// Duration returns the buffer length in seconds
func (s *Signal) Duration() float64 {
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// Slice returns the samples covering [start, end) seconds of the buffer,
// clamped to its bounds.
func (s *Signal) Slice(start, end float64) []float64 {
	from := max(0, int(start*float64(s.SampleRate)))
	to := min(len(s.Samples), int(end*float64(s.SampleRate)))
	if from >= to {
		return nil
	}
	return s.Samples[from:to]
}

// Release drops the sample buffer once a pass is done with it
func (s *Signal) Release() {
	s.Samples = nil
}
