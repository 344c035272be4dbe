package transcode

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/pikawatch/pika-sonar/logging"
)

// ErrUnsupportedFormat is returned for files the loader cannot read directly
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// AudioData represents decoded single-channel audio
type AudioData struct {
	PCM        []float64     `json:"-"` // samples in [-1, 1]
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"` // channel count of the source
	Duration   time.Duration `json:"duration"`
	Source     string        `json:"source"`
}

// compressedFormats are the extensions handed to ffmpeg
var compressedFormats = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
	".aac":  true,
}

// IsCompressed reports whether path is a compressed format the Decoder
// handles
func IsCompressed(path string) bool {
	return compressedFormats[strings.ToLower(filepath.Ext(path))]
}

// IsWAV reports whether path has a .wav extension
func IsWAV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wav")
}

// LoadWAV reads a PCM wav file. Multi-channel files are reduced to their
// first (left) channel.
func LoadWAV(path string) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "wav_loader",
		"path":      path,
	})

	if !IsWAV(path) {
		return nil, fmt.Errorf("%w: %s is not a wav file, decode it first", ErrUnsupportedFormat, filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a valid wav file", ErrUnsupportedFormat, path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM data from %s: %w", path, err)
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %s reports %d channels", ErrUnsupportedFormat, path, channels)
	}

	samples := leftChannel(buf.Data, channels, int(decoder.BitDepth))
	sampleRate := buf.Format.SampleRate

	logger.Debug("Wav loaded", logging.Fields{
		"sample_rate": sampleRate,
		"channels":    channels,
		"bit_depth":   decoder.BitDepth,
		"samples":     len(samples),
	})

	return &AudioData{
		PCM:        samples,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   samplesDuration(len(samples), sampleRate),
		Source:     path,
	}, nil
}

// leftChannel takes every channels-th integer sample and scales it to [-1, 1]
func leftChannel(data []int, channels, bitDepth int) []float64 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := math.Exp2(float64(bitDepth - 1))

	samples := make([]float64, 0, len(data)/channels+1)
	for i := 0; i < len(data); i += channels {
		v := float64(data[i])
		if bitDepth == 8 {
			// 8-bit wav is unsigned
			v -= 128
		}
		samples = append(samples, v/scale)
	}
	return samples
}

// WriteWAV writes samples as a 16-bit mono wav file
func WriteWAV(path string, samples []float64, sampleRate int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	encoder := wav.NewEncoder(f, sampleRate, 16, 1, 1)

	data := make([]int, len(samples))
	for i, s := range samples {
		s = math.Max(-1, math.Min(1, s))
		data[i] = int(math.Round(s * 32767))
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("failed to write audio to %s: %w", path, err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return nil
}

func samplesDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}
