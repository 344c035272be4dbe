package transcode

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pikawatch/pika-sonar/logging"
)

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"`
	FFmpegPath       string        `json:"ffmpeg_path"`  // Path to ffmpeg binary
	FFprobePath      string        `json:"ffprobe_path"` // Path to ffprobe binary
	Timeout          time.Duration `json:"timeout"`      // Timeout for a single ffmpeg run
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 44100,
		FFmpegPath:       "ffmpeg",  // Assume in PATH
		FFprobePath:      "ffprobe", // Assume in PATH
		Timeout:          5 * time.Minute,
	}
}

// Tools lists the external binaries the decoder runs
func (c *DecoderConfig) Tools() []string {
	return []string{c.FFmpegPath, c.FFprobePath}
}

// AudioMetadata holds detected audio properties from FFprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"` // seconds
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// Segment is a decoded piece of a longer recording
type Segment struct {
	Offset float64 // seconds from the start of the recording
	Audio  *AudioData
}

// Decoder turns compressed recordings into mono PCM using FFmpeg
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{"component": "audio_decoder"}),
	}
}

// Probe uses ffprobe to read the first audio stream's properties
func (d *Decoder) Probe(ctx context.Context, filename string) (*AudioMetadata, error) {
	args := []string{
		"-v", "quiet", // Suppress verbose output
		"-print_format", "json", // JSON output
		"-show_streams",          // Show stream info
		"-select_streams", "a:0", // First audio stream only
		filename,
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	output, err := exec.CommandContext(ctx, d.config.FFprobePath, args...).Output()
	if err != nil {
		return nil, commandError("ffprobe", err)
	}

	return parseFFprobeOutput(output)
}

// DecodeFile decodes a whole file to mono PCM at the target sample rate
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	return d.decodeRange(ctx, filename, 0, 0)
}

// Segments decodes a recording in consecutive pieces of segmentSeconds so
// that only one piece is held in memory at a time. The yielded offsets are
// the segment start times within the recording.
func (d *Decoder) Segments(ctx context.Context, filename string, segmentSeconds float64) iter.Seq2[Segment, error] {
	return func(yield func(Segment, error) bool) {
		if segmentSeconds <= 0 {
			yield(Segment{}, fmt.Errorf("segment length must be positive: %v", segmentSeconds))
			return
		}

		metadata, err := d.Probe(ctx, filename)
		if err != nil {
			yield(Segment{}, err)
			return
		}

		logger := d.logger.WithContext(ctx)
		logger.Info("Segmenting recording", logging.Fields{
			"filename": filename,
			"duration": metadata.Duration,
			"codec":    metadata.Codec,
			"segment":  segmentSeconds,
		})

		for _, offset := range SegmentOffsets(metadata.Duration, segmentSeconds) {
			audio, err := d.decodeRange(ctx, filename, offset, segmentSeconds)
			if errors.Is(err, errNoSamples) {
				// the probed duration can overshoot the real stream
				return
			}
			if !yield(Segment{Offset: offset, Audio: audio}, err) || err != nil {
				return
			}
		}
	}
}

// SegmentOffsets returns the start times of segmentSeconds-long pieces
// covering duration seconds. Unknown durations give a single segment.
func SegmentOffsets(duration, segmentSeconds float64) []float64 {
	if duration <= 0 || segmentSeconds <= 0 {
		return []float64{0}
	}
	count := int(math.Ceil(duration / segmentSeconds))
	offsets := make([]float64, count)
	for i := range offsets {
		offsets[i] = float64(i) * segmentSeconds
	}
	return offsets
}

var errNoSamples = errors.New("no audio samples decoded")

func (d *Decoder) decodeRange(ctx context.Context, filename string, offset, length float64) (*AudioData, error) {
	args := d.buildFFmpegArgs(filename, offset, length)

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	d.logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	startTime := time.Now()
	output, err := exec.CommandContext(ctx, d.config.FFmpegPath, args...).Output()
	if err != nil {
		return nil, commandError("ffmpeg decode", err)
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, errNoSamples
	}

	d.logger.Debug("FFmpeg decode completed", logging.Fields{
		"filename":    filename,
		"offset":      offset,
		"samples":     len(samples),
		"decode_time": time.Since(startTime).Seconds(),
	})

	return &AudioData{
		PCM:        samples,
		SampleRate: d.config.TargetSampleRate,
		Channels:   1,
		Duration:   samplesDuration(len(samples), d.config.TargetSampleRate),
		Source:     filename,
	}, nil
}

// buildFFmpegArgs selects [offset, offset+length) of the first audio stream,
// keeps only the left channel and emits raw float64 little-endian samples.
// length <= 0 decodes to the end.
func (d *Decoder) buildFFmpegArgs(filename string, offset, length float64) []string {
	args := []string{"-v", "error"}
	if offset > 0 {
		args = append(args, "-ss", strconv.FormatFloat(offset, 'f', 3, 64))
	}
	args = append(args, "-i", filename)
	if length > 0 {
		args = append(args, "-t", strconv.FormatFloat(length, 'f', 3, 64))
	}
	args = append(args,
		"-map", "0:a:0",
		"-vn",
		"-af", "pan=mono|c0=c0",
		"-f", "f64le",
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
		"pipe:1",
	)
	return args
}

func (d *Decoder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.Timeout > 0 {
		return context.WithTimeout(ctx, d.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// CheckAvailable checks that ffmpeg and ffprobe can be executed
func (d *Decoder) CheckAvailable() error {
	for _, tool := range d.config.Tools() {
		if err := exec.Command(tool, "-version").Run(); err != nil {
			return fmt.Errorf("%s not found: %w", tool, err)
		}
	}
	return nil
}

func commandError(name string, err error) error {
	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		return fmt.Errorf("%s failed: %w, stderr: %s", name, err, string(exitError.Stderr))
	}
	return fmt.Errorf("%s failed: %w", name, err)
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("%w: no audio streams found", ErrUnsupportedFormat)
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("%w: stream is not audio type: %s", ErrUnsupportedFormat, stream.CodecType)
	}

	// missing or malformed values are left at zero
	sampleRate, _ := strconv.Atoi(stream.SampleRate)
	duration, _ := strconv.ParseFloat(stream.Duration, 64)
	bitrate, _ := strconv.Atoi(stream.BitRate)

	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// bytesToFloat64 converts raw float64 bytes to []float64
func bytesToFloat64(data []byte) []float64 {
	// Trim to multiple of 8 bytes
	data = data[:len(data)-(len(data)%8)]
	if len(data) == 0 {
		return nil
	}

	samples := make([]float64, len(data)/8)
	for i := range samples {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}
	return samples
}
