package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/pikawatch/pika-sonar/algorithms/harmonic"
	"github.com/pikawatch/pika-sonar/algorithms/spectral"
	"github.com/pikawatch/pika-sonar/algorithms/temporal"
)

// RequiredSampleRate is the only rate the bin window is tuned for
const RequiredSampleRate = 44100

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid detector config")

// PresetName identifies a named tuning
type PresetName string

const (
	PresetJoint        PresetName = "joint"
	PresetBeaconRock   PresetName = "beacon-rock"
	PresetAngelsRest   PresetName = "angels-rest"
	PresetHermansCreek PresetName = "hermans-creek"
)

// Config holds every tunable of the detection pipeline
type Config struct {
	Preset PresetName `json:"preset,omitempty" yaml:"preset,omitempty"`

	// Spectrogram
	SampleRate         int     `json:"sample_rate" yaml:"sample_rate"`
	FrameSize          int     `json:"frame_size" yaml:"frame_size"`
	HopDivisor         int     `json:"hop_divisor" yaml:"hop_divisor"`
	VerifyHopDivisor   int     `json:"verify_hop_divisor" yaml:"verify_hop_divisor"` // finer hop used when reviewing a call
	BinLow             int     `json:"bin_low" yaml:"bin_low"`
	BinHigh            int     `json:"bin_high" yaml:"bin_high"`
	NormalizationFloor float64 `json:"normalization_floor" yaml:"normalization_floor"`
	NoiseMargin        float64 `json:"noise_margin" yaml:"noise_margin"`

	// Scoring
	MinPeakDistance int              `json:"min_peak_distance" yaml:"min_peak_distance"`
	BasePeakFilter  harmonic.Range   `json:"base_peak_filter" yaml:"base_peak_filter"`
	BasePeakFloor   int              `json:"base_peak_floor" yaml:"base_peak_floor"`
	BasePeakCeiling int              `json:"base_peak_ceiling" yaml:"base_peak_ceiling"`
	HarmonicFilters []harmonic.Range `json:"harmonic_filters" yaml:"harmonic_filters"`
	PenalizeMisses  bool             `json:"penalize_misses" yaml:"penalize_misses"`

	// Ridges
	ScoreThreshold   float64 `json:"score_threshold" yaml:"score_threshold"`
	MinRidgeDuration float64 `json:"min_ridge_duration" yaml:"min_ridge_duration"`

	// Traversal
	ChunkSeconds   float64 `json:"chunk_seconds" yaml:"chunk_seconds"`     // in-memory analysis chunk
	SegmentSeconds float64 `json:"segment_seconds" yaml:"segment_seconds"` // decoded segment of a compressed recording

	LogLevel string `json:"log_level" yaml:"log_level"`
	Debug    bool   `json:"debug" yaml:"debug"`
}

// DefaultConfig returns the joint tuning, which covers all surveyed sites
func DefaultConfig() *Config {
	const frameSize = 4096
	binLow := frameSize/32 + 150

	return &Config{
		Preset:             PresetJoint,
		SampleRate:         RequiredSampleRate,
		FrameSize:          frameSize,
		HopDivisor:         2,
		VerifyHopDivisor:   64,
		BinLow:             binLow,
		BinHigh:            binLow + 275,
		NormalizationFloor: 0.1,
		NoiseMargin:        0.05,

		MinPeakDistance: 40,
		BasePeakFilter:  harmonic.Range{Low: 15, High: 60},
		BasePeakCeiling: 120,
		HarmonicFilters: []harmonic.Range{{Low: 45, High: 93}, {Low: 110, High: 165}},
		PenalizeMisses:  true,

		ScoreThreshold:   8.5,
		MinRidgeDuration: 0.13,

		ChunkSeconds:   10,
		SegmentSeconds: 600,

		LogLevel: "info",
	}
}

// Preset returns the named site tuning
func Preset(name PresetName) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Preset = name

	switch name {
	case PresetJoint, "":
		cfg.Preset = PresetJoint

	case PresetBeaconRock:
		cfg.HarmonicFilters = []harmonic.Range{{Low: 52, High: 70}, {Low: 110, High: 135}}
		cfg.BasePeakFilter = harmonic.Range{Low: 30, High: 60}
		cfg.BasePeakCeiling = 90

	case PresetAngelsRest:
		cfg.HarmonicFilters = []harmonic.Range{{Low: 60, High: 93}, {Low: 130, High: 165}}
		cfg.BasePeakFilter = harmonic.Range{Low: 30, High: 60}
		cfg.BasePeakFloor = 25

	case PresetHermansCreek:
		cfg.HarmonicFilters = []harmonic.Range{{Low: 45, High: 80}, {Low: 130, High: 165}}
		cfg.BasePeakFilter = harmonic.Range{Low: 15, High: 60}

	default:
		return nil, fmt.Errorf("%w: unknown preset %q (known: %v)", ErrInvalidConfig, name, PresetNames())
	}

	return cfg, nil
}

// PresetNames lists the known presets in sorted order
func PresetNames() []PresetName {
	names := []PresetName{PresetJoint, PresetBeaconRock, PresetAngelsRest, PresetHermansCreek}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Load reads a YAML file. Keys left out of the file keep the value of the
// preset named in it, or of the joint tuning when none is named.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML config data, see Load
func Parse(data []byte) (*Config, error) {
	var head struct {
		Preset PresetName `yaml:"preset"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg, err := Preset(head.Preset)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config for values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.SampleRate != RequiredSampleRate {
		return fmt.Errorf("%w: sample rate %d, the bin window assumes %d", ErrInvalidConfig, c.SampleRate, RequiredSampleRate)
	}
	if err := c.BuilderConfig(c.HopDivisor).Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.VerifyHopDivisor <= 0 || c.FrameSize/c.VerifyHopDivisor <= 0 {
		return fmt.Errorf("%w: verify hop divisor %d", ErrInvalidConfig, c.VerifyHopDivisor)
	}
	if c.MinPeakDistance < 1 {
		return fmt.Errorf("%w: min peak distance must be at least 1", ErrInvalidConfig)
	}
	if c.BasePeakFloor < 0 || c.BasePeakFloor >= c.BasePeakCeiling {
		return fmt.Errorf("%w: base peak floor %d must be in [0, %d)", ErrInvalidConfig, c.BasePeakFloor, c.BasePeakCeiling)
	}
	if c.BasePeakFilter.Low > c.BasePeakFilter.High {
		return fmt.Errorf("%w: base peak filter %+v is inverted", ErrInvalidConfig, c.BasePeakFilter)
	}
	if len(c.HarmonicFilters) == 0 {
		return fmt.Errorf("%w: at least one harmonic filter is required", ErrInvalidConfig)
	}
	for _, r := range c.HarmonicFilters {
		if r.Low > r.High {
			return fmt.Errorf("%w: harmonic filter %+v is inverted", ErrInvalidConfig, r)
		}
	}
	if c.MinRidgeDuration < 0 {
		return fmt.Errorf("%w: negative min ridge duration", ErrInvalidConfig)
	}
	if c.ChunkSeconds <= 0 || c.SegmentSeconds <= 0 {
		return fmt.Errorf("%w: chunk and segment lengths must be positive", ErrInvalidConfig)
	}
	return nil
}

// BuilderConfig returns the spectrogram settings for a hop divisor
func (c *Config) BuilderConfig(hopDivisor int) spectral.BuilderConfig {
	return spectral.BuilderConfig{
		SampleRate:         c.SampleRate,
		FrameSize:          c.FrameSize,
		HopDivisor:         hopDivisor,
		BinLow:             c.BinLow,
		BinHigh:            c.BinHigh,
		NormalizationFloor: c.NormalizationFloor,
		NoiseMargin:        c.NoiseMargin,
	}
}

// ScorerConfig returns the call scoring settings
func (c *Config) ScorerConfig() harmonic.ScorerConfig {
	filters := make([]harmonic.Range, len(c.HarmonicFilters))
	copy(filters, c.HarmonicFilters)
	return harmonic.ScorerConfig{
		MinPeakDistance: c.MinPeakDistance,
		BasePeakFilter:  c.BasePeakFilter,
		BasePeakFloor:   c.BasePeakFloor,
		BasePeakCeiling: c.BasePeakCeiling,
		HarmonicFilters: filters,
		PenalizeMisses:  c.PenalizeMisses,
		Debug:           c.Debug,
	}
}

// RidgeConfig returns the ridge extraction settings
func (c *Config) RidgeConfig() temporal.RidgeConfig {
	return temporal.RidgeConfig{
		Threshold:   c.ScoreThreshold,
		MinDuration: c.MinRidgeDuration,
	}
}
