package transcode

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeStereo(t *testing.T, path string, left, right []int, sampleRate int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	data := make([]int, 0, 2*len(left))
	for i := range left {
		data = append(data, left[i], right[i])
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 2, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadWAVKeepsLeftChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	writeStereo(t, path, []int{16384, -16384, 0, 8192}, []int{1, 2, 3, 4}, 44100)

	data, err := LoadWAV(path)
	if err != nil {
		t.Fatalf("LoadWAV returned error: %v", err)
	}
	if data.SampleRate != 44100 || data.Channels != 2 {
		t.Errorf("rate/channels = %d/%d, want 44100/2", data.SampleRate, data.Channels)
	}
	want := []float64{0.5, -0.5, 0, 0.25}
	if !reflect.DeepEqual(data.PCM, want) {
		t.Errorf("PCM = %v, want %v", data.PCM, want)
	}
}

func TestWriteWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clips", "call.wav")
	samples := []float64{0, 0.5, -0.5, 1, -1}
	if err := WriteWAV(path, samples, 44100); err != nil {
		t.Fatalf("WriteWAV returned error: %v", err)
	}

	data, err := LoadWAV(path)
	if err != nil {
		t.Fatalf("LoadWAV returned error: %v", err)
	}
	if len(data.PCM) != len(samples) {
		t.Fatalf("samples = %d, want %d", len(data.PCM), len(samples))
	}
	for i := range samples {
		if math.Abs(data.PCM[i]-samples[i]) > 1e-3 {
			t.Errorf("sample %d = %v, want %v", i, data.PCM[i], samples[i])
		}
	}
}

func TestLoadWAVRejectsOtherFormats(t *testing.T) {
	if _, err := LoadWAV("recording.mp3"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}

	path := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(path, []byte("not a riff file"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWAV(path); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestFormatDetection(t *testing.T) {
	tests := []struct {
		path       string
		wav        bool
		compressed bool
	}{
		{"site1.wav", true, false},
		{"SITE1.WAV", true, false},
		{"site1.mp3", false, true},
		{"site1.Flac", false, true},
		{"notes.txt", false, false},
		{"noext", false, false},
	}
	for _, tt := range tests {
		if got := IsWAV(tt.path); got != tt.wav {
			t.Errorf("IsWAV(%q) = %v, want %v", tt.path, got, tt.wav)
		}
		if got := IsCompressed(tt.path); got != tt.compressed {
			t.Errorf("IsCompressed(%q) = %v, want %v", tt.path, got, tt.compressed)
		}
	}
}

func TestTags(t *testing.T) {
	if _, err := ReadTags("site1.wav"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("ReadTags(wav) error = %v, want ErrUnsupportedFormat", err)
	}

	tags := &Tags{Title: " Dawn chorus ", Comment: "north talus"}
	if got := tags.Summary(); got != "Dawn chorus; north talus" {
		t.Errorf("Summary() = %q", got)
	}
	if got := (&Tags{Comment: "only"}).Summary(); got != "only" {
		t.Errorf("Summary() = %q, want only", got)
	}
}

func TestSegmentOffsets(t *testing.T) {
	got := SegmentOffsets(1250, 600)
	want := []float64{0, 600, 1200}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SegmentOffsets = %v, want %v", got, want)
	}
	if got := SegmentOffsets(0, 600); !reflect.DeepEqual(got, []float64{0}) {
		t.Errorf("unknown duration gave %v", got)
	}
}

func TestBuildFFmpegArgs(t *testing.T) {
	d := NewDecoder(nil)
	args := d.buildFFmpegArgs("field.mp3", 600, 600)
	want := []string{
		"-v", "error",
		"-ss", "600.000",
		"-i", "field.mp3",
		"-t", "600.000",
		"-map", "0:a:0",
		"-vn",
		"-af", "pan=mono|c0=c0",
		"-f", "f64le",
		"-ar", "44100",
		"pipe:1",
	}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("args = %v\nwant %v", args, want)
	}
}

func TestParseFFprobeOutput(t *testing.T) {
	out := []byte(`{"streams":[{"codec_type":"audio","codec_name":"mp3","sample_rate":"44100","channels":2,"duration":"3725.5","bit_rate":"128000","codec_long_name":"MP3"}]}`)
	meta, err := parseFFprobeOutput(out)
	if err != nil {
		t.Fatalf("parseFFprobeOutput returned error: %v", err)
	}
	if meta.SampleRate != 44100 || meta.Channels != 2 || meta.Duration != 3725.5 || meta.Codec != "mp3" {
		t.Errorf("metadata = %+v", meta)
	}

	if _, err := parseFFprobeOutput([]byte(`{"streams":[]}`)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestBytesToFloat64(t *testing.T) {
	raw := make([]byte, 19)
	binary.LittleEndian.PutUint64(raw[0:], math.Float64bits(0.25))
	binary.LittleEndian.PutUint64(raw[8:], math.Float64bits(-1))
	got := bytesToFloat64(raw)
	if !reflect.DeepEqual(got, []float64{0.25, -1}) {
		t.Errorf("bytesToFloat64 = %v", got)
	}
}
