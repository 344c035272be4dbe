package harmonic

import (
	"math"
	"reflect"
	"testing"
)

func jointScorer(penalize bool) *CallScorer {
	return NewCallScorer(ScorerConfig{
		MinPeakDistance: 40,
		BasePeakFilter:  Range{15, 60},
		BasePeakCeiling: 120,
		HarmonicFilters: []Range{{45, 93}, {110, 165}},
		PenalizeMisses:  penalize,
	}, nil)
}

func TestDetectPeaksMinimumDistance(t *testing.T) {
	tests := []struct {
		name     string
		frame    []float64
		distance int
		want     []int
	}{
		{
			name:     "taller neighbour wins",
			frame:    []float64{0, 0.9, 0, 1.0, 0, 0},
			distance: 40,
			want:     []int{3},
		},
		{
			name:     "earlier wins on exact tie",
			frame:    []float64{0, 1, 0, 1, 0},
			distance: 40,
			want:     []int{1},
		},
		{
			name:     "far apart peaks both survive",
			frame:    []float64{0, 1, 0, 0, 0, 0.5, 0},
			distance: 2,
			want:     []int{1, 5},
		},
		{
			name:     "distance is inclusive",
			frame:    []float64{0, 1, 0, 0.5, 0},
			distance: 2,
			want:     []int{1},
		},
		{
			name:     "plateau reports its rising edge",
			frame:    []float64{0, 2, 2, 2, 0},
			distance: 1,
			want:     []int{1},
		},
		{
			name:     "edges are never peaks",
			frame:    []float64{5, 1, 0, 1, 5},
			distance: 1,
			want:     nil,
		},
		{
			name:     "flat zero frame",
			frame:    make([]float64, 275),
			distance: 40,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectPeaks(tt.frame, tt.distance)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DetectPeaks = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectPeaksSuppressionChain(t *testing.T) {
	// 50 is removed by the taller 10 (distance 40); 95 is then more than 40
	// away from 10 and survives even though 50 was within reach of it.
	frame := make([]float64, 120)
	frame[10] = 1.0
	frame[50] = 0.8
	frame[95] = 0.6

	got := DetectPeaks(frame, 40)
	want := []int{10, 95}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DetectPeaks = %v, want %v", got, want)
	}
}

func TestScoreWorkedExample(t *testing.T) {
	got := jointScorer(true).Score([]int{10, 55, 130})
	if math.Abs(got-7.5) > 1e-12 {
		t.Errorf("Score = %v, want 7.5", got)
	}
}

func TestScoreBranches(t *testing.T) {
	tests := []struct {
		name     string
		peaks    []int
		penalize bool
		want     float64
	}{
		{"no peaks", nil, true, MissPenalty},
		{"two peaks", []int{20, 80}, true, MissPenalty},
		{"first peak at ceiling", []int{120, 180, 240}, true, MissPenalty},
		{"perfect frame", []int{30, 100, 170, 240}, true, 10},
		// amount 2.5: base +2.5, spacings 70 (+2.5), 30 (-1.25), 70 (+2.5)
		{"one missed spacing penalised", []int{30, 100, 130, 200}, true, 6.25},
		{"one missed spacing ignored", []int{30, 100, 130, 200}, false, 7.5},
		// amount 5: base miss -2.5, spacing 200 misses both filters
		{"base miss and spacing miss", []int{70, 270, 320}, true, -2.5 - 2.5 + 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := jointScorer(tt.penalize).Score(tt.peaks)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Score(%v) = %v, want %v", tt.peaks, got, tt.want)
			}
		})
	}
}

func TestScoreBasePeakFloor(t *testing.T) {
	cs := NewCallScorer(ScorerConfig{
		MinPeakDistance: 40,
		BasePeakFilter:  Range{30, 60},
		BasePeakFloor:   25,
		BasePeakCeiling: 120,
		HarmonicFilters: []Range{{60, 93}, {130, 165}},
		PenalizeMisses:  true,
	}, nil)
	if got := cs.Score([]int{20, 90, 160}); got != MissPenalty {
		t.Errorf("Score below floor = %v, want %v", got, MissPenalty)
	}
	if got := cs.Score([]int{25, 95, 165}); got != MissPenalty {
		t.Errorf("Score at floor = %v, want %v", got, MissPenalty)
	}
	if got := cs.Score([]int{40, 110, 180}); got == MissPenalty {
		t.Errorf("Score above floor = %v, want a scored frame", got)
	}
}

func TestScoreFramesIsPerFrame(t *testing.T) {
	call := make([]float64, 275)
	for _, bin := range []int{30, 100, 170, 240} {
		call[bin] = 1
	}
	silent := make([]float64, 275)

	frames := [][]float64{silent, call, call, silent}
	scorer := jointScorer(true)
	scores := scorer.ScoreFrames(frames, 0.05)

	want := []float64{MissPenalty, 10, 10, MissPenalty}
	if !reflect.DeepEqual(scores, want) {
		t.Errorf("ScoreFrames = %v, want %v", scores, want)
	}

	// the same frame scores the same regardless of its neighbours
	alone := scorer.ScoreFrames([][]float64{call}, 0.05)
	if alone[0] != scores[1] {
		t.Errorf("isolated frame scored %v, in context %v", alone[0], scores[1])
	}
}

func TestScoreFramesWithDebugLogging(t *testing.T) {
	cfg := jointScorer(true).config
	cfg.Debug = true
	scorer := NewCallScorer(cfg, nil)

	frame := make([]float64, 275)
	frame[30], frame[100], frame[170] = 1, 0.5, 0.25
	scores := scorer.ScoreFrames([][]float64{frame}, 0.05)
	if len(scores) != 1 || scores[0] != 15 {
		t.Errorf("ScoreFrames = %v, want [15]", scores)
	}
}
