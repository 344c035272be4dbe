package temporal

import (
	"math"
	"testing"
)

func defaultExtractor() *RidgeExtractor {
	return NewRidgeExtractor(RidgeConfig{Threshold: 8.5, MinDuration: 0.13}, nil)
}

func TestSmoothingKernelWidth(t *testing.T) {
	if got := len(SmoothingKernel(1.0)); got != 3 {
		t.Errorf("coarse kernel taps = %d, want 3", got)
	}
	if got := len(SmoothingKernel(2048.0 / 44100.0)); got != 10 {
		t.Errorf("fine kernel taps = %d, want 10", got)
	}
	if got := len(SmoothingKernel(0.05)); got != 10 {
		t.Errorf("kernel at exactly 0.05 s = %d taps, want 10", got)
	}
}

func TestExtractRidgeExample(t *testing.T) {
	scores := []float64{0, 0, 9, 9, 9, 0, 0}

	smoothed := Smooth(scores, 1.0)
	wantSmoothed := []float64{0, 4.5, 9, 13.5, 9, 4.5, 0}
	for i := range wantSmoothed {
		if math.Abs(smoothed[i]-wantSmoothed[i]) > 1e-12 {
			t.Fatalf("smoothed = %v, want %v", smoothed, wantSmoothed)
		}
	}

	got := defaultExtractor().Extract(scores, 1.0)
	if len(got) != 1 {
		t.Fatalf("intervals = %v, want one", got)
	}
	if got[0].Start != 2 || got[0].End != 4 {
		t.Errorf("interval = %+v, want {2 4}", got[0])
	}
}

func TestExtractOpenRidgeClosesAtLastFrame(t *testing.T) {
	scores := []float64{0, 0, 0, 20, 20, 20}
	got := defaultExtractor().Extract(scores, 1.0)
	// smoothed: [0 0 10 20 30 20]
	if len(got) != 1 {
		t.Fatalf("intervals = %v, want one", got)
	}
	if got[0].Start != 2 || got[0].End != 5 {
		t.Errorf("interval = %+v, want {2 5}", got[0])
	}
}

func TestExtractDropsShortRidges(t *testing.T) {
	// two pulses exactly one kernel width apart only clear the threshold in
	// the single window that holds both; the long run survives
	spf := 2048.0 / 44100.0
	scores := make([]float64, 200)
	scores[20] = 9
	scores[29] = 9
	for i := 100; i < 130; i++ {
		scores[i] = 10
	}

	smoothed := Smooth(scores, spf)
	if smoothed[25] != 9 {
		t.Fatalf("smoothed[25] = %v, want 9", smoothed[25])
	}

	got := defaultExtractor().Extract(scores, spf)
	if len(got) != 1 {
		t.Fatalf("intervals = %v, want only the long ridge", got)
	}
	if math.Abs(got[0].Start-97*spf) > 1e-9 || math.Abs(got[0].End-133*spf) > 1e-9 {
		t.Errorf("interval = %+v, want [%v, %v]", got[0], 97*spf, 133*spf)
	}
}

func TestExtractIntervalsAreValid(t *testing.T) {
	spf := 2048.0 / 44100.0
	scores := make([]float64, 500)
	for i := range scores {
		// bursts of different lengths separated by quiet stretches
		switch {
		case i%100 < 3*(i/100+1):
			scores[i] = 10
		default:
			scores[i] = -1
		}
	}

	got := defaultExtractor().Extract(scores, spf)
	for i, iv := range got {
		if iv.End <= iv.Start {
			t.Errorf("interval %d: end %v <= start %v", i, iv.End, iv.Start)
		}
		if iv.Duration() <= 0.13 {
			t.Errorf("interval %d: duration %v <= 0.13", i, iv.Duration())
		}
		if i > 0 && iv.Start <= got[i-1].End {
			t.Errorf("interval %d overlaps its predecessor", i)
		}
	}
}

func TestExtractNegativeScoresYieldNothing(t *testing.T) {
	scores := make([]float64, 300)
	for i := range scores {
		scores[i] = -1
	}
	if got := defaultExtractor().Extract(scores, 0.0464); len(got) != 0 {
		t.Errorf("intervals = %v, want none", got)
	}
	if got := defaultExtractor().Extract(nil, 0.0464); len(got) != 0 {
		t.Errorf("intervals = %v, want none for empty input", got)
	}
}
