package detector

import (
	"errors"
	"testing"

	"github.com/pikawatch/pika-sonar/algorithms/spectral"
)

type recordingDisplay struct {
	titles []string
	specs  []*spectral.Spectrogram
}

func (d *recordingDisplay) Show(title string, spec *spectral.Spectrogram) error {
	d.titles = append(d.titles, title)
	d.specs = append(d.specs, spec)
	return nil
}

type scriptedPrompter struct {
	verdicts []Verdict
	asked    int
}

func (p *scriptedPrompter) Ask(string) (Verdict, error) {
	if p.asked >= len(p.verdicts) {
		return Rejected, errors.New("no more answers")
	}
	v := p.verdicts[p.asked]
	p.asked++
	return v, nil
}

func pendingCalls(calls ...PendingCall) func(func(PendingCall, error) bool) {
	return func(yield func(PendingCall, error) bool) {
		for _, c := range calls {
			if !yield(c, nil) {
				return
			}
		}
	}
}

func TestCallTitle(t *testing.T) {
	tests := []struct {
		id     int64
		offset float64
		want   string
	}{
		{1, 0, "call id: 1, offset 0:00.0"},
		{7, 125.3, "call id: 7, offset 2:05.3"},
		{42, 3599.9, "call id: 42, offset 59:59.9"},
	}
	for _, tt := range tests {
		if got := CallTitle(tt.id, tt.offset); got != tt.want {
			t.Errorf("CallTitle(%d, %v) = %q, want %q", tt.id, tt.offset, got, tt.want)
		}
	}
}

func TestVerifyUsesFineSpectrogram(t *testing.T) {
	d := newTestDetector(t, nil)
	clip := synthCalls(0.5, [2]float64{0, 0.5})

	display := &recordingDisplay{}
	verdict, err := d.Verify(clip, "call id: 1, offset 0:03.0", display, &scriptedPrompter{verdicts: []Verdict{Confirmed}})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if verdict != Confirmed {
		t.Errorf("Verify() = %v, want confirmed", verdict)
	}
	if len(display.specs) != 1 {
		t.Fatalf("display shown %d times, want 1", len(display.specs))
	}
	if hop := display.specs[0].HopSize; hop != 64 {
		t.Errorf("displayed hop size = %d, want 64", hop)
	}
}

func TestVerifyAllStopsOnAbort(t *testing.T) {
	d := newTestDetector(t, nil)
	clip := synthCalls(0.3, [2]float64{0, 0.3})

	pending := pendingCalls(
		PendingCall{ID: 1, Offset: 3, Samples: clip},
		PendingCall{ID: 2, Offset: 14, Samples: clip},
		PendingCall{ID: 3, Offset: 65, Samples: clip},
		PendingCall{ID: 4, Offset: 90, Samples: clip},
	)
	prompt := &scriptedPrompter{verdicts: []Verdict{Confirmed, Rejected, Abort, Confirmed}}

	recorded := map[int64]bool{}
	reviewed, err := d.VerifyAll(pending, &recordingDisplay{}, prompt, func(call PendingCall, confirmed bool) error {
		recorded[call.ID] = confirmed
		return nil
	})
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("VerifyAll() error = %v, want ErrAborted", err)
	}
	if reviewed != 2 {
		t.Errorf("VerifyAll() reviewed = %d, want 2", reviewed)
	}
	if len(recorded) != 2 || !recorded[1] || recorded[2] {
		t.Errorf("recorded = %v, want call 1 confirmed and call 2 rejected", recorded)
	}
	if prompt.asked != 3 {
		t.Errorf("prompted %d times, want 3", prompt.asked)
	}
}

func TestVerifyAllPropagatesRecordError(t *testing.T) {
	d := newTestDetector(t, nil)
	clip := synthCalls(0.3, [2]float64{0, 0.3})

	readOnly := errors.New("read-only database")
	_, err := d.VerifyAll(
		pendingCalls(PendingCall{ID: 9, Samples: clip}),
		&recordingDisplay{},
		&scriptedPrompter{verdicts: []Verdict{Confirmed}},
		func(PendingCall, bool) error { return readOnly },
	)
	if !errors.Is(err, readOnly) {
		t.Errorf("VerifyAll() error = %v, want %v", err, readOnly)
	}
}
