package detector

import (
	"errors"
	"fmt"
	"iter"

	"github.com/pikawatch/pika-sonar/algorithms/spectral"
	"github.com/pikawatch/pika-sonar/logging"
)

// ErrAborted is returned when the reviewer stops a verification session
var ErrAborted = errors.New("verification aborted")

// Verdict is a reviewer's answer for one candidate call
type Verdict int

const (
	Confirmed Verdict = iota
	Rejected
	Abort
)

func (v Verdict) String() string {
	switch v {
	case Confirmed:
		return "confirmed"
	case Rejected:
		return "rejected"
	case Abort:
		return "abort"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Display shows a candidate's spectrogram to the reviewer
type Display interface {
	Show(title string, spec *spectral.Spectrogram) error
}

// Prompter asks the reviewer whether the candidate on display is a call
type Prompter interface {
	Ask(title string) (Verdict, error)
}

// PendingCall is a stored candidate waiting for review
type PendingCall struct {
	ID      int64
	Offset  float64
	Samples []float64
}

// CallTitle formats the heading shown for a candidate, e.g.
// "call id: 7, offset 2:05.3".
func CallTitle(id int64, offset float64) string {
	minutes := int(offset / 60)
	seconds := offset - float64(minutes*60)
	return fmt.Sprintf("call id: %d, offset %d:%04.1f", id, minutes, seconds)
}

// Verify renders a fine-resolution spectrogram of clip and returns the
// reviewer's verdict.
func (d *Detector) Verify(clip []float64, title string, display Display, prompt Prompter) (Verdict, error) {
	spec, err := d.fine.Build(clip)
	if err != nil {
		return Rejected, fmt.Errorf("failed to build spectrogram for %q: %w", title, err)
	}
	if err := display.Show(title, spec); err != nil {
		return Rejected, fmt.Errorf("failed to display %q: %w", title, err)
	}
	verdict, err := prompt.Ask(title)
	if err != nil {
		return Rejected, fmt.Errorf("failed to read verdict for %q: %w", title, err)
	}
	return verdict, nil
}

// VerifyAll reviews each pending call in turn and hands the result to
// record, one call at a time. It returns the number of calls recorded, and
// ErrAborted if the reviewer stopped early; calls recorded before the abort
// stay recorded.
func (d *Detector) VerifyAll(pending iter.Seq2[PendingCall, error], display Display, prompt Prompter, record func(call PendingCall, confirmed bool) error) (int, error) {
	reviewed := 0
	for call, err := range pending {
		if err != nil {
			return reviewed, err
		}

		title := CallTitle(call.ID, call.Offset)
		verdict, err := d.Verify(call.Samples, title, display, prompt)
		if err != nil {
			return reviewed, err
		}
		if verdict == Abort {
			d.logger.Info("Verification stopped", logging.Fields{"reviewed": reviewed})
			return reviewed, ErrAborted
		}

		if err := record(call, verdict == Confirmed); err != nil {
			return reviewed, fmt.Errorf("failed to record verdict for call %d: %w", call.ID, err)
		}
		reviewed++

		d.logger.Debug("Call verified", logging.Fields{
			"call_id": call.ID,
			"verdict": verdict.String(),
		})
	}
	return reviewed, nil
}
