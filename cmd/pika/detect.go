package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pikawatch/pika-sonar/detector"
	"github.com/pikawatch/pika-sonar/detector/config"
	"github.com/pikawatch/pika-sonar/logging"
	"github.com/pikawatch/pika-sonar/store"
	"github.com/pikawatch/pika-sonar/transcode"
)

func newDetectCommand(opts *globalOptions) *cobra.Command {
	var (
		recordingID int64
		pending     bool
	)

	cmd := &cobra.Command{
		Use:   "detect [file]",
		Short: "Detect calls in a recording",
		Long: `Detect calls in a recording.

WAV files are analysed directly. Other formats are decoded with ffmpeg one
segment at a time. With --recording-id or --pending the calls are written to
the database as clips for later review; otherwise they are printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			det, err := detector.New(cfg, logging.GetGlobalLogger())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch {
			case pending:
				return detectPending(ctx, opts, det, out)
			case recordingID > 0:
				return detectRecording(ctx, opts, det, recordingID, out)
			case len(args) == 1:
				total, err := detectFile(ctx, det, args[0], &printSink{out: out})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d calls found in %s\n", total, args[0])
				return nil
			default:
				return errors.New("give a file, --recording-id or --pending")
			}
		},
	}

	cmd.Flags().Int64Var(&recordingID, "recording-id", 0, "analyse a stored recording and save its calls")
	cmd.Flags().BoolVar(&pending, "pending", false, "analyse every stored recording not yet processed")
	return cmd
}

func detectRecording(ctx context.Context, opts *globalOptions, det *detector.Detector, id int64, out io.Writer) error {
	db, err := store.Open(opts.dbPath, logging.GetGlobalLogger())
	if err != nil {
		return err
	}
	defer db.Close()

	recording, err := db.Recording(id)
	if err != nil {
		return err
	}
	return detectStored(ctx, db, det, recording, out)
}

func detectPending(ctx context.Context, opts *globalOptions, det *detector.Detector, out io.Writer) error {
	db, err := store.Open(opts.dbPath, logging.GetGlobalLogger())
	if err != nil {
		return err
	}
	defer db.Close()

	recordings, err := db.Recordings(true)
	if err != nil {
		return err
	}
	for _, recording := range recordings {
		if err := detectStored(ctx, db, det, recording, out); err != nil {
			return err
		}
	}
	return nil
}

func detectStored(ctx context.Context, db *store.Store, det *detector.Detector, recording *store.Recording, out io.Writer) error {
	ctx = logging.ContextWithFields(ctx, logging.Fields{"recording_id": recording.ID})

	sink := db.NewCallSink(recording)
	_, err := detectFile(ctx, det, recording.Filename, sink)
	if finishErr := sink.Finish(err); finishErr != nil && err == nil {
		err = finishErr
	}
	if err != nil {
		return fmt.Errorf("recording %d: %w", recording.ID, err)
	}
	fmt.Fprintf(out, "recording %d: %d calls stored in %s\n", recording.ID, sink.Count(), store.ClipDir(recording))
	return nil
}

// detectFile runs the detector over path and feeds sink, returning the
// number of calls accepted.
func detectFile(ctx context.Context, det *detector.Detector, path string, sink detector.Sink) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, err
	}

	if transcode.IsWAV(path) {
		audio, err := transcode.LoadWAV(path)
		if err != nil {
			return 0, err
		}
		sig, err := detector.SignalFromAudio(audio, 0)
		if err != nil {
			return 0, err
		}
		defer sig.Release()
		return det.Run(sig, sink)
	}

	if !transcode.IsCompressed(path) {
		return 0, fmt.Errorf("%s: %w", path, transcode.ErrUnsupportedFormat)
	}

	decoder := transcode.NewDecoder(decoderConfig())
	if err := decoder.CheckAvailable(); err != nil {
		return 0, fmt.Errorf("%s cannot be decoded: %w", path, err)
	}

	total := 0
	for segment, err := range decoder.Segments(ctx, path, det.Config().SegmentSeconds) {
		if err != nil {
			return total, err
		}
		sig, err := detector.SignalFromAudio(segment.Audio, segment.Offset)
		if err != nil {
			return total, err
		}
		n, err := det.Run(sig, sink)
		sig.Release()
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func decoderConfig() *transcode.DecoderConfig {
	cfg := transcode.DefaultDecoderConfig()
	cfg.TargetSampleRate = config.RequiredSampleRate
	return cfg
}

// printSink writes each call as a line of offset and duration
type printSink struct {
	out io.Writer
}

func (p *printSink) Enter() error { return nil }

func (p *printSink) HandleCall(call detector.DetectedCall) error {
	_, err := fmt.Fprintf(p.out, "%s\t%.2fs\n", formatOffset(call.Offset), call.Duration)
	return err
}

func (p *printSink) Exit(error) error { return nil }

func formatOffset(seconds float64) string {
	minutes := int(seconds / 60)
	return fmt.Sprintf("%d:%04.1f", minutes, seconds-float64(minutes*60))
}
