package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pikawatch/pika-sonar/algorithms/temporal"
	"github.com/pikawatch/pika-sonar/detector"
	"github.com/pikawatch/pika-sonar/logging"
	"github.com/pikawatch/pika-sonar/transcode"
)

func newAnalyzeCommand(opts *globalOptions) *cobra.Command {
	var (
		start, end float64
		fine       bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Print per-frame scores for a stretch of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if end <= start {
				return errors.New("--end must be after --start")
			}

			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			det, err := detector.New(cfg, logging.GetGlobalLogger())
			if err != nil {
				return err
			}

			audio, err := loadAudio(cmd, args[0])
			if err != nil {
				return err
			}
			sig, err := detector.SignalFromAudio(audio, 0)
			if err != nil {
				return err
			}

			analysis, err := det.Analyze(sig, temporal.Interval{Start: start, End: end}, fine)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(analysis)
			}
			return writeAnalysis(out, analysis)
		},
	}

	cmd.Flags().Float64Var(&start, "start", 0, "start of the stretch in seconds")
	cmd.Flags().Float64Var(&end, "end", 10, "end of the stretch in seconds")
	cmd.Flags().BoolVar(&fine, "fine", false, "use the verification frame resolution")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func loadAudio(cmd *cobra.Command, path string) (*transcode.AudioData, error) {
	if transcode.IsWAV(path) {
		return transcode.LoadWAV(path)
	}
	if !transcode.IsCompressed(path) {
		return nil, fmt.Errorf("%s: %w", path, transcode.ErrUnsupportedFormat)
	}
	return transcode.NewDecoder(decoderConfig()).DecodeFile(cmd.Context(), path)
}

func writeAnalysis(out io.Writer, a *detector.Analysis) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "frame\ttime\tscore\tsmoothed\t")
	for i, score := range a.Scores {
		fmt.Fprintf(w, "%d\t%.3f\t%.2f\t%.2f\t\n", i, a.Interval.Start+a.Spectrogram.FrameTime(i), score, a.Smoothed[i])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d passing intervals\n", len(a.Passing))
	for _, iv := range a.Passing {
		fmt.Fprintf(out, "  %s - %s (%.3fs)\n",
			formatOffset(a.Interval.Start+iv.Start), formatOffset(a.Interval.Start+iv.End), iv.Duration())
	}
	return nil
}
