package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pikawatch/pika-sonar/detector"
	"github.com/pikawatch/pika-sonar/logging"
	"github.com/pikawatch/pika-sonar/store"
)

const defaultDisplayWidth = 100

func newVerifyCommand(opts *globalOptions) *cobra.Command {
	var recordingID int64

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Review the unverified calls of a recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return errors.New("verify needs an interactive terminal")
			}

			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			det, err := detector.New(cfg, logging.GetGlobalLogger())
			if err != nil {
				return err
			}

			db, err := store.Open(opts.dbPath, logging.GetGlobalLogger())
			if err != nil {
				return err
			}
			defer db.Close()

			if _, err := db.Recording(recordingID); err != nil {
				return err
			}

			width := defaultDisplayWidth
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
				width = w
			}

			out := cmd.OutOrStdout()
			display := &asciiDisplay{out: out, width: width}
			prompt := &linePrompter{in: bufio.NewReader(os.Stdin), out: out}

			reviewed, err := det.VerifyAll(db.PendingCalls(recordingID), display, prompt, func(call detector.PendingCall, confirmed bool) error {
				return db.SetVerified(call.ID, confirmed)
			})
			fmt.Fprintf(out, "%d calls reviewed\n", reviewed)
			if errors.Is(err, detector.ErrAborted) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().Int64Var(&recordingID, "recording-id", 0, "recording whose calls to review")
	cmd.MarkFlagRequired("recording-id")
	return cmd
}
