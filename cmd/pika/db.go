package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pikawatch/pika-sonar/detector/config"
	"github.com/pikawatch/pika-sonar/logging"
	"github.com/pikawatch/pika-sonar/store"
	"github.com/pikawatch/pika-sonar/transcode"
)

func newInitDBCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.Open(opts.dbPath, logging.GetGlobalLogger())
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "database ready at %s\n", opts.dbPath)
			return nil
		},
	}
}

type addRecordingOptions struct {
	observationID int64
	observer      string
	institution   string
	folder        string
	site          string
	latitude      float64
	longitude     float64
	datum         string
	device        string
	startTime     string
	notes         string
}

func newAddRecordingCommand(opts *globalOptions) *cobra.Command {
	ro := &addRecordingOptions{}

	cmd := &cobra.Command{
		Use:   "add-recording <file>",
		Short: "Register a recording together with its observer, collection and site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.Open(opts.dbPath, logging.GetGlobalLogger())
			if err != nil {
				return err
			}
			defer db.Close()

			recording, err := addRecording(cmd, db, args[0], ro)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recording %d registered\n", recording.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.Int64Var(&ro.observationID, "observation-id", 0, "add to an existing observation site instead of creating one")
	f.StringVar(&ro.observer, "observer", "", "observer name, required for a new site")
	f.StringVar(&ro.institution, "institution", "", "observer institution")
	f.StringVar(&ro.folder, "folder", "", "collection folder (defaults to the file's folder)")
	f.StringVar(&ro.site, "site", "", "observation site description")
	f.Float64Var(&ro.latitude, "lat", 0, "site latitude")
	f.Float64Var(&ro.longitude, "lon", 0, "site longitude")
	f.StringVar(&ro.datum, "datum", "WGS84", "coordinate datum")
	f.StringVar(&ro.device, "device", "", "recording device")
	f.StringVar(&ro.startTime, "start-time", "", "recording start, RFC 3339")
	f.StringVar(&ro.notes, "notes", "", "free-form notes")
	return cmd
}

func addRecording(cmd *cobra.Command, db *store.Store, path string, ro *addRecordingOptions) (*store.Recording, error) {
	if ro.observationID <= 0 && ro.observer == "" {
		return nil, errors.New("--observer is required unless --observation-id is given")
	}

	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	var start time.Time
	if ro.startTime != "" {
		parsed, err := time.Parse(time.RFC3339, ro.startTime)
		if err != nil {
			return nil, fmt.Errorf("invalid --start-time: %w", err)
		}
		start = parsed
	}

	recording := &store.Recording{
		ObservationID: ro.observationID,
		Filename:      path,
		StartTime:     start,
		Device:        ro.device,
		Notes:         ro.notes,
	}
	if meta, err := transcode.NewDecoder(decoderConfig()).Probe(cmd.Context(), path); err == nil {
		recording.Duration = meta.Duration
		recording.Bitrate = meta.Bitrate
	} else {
		logging.Warn("Could not probe recording", logging.Fields{"path": path, "error": err.Error()})
	}

	if tags, err := transcode.ReadTags(path); err == nil {
		if recording.Notes == "" {
			recording.Notes = tags.Summary()
		}
		if recording.Device == "" {
			recording.Device = tags.Artist
		}
	}

	if ro.observationID > 0 {
		if _, err := db.Observation(ro.observationID); err != nil {
			return nil, err
		}
		if err := db.AddRecording(recording); err != nil {
			return nil, err
		}
		return recording, nil
	}

	folder := ro.folder
	if folder == "" {
		folder = filepath.Dir(path)
	}
	observer := &store.Observer{Name: ro.observer, Institution: ro.institution}
	collection := &store.Collection{Folder: folder, StartDate: start, EndDate: start}
	observation := &store.Observation{
		Description: ro.site,
		Latitude:    ro.latitude,
		Longitude:   ro.longitude,
		Datum:       ro.datum,
	}
	if err := db.AddRecordingTree(observer, collection, observation, recording); err != nil {
		return nil, err
	}
	return recording, nil
}

func newPresetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "Print the built-in detector presets as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			for _, name := range config.PresetNames() {
				preset, err := config.Preset(name)
				if err != nil {
					return err
				}
				if err := enc.Encode(preset); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
